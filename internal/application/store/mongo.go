package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"apihub/internal/application/models"
	platformmongo "apihub/internal/platform/mongo"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sensitive"
	"apihub/pkg/platform/sentinel"
)

const collection = "applications"

// Indexes lists the indexes the application queries rely on.
var Indexes = []platformmongo.Index{
	{Collection: collection, Model: mongo.IndexModel{Keys: bson.D{{Key: "teamId", Value: 1}}}},
	{Collection: collection, Model: mongo.IndexModel{Keys: bson.D{{Key: "memberKeys", Value: 1}}}},
}

type endpointDocument struct {
	HTTPMethod string   `bson:"httpMethod"`
	Path       string   `bson:"path"`
	Scopes     []string `bson:"scopes"`
}

type apiDocument struct {
	ID        string             `bson:"id"`
	Title     string             `bson:"title"`
	Endpoints []endpointDocument `bson:"endpoints"`
}

type credentialDocument struct {
	ClientID       string    `bson:"clientId"`
	Created        time.Time `bson:"created"`
	SecretFragment string    `bson:"secretFragment"`
	EnvironmentID  string    `bson:"environmentId"`
}

type deletedDocument struct {
	At time.Time `bson:"at"`
	By string    `bson:"by"`
}

// applicationDocument is the stored form. Member emails and actor fields are
// encrypted. memberKeys holds keyed hashes of the members so membership
// lookups work without decrypting.
type applicationDocument struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Created     time.Time            `bson:"created"`
	LastUpdated time.Time            `bson:"lastUpdated"`
	CreatedBy   string               `bson:"createdBy"`
	TeamID      string               `bson:"teamId,omitempty"`
	TeamMembers []string             `bson:"teamMembers,omitempty"`
	MemberKeys  []string             `bson:"memberKeys,omitempty"`
	Apis        []apiDocument        `bson:"apis"`
	Credentials []credentialDocument `bson:"credentials"`
	Deleted     *deletedDocument     `bson:"deleted,omitempty"`
}

// MongoStore persists applications. Credential secrets are never stored.
type MongoStore struct {
	coll   *mongo.Collection
	cipher sensitive.Cipher
	keyer  sensitive.Keyer
}

func NewMongoStore(db *mongo.Database, cipher sensitive.Cipher, keyer sensitive.Keyer) *MongoStore {
	return &MongoStore{coll: db.Collection(collection), cipher: cipher, keyer: keyer}
}

func (s *MongoStore) Create(ctx context.Context, app models.Application) error {
	doc, err := s.toDocument(app)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// Update replaces the whole document. Last writer wins; a missing document
// surfaces as sentinel.ErrNotUpdated.
func (s *MongoStore) Update(ctx context.Context, app models.Application) error {
	doc, err := s.toDocument(app)
	if err != nil {
		return err
	}
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("replace application: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotUpdated
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, appID id.ApplicationID) (models.Application, error) {
	oid, err := id.ObjectID(appID)
	if err != nil {
		return models.Application{}, sentinel.ErrNotFound
	}
	var doc applicationDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Application{}, sentinel.ErrNotFound
		}
		return models.Application{}, fmt.Errorf("find application: %w", err)
	}
	return s.fromDocument(doc)
}

func (s *MongoStore) ListByTeam(ctx context.Context, teamID id.TeamID) ([]models.Application, error) {
	return s.find(ctx, bson.M{"teamId": teamID.String(), "deleted": bson.M{"$exists": false}})
}

func (s *MongoStore) ListByMember(ctx context.Context, email string) ([]models.Application, error) {
	return s.find(ctx, bson.M{"memberKeys": s.keyer.Key(email), "deleted": bson.M{"$exists": false}})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]models.Application, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find applications: %w", err)
	}
	var docs []applicationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}
	out := make([]models.Application, 0, len(docs))
	for _, doc := range docs {
		app, err := s.fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

func (s *MongoStore) toDocument(app models.Application) (applicationDocument, error) {
	oid, err := id.ObjectID(app.ID)
	if err != nil {
		return applicationDocument{}, fmt.Errorf("application id: %w", err)
	}
	createdBy, err := s.cipher.Encrypt(app.CreatedBy)
	if err != nil {
		return applicationDocument{}, fmt.Errorf("encrypt application creator: %w", err)
	}
	members, err := sensitive.EncryptAll(s.cipher, app.TeamMembers)
	if err != nil {
		return applicationDocument{}, fmt.Errorf("encrypt application members: %w", err)
	}
	doc := applicationDocument{
		ID:          oid,
		Name:        app.Name,
		Created:     app.Created.UTC(),
		LastUpdated: app.LastUpdated.UTC(),
		CreatedBy:   createdBy,
		TeamID:      app.TeamID.String(),
		TeamMembers: members,
		Apis:        make([]apiDocument, 0, len(app.Apis)),
		Credentials: make([]credentialDocument, 0, len(app.Credentials)),
	}
	for _, m := range app.TeamMembers {
		doc.MemberKeys = append(doc.MemberKeys, s.keyer.Key(m))
	}
	for _, api := range app.Apis {
		ad := apiDocument{ID: api.ID.String(), Title: api.Title, Endpoints: make([]endpointDocument, 0, len(api.Endpoints))}
		for _, e := range api.Endpoints {
			ad.Endpoints = append(ad.Endpoints, endpointDocument(e))
		}
		doc.Apis = append(doc.Apis, ad)
	}
	for _, c := range app.Credentials {
		doc.Credentials = append(doc.Credentials, credentialDocument{
			ClientID:       c.ClientID,
			Created:        c.Created.UTC(),
			SecretFragment: c.SecretFragment,
			EnvironmentID:  c.EnvironmentID.String(),
		})
	}
	if app.Deleted != nil {
		by, err := s.cipher.Encrypt(app.Deleted.By)
		if err != nil {
			return applicationDocument{}, fmt.Errorf("encrypt application deleter: %w", err)
		}
		doc.Deleted = &deletedDocument{At: app.Deleted.At.UTC(), By: by}
	}
	return doc, nil
}

func (s *MongoStore) fromDocument(doc applicationDocument) (models.Application, error) {
	createdBy, err := s.cipher.Decrypt(doc.CreatedBy)
	if err != nil {
		return models.Application{}, fmt.Errorf("decrypt application %s: %w", doc.ID.Hex(), err)
	}
	members, err := sensitive.DecryptAll(s.cipher, doc.TeamMembers)
	if err != nil {
		return models.Application{}, fmt.Errorf("decrypt application %s members: %w", doc.ID.Hex(), err)
	}
	app := models.Application{
		ID:          id.ApplicationID(doc.ID.Hex()),
		Name:        doc.Name,
		Created:     doc.Created,
		LastUpdated: doc.LastUpdated,
		CreatedBy:   createdBy,
		TeamID:      id.TeamID(doc.TeamID),
		Apis:        make([]models.Api, 0, len(doc.Apis)),
		Credentials: make([]models.Credential, 0, len(doc.Credentials)),
	}
	if len(members) > 0 {
		app.TeamMembers = members
	}
	for _, ad := range doc.Apis {
		eps := make([]models.Endpoint, 0, len(ad.Endpoints))
		for _, e := range ad.Endpoints {
			eps = append(eps, models.Endpoint(e))
		}
		app.Apis = append(app.Apis, models.NewApi(id.ApiID(ad.ID), ad.Title, eps))
	}
	for _, c := range doc.Credentials {
		app.Credentials = append(app.Credentials, models.Credential{
			ClientID:       c.ClientID,
			Created:        c.Created,
			SecretFragment: c.SecretFragment,
			EnvironmentID:  id.EnvironmentID(c.EnvironmentID),
		})
	}
	if doc.Deleted != nil {
		by, err := s.cipher.Decrypt(doc.Deleted.By)
		if err != nil {
			return models.Application{}, fmt.Errorf("decrypt application %s deleter: %w", doc.ID.Hex(), err)
		}
		app.Deleted = &models.Deleted{At: doc.Deleted.At, By: by}
	}
	return app, nil
}
