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

	platformmongo "apihub/internal/platform/mongo"
	"apihub/internal/team/models"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sensitive"
	"apihub/pkg/platform/sentinel"
)

const collection = "teams"

// Indexes lists the team indexes. The unique index on the normalized name
// enforces case-insensitive name uniqueness.
var Indexes = []platformmongo.Index{
	{Collection: collection, Model: mongo.IndexModel{
		Keys:    bson.D{{Key: "normalizedName", Value: 1}},
		Options: options.Index().SetUnique(true),
	}},
	{Collection: collection, Model: mongo.IndexModel{Keys: bson.D{{Key: "memberKeys", Value: 1}}}},
}

// teamDocument is the stored form. Member emails are encrypted and keyed.
type teamDocument struct {
	ID             primitive.ObjectID `bson:"_id"`
	Name           string             `bson:"name"`
	NormalizedName string             `bson:"normalizedName"`
	Created        time.Time          `bson:"created"`
	TeamMembers    []string           `bson:"teamMembers"`
	MemberKeys     []string           `bson:"memberKeys"`
	TeamType       string             `bson:"teamType"`
	Egresses       []string           `bson:"egresses"`
}

// MongoStore persists teams.
type MongoStore struct {
	coll   *mongo.Collection
	cipher sensitive.Cipher
	keyer  sensitive.Keyer
}

func NewMongoStore(db *mongo.Database, cipher sensitive.Cipher, keyer sensitive.Keyer) *MongoStore {
	return &MongoStore{coll: db.Collection(collection), cipher: cipher, keyer: keyer}
}

func (s *MongoStore) CreateIfNameAvailable(ctx context.Context, team models.Team) error {
	doc, err := s.toDocument(team)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, team models.Team) error {
	doc, err := s.toDocument(team)
	if err != nil {
		return err
	}
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("replace team: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotUpdated
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, teamID id.TeamID) (models.Team, error) {
	oid, err := id.ObjectID(teamID)
	if err != nil {
		return models.Team{}, sentinel.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindByName(ctx context.Context, name string) (models.Team, error) {
	return s.findOne(ctx, bson.M{"normalizedName": models.NormalizedName(name)})
}

func (s *MongoStore) List(ctx context.Context, member string) ([]models.Team, error) {
	filter := bson.M{}
	if member != "" {
		filter["memberKeys"] = s.keyer.Key(member)
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "normalizedName", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find teams: %w", err)
	}
	var docs []teamDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode teams: %w", err)
	}
	out := make([]models.Team, 0, len(docs))
	for _, doc := range docs {
		team, err := s.fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, team)
	}
	return out, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (models.Team, error) {
	var doc teamDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Team{}, sentinel.ErrNotFound
		}
		return models.Team{}, fmt.Errorf("find team: %w", err)
	}
	return s.fromDocument(doc)
}

func (s *MongoStore) toDocument(team models.Team) (teamDocument, error) {
	oid, err := id.ObjectID(team.ID)
	if err != nil {
		return teamDocument{}, fmt.Errorf("team id: %w", err)
	}
	members, err := sensitive.EncryptAll(s.cipher, team.TeamMembers)
	if err != nil {
		return teamDocument{}, fmt.Errorf("encrypt team members: %w", err)
	}
	keys := make([]string, 0, len(team.TeamMembers))
	for _, m := range team.TeamMembers {
		keys = append(keys, s.keyer.Key(m))
	}
	return teamDocument{
		ID:             oid,
		Name:           team.Name,
		NormalizedName: models.NormalizedName(team.Name),
		Created:        team.Created.UTC(),
		TeamMembers:    members,
		MemberKeys:     keys,
		TeamType:       string(team.TeamType),
		Egresses:       team.Egresses,
	}, nil
}

func (s *MongoStore) fromDocument(doc teamDocument) (models.Team, error) {
	members, err := sensitive.DecryptAll(s.cipher, doc.TeamMembers)
	if err != nil {
		return models.Team{}, fmt.Errorf("decrypt team %s: %w", doc.ID.Hex(), err)
	}
	return models.Team{
		ID:          id.TeamID(doc.ID.Hex()),
		Name:        doc.Name,
		Created:     doc.Created,
		TeamMembers: members,
		TeamType:    models.TeamType(doc.TeamType),
		Egresses:    doc.Egresses,
	}, nil
}
