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

	"apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
	platformmongo "apihub/internal/platform/mongo"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sensitive"
	"apihub/pkg/platform/sentinel"
)

const collection = "accessRequests"

// Indexes lists the indexes the access request queries rely on.
var Indexes = []platformmongo.Index{
	{Collection: collection, Model: mongo.IndexModel{Keys: bson.D{
		{Key: "applicationId", Value: 1}, {Key: "apiId", Value: 1}, {Key: "status", Value: 1},
	}}},
	{Collection: collection, Model: mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "requested", Value: 1}}}},
	// At most one pending request per application and API.
	{Collection: collection, Model: mongo.IndexModel{
		Keys: bson.D{{Key: "applicationId", Value: 1}, {Key: "apiId", Value: 1}},
		Options: options.Index().
			SetName("one_pending_per_api").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": string(models.StatusPending)}),
	}},
}

type endpointDocument struct {
	HTTPMethod string   `bson:"httpMethod"`
	Path       string   `bson:"path"`
	Scopes     []string `bson:"scopes"`
}

type decisionDocument struct {
	Decided        time.Time `bson:"decided"`
	DecidedBy      string    `bson:"decidedBy"`
	RejectedReason string    `bson:"rejectedReason,omitempty"`
}

type cancelledDocument struct {
	Cancelled   time.Time `bson:"cancelled"`
	CancelledBy string    `bson:"cancelledBy"`
}

// requestDocument is the stored form. Actor identities and free text are
// encrypted.
type requestDocument struct {
	ID                    primitive.ObjectID `bson:"_id"`
	ApplicationID         string             `bson:"applicationId"`
	ApiID                 string             `bson:"apiId"`
	ApiName               string             `bson:"apiName"`
	Status                string             `bson:"status"`
	Endpoints             []endpointDocument `bson:"endpoints"`
	SupportingInformation string             `bson:"supportingInformation"`
	Requested             time.Time          `bson:"requested"`
	RequestedBy           string             `bson:"requestedBy"`
	Decision              *decisionDocument  `bson:"decision,omitempty"`
	Cancelled             *cancelledDocument `bson:"cancelled,omitempty"`
}

// MongoStore persists access requests.
type MongoStore struct {
	coll   *mongo.Collection
	cipher sensitive.Cipher
}

func NewMongoStore(db *mongo.Database, cipher sensitive.Cipher) *MongoStore {
	return &MongoStore{coll: db.Collection(collection), cipher: cipher}
}

func (s *MongoStore) Create(ctx context.Context, req models.AccessRequest) error {
	doc, err := s.toDocument(req)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

// Update replaces a pending request with its decided copy. A request that
// was decided or cancelled in the meantime is left alone and ErrNotUpdated is
// returned.
func (s *MongoStore) Update(ctx context.Context, req models.AccessRequest) error {
	doc, err := s.toDocument(req)
	if err != nil {
		return err
	}
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "status": string(models.StatusPending)}, doc)
	if err != nil {
		return fmt.Errorf("replace access request: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotUpdated
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, reqID id.AccessRequestID) (models.AccessRequest, error) {
	oid, err := id.ObjectID(reqID)
	if err != nil {
		return models.AccessRequest{}, sentinel.ErrNotFound
	}
	var doc requestDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.AccessRequest{}, sentinel.ErrNotFound
		}
		return models.AccessRequest{}, fmt.Errorf("find access request: %w", err)
	}
	return s.fromDocument(doc)
}

func (s *MongoStore) List(ctx context.Context, filter models.Filter) ([]models.AccessRequest, error) {
	query := bson.M{}
	if !filter.ApplicationID.IsNil() {
		query["applicationId"] = filter.ApplicationID.String()
	}
	if filter.ApiID != "" {
		query["apiId"] = filter.ApiID.String()
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	cur, err := s.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "requested", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find access requests: %w", err)
	}
	var docs []requestDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode access requests: %w", err)
	}
	out := make([]models.AccessRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := s.fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *MongoStore) toDocument(req models.AccessRequest) (requestDocument, error) {
	oid, err := id.ObjectID(req.ID)
	if err != nil {
		return requestDocument{}, fmt.Errorf("access request id: %w", err)
	}
	plain := []string{req.SupportingInformation, req.RequestedBy, "", "", ""}
	if req.Decision != nil {
		plain[2], plain[3] = req.Decision.DecidedBy, req.Decision.RejectedReason
	}
	if req.Cancelled != nil {
		plain[4] = req.Cancelled.CancelledBy
	}
	enc, err := sensitive.EncryptAll(s.cipher, plain)
	if err != nil {
		return requestDocument{}, fmt.Errorf("encrypt access request: %w", err)
	}
	doc := requestDocument{
		ID:                    oid,
		ApplicationID:         req.ApplicationID.String(),
		ApiID:                 req.ApiID.String(),
		ApiName:               req.ApiName,
		Status:                string(req.Status),
		Endpoints:             make([]endpointDocument, 0, len(req.Endpoints)),
		SupportingInformation: enc[0],
		Requested:             req.Requested.UTC(),
		RequestedBy:           enc[1],
	}
	for _, e := range req.Endpoints {
		doc.Endpoints = append(doc.Endpoints, endpointDocument(e))
	}
	if req.Decision != nil {
		doc.Decision = &decisionDocument{Decided: req.Decision.Decided.UTC(), DecidedBy: enc[2], RejectedReason: enc[3]}
	}
	if req.Cancelled != nil {
		doc.Cancelled = &cancelledDocument{Cancelled: req.Cancelled.Cancelled.UTC(), CancelledBy: enc[4]}
	}
	return doc, nil
}

func (s *MongoStore) fromDocument(doc requestDocument) (models.AccessRequest, error) {
	plain := []string{doc.SupportingInformation, doc.RequestedBy, "", "", ""}
	if doc.Decision != nil {
		plain[2], plain[3] = doc.Decision.DecidedBy, doc.Decision.RejectedReason
	}
	if doc.Cancelled != nil {
		plain[4] = doc.Cancelled.CancelledBy
	}
	dec, err := sensitive.DecryptAll(s.cipher, plain)
	if err != nil {
		return models.AccessRequest{}, fmt.Errorf("decrypt access request %s: %w", doc.ID.Hex(), err)
	}
	req := models.AccessRequest{
		ID:                    id.AccessRequestID(doc.ID.Hex()),
		ApplicationID:         id.ApplicationID(doc.ApplicationID),
		ApiID:                 id.ApiID(doc.ApiID),
		ApiName:               doc.ApiName,
		Status:                models.Status(doc.Status),
		Endpoints:             make([]appmodels.Endpoint, 0, len(doc.Endpoints)),
		SupportingInformation: dec[0],
		Requested:             doc.Requested,
		RequestedBy:           dec[1],
	}
	for _, e := range doc.Endpoints {
		req.Endpoints = append(req.Endpoints, appmodels.Endpoint(e))
	}
	if doc.Decision != nil {
		req.Decision = &models.Decision{Decided: doc.Decision.Decided, DecidedBy: dec[2], RejectedReason: dec[3]}
	}
	if doc.Cancelled != nil {
		req.Cancelled = &models.Cancelled{Cancelled: doc.Cancelled.Cancelled, CancelledBy: dec[4]}
	}
	return req, nil
}
