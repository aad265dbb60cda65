package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"apihub/internal/event/models"
	platformmongo "apihub/internal/platform/mongo"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sensitive"
)

const collection = "events"

// Indexes lists the indexes the event log queries rely on.
var Indexes = []platformmongo.Index{
	{Collection: collection, Model: mongo.IndexModel{Keys: bson.D{{Key: "entityId", Value: 1}, {Key: "timestamp", Value: 1}}}},
	{Collection: collection, Model: mongo.IndexModel{Keys: bson.D{{Key: "entityType", Value: 1}, {Key: "timestamp", Value: 1}}}},
}

// eventDocument is the stored form. The actor, detail and parameters are
// encrypted; parameters are kept as an encrypted JSON blob.
type eventDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	EntityID    string             `bson:"entityId"`
	EntityType  string             `bson:"entityType"`
	EventType   string             `bson:"eventType"`
	User        string             `bson:"user"`
	Timestamp   time.Time          `bson:"timestamp"`
	Description string             `bson:"description"`
	Detail      string             `bson:"detail"`
	Parameters  string             `bson:"parameters"`
}

// MongoStore persists the event log. It only ever inserts.
type MongoStore struct {
	coll   *mongo.Collection
	cipher sensitive.Cipher
}

func NewMongoStore(db *mongo.Database, cipher sensitive.Cipher) *MongoStore {
	return &MongoStore{coll: db.Collection(collection), cipher: cipher}
}

func (s *MongoStore) Append(ctx context.Context, event models.Event) (models.Event, error) {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	doc, err := s.toDocument(event)
	if err != nil {
		return models.Event{}, err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (s *MongoStore) ListByEntity(ctx context.Context, entityID string) ([]models.Event, error) {
	return s.find(ctx, bson.M{"entityId": entityID})
}

func (s *MongoStore) ListByEntityType(ctx context.Context, entityType models.EntityType) ([]models.Event, error) {
	return s.find(ctx, bson.M{"entityType": string(entityType)})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]models.Event, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	var docs []eventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	out := make([]models.Event, 0, len(docs))
	for _, doc := range docs {
		e, err := s.fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MongoStore) toDocument(e models.Event) (eventDocument, error) {
	oid, err := id.ObjectID(e.ID)
	if err != nil {
		return eventDocument{}, fmt.Errorf("event id: %w", err)
	}
	params, err := json.Marshal(e.Parameters)
	if err != nil {
		return eventDocument{}, fmt.Errorf("encode event parameters: %w", err)
	}
	enc, err := sensitive.EncryptAll(s.cipher, []string{e.User, e.Detail, string(params)})
	if err != nil {
		return eventDocument{}, fmt.Errorf("encrypt event: %w", err)
	}
	return eventDocument{
		ID:          oid,
		EntityID:    e.EntityID,
		EntityType:  string(e.EntityType),
		EventType:   string(e.EventType),
		User:        enc[0],
		Timestamp:   e.Timestamp.UTC(),
		Description: e.Description,
		Detail:      enc[1],
		Parameters:  enc[2],
	}, nil
}

func (s *MongoStore) fromDocument(doc eventDocument) (models.Event, error) {
	dec, err := sensitive.DecryptAll(s.cipher, []string{doc.User, doc.Detail, doc.Parameters})
	if err != nil {
		return models.Event{}, fmt.Errorf("decrypt event %s: %w", doc.ID.Hex(), err)
	}
	var params map[string]any
	if dec[2] != "" {
		if err := json.Unmarshal([]byte(dec[2]), &params); err != nil {
			return models.Event{}, fmt.Errorf("decode event parameters %s: %w", doc.ID.Hex(), err)
		}
	}
	return models.Event{
		ID:          id.EventID(doc.ID.Hex()),
		EntityID:    doc.EntityID,
		EntityType:  models.EntityType(doc.EntityType),
		EventType:   models.EventType(doc.EventType),
		User:        dec[0],
		Timestamp:   doc.Timestamp,
		Description: doc.Description,
		Detail:      dec[1],
		Parameters:  params,
	}, nil
}
