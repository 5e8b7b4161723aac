package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rcaflow/pkg/platform/sentinel"
)

const (
	mongoIDField  = "_id"
	mongoRevField = "_rev"
)

// Mongo maps each collection to a MongoDB collection of the same name. Bodies
// travel as relaxed Extended JSON. Every write stamps a fresh _rev so Update
// can compare-and-swap without a server-side transaction.
type Mongo struct {
	db         *mongo.Database
	casRetries int
}

func NewMongo(db *mongo.Database, casRetries int) *Mongo {
	if casRetries <= 0 {
		casRetries = 5
	}
	return &Mongo{db: db, casRetries: casRetries}
}

func (m *Mongo) Get(ctx context.Context, collection, id string) ([]byte, error) {
	body, _, err := m.load(ctx, collection, id)
	return body, err
}

func (m *Mongo) Create(ctx context.Context, collection, id string, body []byte) error {
	doc, err := toBSON(id, body)
	if err != nil {
		return err
	}
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return conflict(collection, id)
		}
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *Mongo) Put(ctx context.Context, collection, id string, body []byte) error {
	doc, err := toBSON(id, body)
	if err != nil {
		return err
	}
	_, err = m.db.Collection(collection).ReplaceOne(ctx,
		bson.D{{Key: mongoIDField, Value: id}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update retries when another writer replaced the document between our read
// and our write.
func (m *Mongo) Update(ctx context.Context, collection, id string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	for range m.casRetries {
		current, rev, err := m.load(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		doc, err := toBSON(id, next)
		if err != nil {
			return nil, err
		}
		res, err := m.db.Collection(collection).ReplaceOne(ctx,
			bson.D{{Key: mongoIDField, Value: id}, {Key: mongoRevField, Value: rev}}, doc)
		if err != nil {
			return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("update %s/%s: %w", collection, id, sentinel.ErrRevisionMismatch)
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: mongoIDField, Value: id}})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return notFound(collection, id)
	}
	return nil
}

func (m *Mongo) Find(ctx context.Context, collection string, q Query) ([][]byte, error) {
	raw, err := filterObject(q.Filters)
	if err != nil {
		return nil, err
	}
	var filter bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &filter); err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	opts := options.Find()
	sortKeys := bson.D{}
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		sortKeys = append(sortKeys, bson.E{Key: q.OrderBy, Value: dir})
	}
	sortKeys = append(sortKeys, bson.E{Key: mongoIDField, Value: 1})
	opts.SetSort(sortKeys)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out [][]byte
	for cur.Next(ctx) {
		var doc bson.D
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		body, _, err := fromBSON(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, cur.Err()
}

func (m *Mongo) load(ctx context.Context, collection, id string) ([]byte, string, error) {
	var doc bson.D
	err := m.db.Collection(collection).FindOne(ctx, bson.D{{Key: mongoIDField, Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", notFound(collection, id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromBSON(doc)
}

func toBSON(id string, body []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(body, false, &doc); err != nil {
		return nil, fmt.Errorf("convert document to bson: %w", err)
	}
	out := make(bson.D, 0, len(doc)+2)
	out = append(out, bson.E{Key: mongoIDField, Value: id}, bson.E{Key: mongoRevField, Value: uuid.NewString()})
	for _, e := range doc {
		if e.Key == mongoIDField || e.Key == mongoRevField {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func fromBSON(doc bson.D) ([]byte, string, error) {
	var rev string
	body := make(bson.D, 0, len(doc))
	for _, e := range doc {
		switch e.Key {
		case mongoRevField:
			rev, _ = e.Value.(string)
		case mongoIDField:
		default:
			body = append(body, e)
		}
	}
	raw, err := bson.MarshalExtJSON(body, false, false)
	if err != nil {
		return nil, "", fmt.Errorf("convert document to json: %w", err)
	}
	return raw, rev, nil
}
