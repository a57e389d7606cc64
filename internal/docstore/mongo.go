package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Document ids are stored as string
// _id values. Subscribe needs a replica set because it uses change streams.
type MongoStore struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongoStore creates a MongoStore over the given database.
func NewMongoStore(db *mongo.Database, logger *slog.Logger) *MongoStore {
	return &MongoStore{db: db, logger: logger}
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), true, nil
}

// Set implements Store.
func (s *MongoStore) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	coll := s.db.Collection(collection)
	body := bson.M{}
	for k, v := range fields {
		body[k] = v
	}

	var err error
	if merge {
		_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": body}, options.Update().SetUpsert(true))
	} else {
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Increment implements Store with $inc.
func (s *MongoStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("increment %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("increment %s/%s: %w", collection, id, ErrNoDocument)
	}
	return nil
}

// Query implements Store.
func (s *MongoStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, toBSONFilter(filters))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

// Subscribe implements Store. The change stream is opened before the
// initial Find so no write between the two is lost; a write seen by both
// is reported as Modified rather than Added.
func (s *MongoStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (Subscription, error) {
	coll := s.db.Collection(collection)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{
			{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}},
		}}}}},
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	initial, err := s.Query(ctx, collection, filters...)
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}

	sub := &mongoSubscription{
		stream:  stream,
		cancel:  cancel,
		filters: filters,
		out:     make(chan Snapshot),
		current: make(map[string]Document, len(initial)),
	}
	for _, d := range initial {
		sub.current[d.ID] = d
	}
	go sub.run(ctx, initial, s.logger.With("collection", collection))
	return sub, nil
}

type mongoChangeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

type mongoSubscription struct {
	stream  *mongo.ChangeStream
	cancel  context.CancelFunc
	filters []Filter
	out     chan Snapshot
	current map[string]Document // owned by run

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (s *mongoSubscription) Snapshots() <-chan Snapshot { return s.out }

func (s *mongoSubscription) Cancel() {
	s.once.Do(s.cancel)
}

func (s *mongoSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *mongoSubscription) run(ctx context.Context, initial []Document, logger *slog.Logger) {
	defer close(s.out)
	defer s.stream.Close(context.Background())

	if !s.send(ctx, Snapshot{Initial: true, Docs: initial, ReadAt: time.Now()}) {
		return
	}

	for s.stream.Next(ctx) {
		var ev mongoChangeEvent
		if err := s.stream.Decode(&ev); err != nil {
			logger.Warn("failed to decode change event", "error", err)
			continue
		}

		change, ok := s.apply(ev)
		if !ok {
			continue
		}
		if !s.send(ctx, Snapshot{Docs: s.docs(), Changes: []Change{change}, ReadAt: time.Now()}) {
			return
		}
	}

	if err := s.stream.Err(); err != nil && ctx.Err() == nil {
		logger.Error("mongo change stream failed", "error", err)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

// apply folds one change event into the tracked result set and classifies
// it relative to the subscription's filters.
func (s *mongoSubscription) apply(ev mongoChangeEvent) (Change, bool) {
	id := ev.DocumentKey.ID
	_, before := s.current[id]

	if ev.OperationType == "delete" || ev.FullDocument == nil {
		if !before {
			return Change{}, false
		}
		delete(s.current, id)
		return Change{Kind: ChangeRemoved, Doc: Document{ID: id}}, true
	}

	doc := fromBSON(ev.FullDocument)
	after := Matches(doc.Fields, s.filters)
	switch {
	case !before && after:
		s.current[id] = doc
		return Change{Kind: ChangeAdded, Doc: doc}, true
	case before && after:
		s.current[id] = doc
		return Change{Kind: ChangeModified, Doc: doc}, true
	case before && !after:
		delete(s.current, id)
		return Change{Kind: ChangeRemoved, Doc: Document{ID: id}}, true
	default:
		return Change{}, false
	}
}

func (s *mongoSubscription) docs() []Document {
	out := make([]Document, 0, len(s.current))
	for _, d := range s.current {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *mongoSubscription) send(ctx context.Context, snap Snapshot) bool {
	select {
	case s.out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func toBSONFilter(filters []Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		out[f.Field] = f.Value
	}
	return out
}

func fromBSON(raw bson.M) Document {
	id := fmt.Sprint(raw["_id"])
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		fields[k] = v
	}
	return Document{ID: id, Fields: fields}
}
