package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreStore wraps an initialised Firestore client.
func NewFirestoreStore(client *firestore.Client, logger *slog.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, logger: logger}
}

// Get implements Store.
func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return Document{ID: snap.Ref.ID, Fields: snap.Data()}, true, nil
}

// Set implements Store.
func (s *FirestoreStore) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	ref := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, fields, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, fields)
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete implements Store.
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Increment implements Store with a server-side field transform.
func (s *FirestoreStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.Increment(delta)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("increment %s/%s: %w", collection, id, ErrNoDocument)
		}
		return fmt.Errorf("increment %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query implements Store.
func (s *FirestoreStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	snaps, err := s.query(collection, filters).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return toDocuments(snaps), nil
}

// Subscribe implements Store on Query.Snapshots. Firestore already
// guarantees that the first snapshot holds the full result set.
func (s *FirestoreStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &firestoreSubscription{
		it:     s.query(collection, filters).Snapshots(ctx),
		cancel: cancel,
		out:    make(chan Snapshot),
	}
	go sub.run(ctx, s.logger.With("collection", collection))
	return sub, nil
}

func (s *FirestoreStore) query(collection string, filters []Filter) firestore.Query {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}
	return q
}

// Close closes the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreSubscription struct {
	it     *firestore.QuerySnapshotIterator
	cancel context.CancelFunc
	out    chan Snapshot

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (s *firestoreSubscription) Snapshots() <-chan Snapshot { return s.out }

func (s *firestoreSubscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.it.Stop()
	})
}

func (s *firestoreSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *firestoreSubscription) run(ctx context.Context, logger *slog.Logger) {
	defer close(s.out)
	initial := true
	for {
		qs, err := s.it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
				return
			}
			logger.Error("firestore snapshot stream failed", "error", err)
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}

		docs, err := qs.Documents.GetAll()
		if err != nil {
			logger.Warn("failed to read snapshot documents", "error", err)
			continue
		}

		snap := Snapshot{Initial: initial, Docs: toDocuments(docs), ReadAt: qs.ReadTime}
		if !initial {
			snap.Changes = make([]Change, 0, len(qs.Changes))
			for _, ch := range qs.Changes {
				snap.Changes = append(snap.Changes, Change{
					Kind: changeKind(ch.Kind),
					Doc:  Document{ID: ch.Doc.Ref.ID, Fields: ch.Doc.Data()},
				})
			}
		}
		initial = false

		select {
		case s.out <- snap:
		case <-ctx.Done():
			return
		}
	}
}

func changeKind(k firestore.DocumentChangeKind) ChangeKind {
	switch k {
	case firestore.DocumentRemoved:
		return ChangeRemoved
	case firestore.DocumentModified:
		return ChangeModified
	default:
		return ChangeAdded
	}
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []Document {
	out := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return out
}
