package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Op names a store primitive, used for fault injection and call counting.
type Op string

const (
	OpGet       Op = "get"
	OpSet       Op = "set"
	OpDelete    Op = "delete"
	OpIncrement Op = "increment"
	OpQuery     Op = "query"
	OpSubscribe Op = "subscribe"
)

// MemoryStore is an in-process Store with live change streams. It backs
// the "memory" backend and every test fixture.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[*memorySubscription]struct{}
	faults      map[Op][]error
	calls       map[Op]int
	now         func() time.Time
	closed      bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[*memorySubscription]struct{}),
		faults:      make(map[Op][]error),
		calls:       make(map[Op]int),
		now:         time.Now,
	}
}

// FailNext makes the next call of op return err. Faults queue up per op.
func (m *MemoryStore) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

// Calls returns how many times op has been invoked, failed calls included.
func (m *MemoryStore) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// begin records a call and pops a pending fault. Caller holds m.mu.
func (m *MemoryStore) begin(op Op) error {
	m.calls[op]++
	if m.closed {
		return ErrClosed
	}
	if q := m.faults[op]; len(q) > 0 {
		m.faults[op] = q[1:]
		return q[0]
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, collection, id string) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpGet); err != nil {
		return Document{}, false, err
	}

	fields, ok := m.collections[collection][id]
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: id, Fields: cloneFields(fields)}, true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, collection, id string, fields map[string]any, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpSet); err != nil {
		return err
	}

	docs := m.collection(collection)
	next := cloneFields(fields)
	if existing, ok := docs[id]; ok && merge {
		next = cloneFields(existing)
		for k, v := range fields {
			next[k] = v
		}
	}
	docs[id] = next
	m.publish(collection, id)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpDelete); err != nil {
		return err
	}

	docs := m.collection(collection)
	if _, ok := docs[id]; !ok {
		return nil
	}
	delete(docs, id)
	m.publish(collection, id)
	return nil
}

// Increment implements Store.
func (m *MemoryStore) Increment(_ context.Context, collection, id, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpIncrement); err != nil {
		return err
	}

	fields, ok := m.collection(collection)[id]
	if !ok {
		return fmt.Errorf("increment %s/%s: %w", collection, id, ErrNoDocument)
	}
	current, _ := toInt64(fields[field])
	fields[field] = current + delta
	m.publish(collection, id)
	return nil
}

// Query implements Store.
func (m *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpQuery); err != nil {
		return nil, err
	}
	return m.matching(collection, filters), nil
}

// Subscribe implements Store. The initial snapshot is queued before the
// subscription becomes visible to writers, so no delta can overtake it.
func (m *MemoryStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (Subscription, error) {
	m.mu.Lock()
	if err := m.begin(OpSubscribe); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	sub := &memorySubscription{
		store:      m,
		collection: collection,
		filters:    append([]Filter(nil), filters...),
		matched:    make(map[string]struct{}),
		out:        make(chan Snapshot),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	initial := m.matching(collection, filters)
	for _, d := range initial {
		sub.matched[d.ID] = struct{}{}
	}
	sub.enqueue(Snapshot{Initial: true, Docs: initial, ReadAt: m.now()})
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Close cancels every open subscription and rejects further calls.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	subs := make([]*memorySubscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	return nil
}

func (m *MemoryStore) collection(name string) map[string]map[string]any {
	docs, ok := m.collections[name]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[name] = docs
	}
	return docs
}

// matching returns the matching documents sorted by id. Caller holds m.mu.
func (m *MemoryStore) matching(collection string, filters []Filter) []Document {
	docs := m.collections[collection]
	out := make([]Document, 0, len(docs))
	for id, fields := range docs {
		if Matches(fields, filters) {
			out = append(out, Document{ID: id, Fields: cloneFields(fields)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// publish queues a delta for every subscription the write affects.
// Caller holds m.mu.
func (m *MemoryStore) publish(collection, id string) {
	fields, exists := m.collections[collection][id]
	for sub := range m.subs {
		if sub.collection != collection {
			continue
		}
		_, before := sub.matched[id]
		after := exists && Matches(fields, sub.filters)

		var change Change
		switch {
		case !before && after:
			sub.matched[id] = struct{}{}
			change = Change{Kind: ChangeAdded, Doc: Document{ID: id, Fields: cloneFields(fields)}}
		case before && after:
			change = Change{Kind: ChangeModified, Doc: Document{ID: id, Fields: cloneFields(fields)}}
		case before && !after:
			delete(sub.matched, id)
			change = Change{Kind: ChangeRemoved, Doc: Document{ID: id}}
		default:
			continue
		}

		sub.enqueue(Snapshot{
			Docs:    m.matching(collection, sub.filters),
			Changes: []Change{change},
			ReadAt:  m.now(),
		})
	}
}

type memorySubscription struct {
	store      *MemoryStore
	collection string
	filters    []Filter
	matched    map[string]struct{} // guarded by store.mu

	mu      sync.Mutex
	pending []Snapshot

	out  chan Snapshot
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *memorySubscription) Snapshots() <-chan Snapshot { return s.out }

func (s *memorySubscription) Err() error { return nil }

func (s *memorySubscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.store.mu.Lock()
		delete(s.store.subs, s)
		s.store.mu.Unlock()
	})
}

func (s *memorySubscription) enqueue(snap Snapshot) {
	s.mu.Lock()
	s.pending = append(s.pending, snap)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued snapshots in order. Writers never block on a slow
// consumer; the queue absorbs the difference.
func (s *memorySubscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, snap := range batch {
			select {
			case s.out <- snap:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
