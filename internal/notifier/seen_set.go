package notifier

// SeenSet holds the relation ids already accounted for by one stream of one
// subscription. It is owned by the stream's goroutine and never shared.
type SeenSet struct {
	ids map[string]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Add records id and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Contains reports whether id was seen.
func (s *SeenSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids seen.
func (s *SeenSet) Len() int {
	return len(s.ids)
}
