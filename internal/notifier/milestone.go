package notifier

import "log/slog"

// DefaultMilestoneStep is the like-count spacing between milestones.
const DefaultMilestoneStep = 2

// MilestoneStore persists the per-owner milestone watermark.
// *kv.MilestoneCursors implements it.
type MilestoneStore interface {
	Load(ownerID string) (int, bool, error)
	Save(ownerID string, milestone int) error
}

// milestoneTracker decides when a like total crosses a new milestone. It
// belongs to the likes stream goroutine of one subscription.
type milestoneTracker struct {
	store   MilestoneStore
	ownerID string
	step    int
	logger  *slog.Logger

	cursor int
	exists bool
}

// newMilestoneTracker reads the owner's watermark. A failed read is treated
// as "no watermark yet" so the first snapshot re-seeds it instead of
// announcing historical likes.
func newMilestoneTracker(store MilestoneStore, ownerID string, step int, logger *slog.Logger) *milestoneTracker {
	t := &milestoneTracker{store: store, ownerID: ownerID, step: step, logger: logger}
	cursor, ok, err := store.Load(ownerID)
	if err != nil {
		logger.Warn("failed to load milestone cursor", "owner_id", ownerID, "error", err)
		return t
	}
	t.cursor, t.exists = cursor, ok
	return t
}

func (t *milestoneTracker) floor(total int) int {
	return (total / t.step) * t.step
}

// seed initialises a missing watermark from the initial like total.
func (t *milestoneTracker) seed(total int) {
	if t.exists {
		return
	}
	t.cursor = t.floor(total)
	t.exists = true
	t.persist()
}

// check advances the watermark when total reaches a higher milestone and
// reports the milestone reached.
func (t *milestoneTracker) check(total int) (int, bool) {
	m := t.floor(total)
	if m < t.step || m <= t.cursor {
		return 0, false
	}
	t.cursor = m
	t.persist()
	return m, true
}

// persist writes the watermark. The in-memory cursor is kept even when the
// write fails, so this session never repeats the milestone.
func (t *milestoneTracker) persist() {
	if err := t.store.Save(t.ownerID, t.cursor); err != nil {
		t.logger.Warn("failed to persist milestone cursor",
			"owner_id", t.ownerID,
			"milestone", t.cursor,
			"error", err,
		)
	}
}
