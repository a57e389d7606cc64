package notifier

import (
	"log/slog"
	"time"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/internal/models"
)

// streamState is the per-stream phase of a subscription.
type streamState int

const (
	stateSeeding streamState = iota
	stateLive
)

func (s streamState) String() string {
	if s == stateSeeding {
		return "seeding"
	}
	return "live"
}

// streamKind selects which relation a stream watches.
type streamKind int

const (
	likesStream streamKind = iota
	savesStream
)

func (k streamKind) String() string {
	if k == likesStream {
		return "likes"
	}
	return "saves"
}

func (k streamKind) collection() string {
	if k == likesStream {
		return models.LikesCollection
	}
	return models.SavedPostsCollection
}

func (k streamKind) ownerField() string {
	if k == likesStream {
		return models.LikeFieldOwnerID
	}
	return models.SaveFieldOwnerID
}

// streamProcessor turns the snapshots of one change stream into
// notification events. It is driven by a single goroutine.
type streamProcessor struct {
	kind       streamKind
	ownerID    string
	state      streamState
	seen       *SeenSet
	milestones *milestoneTracker // likes stream only
	compliment func() string
	now        func() time.Time
	logger     *slog.Logger
}

func newStreamProcessor(kind streamKind, ownerID string, milestones *milestoneTracker, compliment func() string, logger *slog.Logger) *streamProcessor {
	return &streamProcessor{
		kind:       kind,
		ownerID:    ownerID,
		state:      stateSeeding,
		seen:       NewSeenSet(),
		milestones: milestones,
		compliment: compliment,
		now:        time.Now,
		logger:     logger.With("stream", kind.String(), "owner_id", ownerID),
	}
}

// handle consumes one snapshot and returns the events it produces, in order.
func (p *streamProcessor) handle(snap docstore.Snapshot) []models.NotificationEvent {
	at := snap.ReadAt
	if at.IsZero() {
		at = p.now()
	}

	var events []models.NotificationEvent

	switch p.state {
	case stateSeeding:
		for _, d := range snap.Docs {
			p.seen.Add(d.ID)
		}
		if p.milestones != nil {
			p.milestones.seed(snap.Len())
		}
		p.state = stateLive
		p.logger.Debug("initial snapshot seeded", "docs", snap.Len())

	case stateLive:
		for _, ch := range snap.Changes {
			if ch.Kind != docstore.ChangeAdded {
				continue
			}
			if !p.seen.Add(ch.Doc.ID) {
				p.logger.Debug("skipped already-seen relation", "relation_id", ch.Doc.ID)
				continue
			}
			events = append(events, p.relationEvent(ch.Doc, at))
		}
	}

	if p.milestones != nil {
		if m, ok := p.milestones.check(snap.Len()); ok {
			p.logger.Info("like milestone reached", "milestone", m, "total", snap.Len())
			events = append(events, MilestoneEvent(p.ownerID, snap.Len(), p.compliment(), at))
		}
	}
	return events
}

func (p *streamProcessor) relationEvent(d docstore.Document, at time.Time) models.NotificationEvent {
	if p.kind == likesStream {
		like := models.LikeFromDocument(d)
		return LikeEvent(p.ownerID, d.ID, like.LikerName, at)
	}
	save := models.SavedPostFromDocument(d)
	return SaveEvent(p.ownerID, d.ID, save.SaverName, at)
}
