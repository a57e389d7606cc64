// Package notifier derives activity notifications for a post owner from the
// live like and save streams.
//
// Each subscription watches two change streams: likes received and saves
// received. The first snapshot of a stream only records what already
// exists; after that every newly added relation produces exactly one event.
// The likes stream also announces each time the owner's total like count
// reaches a new multiple of the milestone step. Events are handed to a
// Deliverer, normally a Dispatcher.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/internal/models"
)

// Deliverer receives every event a subscription produces.
type Deliverer interface {
	Deliver(ctx context.Context, ev models.NotificationEvent) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, ev models.NotificationEvent) error

func (f DelivererFunc) Deliver(ctx context.Context, ev models.NotificationEvent) error {
	return f(ctx, ev)
}

// Config holds notifier settings.
type Config struct {
	// MilestoneStep is the like-count spacing between milestones. Zero means
	// DefaultMilestoneStep.
	MilestoneStep int
}

// Notifier opens activity subscriptions.
type Notifier struct {
	store      docstore.Store
	milestones MilestoneStore
	deliverer  Deliverer
	step       int
	compliment *complimenter
	logger     *slog.Logger
}

// New creates a notifier. rng picks milestone compliments.
func New(store docstore.Store, milestones MilestoneStore, deliverer Deliverer, cfg Config, rng *rand.Rand, logger *slog.Logger) *Notifier {
	step := cfg.MilestoneStep
	if step <= 0 {
		step = DefaultMilestoneStep
	}
	return &Notifier{
		store:      store,
		milestones: milestones,
		deliverer:  deliverer,
		step:       step,
		compliment: &complimenter{rng: rng},
		logger:     logger,
	}
}

// Step returns the configured milestone step.
func (n *Notifier) Step() int {
	return n.step
}

// Subscription is one owner's live activity feed.
type Subscription struct {
	OwnerID string

	cancel context.CancelFunc
	subs   []docstore.Subscription
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts watching ownerID's likes and saves. Every subscription
// starts with empty seen sets; the milestone watermark is read from the
// MilestoneStore.
func (n *Notifier) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("notifier: owner id is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	likes, err := n.store.Subscribe(ctx, likesStream.collection(), docstore.Where(likesStream.ownerField(), ownerID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to likes: %w", err)
	}
	saves, err := n.store.Subscribe(ctx, savesStream.collection(), docstore.Where(savesStream.ownerField(), ownerID))
	if err != nil {
		likes.Cancel()
		cancel()
		return nil, fmt.Errorf("subscribe to saves: %w", err)
	}

	sub := &Subscription{
		OwnerID: ownerID,
		cancel:  cancel,
		subs:    []docstore.Subscription{likes, saves},
		done:    make(chan struct{}),
	}

	tracker := newMilestoneTracker(n.milestones, ownerID, n.step, n.logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		n.run(ctx, likes, newStreamProcessor(likesStream, ownerID, tracker, n.compliment.next, n.logger))
	}()
	go func() {
		defer wg.Done()
		n.run(ctx, saves, newStreamProcessor(savesStream, ownerID, nil, n.compliment.next, n.logger))
	}()
	go func() {
		wg.Wait()
		close(sub.done)
	}()

	n.logger.Info("activity subscription started", "owner_id", ownerID)
	return sub, nil
}

func (n *Notifier) run(ctx context.Context, stream docstore.Subscription, p *streamProcessor) {
	for snap := range stream.Snapshots() {
		for _, ev := range p.handle(snap) {
			if ctx.Err() != nil {
				return
			}
			if err := n.deliverer.Deliver(ctx, ev); err != nil {
				p.logger.Warn("notification delivery failed",
					"kind", ev.Kind,
					"event_id", ev.ID,
					"error", err,
				)
			}
		}
	}
	if err := stream.Err(); err != nil {
		p.logger.Error("activity stream ended", "error", err)
		return
	}
	p.logger.Debug("activity stream closed")
}

// Cancel stops both streams. It is idempotent and safe after the streams
// have ended on their own.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		for _, sub := range s.subs {
			sub.Cancel()
		}
		s.cancel()
	})
}

// Done is closed once both stream goroutines have exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
