package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/repository"
)

// PersistReport summarises one sweep
type PersistReport struct {
	Scanned   int
	Persisted int
	Failed    int
}

// PersistSweeper moves cartoon images that still live on a provider host into durable storage
type PersistSweeper struct {
	cartoons      repository.CartoonRepository
	relay         domain.ImageRelay
	storagePrefix string
	batchSize     int
	maxAttempts   int
	log           *zap.Logger
}

// NewPersistSweeper creates a new sweeper. Images whose URL starts with
// storagePrefix are considered persisted. A cartoon whose relay failed
// maxAttempts times is no longer picked up.
func NewPersistSweeper(cartoons repository.CartoonRepository, relay domain.ImageRelay, storagePrefix string, batchSize, maxAttempts int, log *zap.Logger) *PersistSweeper {
	if batchSize <= 0 {
		batchSize = 20
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PersistSweeper{
		cartoons:      cartoons,
		relay:         relay,
		storagePrefix: storagePrefix,
		batchSize:     batchSize,
		maxAttempts:   maxAttempts,
		log:           log.With(zap.String("component", "persist")),
	}
}

// Run relays one batch. A failing cartoon is logged, counted against its
// attempts and skipped.
func (s *PersistSweeper) Run(ctx context.Context) (PersistReport, error) {
	var report PersistReport

	cartoons, err := s.cartoons.ListUnpersistedCartoons(ctx, s.storagePrefix, s.maxAttempts, s.batchSize)
	if err != nil {
		return report, err
	}
	report.Scanned = len(cartoons)

	for _, c := range cartoons {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		publicURL, err := s.relay.Relay(ctx, c.ImageURL, 0)
		if err != nil {
			// A sweep cut short by shutdown says nothing about the URL.
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			s.log.Error("failed to persist cartoon image",
				zap.Int64("id", c.ID),
				zap.String("url", c.ImageURL),
				zap.Error(err))
			if err := s.cartoons.RecordPersistFailure(ctx, c.ID); err != nil {
				s.log.Warn("failed to record persist failure", zap.Int64("id", c.ID), zap.Error(err))
			}
			continue
		}

		if err := s.cartoons.UpdateCartoonImageURL(ctx, c.ID, publicURL); err != nil {
			report.Failed++
			s.log.Error("failed to update cartoon image", zap.Int64("id", c.ID), zap.Error(err))
			continue
		}

		report.Persisted++
		s.log.Info("cartoon image persisted", zap.Int64("id", c.ID), zap.String("url", publicURL))
	}

	return report, nil
}
