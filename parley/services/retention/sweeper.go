package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"parley/parley/sources/psql/models"
	"parley/parley/utils/logging"
	"parley/parley/utils/metrics"
)

const batchSize = 100

// Store is the slice of the transcript DAO the sweeper needs.
type Store interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Transcript, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Archiver receives a copy of each transcript before it is deleted.
type Archiver interface {
	ArchiveTranscript(ctx context.Context, t models.Transcript) (string, error)
}

// Sweeper deletes transcripts older than the retention period on a cron schedule.
type Sweeper struct {
	store    Store
	archiver Archiver
	period   time.Duration
	now      func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
}

// NewSweeper builds a sweeper. archiver may be nil.
func NewSweeper(store Store, archiver Archiver, period time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		archiver: archiver,
		period:   period,
		now:      time.Now,
		cron:     cron.New(),
	}
}

// Start schedules RunOnce with a standard cron expression or descriptor such as "@hourly".
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			logging.ErrorLogger.Error("retention sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retention sweep %q: %w", schedule, err)
	}
	s.cron.Start()
	logging.AppLogger.Info("retention sweeper started",
		zap.String("schedule", schedule), zap.Duration("period", s.period))
	return nil
}

// Stop waits for a running pass to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce removes every transcript created before now minus the retention period
// and reports how many were removed. Passes never overlap.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer logging.LogDuration(ctx, "retention_sweep")()

	cutoff := s.now().Add(-s.period)
	removed := 0
	skipped := map[uuid.UUID]bool{}

	for {
		limit := batchSize + len(skipped)
		batch, err := s.store.ListExpired(ctx, cutoff, limit)
		if err != nil {
			return removed, err
		}
		progressed := false
		for _, t := range batch {
			if skipped[t.ID] {
				continue
			}
			if s.archiver != nil {
				key, err := s.archiver.ArchiveTranscript(ctx, t)
				if err != nil {
					logging.ErrorLogger.Error("archive transcript failed, keeping it",
						zap.String("transcript_id", t.ID.String()), zap.Error(err))
					skipped[t.ID] = true
					continue
				}
				logging.AppLogger.Info("archived transcript",
					zap.String("transcript_id", t.ID.String()), zap.String("key", key))
			}
			if err := s.store.DeleteByID(ctx, t.ID); err != nil {
				return removed, err
			}
			removed++
			progressed = true
			metrics.TranscriptsSweptTotal.Inc()
		}
		if !progressed || len(batch) < limit {
			break
		}
	}

	if removed > 0 || len(skipped) > 0 {
		logging.AppLogger.Info("retention sweep done",
			zap.Int("removed", removed), zap.Int("skipped", len(skipped)), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
