// Package job runs multi-symbol fetches in the background and tracks
// their progress for the web layer.
package job

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantrail/barfetch/internal/logger"
	barfetcherrors "github.com/quantrail/barfetch/pkg/errors"
	"github.com/quantrail/barfetch/pkg/marketdata"
)

// Fetcher runs one fetch and reports progress. *marketdata.Client
// satisfies it; tests substitute fakes.
type Fetcher interface {
	Fetch(ctx context.Context, params marketdata.FetchParams, onProgress marketdata.OnProgress) (marketdata.Summary, error)
}

// Manager owns the in-memory job registry.
type Manager struct {
	logger *logger.Logger

	mu   sync.Mutex
	jobs map[string]*Job

	now func() time.Time
}

// NewManager creates an empty job manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		logger: log,
		jobs:   make(map[string]*Job),
		now:    time.Now,
	}
}

// Start launches a fetch in a background goroutine and returns the job.
func (m *Manager) Start(fetcher Fetcher, params marketdata.FetchParams) *Job {
	ctx, cancel := context.WithCancel(context.Background())

	j := &Job{
		snapshot: Snapshot{
			ID:        uuid.New().String(),
			Status:    StatusPending,
			Symbols:   len(params.Symbols),
			StartDate: params.StartDate,
			EndDate:   params.EndDate,
			CreatedAt: m.now(),
		},
		symbols: params.Symbols,
		cancel:  cancel,
	}

	m.mu.Lock()
	m.jobs[j.Snapshot().ID] = j
	m.mu.Unlock()

	go m.run(ctx, j, fetcher, params)

	return j
}

// Get returns the job with the given ID.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, barfetcherrors.Newf(barfetcherrors.ErrCodeJobNotFound, "job not found: %s", id)
	}

	return j, nil
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(m.jobs))
	for _, j := range m.jobs {
		snapshots = append(snapshots, j.Snapshot())
	}

	sort.Slice(snapshots, func(i, k int) bool {
		return snapshots[i].CreatedAt.After(snapshots[k].CreatedAt)
	})

	return snapshots
}

// Cancel stops a running job. Rows autosaved so far stay on disk.
func (m *Manager) Cancel(id string) error {
	j, err := m.Get(id)
	if err != nil {
		return err
	}

	if j.Snapshot().Done() {
		return barfetcherrors.Newf(barfetcherrors.ErrCodeJobNotRunning, "job already finished: %s", id)
	}

	j.cancel()

	return nil
}

func (m *Manager) run(ctx context.Context, j *Job, fetcher Fetcher, params marketdata.FetchParams) {
	defer j.cancel()

	snapshot := j.Snapshot()

	m.logger.Info("fetch job started",
		zap.String("job_id", snapshot.ID),
		zap.Int("symbols", snapshot.Symbols),
		zap.Time("start_date", params.StartDate),
		zap.Time("end_date", params.EndDate),
	)

	j.update(func(s *Snapshot) {
		s.Status = StatusRunning
	})

	summary, err := fetcher.Fetch(ctx, params, j.progressCallback())

	finished := m.now()

	switch {
	case err == nil:
		j.update(func(s *Snapshot) {
			s.Status = StatusCompleted
			s.Processed = s.Symbols
			s.Bars = summary.Bars
			s.ErrorRows = summary.ErrorRows
			s.OutputPath = summary.OutputPath
			s.Message = "Data fetched"
			s.FinishedAt = finished
		})

		m.logger.Info("fetch job completed",
			zap.String("job_id", snapshot.ID),
			zap.Int64("bars", summary.Bars),
			zap.Int64("error_rows", summary.ErrorRows),
			zap.String("output", summary.OutputPath),
		)
	case errors.Is(err, context.Canceled):
		j.update(func(s *Snapshot) {
			s.Status = StatusCanceled
			s.Bars = summary.Bars
			s.ErrorRows = summary.ErrorRows
			s.OutputPath = summary.OutputPath
			s.Message = "Canceled; autosaved rows kept"
			s.FinishedAt = finished
		})

		m.logger.Info("fetch job canceled",
			zap.String("job_id", snapshot.ID),
			zap.Int64("bars", summary.Bars),
		)
	default:
		j.update(func(s *Snapshot) {
			s.Status = StatusFailed
			s.Error = err.Error()
			s.FinishedAt = finished
		})

		m.logger.Error("fetch job failed",
			zap.String("job_id", snapshot.ID),
			zap.Error(err),
		)
	}
}
