package job

import (
	"sync"
	"time"

	"github.com/quantrail/barfetch/pkg/marketdata"
)

// Status is the lifecycle state of a fetch job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Snapshot is an immutable view of a job's state, safe to serialize.
type Snapshot struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Symbols    int       `json:"symbols"`
	Processed  int       `json:"processed"`
	Bars       int64     `json:"bars"`
	ErrorRows  int64     `json:"errorRows"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Done reports whether the job has reached a terminal state.
func (s Snapshot) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusCanceled
}

// Job tracks one background fetch. All mutation goes through the
// manager; readers take snapshots.
type Job struct {
	mu        sync.Mutex
	snapshot  Snapshot
	symbols   []string
	cancel    func()
	listeners []chan Snapshot
}

// Snapshot returns the job's current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.snapshot
}

// Subscribe returns a channel receiving state snapshots until the job
// finishes, plus an unsubscribe function. The channel is buffered;
// slow consumers miss intermediate updates, never the terminal one.
func (j *Job) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	j.mu.Lock()
	current := j.snapshot

	if current.Done() {
		j.mu.Unlock()

		ch <- current
		close(ch)

		return ch, func() {}
	}

	j.listeners = append(j.listeners, ch)

	// Seed the subscriber while still holding the lock so the terminal
	// update cannot close the channel between the append and the send.
	// The channel is fresh and buffered, so this never blocks.
	ch <- current
	j.mu.Unlock()

	unsubscribe := func() {
		j.mu.Lock()
		defer j.mu.Unlock()

		for i, listener := range j.listeners {
			if listener == ch {
				j.listeners = append(j.listeners[:i], j.listeners[i+1:]...)

				break
			}
		}
	}

	return ch, unsubscribe
}

// update mutates the snapshot under lock and notifies listeners.
func (j *Job) update(mutate func(*Snapshot)) {
	j.mu.Lock()

	mutate(&j.snapshot)
	snapshot := j.snapshot
	listeners := j.listeners

	if snapshot.Done() {
		j.listeners = nil
	}

	j.mu.Unlock()

	for _, listener := range listeners {
		if snapshot.Done() {
			// The terminal snapshot must arrive; drain one slot if the
			// buffer is full, then close.
			select {
			case listener <- snapshot:
			default:
				select {
				case <-listener:
				default:
				}
				listener <- snapshot
			}

			close(listener)

			continue
		}

		select {
		case listener <- snapshot:
		default:
		}
	}
}

// progressCallback adapts job updates to the client's OnProgress hook.
func (j *Job) progressCallback() marketdata.OnProgress {
	return func(current float64, total float64, message string) {
		j.update(func(s *Snapshot) {
			s.Processed = int(current)
			s.Message = message
		})
	}
}
