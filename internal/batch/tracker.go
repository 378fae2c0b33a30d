package batch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pl-listing/lister/internal/images"
	"github.com/pl-listing/lister/internal/models"
	"github.com/pl-listing/lister/internal/review"
)

var (
	// ErrAlreadyRecorded is returned when a product is recorded twice in one run.
	ErrAlreadyRecorded = errors.New("product already recorded")
	// ErrFinished is returned when recording into a finished run.
	ErrFinished = errors.New("batch already finished")
)

// Entry is the committed result for one product. Entries are never changed
// after they are recorded.
type Entry struct {
	ProductID models.ProductID `json:"product_id"`
	Outcome   models.Outcome   `json:"outcome"`
	// Previews are the source names of the images sent for classification.
	Previews []string         `json:"previews"`
	Dropped  []images.Dropped `json:"dropped,omitempty"`
}

func (e Entry) clone() Entry {
	c := e
	c.Outcome = e.Outcome.Clone()
	c.Previews = append([]string(nil), e.Previews...)
	c.Dropped = append([]images.Dropped(nil), e.Dropped...)
	return c
}

// Summary holds the aggregate counters of a run.
type Summary struct {
	Total        int       `json:"total"`
	Completed    int       `json:"completed"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Partial      int       `json:"partial"`
	AutoApproved int       `json:"auto_approved"`
	NeedsReview  int       `json:"needs_review"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}

// Progress renders completed/total.
func (s Summary) Progress() string {
	return fmt.Sprintf("%d/%d", s.Completed, s.Total)
}

// Snapshot is an immutable copy of a run's progress. Entries are in
// completion order and every snapshot's entries are a prefix of the next.
type Snapshot struct {
	RunID     string  `json:"run_id"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Finished  bool    `json:"finished"`
	Entries   []Entry `json:"entries"`
	Summary   Summary `json:"summary"`
}

// Entry returns the entry for id.
func (s Snapshot) Entry(id models.ProductID) (Entry, bool) {
	for _, e := range s.Entries {
		if e.ProductID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Observer receives a snapshot after every recorded product and once when
// the run finishes. Observers are called on the writer's goroutine.
type Observer func(Snapshot)

// Tracker is the append-only progress record of one run. One goroutine
// records; any number may read snapshots. Recorded entries are never
// modified, so snapshots copy them outside the lock.
type Tracker struct {
	mu        sync.RWMutex
	runID     string
	total     int
	entries   []Entry
	index     map[models.ProductID]int
	summary   Summary
	finished  bool
	observers []Observer
}

// NewTracker returns an empty tracker expecting total products.
func NewTracker(runID string, total int) *Tracker {
	return &Tracker{
		runID: runID,
		total: total,
		index: make(map[models.ProductID]int, total),
		summary: Summary{
			Total:     total,
			StartedAt: time.Now(),
		},
	}
}

// RunID returns the identifier of the run.
func (t *Tracker) RunID() string {
	return t.runID
}

// Subscribe registers an observer.
func (t *Tracker) Subscribe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Record appends the result for one product and publishes a snapshot.
func (t *Tracker) Record(e Entry) error {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return ErrFinished
	}
	if _, ok := t.index[e.ProductID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRecorded, e.ProductID)
	}
	e = e.clone()
	t.index[e.ProductID] = len(t.entries)
	t.entries = append(t.entries, e)
	t.summary.add(e)
	view, observers := t.viewLocked(), t.observers
	t.mu.Unlock()

	if len(observers) > 0 {
		publish(observers, view.snapshot())
	}
	return nil
}

// Finish marks the run complete and returns the final summary. Calling it
// again returns the same summary.
func (t *Tracker) Finish() Summary {
	t.mu.Lock()
	if t.finished {
		s := t.summary
		t.mu.Unlock()
		return s
	}
	t.finished = true
	t.summary.FinishedAt = time.Now()
	view, observers := t.viewLocked(), t.observers
	t.mu.Unlock()

	if len(observers) > 0 {
		publish(observers, view.snapshot())
	}
	return view.summary
}

// Snapshot returns a deep copy of the current progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	view := t.viewLocked()
	t.mu.RUnlock()
	return view.snapshot()
}

// view is what a snapshot needs from the tracker. The entries slice is
// capped at its length, so later appends never write into it.
type view struct {
	runID    string
	total    int
	finished bool
	entries  []Entry
	summary  Summary
}

func (t *Tracker) viewLocked() view {
	n := len(t.entries)
	return view{
		runID:    t.runID,
		total:    t.total,
		finished: t.finished,
		entries:  t.entries[:n:n],
		summary:  t.summary,
	}
}

func (v view) snapshot() Snapshot {
	entries := make([]Entry, len(v.entries))
	for i, e := range v.entries {
		entries[i] = e.clone()
	}
	return Snapshot{
		RunID:     v.runID,
		Total:     v.total,
		Completed: len(entries),
		Finished:  v.finished,
		Entries:   entries,
		Summary:   v.summary,
	}
}

// add counts one recorded entry.
func (s *Summary) add(e Entry) {
	s.Completed++
	if !e.Outcome.Succeeded() {
		s.Failed++
		return
	}
	s.Succeeded++
	if e.Outcome.Partial {
		s.Partial++
	}
	if review.Decide(e.ProductID, e.Outcome.Attributes).AutoApproved {
		s.AutoApproved++
	} else {
		s.NeedsReview++
	}
}

func publish(observers []Observer, snap Snapshot) {
	for _, o := range observers {
		o(snap)
	}
}
