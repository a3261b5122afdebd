// Package registry owns the in-process lifecycle of evaluation runs: id
// allocation, the run table, cancellation handles, answer submission and
// resume, per-run event subscriptions, and retention of terminal statuses.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"llmfit/internal/events"
	"llmfit/internal/executor"
	"llmfit/internal/sequencer"
	"llmfit/internal/snapshot"
	"llmfit/internal/state"
)

const (
	minProblemRunes = 16
	maxProblemRunes = 8000

	defaultRetention   = 5 * time.Minute
	defaultEventBuffer = 64
	doneStatusCap      = 1024
)

var (
	ErrNotFound     = errors.New("run not found")
	ErrNotSuspended = errors.New("run is not suspended")
)

// Archiver stores the terminal result of a completed run. Archiving is
// best-effort; failures are logged, never surfaced to the run.
type Archiver interface {
	Archive(ctx context.Context, runID string, result *state.EvaluationResult) error
}

// Options tunes the registry. Zero values pick the defaults above.
type Options struct {
	// EventBuffer is the per-subscriber channel capacity. A subscriber that
	// falls this far behind starts losing events.
	EventBuffer int
	// Retention keeps a terminal run in the table this long before its
	// status moves to the bounded done-cache.
	Retention time.Duration
	Archiver  Archiver
}

type run struct {
	id     string
	ctx    context.Context
	cancel *executor.RunCancel

	mu      sync.Mutex
	st      *state.RunState
	status  state.RunStatus
	result  *state.EvaluationResult
	subs    map[chan events.Event]struct{}
	running bool
}

// Registry is the run table. One per process.
type Registry struct {
	seq   *sequencer.Sequencer
	store snapshot.Store
	opts  Options

	mu   sync.RWMutex
	runs map[string]*run

	// done keeps statuses of runs already evicted from the table, so
	// status queries keep answering for a while after retention expires.
	done *lru.Cache[string, state.RunStatus]

	base context.Context
	stop context.CancelFunc
}

func New(seq *sequencer.Sequencer, store snapshot.Store, opts Options) (*Registry, error) {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	done, err := lru.New[string, state.RunStatus](doneStatusCap)
	if err != nil {
		return nil, err
	}
	base, stop := context.WithCancel(context.Background())
	return &Registry{
		seq:   seq,
		store: store,
		opts:  opts,
		runs:  make(map[string]*run),
		done:  done,
		base:  base,
		stop:  stop,
	}, nil
}

// Close cancels every live run. Pending drives finish with a cancelled
// outcome.
func (r *Registry) Close() {
	r.stop()
}

// ValidateInput normalizes and bounds-checks a run input.
func ValidateInput(input *state.RunInput) error {
	input.Problem = strings.TrimSpace(input.Problem)
	input.Context = strings.TrimSpace(input.Context)
	n := utf8.RuneCountInString(input.Problem)
	if n < minProblemRunes {
		return fmt.Errorf("problem must be at least %d characters", minProblemRunes)
	}
	if n > maxProblemRunes {
		return fmt.Errorf("problem must be at most %d characters", maxProblemRunes)
	}
	return nil
}

func newRunID() string {
	return "eval-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// StartRun registers a new evaluation and starts driving it in the
// background. Returns the allocated run id.
func (r *Registry) StartRun(_ context.Context, input state.RunInput) (string, error) {
	if err := ValidateInput(&input); err != nil {
		return "", err
	}

	runID := newRunID()
	st := state.NewRunState(runID, input)
	ctx, cancel := executor.NewRunCancel(r.base)
	rn := &run{
		id:     runID,
		ctx:    ctx,
		cancel: cancel,
		st:     st,
		subs:   make(map[chan events.Event]struct{}),
		status: state.RunStatus{
			RunID:     runID,
			Stage:     st.CurrentStage,
			Status:    state.StatusRunning,
			StartedAt: st.StartedAt,
		},
		running: true,
	}

	r.mu.Lock()
	r.runs[runID] = rn
	r.mu.Unlock()

	r.dispatch(rn, events.NewPipelineStart(runID, st.StartedAt))
	go r.drive(rn)
	return runID, nil
}

// SubmitAnswers merges answers into a suspended run and resumes it. A run
// no longer in the table is reloaded from the snapshot store, which is what
// makes resume work across process restarts.
func (r *Registry) SubmitAnswers(ctx context.Context, runID string, answers []state.Answer) error {
	runID = strings.TrimSpace(runID)
	rn, err := r.lookupOrReload(ctx, runID)
	if err != nil {
		return err
	}

	rn.mu.Lock()
	if rn.running || rn.status.Status.Terminal() {
		rn.mu.Unlock()
		return ErrNotSuspended
	}
	merged := make([]state.Answer, 0, len(answers))
	answered := make([]string, 0, len(answers))
	for _, a := range answers {
		if strings.TrimSpace(a.QuestionID) == "" {
			continue
		}
		if a.SourceStage == "" {
			a.SourceStage = rn.st.CurrentStage
		}
		rn.st.MergeAnswer(a)
		merged = append(merged, a)
		answered = append(answered, strings.TrimSpace(a.QuestionID))
	}
	stage := rn.st.CurrentStage
	runCtx, cancel := executor.NewRunCancel(r.base)
	rn.ctx, rn.cancel = runCtx, cancel
	rn.status.Status = state.StatusRunning
	rn.status.PendingQuestionIDs = nil
	rn.running = true
	rn.mu.Unlock()

	for _, a := range merged {
		r.dispatch(rn, events.NewAnswerReceived(a.QuestionID, a.SourceStage))
	}
	r.dispatch(rn, events.NewPipelineResumed(runID, stage, answered))
	go r.drive(rn)
	return nil
}

// CancelRun requests cancellation. Reports whether this call changed
// anything; cancelling an unknown or already-terminal run is a no-op.
func (r *Registry) CancelRun(runID string) bool {
	r.mu.RLock()
	rn, ok := r.runs[strings.TrimSpace(runID)]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	rn.mu.Lock()
	if rn.status.Status.Terminal() {
		rn.mu.Unlock()
		return false
	}
	if rn.running {
		rn.mu.Unlock()
		// The drive goroutine observes the cancelled context and
		// finalizes the run.
		return rn.cancel.Cancel()
	}
	// Suspended: no drive goroutine to deliver the outcome, finalize here.
	rn.status.Status = state.StatusCancelled
	rn.mu.Unlock()
	rn.cancel.Cancel()
	r.finalize(rn, state.StatusCancelled)
	return true
}

// Status returns the current status view of a run.
func (r *Registry) Status(runID string) (state.RunStatus, bool) {
	runID = strings.TrimSpace(runID)
	r.mu.RLock()
	rn, ok := r.runs[runID]
	r.mu.RUnlock()
	if ok {
		rn.mu.Lock()
		defer rn.mu.Unlock()
		return rn.status.Clone(), true
	}
	if st, ok := r.done.Get(runID); ok {
		return st, true
	}
	return state.RunStatus{}, false
}

// Result returns the terminal result of a completed run still in the table.
func (r *Registry) Result(runID string) (*state.EvaluationResult, bool) {
	r.mu.RLock()
	rn, ok := r.runs[strings.TrimSpace(runID)]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.result == nil {
		return nil, false
	}
	return rn.result, true
}

func (r *Registry) lookupOrReload(ctx context.Context, runID string) (*run, error) {
	if runID == "" {
		return nil, ErrNotFound
	}
	r.mu.RLock()
	rn, ok := r.runs[runID]
	r.mu.RUnlock()
	if ok {
		return rn, nil
	}

	st, err := r.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNotFound
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot for run %s is invalid: %w", runID, err)
	}

	rn = &run{
		id:   runID,
		st:   st,
		subs: make(map[chan events.Event]struct{}),
		status: state.RunStatus{
			RunID:              runID,
			Stage:              st.CurrentStage,
			Status:             state.StatusSuspended,
			PendingQuestionIDs: st.PendingQuestionIDs(),
			Errors:             append([]state.RunError(nil), st.Errors...),
			StartedAt:          st.StartedAt,
			Progress:           st.Progress(),
		},
	}

	r.mu.Lock()
	if existing, ok := r.runs[runID]; ok {
		rn = existing
	} else {
		r.runs[runID] = rn
	}
	r.mu.Unlock()
	return rn, nil
}

// drive runs the sequencer to its next stop and applies the outcome.
func (r *Registry) drive(rn *run) {
	outcome := r.seq.Run(rn.ctx, rn.st, func(ev events.Event) { r.dispatch(rn, ev) })

	rn.mu.Lock()
	rn.running = false
	rn.status.Status = outcome.Status
	rn.status.Stage = rn.st.CurrentStage
	rn.status.Progress = rn.st.Progress()
	rn.status.Errors = append([]state.RunError(nil), rn.st.Errors...)
	rn.status.PendingQuestionIDs = nil
	switch outcome.Status {
	case state.StatusSuspended:
		rn.status.PendingQuestionIDs = rn.st.PendingQuestionIDs()
	case state.StatusCompleted:
		rn.status.Progress = 100
		if rn.st.CompletedAt != nil {
			t := *rn.st.CompletedAt
			rn.status.CompletedAt = &t
		}
		rn.result = outcome.Result
	}
	rn.mu.Unlock()

	if outcome.Status.Terminal() {
		r.finalize(rn, outcome.Status)
	}
}

// finalize closes subscriptions, archives a completed result, and schedules
// eviction of the terminal run.
func (r *Registry) finalize(rn *run, status state.Status) {
	r.closeSubs(rn)

	if status == state.StatusCompleted && r.opts.Archiver != nil {
		rn.mu.Lock()
		result := rn.result
		rn.mu.Unlock()
		if result != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := r.opts.Archiver.Archive(ctx, rn.id, result); err != nil {
					log.Printf("registry: archive failed for run %s: %v", rn.id, err)
				}
			}()
		}
	}

	time.AfterFunc(r.opts.Retention, func() {
		r.mu.Lock()
		cur, ok := r.runs[rn.id]
		if ok && cur == rn {
			delete(r.runs, rn.id)
		}
		r.mu.Unlock()
		if ok && cur == rn {
			rn.mu.Lock()
			r.done.Add(rn.id, rn.status.Clone())
			rn.mu.Unlock()
		}
	})
}
