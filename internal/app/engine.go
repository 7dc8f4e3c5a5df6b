package app

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mathsprint-service/internal/domain"
	"mathsprint-service/internal/metrics"
)

const persistTimeout = 10 * time.Second

// ResultRecorder persists what a session produces.
type ResultRecorder interface {
	IncrementCounters(ctx context.Context, userID string) error
	AppendResult(ctx context.Context, userID, displayName string, result domain.SessionResult) error
}

// EngineConfig wires an Engine. Zero values fall back to defaults where one exists.
type EngineConfig struct {
	UserID      string
	DisplayName string
	// Duration is the session length in clock units.
	Duration  int
	Clock     *SessionClock
	Generator *ProblemGenerator
	Recorder  ResultRecorder
	Sink      ViewSink
	Logger    *zap.Logger
	Now       func() time.Time
	// AfterPersist runs on the persistence goroutine once a result has been written,
	// or failed to be. err is nil or a *domain.PersistenceError.
	AfterPersist func(result domain.SessionResult, err error)
}

// Engine owns one user's live session. All state changes, whether from submissions,
// explicit calls or clock ticks, happen under a single mutex.
type Engine struct {
	userID       string
	duration     int
	clock        *SessionClock
	gen          *ProblemGenerator
	recorder     ResultRecorder
	sink         ViewSink
	log          *zap.Logger
	now          func() time.Time
	afterPersist func(domain.SessionResult, error)

	mu          sync.Mutex
	displayName string
	state       domain.SessionState
	last        *domain.SessionResult
	// generation invalidates clock callbacks that belong to an earlier session
	generation uint64
	// pending persistence jobs, run in order by a single drain goroutine
	pending  []persistJob
	draining bool
	// drained is closed when the running drain empties the queue
	drained chan struct{}
}

type persistJob struct {
	op   string
	run  func(ctx context.Context) error
	done func(err error)
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultSessionSeconds
	}
	if cfg.Clock == nil {
		cfg.Clock = NewSessionClock(time.Second)
	}
	if cfg.Generator == nil {
		cfg.Generator = NewProblemGenerator()
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		userID:       cfg.UserID,
		displayName:  cfg.DisplayName,
		duration:     cfg.Duration,
		clock:        cfg.Clock,
		gen:          cfg.Generator,
		recorder:     cfg.Recorder,
		sink:         cfg.Sink,
		log:          cfg.Logger.With(zap.String("user_id", cfg.UserID)),
		now:          cfg.Now,
		afterPersist: cfg.AfterPersist,
		state:        domain.SessionState{Phase: domain.PhaseIdle},
	}
}

// SetDisplayName changes the name recorded with future results.
func (e *Engine) SetDisplayName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.displayName = name
}

// State returns a copy of the live session.
func (e *Engine) State() domain.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// LastResult returns the result of the most recently finished session.
func (e *Engine) LastResult() (domain.SessionResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return domain.SessionResult{}, false
	}
	return *e.last, true
}

// Start begins a fresh session from Idle or Ended.
func (e *Engine) Start() (domain.SessionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase == domain.PhaseRunning {
		return e.snapshotLocked(), domain.ErrSessionRunning
	}

	e.generation++
	gen := e.generation
	problem := e.gen.Generate()
	e.state = domain.SessionState{
		SessionID:     uuid.NewString(),
		Score:         0,
		RemainingTime: e.duration,
		ActiveProblem: &problem,
		Phase:         domain.PhaseRunning,
	}
	e.clock.Start(e.duration,
		func(int) { e.tick(gen) },
		func() { e.expire(gen) },
	)

	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()
	e.log.Info("session started", zap.String("session_id", e.state.SessionID), zap.Int("duration", e.duration))

	e.sink.OnScoreChanged(0)
	e.sink.OnTimeChanged(e.duration)
	e.sink.OnProblemChanged(problem)
	return e.snapshotLocked(), nil
}

// SubmitAnswer checks raw against the active problem. Input that is not an integer
// literal is ignored and reported as not correct, without error.
func (e *Engine) SubmitAnswer(raw string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase != domain.PhaseRunning {
		return false, domain.ErrSessionNotRunning
	}

	value, ok := parseAnswer(raw)
	if !ok {
		metrics.Answers.WithLabelValues("ignored").Inc()
		return false, nil
	}
	if value != e.state.ActiveProblem.Answer {
		metrics.Answers.WithLabelValues("wrong").Inc()
		return false, nil
	}

	metrics.Answers.WithLabelValues("correct").Inc()
	e.state.Score++
	next := e.gen.Generate()
	e.state.ActiveProblem = &next

	userID := e.userID
	e.enqueueLocked("increment counters", func(ctx context.Context) error {
		if e.recorder == nil {
			return nil
		}
		return e.recorder.IncrementCounters(ctx, userID)
	}, nil)

	e.sink.OnScoreChanged(e.state.Score)
	e.sink.OnProblemChanged(next)
	return true, nil
}

// Stop ends the running session early. It reports false when no session was running.
func (e *Engine) Stop() (domain.SessionResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endLocked("stopped")
}

// Reset returns a finished engine to Idle.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase == domain.PhaseRunning {
		return domain.ErrSessionRunning
	}
	e.state = domain.SessionState{Phase: domain.PhaseIdle}
	return nil
}

// Flush waits until every queued persistence job has finished or ctx is done.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	draining, drained := e.draining, e.drained
	e.mu.Unlock()
	if !draining {
		return nil
	}
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation || e.state.Phase != domain.PhaseRunning {
		return
	}
	e.state.RemainingTime--
	e.sink.OnTimeChanged(e.state.RemainingTime)
	if e.state.RemainingTime <= 0 {
		e.endLocked("expired")
	}
}

func (e *Engine) expire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	e.endLocked("expired")
}

// endLocked finalizes the running session. A second call is a no-op.
func (e *Engine) endLocked(reason string) (domain.SessionResult, bool) {
	if e.state.Phase != domain.PhaseRunning {
		return domain.SessionResult{}, false
	}
	e.clock.Stop()

	e.state.Phase = domain.PhaseEnded
	e.state.ActiveProblem = nil
	if e.state.RemainingTime < 0 {
		e.state.RemainingTime = 0
	}
	result := domain.SessionResult{Score: e.state.Score, Timestamp: e.now().UTC()}
	e.last = &result

	metrics.SessionsEnded.WithLabelValues(reason).Inc()
	metrics.ActiveSessions.Dec()
	e.log.Info("session ended",
		zap.String("session_id", e.state.SessionID),
		zap.String("reason", reason),
		zap.Int("score", result.Score),
	)

	userID, name := e.userID, e.displayName
	e.enqueueLocked("append result", func(ctx context.Context) error {
		if e.recorder == nil {
			return nil
		}
		return e.recorder.AppendResult(ctx, userID, name, result)
	}, func(err error) {
		if e.afterPersist != nil {
			e.afterPersist(result, err)
		}
	})

	e.sink.OnSessionEnded(result)
	return result, true
}

// enqueueLocked queues job behind every earlier one. Jobs run off the engine lock on
// one goroutine per engine, so a slow store never holds up ticks or submissions.
func (e *Engine) enqueueLocked(op string, job func(ctx context.Context) error, done func(err error)) {
	e.pending = append(e.pending, persistJob{op: op, run: job, done: done})
	if e.draining {
		return
	}
	e.draining = true
	e.drained = make(chan struct{})
	go e.drain(e.drained)
}

func (e *Engine) drain(drained chan struct{}) {
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.draining = false
			e.mu.Unlock()
			close(drained)
			return
		}
		job := e.pending[0]
		e.pending[0] = persistJob{}
		e.pending = e.pending[1:]
		e.mu.Unlock()

		e.persist(job)
	}
}

func (e *Engine) persist(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := domain.Persistence(job.op, job.run(ctx))
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues(job.op).Inc()
		e.log.Warn("persistence failed", zap.String("op", job.op), zap.Error(err))
		e.sink.OnWarning(err)
	}
	if job.done != nil {
		job.done(err)
	}
}

func (e *Engine) snapshotLocked() domain.SessionState {
	s := e.state
	if s.ActiveProblem != nil {
		p := *s.ActiveProblem
		s.ActiveProblem = &p
	}
	return s
}

func parseAnswer(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}
