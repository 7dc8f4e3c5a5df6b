package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"mathsprint-service/internal/domain"
)

// PlayerRepository abstracts where live players are kept (in-memory, Redis-backed, etc).
type PlayerRepository interface {
	// GetOrCreate fails with domain.ErrPlayerElsewhere when the user is held by another instance.
	GetOrCreate(ctx context.Context, userID string, newPlayer func() *Player) (*Player, error)
	Get(userID string) (*Player, bool)
	DeleteIfIdle(userID string)
}

// LeaderboardRepository loads the raw leaderboard entries, possibly from a cache.
type LeaderboardRepository interface {
	Entries(ctx context.Context) ([]domain.LeaderboardEntry, error)
	// Invalidate drops any cached copy after a new result is appended.
	Invalidate(ctx context.Context)
}

// ResultPublisher announces finished sessions to other systems.
type ResultPublisher interface {
	PublishResult(ctx context.Context, userID, displayName string, result domain.SessionResult) error
}

// Player is a connected user: one engine plus the views watching it.
type Player struct {
	UserID string
	Engine *Engine
	Views  *Broadcaster
}

// IsIdle reports whether nobody is watching the player.
func (p *Player) IsIdle() bool {
	return p.Views.Subscribers() == 0
}

// GameConfig tunes the service.
type GameConfig struct {
	// Duration is the session length in clock units.
	Duration int
	// Tick is the length of one clock unit.
	Tick time.Duration
	// GameOverTop is how many history and leaderboard rows are pushed when a session ends.
	GameOverTop int
	// RecentLimit is how many results a summary lists.
	RecentLimit int
}

// DefaultGameConfig mirrors the classic two minute sprint.
func DefaultGameConfig() GameConfig {
	return GameConfig{Duration: DefaultSessionSeconds, Tick: time.Second, GameOverTop: 5, RecentLimit: 10}
}

// GameService contains the game use cases.
type GameService struct {
	players   PlayerRepository
	records   *Records
	board     LeaderboardRepository
	publisher ResultPublisher
	cfg       GameConfig
	log       *zap.Logger
	now       func() time.Time
	newClock  func() *SessionClock
}

// Option customizes a GameService.
type Option func(*GameService)

// WithLeaderboard reads the leaderboard through repo instead of straight from the store.
func WithLeaderboard(repo LeaderboardRepository) Option {
	return func(s *GameService) { s.board = repo }
}

// WithPublisher announces every finished session through p.
func WithPublisher(p ResultPublisher) Option {
	return func(s *GameService) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *GameService) { s.log = l }
}

// WithClock is test-only for driving session clocks by hand.
func WithClock(newClock func() *SessionClock, now func() time.Time) Option {
	return func(s *GameService) {
		s.newClock = newClock
		s.now = now
	}
}

func NewGameService(players PlayerRepository, records *Records, cfg GameConfig, opts ...Option) *GameService {
	def := DefaultGameConfig()
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.GameOverTop <= 0 {
		cfg.GameOverTop = def.GameOverTop
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = def.RecentLimit
	}
	s := &GameService{
		players: players,
		records: records,
		board:   records,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newClock == nil {
		tick := cfg.Tick
		s.newClock = func() *SessionClock { return NewSessionClock(tick) }
	}
	return s
}

// Join registers a user, stores their display name and returns the engine state.
// A failed name write is logged and pushed as a warning; the user can still play.
func (s *GameService) Join(ctx context.Context, userID, displayName string) (domain.SessionState, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.SessionState{}, domain.ErrUserRequired
	}
	displayName = strings.TrimSpace(displayName)

	player, err := s.players.GetOrCreate(ctx, userID, func() *Player { return s.newPlayer(userID, displayName) })
	if err != nil {
		return domain.SessionState{}, err
	}
	if displayName != "" {
		player.Engine.SetDisplayName(displayName)
		if err := s.records.SetDisplayName(ctx, userID, displayName); err != nil {
			perr := domain.Persistence("set display name", err)
			s.log.Warn("display name not stored", zap.String("user_id", userID), zap.Error(perr))
			player.Views.OnWarning(perr)
		}
	} else if name, err := s.records.DisplayName(ctx, userID); err == nil && name != "" {
		player.Engine.SetDisplayName(name)
	}
	return player.Engine.State(), nil
}

// Start begins a new session for the user.
func (s *GameService) Start(_ context.Context, userID string) (domain.SessionState, error) {
	player, ok := s.players.Get(userID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return player.Engine.Start()
}

// Submit applies an answer and returns whether it was correct plus the new state.
func (s *GameService) Submit(_ context.Context, userID, raw string) (bool, domain.SessionState, error) {
	player, ok := s.players.Get(userID)
	if !ok {
		return false, domain.SessionState{}, domain.ErrSessionNotFound
	}
	correct, err := player.Engine.SubmitAnswer(raw)
	return correct, player.Engine.State(), err
}

// Stop ends the user's running session early.
func (s *GameService) Stop(_ context.Context, userID string) (domain.SessionResult, error) {
	player, ok := s.players.Get(userID)
	if !ok {
		return domain.SessionResult{}, domain.ErrSessionNotFound
	}
	result, ended := player.Engine.Stop()
	if !ended {
		return domain.SessionResult{}, domain.ErrSessionNotRunning
	}
	return result, nil
}

// Reset returns the user's engine to Idle after a finished session.
func (s *GameService) Reset(_ context.Context, userID string) (domain.SessionState, error) {
	player, ok := s.players.Get(userID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	if err := player.Engine.Reset(); err != nil {
		return player.Engine.State(), err
	}
	return player.Engine.State(), nil
}

// Subscribe returns a channel of view events for a user.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, userID string) (<-chan Event, func(), error) {
	player, ok := s.players.Get(userID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := player.Views.Subscribe()
	return ch, cancel, nil
}

// Leave ends the user's session once nobody is watching it and drops the player.
// The player stays registered until its queued writes are done, so a quick rejoin reuses
// the same engine and its counter updates stay in one queue.
func (s *GameService) Leave(ctx context.Context, userID string) {
	player, ok := s.players.Get(userID)
	if !ok || !player.IsIdle() {
		return
	}
	player.Engine.Stop()

	flushCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := player.Engine.Flush(flushCtx); err != nil {
		s.log.Warn("leaving with writes still queued", zap.String("user_id", userID), zap.Error(err))
	}
	s.players.DeleteIfIdle(userID)
}

// Flush waits for the user's queued store writes.
func (s *GameService) Flush(ctx context.Context, userID string) error {
	player, ok := s.players.Get(userID)
	if !ok {
		return nil
	}
	return player.Engine.Flush(ctx)
}

// Summary computes the user's statistics and lists their most recent results.
func (s *GameService) Summary(ctx context.Context, userID string) (domain.Summary, error) {
	history, counters, err := s.records.Profile(ctx, userID)
	if err != nil {
		return domain.Summary{}, domain.Persistence("load summary", err)
	}
	summary := Summarize(history, counters)
	summary.Recent = RecentHistory(history, s.cfg.RecentLimit)
	return summary, nil
}

// History returns the user's last limit results, newest first. limit <= 0 returns all.
func (s *GameService) History(ctx context.Context, userID string, limit int) (domain.History, error) {
	if limit < 0 {
		return domain.History{}, domain.ErrInvalidLimit
	}
	results, err := s.records.History(ctx, userID, limit)
	if err != nil {
		return domain.History{}, domain.Persistence("load history", err)
	}
	recent := RecentHistory(results, 0)
	return domain.History{Results: recent, NoData: len(recent) == 0}, nil
}

// Leaderboard ranks every recorded result and returns the top limit. limit <= 0 returns all.
func (s *GameService) Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit < 0 {
		return domain.Leaderboard{}, domain.ErrInvalidLimit
	}
	entries, err := s.board.Entries(ctx)
	if err != nil {
		return domain.Leaderboard{}, domain.Persistence("load leaderboard", err)
	}
	return BuildLeaderboard(entries, limit, s.now().UTC()), nil
}

// PushSummary computes the user's summary and hands it to their views.
func (s *GameService) PushSummary(ctx context.Context, userID string) error {
	player, ok := s.players.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return err
	}
	player.Views.OnSummaryReady(summary)
	return nil
}

// PushHistory hands the user's last limit results to their views.
func (s *GameService) PushHistory(ctx context.Context, userID string, limit int) error {
	player, ok := s.players.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	history, err := s.History(ctx, userID, limit)
	if err != nil {
		return err
	}
	player.Views.OnHistoryReady(history)
	return nil
}

// PushLeaderboard hands the top limit leaderboard rows to the user's views.
func (s *GameService) PushLeaderboard(ctx context.Context, userID string, limit int) error {
	player, ok := s.players.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	lb, err := s.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}
	player.Views.OnLeaderboardReady(lb)
	return nil
}

func (s *GameService) newPlayer(userID, displayName string) *Player {
	views := NewBroadcaster()
	engine := NewEngine(EngineConfig{
		UserID:       userID,
		DisplayName:  displayName,
		Duration:     s.cfg.Duration,
		Clock:        s.newClock(),
		Generator:    NewProblemGenerator(),
		Recorder:     s.records,
		Sink:         views,
		Logger:       s.log,
		Now:          s.now,
		AfterPersist: s.afterPersist(userID, views),
	})
	return &Player{UserID: userID, Engine: engine, Views: views}
}

// afterPersist refreshes the game-over views once a result reached the store.
func (s *GameService) afterPersist(userID string, views *Broadcaster) func(domain.SessionResult, error) {
	return func(result domain.SessionResult, err error) {
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		s.board.Invalidate(ctx)
		if s.publisher != nil {
			name, _ := s.records.DisplayName(ctx, userID)
			if perr := s.publisher.PublishResult(ctx, userID, name, result); perr != nil {
				s.log.Warn("result not published", zap.String("user_id", userID), zap.Error(perr))
			}
		}

		history, err := s.History(ctx, userID, s.cfg.GameOverTop)
		if err != nil {
			views.OnWarning(err)
		} else {
			views.OnHistoryReady(history)
		}
		lb, err := s.Leaderboard(ctx, s.cfg.GameOverTop)
		if err != nil {
			views.OnWarning(err)
		} else {
			views.OnLeaderboardReady(lb)
		}
	}
}
