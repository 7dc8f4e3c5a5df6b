package domain

import "time"

// ProblemKind identifies the arithmetic operation of a problem.
type ProblemKind string

const (
	Addition       ProblemKind = "addition"
	Subtraction    ProblemKind = "subtraction"
	Multiplication ProblemKind = "multiplication"
	Division       ProblemKind = "division"
)

// ProblemKinds lists every kind the generator picks from.
var ProblemKinds = []ProblemKind{Addition, Subtraction, Multiplication, Division}

// Problem is a single generated question. Left and Right are the operands in display order.
// Answer never leaves the server.
type Problem struct {
	Text   string      `json:"text"`
	Answer int         `json:"-"`
	Kind   ProblemKind `json:"kind"`
	Left   int         `json:"left"`
	Right  int         `json:"right"`
}

// Phase is the lifecycle stage of a session engine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

// SessionState is a point-in-time copy of an engine's live session.
type SessionState struct {
	SessionID     string   `json:"sessionId,omitempty"`
	Score         int      `json:"score"`
	RemainingTime int      `json:"remainingTime"`
	ActiveProblem *Problem `json:"activeProblem,omitempty"`
	Phase         Phase    `json:"phase"`
}

// SessionResult is the immutable outcome of one finished session.
type SessionResult struct {
	Score     int       `json:"score"`
	Timestamp time.Time `json:"date"`
}

// UserCounters are the cumulative answer counters kept per user.
type UserCounters struct {
	TotalProblems  int `json:"totalProblems"`
	CorrectAnswers int `json:"correctAnswers"`
}

// LeaderboardEntry is one finished session in the global leaderboard collection.
type LeaderboardEntry struct {
	UserID      string    `json:"uid"`
	DisplayName string    `json:"username"`
	Score       int       `json:"score"`
	Timestamp   time.Time `json:"date"`
}

// Leaderboard is the ranked view handed to clients.
type Leaderboard struct {
	Entries   []RankedEntry `json:"entries"`
	NoData    bool          `json:"noData"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// RankedEntry pairs a leaderboard entry with its 1-based position.
type RankedEntry struct {
	Rank int `json:"rank"`
	LeaderboardEntry
}

// Summary holds the derived statistics for a user.
type Summary struct {
	GamesPlayed    int             `json:"gamesPlayed"`
	BestScore      int             `json:"bestScore"`
	AverageScore   float64         `json:"averageScore"`
	TotalProblems  int             `json:"totalProblems"`
	CorrectAnswers int             `json:"correctAnswers"`
	Accuracy       float64         `json:"accuracy"`
	Recent         []SessionResult `json:"recent"`
	NoData         bool            `json:"noData"`
}

// History is a user's most recent results, newest first.
type History struct {
	Results []SessionResult `json:"results"`
	NoData  bool            `json:"noData"`
}
