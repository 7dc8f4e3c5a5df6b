package app

import (
	"sync"

	"mathsprint-service/internal/domain"
)

// ViewSink receives everything the presentation layer renders. Implementations must not
// block and must not call back into the engine.
type ViewSink interface {
	OnProblemChanged(domain.Problem)
	OnScoreChanged(score int)
	OnTimeChanged(remaining int)
	OnSessionEnded(domain.SessionResult)
	OnSummaryReady(domain.Summary)
	OnLeaderboardReady(domain.Leaderboard)
	OnHistoryReady(domain.History)
	OnWarning(err error)
}

// Event types pushed to subscribers.
const (
	EventProblem     = "problem"
	EventScore       = "score"
	EventTime        = "time"
	EventEnded       = "ended"
	EventSummary     = "summary"
	EventLeaderboard = "leaderboard"
	EventHistory     = "history"
	EventWarning     = "warning"
)

// Event is one view update.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WarningPayload carries a non-fatal failure to the client.
type WarningPayload struct {
	Message string `json:"message"`
}

const subscriberBuffer = 32

// Broadcaster is a ViewSink that fans events out to any number of subscribers.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events. The caller must invoke the returned cancel
// function to avoid leaks.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers reports how many subscribers are attached.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event rather than block the engine
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (b *Broadcaster) OnProblemChanged(p domain.Problem) {
	// the answer stays server side
	b.publish(Event{Type: EventProblem, Payload: problemView{Text: p.Text, Kind: p.Kind}})
}

func (b *Broadcaster) OnScoreChanged(score int) {
	b.publish(Event{Type: EventScore, Payload: score})
}

func (b *Broadcaster) OnTimeChanged(remaining int) {
	b.publish(Event{Type: EventTime, Payload: remaining})
}

func (b *Broadcaster) OnSessionEnded(result domain.SessionResult) {
	b.publish(Event{Type: EventEnded, Payload: result})
}

func (b *Broadcaster) OnSummaryReady(summary domain.Summary) {
	b.publish(Event{Type: EventSummary, Payload: summary})
}

func (b *Broadcaster) OnLeaderboardReady(lb domain.Leaderboard) {
	b.publish(Event{Type: EventLeaderboard, Payload: lb})
}

func (b *Broadcaster) OnHistoryReady(h domain.History) {
	b.publish(Event{Type: EventHistory, Payload: h})
}

func (b *Broadcaster) OnWarning(err error) {
	if err == nil {
		return
	}
	b.publish(Event{Type: EventWarning, Payload: WarningPayload{Message: err.Error()}})
}

type problemView struct {
	Text string             `json:"text"`
	Kind domain.ProblemKind `json:"kind"`
}

// NopSink discards every view update.
type NopSink struct{}

func (NopSink) OnProblemChanged(domain.Problem)       {}
func (NopSink) OnScoreChanged(int)                    {}
func (NopSink) OnTimeChanged(int)                     {}
func (NopSink) OnSessionEnded(domain.SessionResult)   {}
func (NopSink) OnSummaryReady(domain.Summary)         {}
func (NopSink) OnLeaderboardReady(domain.Leaderboard) {}
func (NopSink) OnHistoryReady(domain.History)         {}
func (NopSink) OnWarning(error)                       {}
