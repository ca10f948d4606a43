// Package transcript holds the ordered chat turns of one interview session.
//
// The server is the source of truth: after every submission the store refetches
// the full transcript and replaces its local copy rather than merging.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/types"
)

// ErrSubmitInFlight is returned when Submit is called while another submission
// has not been reconciled yet.
var ErrSubmitInFlight = errors.New("transcript: submission already in flight")

const (
	loadFailedMessage   = "Could not load the interview transcript."
	submitFailedMessage = "Could not send your answer. Please try again."
)

// Backend is the transcript persistence and turn-exchange service.
type Backend interface {
	// FetchTurns returns the full ordered transcript for a session.
	FetchTurns(ctx context.Context, sessionID string) ([]types.ChatTurn, error)

	// SubmitTurn sends a user turn and returns the interviewer's reply.
	SubmitTurn(ctx context.Context, turn types.ChatTurn) (*types.Reply, error)
}

// Snapshot is a point-in-time copy of the store state.
type Snapshot struct {
	Turns   []types.ChatTurn
	Loading bool
	Ended   bool
}

// LastInterviewerTurn returns the most recent interviewer turn, if any.
func (s Snapshot) LastInterviewerTurn() (types.ChatTurn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].IsInterviewer() {
			return s.Turns[i], true
		}
	}
	return types.ChatTurn{}, false
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifier sets the sink for user-facing errors.
func WithNotifier(n core.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithTick drives the session timer from tick instead of a real ticker.
func WithTick(tick <-chan time.Time) Option {
	return func(s *Store) {
		s.timer = NewTimer(tick)
	}
}

// Store holds the transcript of one session.
type Store struct {
	sessionID string
	backend   Backend
	notifier  core.Notifier
	logger    *slog.Logger
	timer     *Timer

	mu       sync.Mutex
	turns    []types.ChatTurn
	loading  bool
	ended    bool
	onChange func(Snapshot)
}

// NewStore creates a store for sessionID.
func NewStore(sessionID string, backend Backend, opts ...Option) *Store {
	s := &Store{
		sessionID: sessionID,
		backend:   backend,
		notifier:  core.Discard,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timer == nil {
		s.timer = NewTimer(nil)
	}
	return s
}

// SessionID returns the session identifier.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Timer returns the session timer.
func (s *Store) Timer() *Timer {
	return s.timer
}

// OnChange registers the observer invoked after every state change.
// The callback runs on the goroutine that made the change and must not block.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Mount starts the session timer.
func (s *Store) Mount(ctx context.Context) {
	s.timer.Start(ctx)
}

// Close stops the session timer.
func (s *Store) Close() {
	s.timer.Stop()
}

// Load fetches the full transcript. On failure the transcript is left empty.
// Load never marks the session ended: a stored end turn belongs to an earlier
// visit whose end sequence already ran.
func (s *Store) Load(ctx context.Context) error {
	turns, err := s.backend.FetchTurns(ctx, s.sessionID)
	if err != nil {
		s.logger.Error("transcript load failed", "session_id", s.sessionID, "error", err)
		s.notifier.Notify(loadFailedMessage)
		s.update(func() {
			s.turns = nil
		})
		return fmt.Errorf("load transcript: %w", err)
	}

	s.update(func() {
		s.turns = append([]types.ChatTurn(nil), turns...)
	})
	return nil
}

// Submit sends one user answer through the turn exchange. Blank answers are ignored.
func (s *Store) Submit(ctx context.Context, text, participantID string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	userTurn := types.ChatTurn{
		SessionID:     s.sessionID,
		ParticipantID: participantID,
		Text:          text,
		Role:          types.RoleUser,
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	s.loading = true
	s.turns = append(s.turns, userTurn)
	snap := s.snapshotLocked()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}

	reply, err := s.backend.SubmitTurn(ctx, userTurn)
	if err != nil {
		s.logger.Error("submit turn failed", "session_id", s.sessionID, "error", err)
		s.notifier.Notify(submitFailedMessage)
		s.update(func() {
			s.loading = false
		})
		return fmt.Errorf("submit turn: %w", err)
	}

	s.update(func() {
		s.turns = append(s.turns, reply.Turn(s.sessionID))
	})

	authoritative, err := s.backend.FetchTurns(ctx, s.sessionID)
	if err != nil {
		s.logger.Warn("transcript refetch failed, keeping local turns", "session_id", s.sessionID, "error", err)
		s.notifier.Notify(loadFailedMessage)
		s.update(func() {
			s.ended = s.ended || lastIsEnd(s.turns)
			s.loading = false
		})
		return fmt.Errorf("refetch transcript: %w", err)
	}

	s.update(func() {
		s.turns = append([]types.ChatTurn(nil), authoritative...)
		s.ended = s.ended || lastIsEnd(s.turns)
		s.loading = false
	})
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Turns returns a copy of the transcript.
func (s *Store) Turns() []types.ChatTurn {
	return s.Snapshot().Turns
}

// Loading reports whether a submission is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Ended reports whether the interviewer has signalled the end of the conversation.
func (s *Store) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Store) update(mutate func()) {
	s.mu.Lock()
	mutate()
	snap := s.snapshotLocked()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Turns:   append([]types.ChatTurn(nil), s.turns...),
		Loading: s.loading,
		Ended:   s.ended,
	}
}

func lastIsEnd(turns []types.ChatTurn) bool {
	if len(turns) == 0 {
		return false
	}
	return turns[len(turns)-1].IsEnd
}
