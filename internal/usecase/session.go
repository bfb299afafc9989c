// Package usecase hosts the conversation session service: a registry of
// independent conversation engines plus the limits, moderation and
// transcript recording applied around each turn.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"vehicle-advisor/internal/catalog"
	"vehicle-advisor/internal/conversation"
	"vehicle-advisor/internal/domain"
	"vehicle-advisor/internal/gateway"
)

const (
	defaultMaxTurns        = 10
	defaultMaxAnswerLength = 300
	defaultIdleTimeout     = 30 * time.Minute

	outcomeEnded = "ENDED"
	outcomeReset = "RESET"
)

// Moderator screens user answers before they reach the gateway.
type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

// TranscriptRecorder receives an audit trail of completed turns.
type TranscriptRecorder interface {
	RecordTurn(ctx context.Context, conversationID string, class domain.VehicleClass, turn domain.ConversationTurn, status string, candidates, turns int) error
	RecordOutcome(ctx context.Context, conversationID string, class domain.VehicleClass, turns int, outcome string) error
}

// SessionConfig bounds every conversation the service hosts.
type SessionConfig struct {
	MaxTurns         int
	MaxAnswerLength  int
	IdleTimeout      time.Duration
	FailedTurnPolicy conversation.FailedTurnPolicy
	RefetchOnReset   bool
}

type SessionOption func(*SessionService)

// WithModerator screens answers with m.
func WithModerator(m Moderator) SessionOption {
	return func(s *SessionService) { s.moderator = m }
}

// WithRecorder records completed turns to r.
func WithRecorder(r TranscriptRecorder) SessionOption {
	return func(s *SessionService) { s.recorder = r }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *SessionService) {
		if l != nil {
			s.logger = l
		}
	}
}

type session struct {
	id         string
	class      domain.VehicleClass
	engine     *conversation.Engine
	lastActive time.Time
}

// SessionService owns the live conversations. Conversations share nothing
// but the gateway and the pool source.
type SessionService struct {
	gateway   gateway.Gateway
	pool      conversation.PoolSource
	cfg       SessionConfig
	moderator Moderator
	recorder  TranscriptRecorder
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionService(gw gateway.Gateway, pool conversation.PoolSource, cfg SessionConfig, opts ...SessionOption) (*SessionService, error) {
	if gw == nil {
		return nil, errors.New("usecase: gateway must not be nil")
	}
	if pool == nil {
		return nil, errors.New("usecase: pool source must not be nil")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.MaxAnswerLength <= 0 {
		cfg.MaxAnswerLength = defaultMaxAnswerLength
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	s := &SessionService{
		gateway:  gw,
		pool:     pool,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start seeds a new conversation for the named vehicle class.
func (s *SessionService) Start(ctx context.Context, class string) (string, conversation.State, error) {
	vc, err := domain.ParseVehicleClass(class)
	if err != nil {
		return "", conversation.State{}, newError(ErrorInvalidInput, "unknown_vehicle_class", err)
	}

	opts := []conversation.Option{
		conversation.WithLogger(s.logger),
		conversation.WithFailedTurnPolicy(s.cfg.FailedTurnPolicy),
	}
	if s.cfg.RefetchOnReset {
		opts = append(opts, conversation.WithRefetchOnReset())
	}
	engine, err := conversation.New(ctx, vc, s.gateway, s.pool, opts...)
	if err != nil {
		if errors.Is(err, catalog.ErrNoCandidates) {
			return "", conversation.State{}, newError(ErrorInternal, "catalog_empty", err)
		}
		return "", conversation.State{}, newError(ErrorUpstream, "catalog_error", err)
	}

	id := newUUID()
	s.mu.Lock()
	s.evictIdleLocked()
	s.sessions[id] = &session{id: id, class: vc, engine: engine, lastActive: s.now()}
	s.mu.Unlock()

	s.logger.Info("conversation started", "conversation_id", id, "class", vc)
	return id, engine.State(), nil
}

// Answer submits one answer. Gateway failures do not produce an error; they
// come back as a retryable State.Error.
func (s *SessionService) Answer(ctx context.Context, id, answer string) (conversation.State, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return conversation.State{}, newError(ErrorInvalidInput, "empty_answer", nil)
	}
	if utf8.RuneCountInString(answer) > s.cfg.MaxAnswerLength {
		return conversation.State{}, newError(ErrorInvalidInput, "answer_too_long", nil)
	}

	sess, err := s.lookup(id)
	if err != nil {
		return conversation.State{}, err
	}
	current := sess.engine.State()
	switch {
	case current.Busy:
		return current, newError(ErrorConflict, "turn_in_progress", conversation.ErrBusy)
	case !current.HasQuestion():
		return current, newError(ErrorConflict, "conversation_finished", conversation.ErrNoQuestion)
	case len(current.History) >= s.cfg.MaxTurns:
		return current, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
	}

	if s.moderator != nil {
		flagged, err := s.moderator.Moderate(ctx, answer)
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok && status == 429 {
				return current, newError(ErrorRateLimited, "moderation_rate_limited", err)
			}
			return current, newError(ErrorUpstream, "moderation_error", err)
		}
		if flagged {
			return current, newError(ErrorInvalidAnswer, "moderation_flagged", nil)
		}
	}

	state, err := sess.engine.SubmitAnswer(ctx, answer)
	if err != nil {
		return state, engineError(err)
	}
	if state.Retryable {
		s.logger.Warn("conversation turn failed", "conversation_id", id, "turns", len(state.History))
	} else {
		s.record(ctx, sess, state)
	}
	return state, nil
}

// Reset returns a conversation to its seed state.
func (s *SessionService) Reset(ctx context.Context, id string) (conversation.State, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return conversation.State{}, err
	}
	turns := len(sess.engine.State().History)
	state, err := sess.engine.StartOver(ctx)
	if err != nil {
		return state, newError(ErrorUpstream, "catalog_error", err)
	}
	s.recordOutcome(ctx, sess, turns, outcomeReset)
	return state, nil
}

// Get returns the current state of a conversation.
func (s *SessionService) Get(id string) (conversation.State, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return conversation.State{}, err
	}
	return sess.engine.State(), nil
}

// End discards a conversation.
func (s *SessionService) End(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return newError(ErrorNotFound, "conversation_not_found", nil)
	}
	s.recordOutcome(ctx, sess, len(sess.engine.State().History), outcomeEnded)
	s.logger.Info("conversation ended", "conversation_id", id)
	return nil
}

// Len reports the number of live conversations.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	sess.lastActive = s.now()
	return sess, nil
}

func (s *SessionService) evictIdleLocked() {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)
	for id, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) && !sess.engine.State().Busy {
			delete(s.sessions, id)
			s.logger.Info("conversation evicted", "conversation_id", id)
		}
	}
}

// record writes the turn just completed. Recording failures are logged and
// never fail the turn.
func (s *SessionService) record(ctx context.Context, sess *session, state conversation.State) {
	if s.recorder == nil || len(state.History) == 0 {
		return
	}
	last := state.History[len(state.History)-1]
	err := s.recorder.RecordTurn(ctx, sess.id, sess.class, last, string(state.Status), len(state.Candidates), len(state.History))
	if err != nil {
		s.logger.Error("transcript write failed", "conversation_id", sess.id, "err", err)
	}
}

func (s *SessionService) recordOutcome(ctx context.Context, sess *session, turns int, outcome string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordOutcome(ctx, sess.id, sess.class, turns, outcome); err != nil {
		s.logger.Error("transcript write failed", "conversation_id", sess.id, "err", err)
	}
}

func engineError(err error) *Error {
	switch {
	case errors.Is(err, conversation.ErrBusy):
		return newError(ErrorConflict, "turn_in_progress", err)
	case errors.Is(err, conversation.ErrNoQuestion):
		return newError(ErrorConflict, "conversation_finished", err)
	case errors.Is(err, conversation.ErrSuperseded):
		return newError(ErrorConflict, "conversation_reset", err)
	case errors.Is(err, conversation.ErrBlankAnswer):
		return newError(ErrorInvalidInput, "empty_answer", err)
	}
	return newError(ErrorInternal, "engine_error", err)
}

var newUUID = func() string {
	return uuid.NewString()
}
