// Package conversation implements the turn-by-turn narrowing engine: it owns
// the history, the live candidate set and the current question, and applies
// reasoning gateway decisions to them.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"vehicle-advisor/internal/domain"
	"vehicle-advisor/internal/gateway"
)

// FailedTurnPolicy decides what happens to the recorded turn when the
// gateway call for it fails.
type FailedTurnPolicy int

const (
	// KeepFailedTurn leaves the answered turn in history, so a retry carries
	// the failed exchange as context.
	KeepFailedTurn FailedTurnPolicy = iota
	// RollbackFailedTurn removes the answered turn again.
	RollbackFailedTurn
)

// ParseFailedTurnPolicy accepts "keep" or "rollback".
func ParseFailedTurnPolicy(s string) (FailedTurnPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return KeepFailedTurn, nil
	case "rollback":
		return RollbackFailedTurn, nil
	}
	return KeepFailedTurn, fmt.Errorf("conversation: unknown failed turn policy %q", s)
}

// PoolSource supplies the seed candidate pool.
type PoolSource interface {
	Load(ctx context.Context, class domain.VehicleClass) ([]domain.Candidate, error)
}

// StaticPool is a PoolSource that always returns the same candidates.
type StaticPool []domain.Candidate

func (p StaticPool) Load(context.Context, domain.VehicleClass) ([]domain.Candidate, error) {
	return append([]domain.Candidate(nil), p...), nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFailedTurnPolicy selects the failed-turn policy. The default keeps the turn.
func WithFailedTurnPolicy(p FailedTurnPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithSeedQuestion overrides the class default seed question.
func WithSeedQuestion(q string) Option {
	return func(e *Engine) {
		if q = strings.TrimSpace(q); q != "" {
			e.seedQuestion = q
		}
	}
}

// WithRefetchOnReset makes StartOver load a fresh pool instead of reusing
// the remembered one.
func WithRefetchOnReset() Option {
	return func(e *Engine) { e.refetchOnReset = true }
}

// Engine drives one conversation. At most one gateway call is in flight at a
// time; the engine is safe to share between goroutines.
type Engine struct {
	class          domain.VehicleClass
	gateway        gateway.Gateway
	source         PoolSource
	logger         *slog.Logger
	policy         FailedTurnPolicy
	seedQuestion   string
	refetchOnReset bool

	mu          sync.Mutex
	initialPool []domain.Candidate
	state       State
	busy        bool
	generation  uint64
}

// New seeds a conversation from source. A pool that cannot be loaded is a
// fatal seed error.
func New(ctx context.Context, class domain.VehicleClass, gw gateway.Gateway, source PoolSource, opts ...Option) (*Engine, error) {
	if gw == nil {
		return nil, errors.New("conversation: gateway must not be nil")
	}
	if source == nil {
		return nil, errors.New("conversation: pool source must not be nil")
	}
	e := &Engine{
		class:        class,
		gateway:      gw,
		source:       source,
		logger:       slog.Default(),
		seedQuestion: class.SeedQuestion(),
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := source.Load(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("conversation: seed: %w", err)
	}
	e.initialPool = pool
	e.state = e.seedState()
	return e, nil
}

// State returns a snapshot of the conversation.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// SubmitAnswer records answer against the pending question and runs one
// gateway round-trip. Blank answers, answers without a pending question and
// answers while busy are rejected without any state change. Gateway failures
// are not returned; they surface as a retryable State.Error.
func (e *Engine) SubmitAnswer(ctx context.Context, answer string) (State, error) {
	e.mu.Lock()
	switch {
	case e.busy:
		defer e.mu.Unlock()
		return e.snapshot(), ErrBusy
	case e.state.Status != StatusAsking || e.state.Question == "":
		defer e.mu.Unlock()
		return e.snapshot(), ErrNoQuestion
	case strings.TrimSpace(answer) == "":
		defer e.mu.Unlock()
		return e.snapshot(), ErrBlankAnswer
	}

	turn := domain.ConversationTurn{Question: e.state.Question, Answer: answer}
	e.state.History = append(e.state.History, turn)
	e.state.Error = ""
	e.state.Retryable = false
	e.busy = true
	gen := e.generation
	req := gateway.Request{
		Class:        e.class,
		History:      append([]domain.ConversationTurn(nil), e.state.History...),
		Candidates:   append([]domain.Candidate(nil), e.state.Candidates...),
		LatestAnswer: answer,
	}
	e.mu.Unlock()

	resp, err := e.gateway.Decide(ctx, req)
	var survivors []domain.Candidate
	if err == nil {
		survivors, err = e.survivors(resp, req.Candidates)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return e.snapshot(), ErrSuperseded
	}
	e.busy = false

	if err != nil {
		e.logger.Error("conversation turn failed", "class", e.class, "turn", len(req.History), "err", err)
		if e.policy == RollbackFailedTurn {
			e.state.History = e.state.History[:len(e.state.History)-1]
		}
		e.state.Error = retryMessage
		e.state.Retryable = true
		return e.snapshot(), nil
	}

	e.apply(resp.Decision, survivors)
	return e.snapshot(), nil
}

// StartOver restores the seed state: seed question, empty history and the
// remembered pool. The pool is loaded again when refetching is enabled or
// when the remembered pool is empty; a failed reload leaves state unchanged.
func (e *Engine) StartOver(ctx context.Context) (State, error) {
	e.mu.Lock()
	refetch := e.refetchOnReset || len(e.initialPool) == 0
	e.mu.Unlock()

	if refetch {
		pool, err := e.source.Load(ctx, e.class)
		if err != nil {
			return e.State(), fmt.Errorf("conversation: reseed: %w", err)
		}
		e.mu.Lock()
		e.initialPool = pool
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.busy = false
	e.state = e.seedState()
	return e.snapshot(), nil
}

func (e *Engine) apply(d gateway.Decision, survivors []domain.Candidate) {
	switch d := d.(type) {
	case gateway.Ask:
		e.state.Candidates = survivors
		e.state.Question = d.Question
		e.state.Options = append([]string(nil), d.Options...)
	case gateway.Recommend:
		rec := d.Recommendation
		if rec.Details.Name == "" {
			rec.Details.Name = survivors[0].Name
		}
		if rec.Details.Brand == "" {
			rec.Details.Brand = survivors[0].Brand
		}
		e.state.Status = StatusRecommended
		e.state.Candidates = survivors
		e.state.Question = ""
		e.state.Options = nil
		e.state.Result = &rec
	case gateway.NoMatch:
		msg := d.Message
		if msg == "" {
			msg = fmt.Sprintf(noMatchMessage, e.class.Noun())
		}
		e.state.Status = StatusNoMatch
		e.state.Candidates = nil
		e.state.Question = ""
		e.state.Options = nil
		e.state.Error = msg
	}
}

// survivors intersects the sent candidates with the ids the gateway kept and
// checks the decision against the resulting cardinality. Ids the gateway
// invented are dropped.
func (e *Engine) survivors(resp gateway.Response, sent []domain.Candidate) ([]domain.Candidate, error) {
	if resp.Decision == nil {
		return nil, errors.New("conversation: gateway returned no decision")
	}
	keep := make(map[string]struct{}, len(resp.CandidateIDs))
	for _, id := range resp.CandidateIDs {
		keep[id] = struct{}{}
	}
	out := make([]domain.Candidate, 0, len(keep))
	for _, c := range sent {
		if _, ok := keep[c.ID]; ok {
			out = append(out, c)
			delete(keep, c.ID)
		}
	}
	if len(keep) > 0 {
		e.logger.Warn("gateway returned unknown candidate ids", "class", e.class, "count", len(keep))
	}

	status := resp.Decision.Status()
	switch d := resp.Decision.(type) {
	case gateway.Ask:
		if len(out) < 2 {
			return nil, &ContractError{Status: status, Survivors: len(out), Reason: "a question needs at least two candidates"}
		}
	case gateway.Recommend:
		if len(out) != 1 {
			return nil, &ContractError{Status: status, Survivors: len(out), Reason: "a recommendation needs exactly one candidate"}
		}
		if out[0].ID != d.Recommendation.CandidateID {
			return nil, &ContractError{Status: status, Survivors: 1, Reason: fmt.Sprintf("recommended %q but %q survived", d.Recommendation.CandidateID, out[0].ID)}
		}
	case gateway.NoMatch:
		if len(out) != 0 {
			return nil, &ContractError{Status: status, Survivors: len(out), Reason: "no match must leave no candidates"}
		}
	default:
		return nil, fmt.Errorf("conversation: unsupported decision %T", d)
	}
	return out, nil
}

func (e *Engine) seedState() State {
	return State{
		Class:      e.class,
		Status:     StatusAsking,
		Candidates: append([]domain.Candidate(nil), e.initialPool...),
		Question:   e.seedQuestion,
	}
}

func (e *Engine) snapshot() State {
	s := e.state.clone()
	s.Busy = e.busy
	return s
}
