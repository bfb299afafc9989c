package conversation

import "vehicle-advisor/internal/domain"

// Status is the engine's lifecycle state.
type Status string

const (
	StatusAsking      Status = "ASKING"
	StatusRecommended Status = "RECOMMENDED"
	StatusNoMatch     Status = "NO_MATCH"
)

// Terminal reports whether only a reset can leave this status.
func (s Status) Terminal() bool {
	return s == StatusRecommended || s == StatusNoMatch
}

// State is a snapshot of a conversation. Snapshots never share slices with
// the engine.
//
// Exactly one of Question, Result or a non-retryable Error is present. A
// retryable Error accompanies Question after a failed turn.
type State struct {
	Class      domain.VehicleClass
	Status     Status
	History    []domain.ConversationTurn
	Candidates []domain.Candidate
	Question   string
	Options    []string
	Result     *domain.Recommendation
	Error      string
	Retryable  bool
	Busy       bool
}

// HasQuestion reports whether an unanswered question is pending.
func (s State) HasQuestion() bool { return s.Question != "" }

// CandidateIDs lists the ids of the live candidates in order.
func (s State) CandidateIDs() []string {
	ids := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		ids[i] = c.ID
	}
	return ids
}

func (s State) clone() State {
	out := s
	out.History = append([]domain.ConversationTurn{}, s.History...)
	out.Candidates = append([]domain.Candidate{}, s.Candidates...)
	if s.Options != nil {
		out.Options = append([]string(nil), s.Options...)
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}
