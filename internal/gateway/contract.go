// Package gateway defines the reasoning gateway contract: what the
// conversation engine sends per turn, and the validated decision it gets back.
package gateway

import (
	"context"

	"vehicle-advisor/internal/domain"
)

// Status is the wire discriminant of a gateway decision.
type Status string

const (
	StatusAsking      Status = "ASKING_QUESTION"
	StatusRecommended Status = "RECOMMENDATION_MADE"
	StatusNoMatch     Status = "NO_MATCH_FOUND"
)

// Request is the per-turn input: the full history including the turn just
// answered, the live candidate set, and the latest answer.
type Request struct {
	Class        domain.VehicleClass       `json:"-"`
	History      []domain.ConversationTurn `json:"conversation_history"`
	Candidates   []domain.Candidate        `json:"candidates"`
	LatestAnswer string                    `json:"latest_answer"`
}

// Decision is one of Ask, Recommend or NoMatch.
type Decision interface {
	Status() Status
}

// Ask continues the dialogue with another question.
type Ask struct {
	Question string
	Options  []string
}

// Recommend ends the dialogue with a single pick.
type Recommend struct {
	Recommendation domain.Recommendation
}

// NoMatch ends the dialogue without a pick. Message may be empty.
type NoMatch struct {
	Message string
}

func (Ask) Status() Status       { return StatusAsking }
func (Recommend) Status() Status { return StatusRecommended }
func (NoMatch) Status() Status   { return StatusNoMatch }

// Response is a decoded gateway answer.
type Response struct {
	CandidateIDs []string
	Decision     Decision
}

// Gateway decides the next step of a conversation.
type Gateway interface {
	Decide(ctx context.Context, req Request) (Response, error)
}
