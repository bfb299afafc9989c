package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"vehicle-advisor/internal/domain"
)

// ValidationError reports gateway output that does not satisfy the contract.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "gateway: invalid response: " + e.Reason
	}
	return fmt.Sprintf("gateway: invalid response: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(reason string, err error) *ValidationError {
	return &ValidationError{Reason: reason, Err: err}
}

type wireRecommendation struct {
	ID      string `json:"id"`
	Details struct {
		Name  string  `json:"name"`
		Brand *string `json:"brand"`
	} `json:"details"`
	Summary string `json:"summary"`
}

type wireResponse struct {
	Status              Status              `json:"status"`
	NextQuestion        *string             `json:"next_question"`
	NextQuestionOptions []string            `json:"next_question_options"`
	UpdatedCandidateIDs []string            `json:"updated_candidate_ids"`
	FinalRecommendation *wireRecommendation `json:"final_recommendation"`
	ErrorMessage        *string             `json:"error_message"`
}

// Decode validates raw gateway output and converts it into a Response. Any
// failure is a *ValidationError.
func Decode(raw string) (Response, error) {
	body := bytes.TrimSpace([]byte(raw))
	if len(body) == 0 {
		return Response{}, invalid("empty body", nil)
	}
	if err := validateShape(body); err != nil {
		return Response{}, invalid("schema", err)
	}

	var w wireResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Response{}, invalid("decode", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return Response{}, invalid("multiple JSON values", nil)
		}
		return Response{}, invalid("trailing data", err)
	}

	ids := make([]string, 0, len(w.UpdatedCandidateIDs))
	for _, id := range w.UpdatedCandidateIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	switch w.Status {
	case StatusAsking:
		if w.NextQuestion == nil || strings.TrimSpace(*w.NextQuestion) == "" {
			return Response{}, invalid("next_question required when asking", nil)
		}
		if w.FinalRecommendation != nil {
			return Response{}, invalid("final_recommendation must be null when asking", nil)
		}
		return Response{CandidateIDs: ids, Decision: Ask{
			Question: strings.TrimSpace(*w.NextQuestion),
			Options:  cleanOptions(w.NextQuestionOptions),
		}}, nil

	case StatusRecommended:
		if w.NextQuestion != nil {
			return Response{}, invalid("next_question must be null with a recommendation", nil)
		}
		rec := w.FinalRecommendation
		if rec == nil || strings.TrimSpace(rec.ID) == "" {
			return Response{}, invalid("final_recommendation required", nil)
		}
		id := strings.TrimSpace(rec.ID)
		if !slices.Contains(ids, id) {
			return Response{}, invalid(fmt.Sprintf("recommended id %q not among updated_candidate_ids", id), nil)
		}
		detail := domain.RecommendationDetail{Name: strings.TrimSpace(rec.Details.Name)}
		if rec.Details.Brand != nil {
			detail.Brand = strings.TrimSpace(*rec.Details.Brand)
		}
		return Response{CandidateIDs: ids, Decision: Recommend{Recommendation: domain.Recommendation{
			CandidateID: id,
			Details:     detail,
			Summary:     strings.TrimSpace(rec.Summary),
		}}}, nil

	case StatusNoMatch:
		if w.NextQuestion != nil {
			return Response{}, invalid("next_question must be null with no match", nil)
		}
		if w.FinalRecommendation != nil {
			return Response{}, invalid("final_recommendation must be null with no match", nil)
		}
		msg := ""
		if w.ErrorMessage != nil {
			msg = strings.TrimSpace(*w.ErrorMessage)
		}
		return Response{CandidateIDs: ids, Decision: NoMatch{Message: msg}}, nil
	}
	return Response{}, invalid(fmt.Sprintf("unknown status %q", w.Status), nil)
}

func cleanOptions(opts []string) []string {
	var out []string
	for _, o := range opts {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
