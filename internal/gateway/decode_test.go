package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireInvalid(t *testing.T, raw, reason string) {
	t.Helper()
	_, err := Decode(raw)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Error(), reason)
}

func TestDecode_Asking(t *testing.T) {
	resp, err := Decode(`{
		"status":"ASKING_QUESTION",
		"next_question":"  Do you need suspension? ",
		"next_question_options":["Yes","", "No"],
		"updated_candidate_ids":["a"," b ",""],
		"final_recommendation":null,
		"error_message":null
	}`)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, resp.CandidateIDs)
	ask, ok := resp.Decision.(Ask)
	require.True(t, ok)
	require.Equal(t, StatusAsking, ask.Status())
	require.Equal(t, "Do you need suspension?", ask.Question)
	require.Equal(t, []string{"Yes", "No"}, ask.Options)
}

func TestDecode_Recommendation(t *testing.T) {
	resp, err := Decode(`{
		"status":"RECOMMENDATION_MADE",
		"next_question":null,
		"next_question_options":null,
		"updated_candidate_ids":["bike_456"],
		"final_recommendation":{"id":"bike_456","details":{"name":"Mountain Explorer","brand":null},"summary":"Built for trails."},
		"error_message":null
	}`)
	require.NoError(t, err)
	rec, ok := resp.Decision.(Recommend)
	require.True(t, ok)
	require.Equal(t, "bike_456", rec.Recommendation.CandidateID)
	require.Equal(t, "Mountain Explorer", rec.Recommendation.Details.Name)
	require.Empty(t, rec.Recommendation.Details.Brand)
	require.Equal(t, "Built for trails.", rec.Recommendation.Summary)
}

func TestDecode_NoMatch(t *testing.T) {
	resp, err := Decode(`{"status":"NO_MATCH_FOUND","next_question":null,"next_question_options":null,"updated_candidate_ids":[],"final_recommendation":null,"error_message":"Nothing under that budget."}`)
	require.NoError(t, err)
	nm, ok := resp.Decision.(NoMatch)
	require.True(t, ok)
	require.Equal(t, "Nothing under that budget.", nm.Message)
	require.Empty(t, resp.CandidateIDs)
}

func TestDecode_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "  ", "empty body"},
		{"not json", "not-json", "schema"},
		{"unknown status", `{"status":"MAYBE","next_question":null,"next_question_options":null,"updated_candidate_ids":[],"final_recommendation":null,"error_message":null}`, "schema"},
		{"missing key", `{"status":"NO_MATCH_FOUND","next_question":null,"updated_candidate_ids":[],"final_recommendation":null,"error_message":null}`, "schema"},
		{"extra key", `{"status":"NO_MATCH_FOUND","next_question":null,"next_question_options":null,"updated_candidate_ids":[],"final_recommendation":null,"error_message":null,"extra":1}`, "schema"},
		{"asking without question", `{"status":"ASKING_QUESTION","next_question":null,"next_question_options":null,"updated_candidate_ids":["a","b"],"final_recommendation":null,"error_message":null}`, "next_question required"},
		{"asking blank question", `{"status":"ASKING_QUESTION","next_question":"  ","next_question_options":null,"updated_candidate_ids":["a","b"],"final_recommendation":null,"error_message":null}`, "next_question required"},
		{"asking with recommendation", `{"status":"ASKING_QUESTION","next_question":"Q?","next_question_options":null,"updated_candidate_ids":["a","b"],"final_recommendation":{"id":"a","details":{"name":"A","brand":null},"summary":"s"},"error_message":null}`, "must be null when asking"},
		{"recommendation missing", `{"status":"RECOMMENDATION_MADE","next_question":null,"next_question_options":null,"updated_candidate_ids":["a"],"final_recommendation":null,"error_message":null}`, "final_recommendation required"},
		{"recommendation with question", `{"status":"RECOMMENDATION_MADE","next_question":"Q?","next_question_options":null,"updated_candidate_ids":["a"],"final_recommendation":{"id":"a","details":{"name":"A","brand":null},"summary":"s"},"error_message":null}`, "next_question must be null"},
		{"recommendation outside ids", `{"status":"RECOMMENDATION_MADE","next_question":null,"next_question_options":null,"updated_candidate_ids":["a"],"final_recommendation":{"id":"z","details":{"name":"Z","brand":null},"summary":"s"},"error_message":null}`, "not among updated_candidate_ids"},
		{"no match with question", `{"status":"NO_MATCH_FOUND","next_question":"Q?","next_question_options":null,"updated_candidate_ids":[],"final_recommendation":null,"error_message":null}`, "next_question must be null"},
		{"trailing value", `{"status":"NO_MATCH_FOUND","next_question":null,"next_question_options":null,"updated_candidate_ids":[],"final_recommendation":null,"error_message":null} {}`, "invalid response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireInvalid(t, tc.raw, tc.reason)
		})
	}
}
