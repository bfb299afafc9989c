package domain

// ConversationTurn is one answered question. Turns are append-only and their
// order is the context window sent to the reasoning gateway.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Recommendation is the final pick made by the reasoning gateway.
type Recommendation struct {
	CandidateID string               `json:"id"`
	Details     RecommendationDetail `json:"details"`
	Summary     string               `json:"summary"`
}

// RecommendationDetail carries the identifying details echoed by the gateway.
type RecommendationDetail struct {
	Name  string `json:"name"`
	Brand string `json:"brand,omitempty"`
}

// TranscriptTurn is a single recorded turn of a conversation transcript.
type TranscriptTurn struct {
	PK             string
	SK             string
	ConversationID string
	Question       string
	Answer         string
	Status         string
	Candidates     int
	TTL            int64
}

// ConversationMeta stores aggregate transcript state.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	VehicleClass   string
	LastActivity   string
	Turns          int
	Outcome        string
	TTL            int64
}
