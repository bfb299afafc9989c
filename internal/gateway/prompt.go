package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"vehicle-advisor/internal/domain"
)

func buildPromptMessages(req Request) ([]domain.ChatMessage, error) {
	candidates, err := json.Marshal(req.Candidates)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode candidates: %w", err)
	}

	messages := []domain.ChatMessage{
		{Role: "system", Content: buildPolicyPrompt(req.Class)},
		{Role: "system", Content: "Current candidates:\n" + string(candidates)},
	}
	for _, turn := range req.History {
		messages = append(messages, turnToPromptMessages(turn)...)
	}
	if len(req.History) == 0 {
		messages = append(messages, domain.ChatMessage{Role: "user", Content: req.LatestAnswer})
	}
	return messages, nil
}

func turnToPromptMessages(t domain.ConversationTurn) []domain.ChatMessage {
	question := strings.TrimSpace(t.Question)
	answer := strings.TrimSpace(t.Answer)
	if question == "" || answer == "" {
		return nil
	}
	return []domain.ChatMessage{
		{Role: "assistant", Content: question},
		{Role: "user", Content: answer},
	}
}

func buildPolicyPrompt(class domain.VehicleClass) string {
	noun := class.Noun()
	return strings.Join([]string{
		"Role:",
		persona(class),
		"",
		"Task:",
		"1) Interpret the user's latest answer in the context of the conversation so far.",
		fmt.Sprintf("2) Remove every %s from the current candidates that no longer fits the user's stated preferences.", noun),
		"3) Decide the next step of the conversation.",
		"",
		"Decision Rules:",
		decisionRules(noun),
		"",
		"Differentiating Attributes:",
		attributeHints(class),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func persona(class domain.VehicleClass) string {
	if class == domain.Motorcycle {
		return "You are an expert motorcycle recommendation assistant specializing in the Indian market. " +
			"Guide the user through a short interactive dialogue to find the right motorcycle."
	}
	return "You are an expert bicycle recommendation assistant. " +
		"Guide the user through a short interactive dialogue to find the right bicycle."
}

func decisionRules(noun string) string {
	return strings.Join([]string{
		fmt.Sprintf("- If more than one viable %s remains: ask one clear, concise question whose answer splits the remaining candidates on at least one attribute. Return status ASKING_QUESTION.", noun),
		fmt.Sprintf("- If exactly one viable %s remains: recommend it with a personalized summary grounded in the conversation. Return status RECOMMENDATION_MADE.", noun),
		fmt.Sprintf("- If no viable %s remains: explain briefly why nothing matches. Return status NO_MATCH_FOUND.", noun),
		"- Never invent candidates. Only use ids that appear in the current candidates.",
		"- Keep a conversational, helpful tone.",
	}, "\n")
}

func attributeHints(class domain.VehicleClass) string {
	if class == domain.Motorcycle {
		return "type (Commuter, Sport, Cruiser, Adventure/Off-road, Scooter, Cafe Racer), engine_displacement, mileage, budget_tier, brand, key_features such as ABS."
	}
	return "type, terrain, primary_use, suspension, gears, frame_material, budget_tier. Offer 2-5 short answer options in next_question_options when the choices are enumerable."
}

func outputContract() string {
	return "Return JSON only with keys status, next_question, next_question_options, updated_candidate_ids, final_recommendation, error_message. " +
		"updated_candidate_ids lists the ids still viable after this answer. " +
		"When status is ASKING_QUESTION set next_question and set final_recommendation=null. " +
		"When status is RECOMMENDATION_MADE set next_question=null, list exactly the recommended id in updated_candidate_ids, and set final_recommendation to {id, details: {name, brand}, summary}. " +
		"When status is NO_MATCH_FOUND set next_question=null, final_recommendation=null, updated_candidate_ids=[] and explain in error_message."
}
