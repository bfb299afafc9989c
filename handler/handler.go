package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"vehicle-advisor/internal/conversation"
	"vehicle-advisor/internal/domain"
	"vehicle-advisor/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 8 << 10
)

// SessionService is the use case surface the handler drives.
type SessionService interface {
	Start(ctx context.Context, class string) (string, conversation.State, error)
	Answer(ctx context.Context, id, answer string) (conversation.State, error)
	Reset(ctx context.Context, id string) (conversation.State, error)
	Get(id string) (conversation.State, error)
	End(ctx context.Context, id string) error
}

type Handler struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewHandler(s SessionService) (*Handler, error) {
	if s == nil {
		return nil, errors.New("handler: session service must not be nil")
	}
	return &Handler{sessions: s, logger: slog.Default()}, nil
}

type startRequest struct {
	VehicleClass string `json:"vehicleClass"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type candidateView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Brand      string            `json:"brand,omitempty"`
	Price      float64           `json:"price,omitempty"`
	ImageURL   string            `json:"imageUrl,omitempty"`
	PageURL    string            `json:"pageUrl,omitempty"`
	Attributes domain.Attributes `json:"attributes"`
}

type recommendationView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Brand    string  `json:"brand,omitempty"`
	Summary  string  `json:"summary"`
	Price    float64 `json:"price,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
	PageURL  string  `json:"pageUrl,omitempty"`
}

type conversationResponse struct {
	ConversationID string                    `json:"conversationId"`
	VehicleClass   string                    `json:"vehicleClass"`
	Status         string                    `json:"status"`
	Question       *string                   `json:"question"`
	Options        []string                  `json:"options,omitempty"`
	History        []domain.ConversationTurn `json:"history"`
	Candidates     []candidateView           `json:"candidates"`
	Recommendation *recommendationView       `json:"recommendation"`
	Error          *string                   `json:"error"`
	Retryable      bool                      `json:"retryable"`
	Busy           bool                      `json:"busy"`
}

// Handle routes API Gateway proxy requests:
//
//	POST   /conversations
//	GET    /conversations/{id}
//	POST   /conversations/{id}/answers
//	POST   /conversations/{id}/reset
//	DELETE /conversations/{id}
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	resp := h.route(ctx, req, logger)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = corrID
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, logger *slog.Logger) events.APIGatewayProxyResponse {
	parts := pathParts(req.Path)
	if len(parts) == 0 || parts[0] != "conversations" || len(parts) > 3 {
		return errorJSON(http.StatusNotFound, "NOT_FOUND", "route_not_found")
	}
	method := strings.ToUpper(req.HTTPMethod)

	switch {
	case len(parts) == 1 && method == http.MethodPost:
		var in startRequest
		if err := decodeBody(req, &in); err != nil {
			return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_body")
		}
		id, state, err := h.sessions.Start(ctx, in.VehicleClass)
		if err != nil {
			return h.fail(logger, err)
		}
		logger.Info("conversation started", "conversation_id", id)
		return writeJSON(http.StatusCreated, toResponse(id, state))

	case len(parts) == 2 && method == http.MethodGet:
		state, err := h.sessions.Get(parts[1])
		if err != nil {
			return h.fail(logger, err)
		}
		return writeJSON(http.StatusOK, toResponse(parts[1], state))

	case len(parts) == 2 && method == http.MethodDelete:
		if err := h.sessions.End(ctx, parts[1]); err != nil {
			return h.fail(logger, err)
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}

	case len(parts) == 3 && parts[2] == "answers" && method == http.MethodPost:
		var in answerRequest
		if err := decodeBody(req, &in); err != nil {
			return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_body")
		}
		state, err := h.sessions.Answer(ctx, parts[1], in.Answer)
		if err != nil {
			return h.fail(logger, err)
		}
		return writeJSON(http.StatusOK, toResponse(parts[1], state))

	case len(parts) == 3 && parts[2] == "reset" && method == http.MethodPost:
		state, err := h.sessions.Reset(ctx, parts[1])
		if err != nil {
			return h.fail(logger, err)
		}
		return writeJSON(http.StatusOK, toResponse(parts[1], state))

	case len(parts) == 3 && parts[2] != "answers" && parts[2] != "reset":
		return errorJSON(http.StatusNotFound, "NOT_FOUND", "route_not_found")
	}
	return errorJSON(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", method)
}

func (h *Handler) fail(logger *slog.Logger, err error) events.APIGatewayProxyResponse {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		logger.Error("unexpected error", "err", err)
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "")
	}
	status := statusFor(ue.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", ue.Code, "reason", ue.Reason, "err", ue.Err)
	} else {
		logger.Info("request rejected", "code", ue.Code, "reason", ue.Reason)
	}
	return errorJSON(status, string(ue.Code), ue.Reason)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidAnswer:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorConflict:
		return http.StatusConflict
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func toResponse(id string, s conversation.State) conversationResponse {
	out := conversationResponse{
		ConversationID: id,
		VehicleClass:   string(s.Class),
		Status:         string(s.Status),
		Options:        s.Options,
		History:        s.History,
		Candidates:     make([]candidateView, 0, len(s.Candidates)),
		Retryable:      s.Retryable,
		Busy:           s.Busy,
	}
	if out.History == nil {
		out.History = []domain.ConversationTurn{}
	}
	if s.HasQuestion() {
		q := s.Question
		out.Question = &q
	}
	if s.Error != "" {
		e := s.Error
		out.Error = &e
	}
	for _, c := range s.Candidates {
		out.Candidates = append(out.Candidates, candidateView{
			ID:         c.ID,
			Name:       c.Name,
			Brand:      c.Brand,
			Price:      c.Price,
			ImageURL:   c.ImageURL,
			PageURL:    c.PageURL,
			Attributes: c.Attributes,
		})
	}
	if s.Result != nil {
		rec := &recommendationView{
			ID:      s.Result.CandidateID,
			Name:    s.Result.Details.Name,
			Brand:   s.Result.Details.Brand,
			Summary: s.Result.Summary,
		}
		for _, c := range s.Candidates {
			if c.ID == rec.ID {
				rec.Price, rec.ImageURL, rec.PageURL = c.Price, c.ImageURL, c.PageURL
			}
		}
		out.Recommendation = rec
	}
	return out
}

func pathParts(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	// Tolerate a leading stage or version segment, e.g. /prod/conversations.
	if len(parts) > 1 && parts[0] != "conversations" && parts[1] == "conversations" {
		parts = parts[1:]
	}
	return parts
}

func decodeBody(req events.APIGatewayProxyRequest, v any) error {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return err
		}
		body = decoded
	}
	if len(body) > maxBodyBytes {
		return errors.New("body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func writeJSON(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "encode_error")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func errorJSON(status int, code, reason string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(errorResponse{Error: code, Message: reason})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
