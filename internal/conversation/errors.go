package conversation

import (
	"errors"
	"fmt"

	"vehicle-advisor/internal/gateway"
)

// Rejections returned by SubmitAnswer. None of them changes state.
var (
	ErrBusy        = errors.New("conversation: a turn is already in flight")
	ErrNoQuestion  = errors.New("conversation: no question is pending")
	ErrBlankAnswer = errors.New("conversation: answer is blank")
	ErrSuperseded  = errors.New("conversation: turn result discarded after reset")
)

const (
	retryMessage   = "An error occurred while processing your request. Please try again."
	noMatchMessage = "No %ss match your criteria based on the conversation."
)

// ContractError reports a gateway decision inconsistent with the candidates
// it left standing.
type ContractError struct {
	Status    gateway.Status
	Survivors int
	Reason    string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("conversation: gateway contract violated: %s with %d surviving candidates: %s", e.Status, e.Survivors, e.Reason)
}
