// Package game tracks the local view of a multiplayer quiz session: room
// membership, game lifecycle, the current question and answer progress, and
// the end-of-game settlement. It is driven entirely by server-pushed events
// and command acknowledgements delivered through the transport collaborator.
package game

import (
	"context"
	"encoding/json"

	"github.com/tktogether/motleycrowd/internal/domain"
)

// Result is the outcome of one command round-trip.
type Result struct {
	Success bool
	Data    json.RawMessage
}

// Commander sends a command to the server and waits for its acknowledgement.
// A transport failure surfaces as an error; a server rejection as
// Result.Success == false.
type Commander interface {
	Send(ctx context.Context, command string, payload any) (Result, error)
}

// EventSource delivers server-pushed events. Handlers for the same source
// are invoked sequentially, in arrival order.
type EventSource interface {
	Subscribe(event string, handler func(payload json.RawMessage))
}

// QuestionResolver materializes question content for a round. picked are the
// options the server selected for this instance, remaining the options still
// open (resume only), priorAnswer the local user's already-submitted answer.
type QuestionResolver interface {
	Resolve(ctx context.Context, questionID string, picked, remaining []string, priorAnswer string) (domain.Question, error)
}
