package response

import (
	"time"

	"supplysim/internal/pkg/ident"
	"supplysim/internal/usecase"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type TransactionResponse struct {
	EventID     uuid.UUID       `json:"event_id"`
	RequestID   ident.RequestID `json:"request_id"`
	Requester   ident.Ref       `json:"requester"`
	Resource    string          `json:"resource"`
	Quantity    int             `json:"quantity"`
	Outcome     string          `json:"outcome"`
	Winner      *ident.Ref      `json:"winner,omitempty"`
	WinnerScore *float64        `json:"winner_score,omitempty"`
	Responses   int             `json:"responses"`
	Accepts     int             `json:"accepts"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    time.Time       `json:"closed_at"`
	Duration    string          `json:"duration"`
}

func FromTransactionClosed(e *usecase.TransactionClosed) *TransactionResponse {
	out := &TransactionResponse{}
	_ = copier.Copy(out, e)
	out.Outcome = e.Outcome.String()
	out.Duration = e.ClosedAt.Sub(e.OpenedAt).String()
	return out
}
