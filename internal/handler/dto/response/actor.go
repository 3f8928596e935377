package response

import (
	"time"

	"supplysim/internal/domain/scoring"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/sim"
	"supplysim/internal/usecase"

	"github.com/jinzhu/copier"
)

type ActorSummaryResponse struct {
	Ref          ident.Ref     `json:"ref"`
	Kind         string        `json:"kind"`
	Location     scoring.Token `json:"location"`
	Balanced     bool          `json:"balanced"`
	OpenBuys     int           `json:"open_buys"`
	RetryBacklog int           `json:"retry_backlog"`
	ActiveHolds  int           `json:"active_holds"`
}

type ActorDetailResponse struct {
	ActorSummaryResponse
	Inventory         InventoryResponse     `json:"inventory"`
	Holds             []ReservationResponse `json:"holds"`
	InFlightResupply  []string              `json:"in_flight_resupply,omitempty"`
	ConservationError string                `json:"conservation_error,omitempty"`
}

type InventoryResponse struct {
	Available  map[string]int            `json:"available"`
	Locked     map[string]int            `json:"locked"`
	Pending    []PendingDeliveryResponse `json:"pending"`
	TotalAdded map[string]int            `json:"total_added"`
}

type PendingDeliveryResponse struct {
	RequestID ident.RequestID `json:"request_id"`
	To        ident.Ref       `json:"to"`
	Resource  string          `json:"resource"`
	Quantity  int             `json:"quantity"`
}

type ReservationResponse struct {
	RequestID ident.RequestID `json:"request_id"`
	Requester ident.Ref       `json:"requester"`
	Resource  string          `json:"resource"`
	Quantity  int             `json:"quantity"`
	State     string          `json:"state"`
	LockedAt  time.Time       `json:"locked_at"`
	SettledAt *time.Time      `json:"settled_at,omitempty"`
}

// FromActorStatus copies the mechanical fields and derives the rest.
func FromActorStatus(st *sim.ActorStatus) *ActorSummaryResponse {
	out := &ActorSummaryResponse{}
	_ = copier.Copy(out, st)
	out.Kind = st.Ref.Kind().String()
	out.Balanced = st.Conservation == nil
	return out
}

func FromActorDetail(st *sim.ActorStatus) *ActorDetailResponse {
	out := &ActorDetailResponse{
		ActorSummaryResponse: *FromActorStatus(st),
		Holds:                make([]ReservationResponse, 0, len(st.Holds)),
		InFlightResupply:     st.InFlightResupply,
	}
	_ = copier.Copy(&out.Inventory, &st.Inventory)
	for i := range st.Holds {
		out.Holds = append(out.Holds, *FromReservationSnapshot(&st.Holds[i]))
	}
	if st.Conservation != nil {
		out.ConservationError = st.Conservation.Error()
	}
	return out
}

func FromReservationSnapshot(h *usecase.ReservationSnapshot) *ReservationResponse {
	out := &ReservationResponse{}
	_ = copier.Copy(out, h)
	out.State = h.State.String()
	out.SettledAt = nil
	if !h.SettledAt.IsZero() {
		settled := h.SettledAt
		out.SettledAt = &settled
	}
	return out
}
