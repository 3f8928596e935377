package negotiation

import (
	"time"

	"supplysim/internal/pkg/ident"
)

// ResponseRecord is one responder's answer as the coordinator keeps it.
// Accepted responses carry the responder's location token and the score the
// coordinator computed for it; rejections carry the machine-readable reason.
type ResponseRecord struct {
	Responder  ident.Ref
	Accepted   bool
	Reason     string
	Location   string
	Score      float64
	Arrival    int
	ReceivedAt time.Time
}
