package sim

import (
	"supplysim/internal/usecase"
)

// Supplier answers warehouse demand from an unlimited book, so it never
// rejects for stock. Its book's total-added counter doubles as the number of
// units it has manufactured.
type Supplier struct {
	engine *usecase.Responder
}

func NewSupplier(engine *usecase.Responder) *Supplier {
	return &Supplier{engine: engine}
}
