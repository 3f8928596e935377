package api

import (
	"bytes"
	"net/http"
	"strconv"

	resdto "supplysim/internal/handler/dto/response"
	"supplysim/internal/handler/httperr"
	"supplysim/internal/pkg/errs"
	"supplysim/internal/pkg/ident"
	"supplysim/internal/sim"
	"supplysim/internal/stats"

	"github.com/gin-gonic/gin"
)

// FleetView is the read-only slice of the fleet the status API needs.
type FleetView interface {
	Actors() []sim.ActorStatus
	Actor(ref ident.Ref) (sim.ActorStatus, bool)
	RetryBacklog() int
}

type StatusHandler struct {
	fleet     FleetView
	collector *stats.Collector
}

func NewStatusHandler(fleet FleetView, collector *stats.Collector) *StatusHandler {
	return &StatusHandler{fleet: fleet, collector: collector}
}

// @Summary List actors
// @Description List every actor with its headline counters
// @Tags actors
// @Produce json
// @Success 200 {object} map[string][]resdto.ActorSummaryResponse
// @Router /actors [get]
func (h *StatusHandler) ListActors(c *gin.Context) {
	actors := h.fleet.Actors()
	out := make([]*resdto.ActorSummaryResponse, 0, len(actors))
	for i := range actors {
		out = append(out, resdto.FromActorStatus(&actors[i]))
	}
	c.JSON(http.StatusOK, gin.H{"actors": out})
}

// @Summary Get actor
// @Description Get one actor's inventory and reservation holds
// @Tags actors
// @Produce json
// @Param ref path string true "Actor ref, e.g. store-1"
// @Success 200 {object} resdto.ActorDetailResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /actors/{ref} [get]
func (h *StatusHandler) GetActor(c *gin.Context) {
	ref, err := ident.ParseRef(c.Param("ref"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid actor ref", nil)
		return
	}
	st, ok := h.fleet.Actor(ref)
	if !ok {
		httperr.AbortWithError(c, http.StatusNotFound, errs.Newf("no actor %s", ref), "Not found", nil)
		return
	}
	c.JSON(http.StatusOK, resdto.FromActorDetail(&st))
}

// @Summary List transactions
// @Description List recently closed transactions, newest first
// @Tags transactions
// @Produce json
// @Param limit query int false "Max items (default 50)"
// @Success 200 {object} map[string][]resdto.TransactionResponse
// @Router /transactions [get]
func (h *StatusHandler) ListTransactions(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if iv, err := strconv.Atoi(v); err == nil && iv > 0 {
			limit = iv
		}
	}
	events := h.collector.Recent(limit)
	out := make([]*resdto.TransactionResponse, 0, len(events))
	for i := range events {
		out = append(out, resdto.FromTransactionClosed(&events[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// @Summary Export transactions
// @Description Download recently closed transactions as CSV
// @Tags transactions
// @Produce text/csv
// @Success 200 {string} string
// @Failure 500 {object} map[string]string
// @Router /transactions.csv [get]
func (h *StatusHandler) ExportTransactionsCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.collector.WriteCSV(&buf); err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Export failed", nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="transactions.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// @Summary Simulation stats
// @Description Aggregate trade counters, per resource and per requester
// @Tags stats
// @Produce json
// @Success 200 {object} map[string]any
// @Router /stats [get]
func (h *StatusHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"totals":       h.collector.Totals(),
		"by_resource":  h.collector.ByResource(),
		"by_requester": h.collector.ByRequester(),
	})
}

// @Summary Retry backlog
// @Description Count failed requests waiting for a retry across the fleet
// @Tags stats
// @Produce json
// @Success 200 {object} map[string]int
// @Router /retry [get]
func (h *StatusHandler) GetRetryBacklog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"backlog": h.fleet.RetryBacklog()})
}
