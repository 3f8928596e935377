//go:build e2e

package sim_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"supplysim/internal/handler/dto/response"
	"supplysim/internal/stats"
	"supplysim/tests/common/httptest"
	"supplysim/tests/e2e"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	healthURL          = "/health"
	actorsURL          = "/api/actors"
	actorDetailURL     = "/api/actors/%s"
	transactionsURL    = "/api/transactions"
	transactionsCSVURL = "/api/transactions.csv"
	statsURL           = "/api/stats"
	retryURL           = "/api/retry"
)

type SimSuite struct {
	e2e.SimSharedSuite
}

func TestSimSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(SimSuite))
}

type statsBody struct {
	Totals      stats.Totals            `json:"totals"`
	ByResource  []stats.ResourceTotals  `json:"by_resource"`
	ByRequester []stats.RequesterTotals `json:"by_requester"`
}

// fetchStats reads the stats endpoint without failing the test; Eventually
// callbacks run off the test goroutine, so they must not call require.
func (s *SimSuite) fetchStats() (statsBody, bool) {
	w := httptest.PerformRequest(s.T(), s.Router, http.MethodGet, statsURL, nil)
	if w.Code != http.StatusOK {
		return statsBody{}, false
	}
	var body statsBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		return statsBody{}, false
	}
	return body, true
}

// waitForSettledDeals blocks until the fleet has closed at least n
// transactions successfully.
func (s *SimSuite) waitForSettledDeals(t *testing.T, n int) statsBody {
	t.Helper()

	var body statsBody
	require.Eventually(t, func() bool {
		b, ok := s.fetchStats()
		if !ok {
			return false
		}
		body = b
		return b.Totals.Done >= n && b.Totals.Confirmed >= n
	}, 30*time.Second, 250*time.Millisecond, "fleet should settle at least %d deals", n)
	return body
}

// =============================================================================
// TestHealthCheck - Liveness endpoint
// =============================================================================

func (s *SimSuite) TestHealthCheck() {
	t := s.T()

	w := httptest.PerformRequest(t, s.Router, http.MethodGet, healthURL, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	err := httptest.DecodeResponseBody(t, w.Body, &body)
	require.NoError(t, err)
	require.Equal(t, "ok", body["status"])
}

// =============================================================================
// TestNegotiationsSettle - Deals close over the real message bus
// =============================================================================

func (s *SimSuite) TestNegotiationsSettle() {
	t := s.T()

	body := s.waitForSettledDeals(t, 3)

	require.GreaterOrEqual(t, body.Totals.Transactions, body.Totals.Done+body.Totals.Failed)
	require.Positive(t, body.Totals.UnitsTraded, "settled deals should move stock")
	require.GreaterOrEqual(t, body.Totals.Locked, body.Totals.Confirmed,
		"every confirmation starts from a lock")

	require.NotEmpty(t, body.ByResource, "per-resource totals should be populated")
	for _, res := range body.ByResource {
		require.Contains(t, []string{"A", "B"}, res.Resource)
	}

	require.NotEmpty(t, body.ByRequester, "per-requester totals should be populated")
	for _, req := range body.ByRequester {
		require.True(t,
			strings.HasPrefix(req.Requester, "store-") || strings.HasPrefix(req.Requester, "warehouse-"),
			"only stores and warehouses initiate buys, got %s", req.Requester)
	}
}

// =============================================================================
// TestActorsStayBalanced - Inventory conservation under live traffic
// =============================================================================

func (s *SimSuite) TestActorsStayBalanced() {
	s.Run("Normal case: Every actor reports a balanced book", func() {
		t := s.T()

		s.waitForSettledDeals(t, 2)

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, actorsURL, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var actualRes struct {
			Actors []*response.ActorSummaryResponse `json:"actors"`
		}
		err := httptest.DecodeResponseBody(t, w.Body, &actualRes)
		require.NoError(t, err)

		wantRefs := []string{
			"store-1", "store-2",
			"warehouse-1", "warehouse-2",
			"supplier-1", "supplier-2",
		}
		gotRefs := make([]string, 0, len(actualRes.Actors))
		for _, a := range actualRes.Actors {
			gotRefs = append(gotRefs, a.Ref.String())
		}
		if diff := cmp.Diff(wantRefs, gotRefs); diff != "" {
			t.Errorf("Actor list mismatch (-want +got):\n%s", diff)
		}

		for _, a := range actualRes.Actors {
			require.True(t, a.Balanced, "actor %s book out of balance", a.Ref)
		}
	})

	s.Run("Normal case: Books stay balanced after more traffic", func() {
		t := s.T()

		// let another round of buys and resupplies flow
		time.Sleep(1 * time.Second)

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, actorsURL, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var actualRes struct {
			Actors []*response.ActorSummaryResponse `json:"actors"`
		}
		err := httptest.DecodeResponseBody(t, w.Body, &actualRes)
		require.NoError(t, err)
		require.Len(t, actualRes.Actors, 6)

		for _, a := range actualRes.Actors {
			require.True(t, a.Balanced, "actor %s book out of balance", a.Ref)
		}
	})
}

// =============================================================================
// TestGetActorDetail - Single actor lookup
// =============================================================================

func (s *SimSuite) TestGetActorDetail() {
	s.Run("Normal case: Warehouse detail carries its inventory", func() {
		t := s.T()

		url := fmt.Sprintf(actorDetailURL, "warehouse-1")
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, url, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var actualRes response.ActorDetailResponse
		err := httptest.DecodeResponseBody(t, w.Body, &actualRes)
		require.NoError(t, err)

		require.Equal(t, "warehouse-1", actualRes.Ref.String())
		require.Equal(t, "warehouse", actualRes.Kind)
		require.True(t, actualRes.Balanced)
		require.Empty(t, actualRes.ConservationError)

		// warehouses are seeded with every product at build time
		require.Positive(t, actualRes.Inventory.TotalAdded["A"])
		require.Positive(t, actualRes.Inventory.TotalAdded["B"])
	})

	s.Run("Normal case: Supplier detail reports manufacturing on demand", func() {
		t := s.T()

		url := fmt.Sprintf(actorDetailURL, "supplier-1")
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, url, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var actualRes response.ActorDetailResponse
		err := httptest.DecodeResponseBody(t, w.Body, &actualRes)
		require.NoError(t, err)
		require.Equal(t, "supplier", actualRes.Kind)
		require.True(t, actualRes.Balanced)
	})

	s.Run("Error case: Returns 400 Bad Request for malformed ref", func() {
		t := s.T()

		url := fmt.Sprintf(actorDetailURL, "depot-9")
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, url, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.Run("Error case: Returns 404 Not Found for unknown actor", func() {
		t := s.T()

		url := fmt.Sprintf(actorDetailURL, "store-42")
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, url, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

// =============================================================================
// TestTransactionHistory - Recent transactions list and CSV export
// =============================================================================

func (s *SimSuite) TestTransactionHistory() {
	s.Run("Normal case: Recent transactions listed newest first", func() {
		t := s.T()

		s.waitForSettledDeals(t, 2)

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, transactionsURL+"?limit=5", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var actualRes struct {
			Transactions []*response.TransactionResponse `json:"transactions"`
		}
		err := httptest.DecodeResponseBody(t, w.Body, &actualRes)
		require.NoError(t, err)
		require.NotEmpty(t, actualRes.Transactions)
		require.LessOrEqual(t, len(actualRes.Transactions), 5)

		for _, tx := range actualRes.Transactions {
			require.Positive(t, int64(tx.RequestID))
			require.Contains(t, []string{"done", "failed"}, tx.Outcome)
			if tx.Outcome == "done" {
				require.NotNil(t, tx.Winner, "settled deal should name a winner")
				require.NotNil(t, tx.WinnerScore)
			}
			require.False(t, tx.ClosedAt.Before(tx.OpenedAt))
		}
	})

	s.Run("Normal case: CSV export streams the same history", func() {
		t := s.T()

		s.waitForSettledDeals(t, 1)

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, transactionsCSVURL, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		require.Contains(t, w.Header().Get("Content-Disposition"), "transactions.csv")

		lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
		require.GreaterOrEqual(t, len(lines), 2, "header plus at least one settled deal")
		require.True(t, strings.HasPrefix(lines[0], "event_id,request_id,requester"))
	})
}

// =============================================================================
// TestRetryBacklog - Failed buys queue for another attempt
// =============================================================================

func (s *SimSuite) TestRetryBacklog() {
	t := s.T()

	w := httptest.PerformRequest(t, s.Router, http.MethodGet, retryURL, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Backlog int `json:"backlog"`
	}
	err := httptest.DecodeResponseBody(t, w.Body, &body)
	require.NoError(t, err)
	require.GreaterOrEqual(t, body.Backlog, 0)
}
