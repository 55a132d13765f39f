package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/internal/engine"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	eng := engine.New(cfg, zaptest.NewLogger(t), engine.Options{})
	return New(eng, cfg.Server, zaptest.NewLogger(t))
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func submitBody(volume, price string) map[string]any {
	return map[string]any{
		"trade": map[string]any{
			"type":      "spot",
			"direction": "buy",
			"volume":    volume,
			"price":     price,
			"period":    "peak",
		},
		"context": map[string]any{
			"used_credit":  "0",
			"credit_limit": "100000000",
			"market_price": price,
			"volatility":   "0.02",
		},
	}
}

func createTask(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/approvals", submitBody("150", "600"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	task := body["task"].(map[string]any)
	return task["id"].(string)
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAssessTradeReturnsFullVerdict(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/trades/assess", submitBody("150", "600"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assessment := body["assessment"].(map[string]any)
	results := assessment["results"].([]any)
	assert.Len(t, results, 6)

	classification := body["classification"].(map[string]any)
	assert.Equal(t, "low", classification["level"])

	// assessment does not open a workflow
	list := decode(t, doJSON(t, s, http.MethodGet, "/api/v1/approvals", nil))
	assert.Empty(t, list["tasks"])
}

func TestAssessMalformedBodyIsBadRequest(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades/assess", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssessInvalidTradeIsBadRequest(t *testing.T) {
	s := testServer(t)

	// spot volume below the 100 MWh floor
	w := doJSON(t, s, http.MethodPost, "/api/v1/trades/assess", submitBody("50", "600"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "Validation", errObj["kind"])
}

func TestCreateApprovalHappyPath(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/approvals", submitBody("150", "600"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	task := body["task"].(map[string]any)
	assert.Equal(t, "pending", task["status"])

	steps := body["steps"].([]any)
	require.Len(t, steps, 1)
	step := steps[0].(map[string]any)
	assert.Equal(t, "trader", step["role"])
}

func TestCreateApprovalBlockedTradeIsUnprocessable(t *testing.T) {
	s := testServer(t)

	body := submitBody("150", "600")
	body["context"].(map[string]any)["market_price"] = "0"

	w := doJSON(t, s, http.MethodPost, "/api/v1/approvals", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	resp := decode(t, w)
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, "BlockedAssessment", errObj["kind"])
	assert.Contains(t, resp, "assessment")
}

func TestGetApproval(t *testing.T) {
	s := testServer(t)
	id := createTask(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/v1/approvals/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	task := body["task"].(map[string]any)
	assert.Equal(t, id, task["id"])
}

func TestGetUnknownApprovalIsNotFound(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/approvals/3f3f56f5-52a5-4b43-9f83-6dbdbd7988f1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetApprovalBadIDIsBadRequest(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/approvals/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecisionExecuteFlow(t *testing.T) {
	s := testServer(t)
	id := createTask(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/decision", id), map[string]any{
		"role":     "trader",
		"decision": "approve",
		"comment":  "within limits",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	task := decode(t, w)["task"].(map[string]any)
	assert.Equal(t, "approved", task["status"])

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/execute", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "executed", body["task"].(map[string]any)["status"])
	receipt := body["receipt"].(map[string]any)
	assert.NotEmpty(t, receipt["reference"])
}

func TestOutOfTurnDecisionIsConflict(t *testing.T) {
	s := testServer(t)
	id := createTask(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/decision", id), map[string]any{
		"role":     "director",
		"decision": "approve",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	errObj := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "InvalidTransition", errObj["kind"])
}

func TestUnknownDecisionVerbIsBadRequest(t *testing.T) {
	s := testServer(t)
	id := createTask(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/decision", id), map[string]any{
		"role":     "trader",
		"decision": "defer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteBeforeApprovalIsConflict(t *testing.T) {
	s := testServer(t)
	id := createTask(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/execute", id), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelRequiresReason(t *testing.T) {
	s := testServer(t)
	id := createTask(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/cancel", id), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/cancel", id), map[string]any{
		"reason": "superseded by revised order",
	})
	require.Equal(t, http.StatusOK, w.Code)
	task := decode(t, w)["task"].(map[string]any)
	assert.Equal(t, "cancelled", task["status"])
}

func TestListApprovalsFiltersByStatus(t *testing.T) {
	s := testServer(t)
	first := createTask(t, s)
	createTask(t, s)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/decision", first), map[string]any{
		"role":     "trader",
		"decision": "approve",
	})
	require.Equal(t, http.StatusOK, w.Code)

	all := decode(t, doJSON(t, s, http.MethodGet, "/api/v1/approvals", nil))
	assert.Len(t, all["tasks"], 2)

	pending := decode(t, doJSON(t, s, http.MethodGet, "/api/v1/approvals?status=pending", nil))
	assert.Len(t, pending["tasks"], 1)

	approved := decode(t, doJSON(t, s, http.MethodGet, "/api/v1/approvals?status=approved", nil))
	assert.Len(t, approved["tasks"], 1)
}

func TestMetricsEndpointServes(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "riskflow")
}
