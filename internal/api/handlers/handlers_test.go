package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"market-clearing/internal/api/models"
	"market-clearing/internal/data"
	"market-clearing/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var h0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// threeUnits clears at 20, 40 and 60 with 100, 50 and 200 MW.
func threeUnits(demands ...float64) *data.Scenario {
	hist := 42.0
	s := &data.Scenario{
		Units: []data.ScenarioUnit{
			{ID: "A", Technology: "lignite", CapacityMW: 100, Efficiency: 1},
			{ID: "B", Technology: "hard coal", CapacityMW: 50, Efficiency: 1},
			{ID: "C", Technology: "natural gas", CapacityMW: 200, Efficiency: 1},
		},
		EmissionFactors: map[string]float64{"lignite": 0, "hard coal": 0, "natural gas": 0},
	}
	for i, d := range demands {
		st := data.ScenarioStep{
			Timestamp:  h0.Add(time.Duration(i) * time.Hour),
			DemandMW:   d,
			FuelPrices: map[string]float64{"lignite": 20, "hard coal": 40, "natural gas": 60},
		}
		if i == 0 {
			st.HistoricalPrice = &hist
		}
		s.Steps = append(s.Steps, st)
	}
	return s
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newRouter(t *testing.T, fleetDir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := quietLogger()
	results := data.NewResultCache(time.Minute)
	t.Cleanup(results.Close)

	clearing := NewClearingHandler(logger, nil, results, fleetDir)
	r := gin.New()
	r.POST("/api/v1/clearing", clearing.RunClearing)
	r.GET("/api/v1/clearing/:id/ledger", clearing.GetLedger)
	r.POST("/api/v1/clearing/compare", clearing.CompareClearings)
	r.GET("/api/v1/strategies", NewStrategyHandler().ListStrategies)
	r.GET("/api/v1/fleets", NewFleetHandler(fleetDir, logger).ListFleets)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRunClearing_MeritOrder(t *testing.T) {
	r := newRouter(t, "")

	w := do(t, r, http.MethodPost, "/api/v1/clearing", models.ClearingRequest{
		Scenario: threeUnits(120, 0, 400, 300),
		Config:   models.ClearingConfig{Strategy: models.StrategyConfig{Name: "merit-order"}},
		Options:  models.ClearingOptions{IncludeLedger: true, IncludeDispatch: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.ClearingResponse](t, w)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 4, resp.Summary.Steps)
	assert.Equal(t, 2, resp.Summary.Cleared)
	assert.Equal(t, 1, resp.Summary.Floor)
	assert.Equal(t, 1, resp.Summary.Scarcity)
	assert.Equal(t, h0, resp.Summary.Window.Start.UTC())

	require.Len(t, resp.Ledger, 4)
	require.NotNil(t, resp.Ledger[0].Price)
	assert.InDelta(t, 40, *resp.Ledger[0].Price, 1e-9)
	assert.Equal(t, "B", resp.Ledger[0].PriceSetter)
	assert.InDelta(t, 20, resp.Ledger[0].Dispatch["B"], 1e-9)
	assert.Equal(t, string(model.StatusScarcity), resp.Ledger[2].Status)
	assert.InDelta(t, 3000, *resp.Ledger[2].Price, 1e-9)

	require.NotNil(t, resp.Accuracy)
	assert.Equal(t, 1, resp.Accuracy.Count)
	assert.InDelta(t, -2, resp.Accuracy.Bias, 1e-9)
	require.Len(t, resp.PriceSetters, 2)

	// The stored run is retrievable as CSV and JSON.
	w = do(t, r, http.MethodGet, "/api/v1/clearing/"+resp.ID+"/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Contains(t, lines[0], "index,timestamp,demand_mw")
	assert.Contains(t, lines[1], "40.00")

	w = do(t, r, http.MethodGet, "/api/v1/clearing/"+resp.ID+"/ledger?dispatch=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "timestamp,unit,output_mw")

	w = do(t, r, http.MethodGet, "/api/v1/clearing/"+resp.ID+"/ledger?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledger struct {
		Ledger []models.LedgerRow `json:"ledger"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledger))
	assert.Len(t, ledger.Ledger, 4)
	assert.Nil(t, ledger.Ledger[0].Dispatch)
}

func TestRunClearing_UnitCommitment(t *testing.T) {
	r := newRouter(t, "")

	w := do(t, r, http.MethodPost, "/api/v1/clearing", models.ClearingRequest{
		Scenario: threeUnits(120, 300),
		Config: models.ClearingConfig{Strategy: models.StrategyConfig{
			Name:   "unit-commitment",
			Params: map[string]interface{}{"min_output_fraction": 0.0},
		}},
		Options: models.ClearingOptions{IncludeLedger: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.ClearingResponse](t, w)
	assert.Equal(t, "unit-commitment", resp.Strategy)
	require.Len(t, resp.Ledger, 2)
	assert.InDelta(t, 40, *resp.Ledger[0].Price, 1e-6)
	assert.InDelta(t, 60, *resp.Ledger[1].Price, 1e-6)
}

func TestRunClearing_Errors(t *testing.T) {
	fleetDir := t.TempDir()
	r := newRouter(t, fleetDir)

	noGas := threeUnits(120)
	noGas.Steps[0].FuelPrices = map[string]float64{"lignite": 20, "hard coal": 40}

	badUnit := threeUnits(120)
	badUnit.Units[0].Efficiency = 1.5

	merit := models.ClearingConfig{Strategy: models.StrategyConfig{Name: "merit-order"}}
	negFloor := -1.0

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", `{"scenario":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing scenario", models.ClearingRequest{Config: merit}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown strategy", models.ClearingRequest{
			Scenario: threeUnits(120),
			Config:   models.ClearingConfig{Strategy: models.StrategyConfig{Name: "oracle"}},
		}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"no strategy", models.ClearingRequest{Scenario: threeUnits(120)}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"negative floor", models.ClearingRequest{
			Scenario: threeUnits(120),
			Config:   models.ClearingConfig{Strategy: merit.Strategy, Pricing: models.PricingConfig{Floor: &negFloor}},
		}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"missing fuel price", models.ClearingRequest{Scenario: noGas, Config: merit}, http.StatusUnprocessableEntity, "LOOKUP_FAILED"},
		{"invalid unit", models.ClearingRequest{Scenario: badUnit, Config: merit}, http.StatusBadRequest, "INVALID_INPUT"},
		{"no steps", models.ClearingRequest{Scenario: threeUnits(), Config: merit}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown fleet", models.ClearingRequest{Scenario: threeUnits(120), FleetID: "nope", Config: merit}, http.StatusNotFound, "FLEET_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/clearing", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[models.ErrorResponse](t, w).Error.Code)
		})
	}
}

func TestRunClearing_Fleet(t *testing.T) {
	fleetDir := t.TempDir()
	fleet := "index,technology,capacity,efficiency,operational_cost\nbig,lignite,500,1,5\n"
	require.NoError(t, os.WriteFile(filepath.Join(fleetDir, "single.csv"), []byte(fleet), 0o644))
	r := newRouter(t, fleetDir)

	w := do(t, r, http.MethodPost, "/api/v1/clearing", models.ClearingRequest{
		Scenario: threeUnits(120),
		FleetID:  "single",
		Config:   models.ClearingConfig{Strategy: models.StrategyConfig{Name: "merit-order"}},
		Options:  models.ClearingOptions{IncludeLedger: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.ClearingResponse](t, w)
	assert.InDelta(t, 25, *resp.Ledger[0].Price, 1e-9)
	assert.Equal(t, "big", resp.Ledger[0].PriceSetter)
}

func TestGetLedger_NotFound(t *testing.T) {
	r := newRouter(t, "")
	for _, id := range []string{"not-a-uuid", "2b1f0a4c-5f0e-4a53-9a55-1e6c3d8f7b21"} {
		w := do(t, r, http.MethodGet, "/api/v1/clearing/"+id+"/ledger", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

func TestCompareClearings(t *testing.T) {
	r := newRouter(t, "")

	w := do(t, r, http.MethodPost, "/api/v1/clearing/compare", models.CompareRequest{
		Scenario:   threeUnits(120, 0, 400, 300),
		BaseConfig: models.ClearingConfig{Strategy: models.StrategyConfig{Name: "merit-order"}},
		Variations: []models.ClearingVariation{
			{Name: "lp", Config: models.ClearingConfig{Strategy: models.StrategyConfig{Name: "dispatch"}}},
			{Name: "bad", Config: models.ClearingConfig{Strategy: models.StrategyConfig{Name: "oracle"}}},
			{Name: "low cap", Config: models.ClearingConfig{Pricing: models.PricingConfig{Cap: ptr(50)}}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.CompareResponse](t, w)
	assert.Equal(t, "merit-order", resp.Base.Strategy)
	require.Len(t, resp.Comparison, 3)

	lp := resp.Comparison[0]
	assert.Nil(t, lp.Error)
	assert.Equal(t, "dispatch", lp.Strategy)
	assert.Equal(t, 0, lp.Mismatches)

	bad := resp.Comparison[1]
	require.NotNil(t, bad.Error)
	assert.Equal(t, "INVALID_CONFIG", bad.Error.Code)

	// Capping at 50 moves the 60 step and the scarcity step.
	lowCap := resp.Comparison[2]
	assert.Nil(t, lowCap.Error)
	assert.Equal(t, "merit-order", lowCap.Strategy)
	assert.Equal(t, 2, lowCap.Mismatches)
}

func ptr(v float64) *float64 { return &v }

func TestListStrategies(t *testing.T) {
	w := do(t, newRouter(t, ""), http.MethodGet, "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Strategies []models.StrategyInfo `json:"strategies"`
	}](t, w)
	names := make([]string, len(resp.Strategies))
	for i, s := range resp.Strategies {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"merit-order", "dispatch", "unit-commitment"}, names)
}

func TestListFleets(t *testing.T) {
	dir := t.TempDir()
	fleet := "index,technology,capacity,efficiency,operational_cost\na,lignite,100,0.4,1\nb,oil,20,0.3,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.csv"), []byte(fleet), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("nope\n"), 0o644))

	w := do(t, newRouter(t, dir), http.MethodGet, "/api/v1/fleets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Fleets []models.FleetInfo `json:"fleets"`
	}](t, w)
	require.Len(t, resp.Fleets, 1)
	assert.Equal(t, "de", resp.Fleets[0].ID)
	assert.Equal(t, "de.csv", resp.Fleets[0].File)
	assert.Equal(t, 120.0, resp.Fleets[0].CapacityMW)

	w = do(t, newRouter(t, filepath.Join(dir, "missing")), http.MethodGet, "/api/v1/fleets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fleets":[]}`, w.Body.String())
}

func TestErrorDetail(t *testing.T) {
	ts := h0.Add(3 * time.Hour)
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&model.StepError{TimeStep: ts, Err: fmt.Errorf("solve: %w", model.ErrSolverTimeout)}, http.StatusGatewayTimeout, "SOLVER_TIMEOUT"},
		{&model.StepError{TimeStep: ts, Err: model.ErrSolverFailure}, http.StatusInternalServerError, "SOLVER_FAILURE"},
		{&model.LookupError{Table: "fuel_prices", Key: "oil"}, http.StatusUnprocessableEntity, "LOOKUP_FAILED"},
		{&model.DomainError{Unit: "A", Field: "capacity", Value: -1, Rule: "must be >= 0"}, http.StatusBadRequest, "INVALID_INPUT"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, d := errorDetail(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, d.Code, tt.err.Error())
	}

	_, d := errorDetail(&model.StepError{TimeStep: ts, Err: &model.LookupError{Table: "demand", Key: "demand"}})
	assert.Equal(t, "2020-01-01T03:00:00Z", d.Details["time_step"])
	assert.Equal(t, "demand", d.Details["table"])

	_, d = errorDetail(fmt.Errorf("boom"))
	assert.Nil(t, d.Details)
}
