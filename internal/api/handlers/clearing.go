package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"market-clearing/internal/analysis"
	"market-clearing/internal/api/models"
	"market-clearing/internal/backtest"
	"market-clearing/internal/config"
	"market-clearing/internal/data"
	"market-clearing/internal/metrics"
	"market-clearing/internal/model"
	"market-clearing/internal/pricing"
	"market-clearing/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultSolverTimeout applies when a request does not set solver.timeout_ms.
const DefaultSolverTimeout = 30 * time.Second

// compareWorkers bounds the variations cleared at once.
const compareWorkers = 4

// ClearingHandler handles clearing runs and their stored results
type ClearingHandler struct {
	engine   *backtest.Engine
	results  *data.ResultCache
	fleetDir string
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewClearingHandler creates a clearing handler. m may be nil.
func NewClearingHandler(logger *logrus.Logger, m *metrics.Metrics, results *data.ResultCache, fleetDir string) *ClearingHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if results == nil {
		results = data.GetResultCache()
	}
	return &ClearingHandler{
		engine:   backtest.New(logger, m),
		results:  results,
		fleetDir: fleetDir,
		logger:   logger,
		metrics:  m,
	}
}

// RunClearing handles POST /api/v1/clearing
func (h *ClearingHandler) RunClearing(c *gin.Context) {
	var req models.ClearingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	in, err := h.inputs(req.Scenario, req.FleetID)
	if err != nil {
		writeInputError(c, err)
		return
	}

	strat, err := h.buildStrategy(toConfig(req.Config))
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	res, err := h.engine.Run(c.Request.Context(), in, strat)
	if err != nil {
		writeError(c, err)
		return
	}

	id := h.results.Put(res)
	h.logger.WithFields(logrus.Fields{
		"id":       id,
		"strategy": res.Strategy,
		"steps":    res.Summary.Steps,
	}).Info("[ClearingHandler] run stored")

	response := models.ClearingResponse{
		ID:           id,
		Status:       "completed",
		Strategy:     res.Strategy,
		Summary:      toSummary(res),
		Accuracy:     toAccuracy(analysis.ComputeAccuracy(res.Ledger)),
		PriceSetters: toSetters(analysis.RankPriceSetters(res.Ledger)),
	}
	if req.Options.IncludeLedger {
		response.Ledger = toLedger(res.Ledger, req.Options.IncludeDispatch)
	}
	c.JSON(http.StatusOK, response)
}

// GetLedger handles GET /api/v1/clearing/:id/ledger
//
// The ledger is returned as CSV unless format=json is given. dispatch=true
// returns the long-format dispatch table instead.
func (h *ClearingHandler) GetLedger(c *gin.Context) {
	res, ok := h.results.Get(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, "NOT_FOUND", "no stored result with this id (it may have expired)")
		return
	}

	if c.Query("format") == "json" {
		withDispatch, _ := strconv.ParseBool(c.Query("dispatch"))
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "ledger": toLedger(res.Ledger, withDispatch)})
		return
	}

	decimals := backtest.DefaultPriceDecimals
	if v := c.Query("decimals"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 || d > 8 {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", "decimals must be an integer in [0, 8]")
			return
		}
		decimals = d
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	var err error
	if withDispatch, _ := strconv.ParseBool(c.Query("dispatch")); withDispatch {
		c.Header("Content-Disposition", `attachment; filename="dispatch.csv"`)
		c.Status(http.StatusOK)
		err = backtest.WriteDispatch(c.Writer, res.Ledger, res.Units)
	} else {
		c.Header("Content-Disposition", `attachment; filename="prices.csv"`)
		c.Status(http.StatusOK)
		err = backtest.WriteLedger(c.Writer, res.Ledger, decimals)
	}
	if err != nil {
		h.logger.WithError(err).Error("[ClearingHandler] failed to write ledger")
	}
}

// CompareClearings handles POST /api/v1/clearing/compare
//
// The base config is cleared first; each variation is merged onto it and its
// prices are reconciled against the base run.
func (h *ClearingHandler) CompareClearings(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	in, err := h.inputs(req.Scenario, req.FleetID)
	if err != nil {
		writeInputError(c, err)
		return
	}

	ctx := c.Request.Context()
	base := toConfig(req.BaseConfig)
	baseStrat, err := h.buildStrategy(base)
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}
	baseRes, err := h.engine.Run(ctx, in, baseStrat)
	if err != nil {
		writeError(c, err)
		return
	}
	baseClearings := baseRes.Clearings()

	tol := req.Tolerance
	if tol <= 0 {
		tol = 1e-6
	}

	comparison := make([]models.ComparisonResult, len(req.Variations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(compareWorkers)
	for i, variation := range req.Variations {
		i, variation := i, variation
		g.Go(func() error {
			comparison[i] = h.runVariation(gctx, in, config.Merge(base, toConfig(variation.Config)), variation.Name, baseClearings, tol)
			return nil
		})
	}
	_ = g.Wait()

	c.JSON(http.StatusOK, models.CompareResponse{
		Base:       summarizeRun("base", baseRes),
		Comparison: comparison,
	})
}

func (h *ClearingHandler) runVariation(ctx context.Context, in model.ClearingInputs, cfg config.Config, name string, base []model.Clearing, tol float64) models.ComparisonResult {
	out := models.ComparisonResult{Name: name, Strategy: cfg.Strategy.Name}

	strat, err := h.buildStrategy(cfg)
	if err != nil {
		out.Error = &models.ErrorDetail{Code: "INVALID_CONFIG", Message: err.Error()}
		return out
	}
	res, err := h.engine.Run(ctx, in, strat)
	if err != nil {
		_, d := errorDetail(err)
		out.Error = &d
		h.logger.WithError(err).WithField("variation", name).Warn("[ClearingHandler] variation failed")
		return out
	}

	out = summarizeRun(name, res)
	out.Mismatches = len(pricing.Reconcile(base, res.Clearings(), tol))
	return out
}

func summarizeRun(name string, res *backtest.Result) models.ComparisonResult {
	s := toSummary(res)
	return models.ComparisonResult{
		Name:     name,
		Strategy: res.Strategy,
		Summary:  &s,
		Accuracy: toAccuracy(analysis.ComputeAccuracy(res.Ledger)),
	}
}

func (h *ClearingHandler) inputs(scenario *data.Scenario, fleetID string) (model.ClearingInputs, error) {
	if scenario == nil {
		return model.ClearingInputs{}, errors.New("scenario is required")
	}
	if fleetID != "" {
		if h.fleetDir == "" {
			return model.ClearingInputs{}, errors.New("fleet_id given but no fleet directory is configured")
		}
		units, err := data.LoadFleet(h.fleetDir, fleetID)
		if err != nil {
			return model.ClearingInputs{}, err
		}
		scenario = scenario.WithUnits(units)
	}
	if len(scenario.Steps) == 0 {
		return model.ClearingInputs{}, errors.New("scenario has no steps")
	}
	return scenario.Inputs()
}

func (h *ClearingHandler) buildStrategy(cfg config.Config) (strategy.Strategy, error) {
	if cfg.Strategy.Name == "" {
		return nil, errors.New("strategy.name is required")
	}
	if err := cfg.Policy().Validate(); err != nil {
		return nil, err
	}
	if cfg.Solver.Timeout == 0 {
		cfg.Solver.Timeout = DefaultSolverTimeout
	}
	if cfg.Solver.Timeout < 0 || cfg.Solver.MaxRetries < 0 || cfg.Solver.MaxNodes < 0 {
		return nil, errors.New("solver settings must be >= 0")
	}
	deps := cfg.StrategyDeps(strategy.Deps{Logger: h.logger, Metrics: h.metrics})
	return strategy.New(cfg.Strategy.Name, cfg.Strategy.Params, deps)
}
