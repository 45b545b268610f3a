package handlers

import (
	"net/http"

	"market-clearing/internal/api/models"
	"market-clearing/internal/strategy"

	"github.com/gin-gonic/gin"
)

// StrategyHandler handles strategy-related requests
type StrategyHandler struct{}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler() *StrategyHandler {
	return &StrategyHandler{}
}

// Strategies describes every strategy strategy.New accepts.
func Strategies() []models.StrategyInfo {
	return []models.StrategyInfo{
		{
			Name:        strategy.NameMeritOrder,
			Description: "Sorts units by marginal cost and takes the cost of the first unit that covers effective demand. Time steps are cleared independently.",
			Parameters:  []models.ParameterInfo{},
		},
		{
			Name:        strategy.NameDispatch,
			Description: "Least-cost economic dispatch as a linear program. The price is the dual of the demand constraint.",
			Parameters:  []models.ParameterInfo{},
		},
		{
			Name:        strategy.NameUnitCommitment,
			Description: "Mixed-integer dispatch with on/off decisions and minimum stable output. The price is the demand dual with commitments fixed.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "min_output_fraction",
					Type:        "float",
					Description: "Minimum stable output as a share of capacity for units that do not set their own",
					Default:     strategy.DefaultMinOutputFraction,
				},
				{
					Name:        "horizon",
					Type:        "int",
					Description: "Time steps per joint model (0 = whole run in one model)",
					Default:     0,
				},
			},
		},
	}
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": Strategies()})
}
