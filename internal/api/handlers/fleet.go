package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"market-clearing/internal/api/models"
	"market-clearing/internal/data"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FleetHandler lists the unit tables available to fleet_id
type FleetHandler struct {
	fleetDir string
	logger   *logrus.Logger
}

// FleetDir resolves FLEET_DIR, defaulting to examples/fleets under the
// working directory.
func FleetDir() string {
	dir := os.Getenv("FLEET_DIR")
	if dir == "" {
		dir = filepath.Join("examples", "fleets")
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir
}

// NewFleetHandler creates a fleet handler for dir
func NewFleetHandler(dir string, logger *logrus.Logger) *FleetHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("dir", dir).Info("[FleetHandler] using fleet directory")
	return &FleetHandler{fleetDir: dir, logger: logger}
}

// ListFleets handles GET /api/v1/fleets
func (h *FleetHandler) ListFleets(c *gin.Context) {
	fleets := []models.FleetInfo{}

	infos, skipped, err := data.ListFleets(h.fleetDir)
	if err != nil {
		if os.IsNotExist(err) {
			h.logger.WithField("dir", h.fleetDir).Warn("[FleetHandler] fleet directory does not exist")
			c.JSON(http.StatusOK, gin.H{"fleets": fleets})
			return
		}
		abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	for file, err := range skipped {
		h.logger.WithError(err).WithField("file", file).Warn("[FleetHandler] skipping unreadable fleet")
	}

	for _, f := range infos {
		fleets = append(fleets, models.FleetInfo{
			ID:             f.ID,
			File:           filepath.Base(f.File),
			Units:          f.Units,
			CapacityMW:     f.CapacityMW,
			CapacityByTech: f.CapacityByTech,
		})
	}
	c.JSON(http.StatusOK, gin.H{"fleets": fleets})
}
