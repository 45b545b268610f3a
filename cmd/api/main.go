package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"market-clearing/internal/api/handlers"
	"market-clearing/internal/api/middleware"
	"market-clearing/internal/data"
	"market-clearing/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	logger := logrus.New()
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	// Set up Gin router
	router := gin.New()

	// Apply middleware
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler(logger))

	m := metrics.New(prometheus.DefaultRegisterer)
	results := data.GetResultCache()
	defer results.Close()

	// Initialize handlers
	fleetDir := handlers.FleetDir()
	clearingHandler := handlers.NewClearingHandler(logger, m, results, fleetDir)
	fleetHandler := handlers.NewFleetHandler(fleetDir, logger)
	strategyHandler := handlers.NewStrategyHandler()

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "stored_results": results.Len()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/clearing", clearingHandler.RunClearing)
		api.GET("/clearing/:id/ledger", clearingHandler.GetLedger)
		api.POST("/clearing/compare", clearingHandler.CompareClearings)

		api.GET("/strategies", strategyHandler.ListStrategies)
		api.GET("/fleets", fleetHandler.ListFleets)
	}

	// Serve static files from web/dist (if it exists)
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); err == nil {
		router.Static("/assets", staticDir+"/assets")
		router.StaticFile("/favicon.ico", staticDir+"/favicon.ico")

		// Serve index.html for all non-API routes (SPA routing)
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
				return
			}
			c.File(staticDir + "/index.html")
		})
		logger.WithField("dir", staticDir).Info("Serving static files")
	} else {
		logger.WithField("dir", staticDir).Info("Static directory not found, skipping static file serving")
	}

	addr := fmt.Sprintf(":%s", port)
	logger.WithField("addr", addr).Info("Starting API server")
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}
