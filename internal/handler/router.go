package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplysim/internal/handler/api"
	"supplysim/internal/handler/middleware"
	"supplysim/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

func NewRouter(engine *gin.Engine, cfg config.Config, statusHandler *api.StatusHandler) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, statusHandler)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(nil, cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(engine *gin.Engine, statusHandler *api.StatusHandler) {
	engine.GET("/health", healthCheck)

	apiGroup := engine.Group("/api")
	{
		addRoutes(apiGroup, []route{
			{Method: http.MethodGet, Path: "/actors", Handler: statusHandler.ListActors},
			{Method: http.MethodGet, Path: "/actors/:ref", Handler: statusHandler.GetActor},
			{Method: http.MethodGet, Path: "/transactions", Handler: statusHandler.ListTransactions},
			{Method: http.MethodGet, Path: "/transactions.csv", Handler: statusHandler.ExportTransactionsCSV},
			{Method: http.MethodGet, Path: "/stats", Handler: statusHandler.GetStats},
			{Method: http.MethodGet, Path: "/retry", Handler: statusHandler.GetRetryBacklog},
		})
	}
}

// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, r.Handler)
		case http.MethodPost:
			g.POST(r.Path, r.Handler)
		case http.MethodPut:
			g.PUT(r.Path, r.Handler)
		case http.MethodPatch:
			g.PATCH(r.Path, r.Handler)
		case http.MethodDelete:
			g.DELETE(r.Path, r.Handler)
		default:
			g.Any(r.Path, r.Handler)
		}
	}
}
