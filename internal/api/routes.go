package api

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/ringbreaker-engine/internal/analysis"
	"github.com/rawblock/ringbreaker-engine/internal/db"
	"github.com/rawblock/ringbreaker-engine/internal/detect"
	"github.com/rawblock/ringbreaker-engine/internal/shadow"
)

// Deps carries everything the router needs. DB and shadow runner are
// optional; the engine serves from memory without them.
type Deps struct {
	Store    *analysis.Store
	Pipeline *detect.Pipeline
	DBStore  *db.PostgresStore
	Hub      *Hub
	Shadow   *shadow.Runner
	Log      *logrus.Entry
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	// CORS — configurable via ALLOWED_ORIGINS env var.
	// Production: ALLOWED_ORIGINS=https://rawblock.net,https://www.rawblock.net
	// Development: leave empty for *.
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With"}
	corsCfg.MaxAge = 12 * time.Hour
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" && origins != "*" {
		corsCfg.AllowCredentials = true
		corsCfg.AllowOrigins = splitAndTrim(origins)
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))
	r.Use(MetricsMiddleware())

	handler := &Handler{
		store:         deps.Store,
		pipeline:      deps.Pipeline,
		dbStore:       deps.DBStore,
		hub:           deps.Hub,
		shadow:        deps.Shadow,
		log:           deps.Log.WithField("subsystem", "api"),
		ringAlertRisk: ringAlertThreshold(),
	}

	uploadLimiter := NewRateLimiter(10, 3)

	api := r.Group("/api", AuthMiddleware())
	{
		api.POST("/upload", uploadLimiter.Middleware(), handler.handleUpload)
		api.GET("/rings", handler.handleGetRings)
		api.GET("/rings/:ring_id", handler.handleGetRing)
		api.GET("/accounts/:account_id", handler.handleGetAccount)
		api.GET("/graph/cytoscape", handler.handleCytoscape)
		api.POST("/hash-report", handler.handleHashReport)
	}

	r.GET("/health", handler.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.Hub != nil {
		r.GET("/api/stream", deps.Hub.Subscribe)
	}

	// Serve static dashboard
	r.Static("/dashboard", "./public")

	return r
}

// ringAlertThreshold reads RING_ALERT_RISK (0..100); defaults to 80.
func ringAlertThreshold() float64 {
	raw := os.Getenv("RING_ALERT_RISK")
	if raw == "" {
		return 80
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 100 {
		return 80
	}
	return v
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
