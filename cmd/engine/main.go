package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/ringbreaker-engine/internal/analysis"
	"github.com/rawblock/ringbreaker-engine/internal/api"
	"github.com/rawblock/ringbreaker-engine/internal/db"
	"github.com/rawblock/ringbreaker-engine/internal/detect"
	"github.com/rawblock/ringbreaker-engine/internal/shadow"
)

func main() {
	// Local development reads a .env file; production sets real env vars.
	_ = godotenv.Load()

	log := setupLogging()
	log.Info("starting RingBreaker Detection Engine")

	cfg := detect.ConfigFromEnv()

	// ─── Optional PostgreSQL persistence ────────────────────────────────
	// The engine is fully functional in-memory; DATABASE_URL adds durable
	// run history and shadow evaluation records.
	// ────────────────────────────────────────────────────────────────────
	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		conn, err := db.Connect(dbURL, log)
		if err != nil {
			log.WithError(err).Warn("failed to connect to PostgreSQL, continuing without persistence")
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.WithError(err).Warn("schema init failed")
			}
			startRetentionJob(dbConn, log)
		}
	}

	var shadowRunner *shadow.Runner
	if os.Getenv("RB_SHADOW_ENABLED") == "true" {
		shadowRunner = shadow.NewRunner(detect.ShadowConfigFromEnv(), dbConn, log)
		log.Info("shadow threshold evaluation enabled")
	}

	hub := api.NewHub(log)
	go hub.Run()

	r := api.SetupRouter(api.Deps{
		Store:    analysis.NewStore(),
		Pipeline: detect.NewPipeline(cfg, log),
		DBStore:  dbConn,
		Hub:      hub,
		Shadow:   shadowRunner,
		Log:      log,
	})

	port := getEnvOrDefault("PORT", "5340")
	log.WithField("port", port).Info("engine listening")
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}

// setupLogging configures logrus from LOG_LEVEL and LOG_FORMAT.
func setupLogging() *logrus.Entry {
	level, err := logrus.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if getEnvOrDefault("LOG_FORMAT", "text") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logrus.WithField("service", "ringbreaker-engine")
}

// startRetentionJob prunes analysis runs older than RETENTION_DAYS once a
// day. Retention of 0 disables pruning.
func startRetentionJob(dbConn *db.PostgresStore, log *logrus.Entry) {
	days, err := strconv.Atoi(getEnvOrDefault("RETENTION_DAYS", "90"))
	if err != nil || days <= 0 {
		log.Info("run retention disabled")
		return
	}

	c := cron.New()
	_, err = c.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		cutoff := time.Now().AddDate(0, 0, -days)
		pruned, err := dbConn.PruneRunsBefore(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("retention prune failed")
			return
		}
		if pruned > 0 {
			log.WithField("runs", pruned).Info("pruned expired analysis runs")
		}
	})
	if err != nil {
		log.WithError(err).Warn("failed to schedule retention job")
		return
	}
	c.Start()
	log.WithField("retention_days", days).Info("retention job scheduled")
}

// getEnvOrDefault returns the env var value or a safe default for non-secret
// settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
