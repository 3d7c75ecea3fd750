package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/ringbreaker-engine/internal/analysis"
	"github.com/rawblock/ringbreaker-engine/internal/db"
	"github.com/rawblock/ringbreaker-engine/internal/detect"
	"github.com/rawblock/ringbreaker-engine/internal/ingest"
	"github.com/rawblock/ringbreaker-engine/internal/report"
	"github.com/rawblock/ringbreaker-engine/internal/shadow"
	"github.com/rawblock/ringbreaker-engine/internal/viz"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// maxUploadBytes bounds ledger uploads; anything larger is rejected before
// parsing.
const maxUploadBytes = 64 << 20

type Handler struct {
	store    *analysis.Store
	pipeline *detect.Pipeline
	dbStore  *db.PostgresStore
	hub      *Hub
	shadow   *shadow.Runner
	log      *logrus.Entry

	// rings at or above this risk score get their own websocket alert
	ringAlertRisk float64
}

// handleUpload ingests a ledger CSV, runs the full detection pipeline and
// atomically replaces the served analysis.
func (h *Handler) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart file field 'file'"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv uploads are accepted"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	if !utf8.Valid(content) {
		uploadsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is not valid UTF-8 text"})
		return
	}

	txs, validation, err := ingest.Parse(bytes.NewReader(content))
	if err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validation.Valid {
		uploadsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "validation failed",
			"validation": validation,
		})
		return
	}

	result, err := h.pipeline.Analyze(c.Request.Context(), txs)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		h.log.WithError(err).Error("analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed", "details": err.Error()})
		return
	}

	h.store.Replace(result, txs)

	uploadsTotal.WithLabelValues("ok").Inc()
	detectionDuration.Observe(result.Summary.DetectionTimeSeconds)
	suspiciousFlagged.Set(float64(result.Summary.SuspiciousAccountsFlagged))
	ringsDetected.Set(float64(result.Summary.FraudRingsDetected))

	hashed, err := report.Hash(result)
	if err != nil {
		h.log.WithError(err).Warn("failed to hash report")
	}

	h.persistAndShadow(fileHeader.Filename, txs, result, hashed, validation)

	if h.hub != nil {
		top := 0.0
		for _, ring := range result.FraudRings {
			if ring.RiskScore > top {
				top = ring.RiskScore
			}
		}
		h.hub.BroadcastAlert(AnalysisAlert{
			Filename:          fileHeader.Filename,
			SuspiciousFlagged: result.Summary.SuspiciousAccountsFlagged,
			RingsDetected:     result.Summary.FraudRingsDetected,
			TopRiskScore:      top,
		})
		for _, ring := range result.FraudRings {
			if ring.RiskScore >= h.ringAlertRisk {
				h.hub.BroadcastRingAlert(RingAlert{
					RingID:      ring.RingID,
					PatternType: ring.PatternType,
					MemberCount: len(ring.MemberAccounts),
					RiskScore:   ring.RiskScore,
				})
			}
		}
	}

	resp := gin.H{
		"validation": validation,
		"analysis":   result,
	}
	if hashed != nil {
		resp["report_hash"] = hashed.ReportHash
	}
	c.JSON(http.StatusOK, resp)
}

// persistAndShadow saves the run and kicks off the shadow comparison. Both
// happen after the production verdict is final; neither can fail the upload.
func (h *Handler) persistAndShadow(filename string, txs []models.Transaction, result *models.AnalysisResult, hashed *report.HashedReport, validation *ingest.ValidationResult) {
	if h.dbStore == nil && h.shadow == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		runID := uuid.Nil
		if h.dbStore != nil {
			meta := db.RunMeta{
				Filename:         filename,
				TransactionCount: validation.RowCount,
				AccountCount:     validation.AccountCount,
			}
			if hashed != nil {
				meta.ReportHash = hashed.ReportHash
			}
			id, err := h.dbStore.SaveAnalysisRun(ctx, meta, result)
			if err != nil {
				h.log.WithError(err).Warn("failed to persist analysis run")
			} else {
				runID = id
			}
		}

		if h.shadow != nil {
			h.shadow.Compare(ctx, runID, txs, result)
		}
	}()
}

// handleGetRings returns every fraud ring from the latest analysis.
func (h *Handler) handleGetRings(c *gin.Context) {
	rings, err := h.store.Rings()
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fraud_rings": rings, "count": len(rings)})
}

// handleGetRing returns one ring by its RING_NNN identifier.
func (h *Handler) handleGetRing(c *gin.Context) {
	ring, err := h.store.RingByID(c.Param("ring_id"))
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// handleGetAccount returns the verdict for one flagged account.
func (h *Handler) handleGetAccount(c *gin.Context) {
	acc, err := h.store.AccountByID(c.Param("account_id"))
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// handleCytoscape projects the latest analysis onto the Cytoscape element
// model for the dashboard graph view.
func (h *Handler) handleCytoscape(c *gin.Context) {
	snap, err := h.store.Latest()
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, viz.BuildCytoscape(snap.Transactions, snap.Result, h.log))
}

// handleHashReport fingerprints the latest findings for evidentiary filing.
func (h *Handler) handleHashReport(c *gin.Context) {
	snap, err := h.store.Latest()
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	hashed, err := report.Hash(snap.Result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash report"})
		return
	}
	c.JSON(http.StatusOK, hashed)
}

// handleHealth returns engine status and capabilities for service discovery.
func (h *Handler) handleHealth(c *gin.Context) {
	_, err := h.store.Latest()

	c.JSON(http.StatusOK, gin.H{
		"status":    "operational",
		"engine":    "RingBreaker Detection Engine v1.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"capabilities": gin.H{
			"cycle_detection":    true,
			"smurfing_detection": true,
			"shell_chains":       true,
			"shadow_mode":        h.shadow != nil,
			"cytoscape_view":     true,
			"hash_reports":       true,
		},
		"db_connected":    h.dbStore != nil,
		"analysis_loaded": err == nil,
	})
}

func (h *Handler) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, analysis.ErrNoAnalysis):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "hint": "POST a ledger to /api/upload first"})
	case errors.Is(err, analysis.ErrRingNotFound), errors.Is(err, analysis.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
