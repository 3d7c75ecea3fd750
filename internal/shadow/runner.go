package shadow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/ringbreaker-engine/internal/db"
	"github.com/rawblock/ringbreaker-engine/internal/detect"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Shadow Threshold Evaluation
//
// Runs a candidate threshold configuration against every production upload
// without ever affecting the served result. Candidate thresholds observe
// real traffic for a while before anyone promotes them; the divergence log
// and the shadow_runs table are the observation record.

type Runner struct {
	pipeline *detect.Pipeline
	store    *db.PostgresStore
	log      *logrus.Entry
}

// Divergence captures the diff between the production and shadow verdicts on
// one upload.
type Divergence struct {
	FlaggedProduction int       `json:"flagged_production"`
	FlaggedShadow     int       `json:"flagged_shadow"`
	RingsProduction   int       `json:"rings_production"`
	RingsShadow       int       `json:"rings_shadow"`
	OnlyInProduction  []string  `json:"only_in_production"`
	OnlyInShadow      []string  `json:"only_in_shadow"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewRunner builds a shadow runner around the candidate configuration.
// The db store may be nil; divergences are then only logged.
func NewRunner(cfg detect.Config, store *db.PostgresStore, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("subsystem", "shadow")
	return &Runner{
		pipeline: detect.NewPipeline(cfg, log),
		store:    store,
		log:      log,
	}
}

// Compare re-analyzes the upload under the candidate thresholds and records
// how the verdict differs from production. Runs in the background after the
// production response is already out, so failures are logged, not returned.
func (r *Runner) Compare(ctx context.Context, runID uuid.UUID, txs []models.Transaction, production *models.AnalysisResult) {
	shadowResult, err := r.pipeline.Analyze(ctx, txs)
	if err != nil {
		r.log.WithError(err).Warn("shadow analysis failed")
		return
	}

	d := diff(production, shadowResult)

	if len(d.OnlyInProduction) > 0 || len(d.OnlyInShadow) > 0 {
		r.log.WithFields(logrus.Fields{
			"run_id":             runID,
			"flagged_production": d.FlaggedProduction,
			"flagged_shadow":     d.FlaggedShadow,
			"only_in_production": d.OnlyInProduction,
			"only_in_shadow":     d.OnlyInShadow,
		}).Warn("shadow divergence")
	} else {
		r.log.WithField("run_id", runID).Debug("shadow agrees with production")
	}

	if r.store == nil {
		return
	}
	err = r.store.SaveShadowRun(ctx, runID, db.ShadowDivergence{
		FlaggedProduction: d.FlaggedProduction,
		FlaggedShadow:     d.FlaggedShadow,
		RingsProduction:   d.RingsProduction,
		RingsShadow:       d.RingsShadow,
		OnlyInProduction:  d.OnlyInProduction,
		OnlyInShadow:      d.OnlyInShadow,
	})
	if err != nil {
		r.log.WithError(err).Warn("failed to persist shadow run")
	}
}

func diff(production, shadow *models.AnalysisResult) Divergence {
	prodSet := make(map[string]struct{}, len(production.SuspiciousAccounts))
	for _, acc := range production.SuspiciousAccounts {
		prodSet[acc.AccountID] = struct{}{}
	}
	shadowSet := make(map[string]struct{}, len(shadow.SuspiciousAccounts))
	for _, acc := range shadow.SuspiciousAccounts {
		shadowSet[acc.AccountID] = struct{}{}
	}

	onlyProd := []string{}
	for _, acc := range production.SuspiciousAccounts {
		if _, ok := shadowSet[acc.AccountID]; !ok {
			onlyProd = append(onlyProd, acc.AccountID)
		}
	}
	onlyShadow := []string{}
	for _, acc := range shadow.SuspiciousAccounts {
		if _, ok := prodSet[acc.AccountID]; !ok {
			onlyShadow = append(onlyShadow, acc.AccountID)
		}
	}

	return Divergence{
		FlaggedProduction: len(prodSet),
		FlaggedShadow:     len(shadowSet),
		RingsProduction:   len(production.FraudRings),
		RingsShadow:       len(shadow.FraudRings),
		OnlyInProduction:  onlyProd,
		OnlyInShadow:      onlyShadow,
		CreatedAt:         time.Now().UTC(),
	}
}
