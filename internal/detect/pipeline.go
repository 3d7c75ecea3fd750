package detect

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Detection Pipeline
//
// Orchestrates one analysis run:
//
//   build graph → [cycles ‖ smurfing ‖ shells] → FP filter → score → group
//
// The three detectors are pure reads over the same immutable graph snapshot,
// so they run as three goroutines joined before the filter stage. Failure
// policy is fail-fast: the first detector error cancels the other two and
// fails the whole run — a detector silently degrading to an empty result
// would understate risk with no signal to the caller. The sequential stages
// each consume the prior stage's complete output; there is nothing to
// parallelize in their linear scans.
//
// Before grouping, structures that are mostly false positives are dropped
// and surviving structures have excluded members stripped (kept only if at
// least 2 members remain). Scoring, by contrast, works on the raw structures
// minus the excluded accounts.

// Pipeline runs analyses under one threshold configuration.
type Pipeline struct {
	cfg Config
	log *logrus.Entry
}

// NewPipeline creates a pipeline with the given thresholds.
func NewPipeline(cfg Config, log *logrus.Entry) *Pipeline {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Config returns the pipeline's threshold configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// detectorOutput carries the joined results of the parallel stage.
type detectorOutput struct {
	cycles   []models.Cycle
	smurfing []models.SmurfingRecord
	shells   []models.ShellChain
}

// Analyze runs the full pipeline over one transaction set and returns the
// scored accounts, the fraud rings and the summary. The input records and
// the graph built from them are never mutated.
func (p *Pipeline) Analyze(ctx context.Context, txs []models.Transaction) (*models.AnalysisResult, error) {
	started := time.Now()

	g := graph.Build(txs)

	detectStart := time.Now()
	out, err := p.runDetectors(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("detector stage: %w", err)
	}
	detectionTime := time.Since(detectStart)

	p.log.WithFields(logrus.Fields{
		"accounts": g.NumNodes(),
		"cycles":   len(out.cycles),
		"smurfing": len(out.smurfing),
		"shells":   len(out.shells),
	}).Debug("detectors joined")

	suspicious := make(map[string]struct{})
	for id := range CycleAccounts(out.cycles) {
		suspicious[id] = struct{}{}
	}
	for id := range SmurfingAccounts(out.smurfing) {
		suspicious[id] = struct{}{}
	}
	for id := range ShellAccounts(out.shells) {
		suspicious[id] = struct{}{}
	}

	excluded := FilterFalsePositives(suspicious, g, txs, p.cfg)

	scored := ScoreAccounts(g, txs, out.cycles, out.smurfing, out.shells, excluded, p.cfg)

	cleanCycles := cleanStructures(out.cycles, excluded)
	cleanShells := cleanStructures(out.shells, excluded)
	cleanSmurfing := make([]models.SmurfingRecord, 0, len(out.smurfing))
	for _, r := range out.smurfing {
		if _, ok := excluded[r.AccountID]; !ok {
			cleanSmurfing = append(cleanSmurfing, r)
		}
	}

	rings, stamped := GroupRings(cleanCycles, cleanSmurfing, cleanShells, scored)

	result := &models.AnalysisResult{
		SuspiciousAccounts: stamped,
		FraudRings:         rings,
		Summary: models.AnalysisSummary{
			TotalAccountsAnalyzed:     g.NumNodes(),
			SuspiciousAccountsFlagged: len(stamped),
			FraudRingsDetected:        len(rings),
			DetectionTimeSeconds:      roundSeconds(detectionTime),
			ProcessingTimeSeconds:     roundSeconds(time.Since(started)),
		},
	}

	p.log.WithFields(logrus.Fields{
		"flagged":  len(stamped),
		"rings":    len(rings),
		"excluded": len(excluded),
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("analysis complete")

	return result, nil
}

// runDetectors fans the three detectors out over the immutable graph and
// joins them, propagating the first failure and cancelling the others.
func (p *Pipeline) runDetectors(ctx context.Context, g *graph.Graph) (*detectorOutput, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &detectorOutput{}
	errs := make(chan error, 3)

	go func() {
		cycles, err := FindCycles(ctx, g, p.cfg)
		if err == nil {
			out.cycles = cycles
		}
		errs <- err
	}()
	go func() {
		smurfing, err := DetectSmurfing(ctx, g, p.cfg)
		if err == nil {
			out.smurfing = smurfing
		}
		errs <- err
	}()
	go func() {
		shells, err := DetectShellChains(ctx, g, p.cfg)
		if err == nil {
			out.shells = shells
		}
		errs <- err
	}()

	var firstErr error
	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// cleanStructures drops structures whose membership is majority
// false-positive, strips excluded members from the rest, and keeps a
// structure only when at least 2 members survive.
func cleanStructures[S ~[]string](structures []S, excluded map[string]struct{}) []S {
	cleaned := make([]S, 0, len(structures))
	for _, s := range structures {
		hit := 0
		for _, id := range s {
			if _, ok := excluded[id]; ok {
				hit++
			}
		}
		if float64(hit) > float64(len(s))/2 {
			continue
		}
		kept := make(S, 0, len(s))
		for _, id := range s {
			if _, ok := excluded[id]; !ok {
				kept = append(kept, id)
			}
		}
		if len(kept) >= 2 {
			cleaned = append(cleaned, kept)
		}
	}
	return cleaned
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
