package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// HashedReport is the evidentiary fingerprint of one analysis: the SHA-256
// digest of a canonical JSON rendering of the findings, suitable for filing
// alongside a suspicious-activity report. Equal findings always hash equal.
type HashedReport struct {
	ReportHash  string `json:"report_hash"`
	Algorithm   string `json:"algorithm"`
	GeneratedAt string `json:"generated_at"`
}

// canonicalPayload pins field order. Slices keep the deterministic ordering
// the pipeline guarantees, and json.Marshal sorts nothing else because no
// maps appear in the structure.
type canonicalPayload struct {
	SuspiciousAccounts []models.SuspiciousAccount `json:"suspicious_accounts"`
	FraudRings         []models.FraudRing         `json:"fraud_rings"`
	Summary            reportSummary              `json:"summary"`
}

// reportSummary excludes the wall-clock timing fields: two identical
// uploads must produce the same hash even when one run was slower.
type reportSummary struct {
	TotalAccountsAnalyzed     int `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged int `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int `json:"fraud_rings_detected"`
}

// Hash fingerprints the analysis result.
func Hash(result *models.AnalysisResult) (*HashedReport, error) {
	payload := canonicalPayload{
		SuspiciousAccounts: result.SuspiciousAccounts,
		FraudRings:         result.FraudRings,
		Summary: reportSummary{
			TotalAccountsAnalyzed:     result.Summary.TotalAccountsAnalyzed,
			SuspiciousAccountsFlagged: result.Summary.SuspiciousAccountsFlagged,
			FraudRingsDetected:        result.Summary.FraudRingsDetected,
		},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	digest := sha256.Sum256(encoded)
	return &HashedReport{
		ReportHash:  hex.EncodeToString(digest[:]),
		Algorithm:   "sha256",
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
