package models

import (
	"sort"
	"strings"
)

// Pattern tags attached to suspicious accounts and smurfing records.
const (
	PatternFanIn          = "fan_in"
	PatternFanOut         = "fan_out"
	PatternFanInTemporal  = "fan_in_temporal"
	PatternFanOutTemporal = "fan_out_temporal"
	PatternShellChain     = "shell_chain"
	PatternHighVelocity   = "high_velocity"
	PatternHighValue      = "high_value_outlier"
)

// Ring pattern types.
const (
	RingPatternCycle    = "cycle"
	RingPatternSmurfing = "smurfing"
	RingPatternShell    = "shell"
	RingPatternMixed    = "mixed"
)

// Cycle is a closed directed walk of 3 to 5 distinct accounts: the classic
// layering signature where funds return to the originating account.
type Cycle []string

// CanonicalKey identifies a cycle independently of its start point or
// traversal direction: the sorted member multiset joined into one string.
// Two cycles with the same key are the same cycle.
func (c Cycle) CanonicalKey() string {
	members := make([]string, len(c))
	copy(members, c)
	sort.Strings(members)
	return strings.Join(members, "\x1f")
}

// SmurfingRecord describes one account exhibiting fan-in or fan-out
// structuring. Patterns holds the matched tags; IsTemporal is set when the
// triggering edges all fall inside the temporal tightness window.
type SmurfingRecord struct {
	AccountID  string   `json:"account_id"`
	Patterns   []string `json:"patterns"`
	InDegree   int      `json:"in_degree"`
	OutDegree  int      `json:"out_degree"`
	IsTemporal bool     `json:"is_temporal"`
}

// ShellChain is an ordered sequence of 3+ consecutively connected shell
// candidate accounts (low total degree, both directions non-zero).
type ShellChain []string

// SuspiciousAccount is the scorer's verdict for one flagged account.
// RingID is empty until the ring grouper stamps it, and stays empty for
// accounts that end up unassigned.
type SuspiciousAccount struct {
	AccountID        string   `json:"account_id"`
	SuspicionScore   float64  `json:"suspicion_score"`
	DetectedPatterns []string `json:"detected_patterns"`
	RingID           string   `json:"ring_id,omitempty"`
}

// FraudRing is a named group of accounts believed to participate in one
// coordinated pattern. Member sets are pairwise disjoint across the rings of
// a single analysis.
type FraudRing struct {
	RingID         string   `json:"ring_id"`
	MemberAccounts []string `json:"member_accounts"`
	PatternType    string   `json:"pattern_type"`
	RiskScore      float64  `json:"risk_score"`
}

// AnalysisSummary carries the headline numbers for one analysis run.
// DetectionTimeSeconds covers only the parallel detector stage;
// ProcessingTimeSeconds is the full upload-to-response wall time.
type AnalysisSummary struct {
	TotalAccountsAnalyzed     int     `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged int     `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int     `json:"fraud_rings_detected"`
	DetectionTimeSeconds      float64 `json:"detection_time_seconds"`
	ProcessingTimeSeconds     float64 `json:"processing_time_seconds"`
}

// AnalysisResult is the complete output of one pipeline run.
type AnalysisResult struct {
	SuspiciousAccounts []SuspiciousAccount `json:"suspicious_accounts"`
	FraudRings         []FraudRing         `json:"fraud_rings"`
	Summary            AnalysisSummary     `json:"summary"`
}
