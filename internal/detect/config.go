package detect

import (
	"os"
	"strconv"
	"time"
)

// Detection Thresholds
//
// Every cut-off used by the detectors, the false-positive rules and the
// scorer lives here. The values are a business calibration, not a structural
// property of the algorithms, so they are tunable via environment variables
// (prefix RB_) and a second Config can run in shadow mode for threshold
// experiments (see internal/shadow).

// Config holds all tunable detection parameters.
type Config struct {
	// Cycle detector
	MaxCycleLength int // longest cycle to enumerate (min length is fixed at 3)
	MaxCycles      int // hard cap on raw cycles collected before dedup

	// Smurfing detector
	SmurfMaxDegree      int           // nodes above this total degree are left to the FP filter
	SmurfFanThreshold   int           // in/out degree that qualifies as fan-in / fan-out
	SmurfCVThreshold    float64       // coefficient of variation below which inflows look like billing
	SmurfTemporalWindow time.Duration // span that upgrades a fan pattern to _temporal

	// Shell-chain detector
	ShellMinDegree int // candidate total degree lower bound
	ShellMaxDegree int // candidate total degree upper bound
	ShellMinChain  int // shortest chain worth emitting
	ShellMaxChain  int // extension stops at this length

	// False-positive rules
	FPHubInDegree          int     // rule 1: institutional hub in-degree
	FPHubUniqueSenders     int     // rule 1: distinct senders
	FPHubOutflowRatio      float64 // rule 1: outflow/inflow below this = one-way collector
	FPPayrollOutDegree     int     // rule 2: payroll out-degree
	FPPayrollMaxInDegree   int     // rule 2: payroll in-degree ceiling
	FPPayrollCVThreshold   float64 // rule 2: sent-amount dispersion ceiling
	FPPassThroughSentCount int     // rule 3: sent tx count
	FPPassThroughInDegree  int     // rule 3: in-degree
	FPStaticMaxPatterns    int     // rule 4: distinct (sender, amount) pairs below this
	FPStaticMinRepeats     int     // rule 4: repeats of the dominant pair above this

	// Scorer
	ScoreCycleWeight    float64
	ScoreSmurfWeight    float64
	ScoreShellWeight    float64
	ScoreVelocityWeight float64
	ScoreOutlierWeight  float64
	VelocityWindow      time.Duration // own-transaction span for the velocity bonus
	VelocityMinTx       int           // minimum own transactions for the velocity bonus
	OutlierMultiple     float64       // largest tx vs dataset mean multiple
	CompositeMultiplier float64       // applied when >=2 major pattern categories corroborate
	MinScore            float64       // accounts scoring below this are dropped (0 = keep all)
}

// DefaultConfig returns the production calibration.
func DefaultConfig() Config {
	return Config{
		MaxCycleLength: 5,
		MaxCycles:      5000,

		SmurfMaxDegree:      100,
		SmurfFanThreshold:   10,
		SmurfCVThreshold:    0.05,
		SmurfTemporalWindow: 72 * time.Hour,

		ShellMinDegree: 2,
		ShellMaxDegree: 4,
		ShellMinChain:  3,
		ShellMaxChain:  5,

		FPHubInDegree:          20,
		FPHubUniqueSenders:     15,
		FPHubOutflowRatio:      0.20,
		FPPayrollOutDegree:     20,
		FPPayrollMaxInDegree:   5,
		FPPayrollCVThreshold:   0.05,
		FPPassThroughSentCount: 50,
		FPPassThroughInDegree:  30,
		FPStaticMaxPatterns:    3,
		FPStaticMinRepeats:     5,

		ScoreCycleWeight:    50,
		ScoreSmurfWeight:    30,
		ScoreShellWeight:    25,
		ScoreVelocityWeight: 15,
		ScoreOutlierWeight:  10,
		VelocityWindow:      72 * time.Hour,
		VelocityMinTx:       2,
		OutlierMultiple:     5,
		CompositeMultiplier: 1.25,
		MinScore:            0,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies any RB_* overrides.
func ConfigFromEnv() Config {
	return configFromEnv("RB_")
}

// ShadowConfigFromEnv builds the experimental threshold set from
// RB_SHADOW_* variables, falling back to defaults for anything unset.
func ShadowConfigFromEnv() Config {
	return configFromEnv("RB_SHADOW_")
}

func configFromEnv(prefix string) Config {
	cfg := DefaultConfig()

	envInt(prefix+"MAX_CYCLE_LENGTH", &cfg.MaxCycleLength)
	envInt(prefix+"MAX_CYCLES", &cfg.MaxCycles)
	envInt(prefix+"SMURF_MAX_DEGREE", &cfg.SmurfMaxDegree)
	envInt(prefix+"SMURF_FAN_THRESHOLD", &cfg.SmurfFanThreshold)
	envFloat(prefix+"SMURF_CV_THRESHOLD", &cfg.SmurfCVThreshold)
	envHours(prefix+"SMURF_TEMPORAL_HOURS", &cfg.SmurfTemporalWindow)
	envInt(prefix+"SHELL_MIN_DEGREE", &cfg.ShellMinDegree)
	envInt(prefix+"SHELL_MAX_DEGREE", &cfg.ShellMaxDegree)
	envInt(prefix+"SHELL_MIN_CHAIN", &cfg.ShellMinChain)
	envInt(prefix+"SHELL_MAX_CHAIN", &cfg.ShellMaxChain)
	envInt(prefix+"FP_HUB_IN_DEGREE", &cfg.FPHubInDegree)
	envInt(prefix+"FP_HUB_UNIQUE_SENDERS", &cfg.FPHubUniqueSenders)
	envFloat(prefix+"FP_HUB_OUTFLOW_RATIO", &cfg.FPHubOutflowRatio)
	envInt(prefix+"FP_PAYROLL_OUT_DEGREE", &cfg.FPPayrollOutDegree)
	envInt(prefix+"FP_PAYROLL_MAX_IN_DEGREE", &cfg.FPPayrollMaxInDegree)
	envFloat(prefix+"FP_PAYROLL_CV_THRESHOLD", &cfg.FPPayrollCVThreshold)
	envInt(prefix+"FP_PASSTHROUGH_SENT_COUNT", &cfg.FPPassThroughSentCount)
	envInt(prefix+"FP_PASSTHROUGH_IN_DEGREE", &cfg.FPPassThroughInDegree)
	envInt(prefix+"FP_STATIC_MAX_PATTERNS", &cfg.FPStaticMaxPatterns)
	envInt(prefix+"FP_STATIC_MIN_REPEATS", &cfg.FPStaticMinRepeats)
	envFloat(prefix+"SCORE_CYCLE_WEIGHT", &cfg.ScoreCycleWeight)
	envFloat(prefix+"SCORE_SMURF_WEIGHT", &cfg.ScoreSmurfWeight)
	envFloat(prefix+"SCORE_SHELL_WEIGHT", &cfg.ScoreShellWeight)
	envFloat(prefix+"SCORE_VELOCITY_WEIGHT", &cfg.ScoreVelocityWeight)
	envFloat(prefix+"SCORE_OUTLIER_WEIGHT", &cfg.ScoreOutlierWeight)
	envHours(prefix+"VELOCITY_WINDOW_HOURS", &cfg.VelocityWindow)
	envInt(prefix+"VELOCITY_MIN_TX", &cfg.VelocityMinTx)
	envFloat(prefix+"OUTLIER_MULTIPLE", &cfg.OutlierMultiple)
	envFloat(prefix+"COMPOSITE_MULTIPLIER", &cfg.CompositeMultiplier)
	envFloat(prefix+"MIN_SCORE", &cfg.MinScore)

	return cfg
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envHours(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = time.Duration(n) * time.Hour
		}
	}
}
