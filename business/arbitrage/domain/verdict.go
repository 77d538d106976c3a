package domain

// Stage identifies a validation step.
type Stage int

// Validation stages in evaluation order.
const (
	StageTokens Stage = iota + 1
	StageVenues
	StagePrices
	StageLiquidity
	StageProfit
	StageFreshness
)

var stageNames = map[Stage]string{
	StageTokens:    "tokens",
	StageVenues:    "venues",
	StagePrices:    "prices",
	StageLiquidity: "liquidity",
	StageProfit:    "profit",
	StageFreshness: "freshness",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// Verdict is the outcome of validating one opportunity. A rejected verdict
// carries the failing Stage and a Reason; warnings gathered before the
// rejection are kept.
type Verdict struct {
	Valid    bool
	Reason   string
	Stage    Stage
	Warnings []string
}

// Accept returns an accepting verdict with warnings.
func Accept(warnings []string) Verdict {
	return Verdict{Valid: true, Warnings: warnings}
}

// Reject returns a rejecting verdict.
func Reject(stage Stage, reason string, warnings []string) Verdict {
	return Verdict{Stage: stage, Reason: reason, Warnings: warnings}
}
