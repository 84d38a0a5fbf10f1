package toolbench

// Decision is the outcome of the compaction engine: which structured form
// to return to the caller.
type Decision string

const (
	// DecisionFull selects the full structured result.
	DecisionFull Decision = "full"

	// DecisionCompact selects the reduced-field compact projection.
	DecisionCompact Decision = "compact"
)

// charsPerToken is the fixed cost heuristic: one token per four characters,
// rounded up. It is deliberately not a real tokenizer so the decision is
// cheap and reproducible across runs.
const charsPerToken = 4

// EstimateTokens returns the estimated token cost of s, computed as
// ceil(len(s)/4) over the byte length of s: a multibyte rune costs its
// UTF-8 encoded size, not one character. The empty string costs zero.
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// CostReport records the token estimates behind a compaction decision.
type CostReport struct {
	RawTokens     int
	FullTokens    int
	CompactTokens int
	Decision      Decision
}

// Decide chooses between the full and compact structured forms.
//
// If the full form costs no more than the raw tool output there is nothing
// to gain by dropping detail, so the full form wins. Otherwise the compact
// form is used only when it is strictly cheaper than the full form.
func Decide(rawOutput, fullJSON, compactJSON string) Decision {
	return Assess(rawOutput, fullJSON, compactJSON).Decision
}

// Assess is Decide with the underlying cost estimates exposed, for logging
// and diagnostics.
func Assess(rawOutput, fullJSON, compactJSON string) CostReport {
	report := CostReport{
		RawTokens:     EstimateTokens(rawOutput),
		FullTokens:    EstimateTokens(fullJSON),
		CompactTokens: EstimateTokens(compactJSON),
	}
	switch {
	case report.FullTokens <= report.RawTokens:
		report.Decision = DecisionFull
	case report.CompactTokens < report.FullTokens:
		report.Decision = DecisionCompact
	default:
		report.Decision = DecisionFull
	}
	return report
}
