// Package continuity maintains narrative coherence across the section
// loop: a token-bounded rolling summary of prior sections and a flat
// key/value ledger of established facts.
package continuity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

const (
	DefaultMinTokens = 400
	DefaultMaxTokens = 900

	// Rough tokens-per-word estimate for English prose.
	tokensPerWord = 1.33

	NoPreviousSections = "No previous sections."
	EmptyLedgerNotice  = "No continuity facts recorded yet."
)

// EstimateTokens approximates the token count of text from its
// whitespace-delimited word count.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * tokensPerWord)
}

// BuildRollingSummary selects recent summaries, newest first, until the
// accumulated estimate reaches minTokens, never exceeding maxTokens, and
// emits the selection in chronological order prefixed "Section NN: ".
// When even the newest summary alone exceeds the ceiling nothing is
// selected and the placeholder is returned.
func BuildRollingSummary(summaries []state.SectionSummary, minTokens, maxTokens int) string {
	if len(summaries) == 0 {
		return NoPreviousSections
	}

	var selected []state.SectionSummary
	total := 0
	for i := len(summaries) - 1; i >= 0; i-- {
		est := EstimateTokens(summaries[i].Summary)
		if total+est > maxTokens {
			break
		}
		selected = append(selected, summaries[i])
		total += est
		if total >= minTokens {
			break
		}
	}
	if len(selected) == 0 {
		return NoPreviousSections
	}

	// selected is newest-first; emit oldest-first.
	var b strings.Builder
	for i := len(selected) - 1; i >= 0; i-- {
		s := selected[i]
		fmt.Fprintf(&b, "Section %02d: %s", s.SectionID, s.Summary)
		if i > 0 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// MergeUpdates returns a new ledger with updates shallow-merged over
// ledger; keys present in both resolve to the update's value.
func MergeUpdates(ledger, updates map[string]string) map[string]string {
	merged := make(map[string]string, len(ledger)+len(updates))
	for k, v := range ledger {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// Context renders the ledger as a bullet list sorted by key.
func Context(ledger map[string]string) string {
	if len(ledger) == 0 {
		return EmptyLedgerNotice
	}
	keys := make([]string, 0, len(ledger))
	for k := range ledger {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", k, ledger[k])
	}
	return b.String()
}
