package toolweave

import "strings"

// continuationPhrases are the markers scanned for in a round's response text
// to decide whether the model intends to keep working. The scan is
// deliberately approximate; hosts that emit an explicit "more tools needed"
// signal should provide their own ContinuationSignal instead.
var continuationPhrases = []string{
	"let me",
	"i need to",
	"i should",
	"next i will",
}

// PhraseSignal is the default ContinuationSignal: a case-insensitive
// substring scan for a fixed set of continuation phrases.
type PhraseSignal struct{}

// MoreWorkSignaled implements ContinuationSignal.
func (PhraseSignal) MoreWorkSignaled(responseText string) bool {
	lower := strings.ToLower(responseText)
	for _, phrase := range continuationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// shouldContinue applies the full continuation heuristic for a completed
// round: hard stop at the round cap, hard stop when the error budget
// (2 errors per round) is exceeded, otherwise continue only when the signal
// fires on the response text.
func shouldContinue(signal ContinuationSignal, roundNumber, maxRounds, totalErrors int, responseText string) (bool, StopReason) {
	if roundNumber >= maxRounds {
		return false, StopMaxRounds
	}
	if totalErrors > roundNumber*2 {
		return false, StopErrorBudget
	}
	if signal.MoreWorkSignaled(responseText) {
		return true, ""
	}
	return false, StopNoToolCalls
}
