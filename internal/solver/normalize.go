package solver

import "strings"

var strippedPhrases = []string{"answer:", "answer is"}

// Normalize reduces a model answer or option label to the comparison form used
// for cache values and multiple-choice matching.
//
// The pass is repeated until the value is stable, so removing one token can never
// leave behind another removable token.
func Normalize(s string) string {
	for {
		next := normalizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = strings.ToLower(s)
	// single spaces first so "answer  is" still matches its phrase
	s = strings.Join(strings.Fields(s), " ")
	for _, p := range strippedPhrases {
		s = strings.ReplaceAll(s, p, "")
	}
	s = strings.Join(strings.Fields(s), "")
	s = strings.ReplaceAll(s, "cm", "")
	s = strings.ReplaceAll(s, ")", "")
	s = strings.ReplaceAll(s, ",", ".")
	return s
}
