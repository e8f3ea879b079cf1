// Package policy holds the pure decision functions for the counseling
// dialogue loop: trust-score parsing, yes/no parsing, phase progression,
// and trust evaluation cadence. Nothing here performs I/O.
package policy

import (
	"regexp"
	"strings"
)

// Phase is a stage of the counseling conversation. Phases only move forward
// over a session's lifetime.
type Phase string

const (
	// PhaseTrustBuilding is the opening stage focused on rapport.
	PhaseTrustBuilding Phase = "trust_building"

	// PhaseCaseConceptualization explores the client's beliefs and patterns.
	PhaseCaseConceptualization Phase = "case_conceptualization"

	// PhaseSolutionExploration works toward techniques and next steps.
	// This phase is terminal.
	PhaseSolutionExploration Phase = "solution_exploration"
)

// upgradeAt maps a phase to the minimum openness score that advances past
// it. The solution_exploration threshold is unreachable on a 1-5 scale.
var upgradeAt = map[Phase]int{
	PhaseTrustBuilding:         3,
	PhaseCaseConceptualization: 4,
	PhaseSolutionExploration:   999,
}

var (
	trustScoreRe = regexp.MustCompile(`\b([1-5])\b`)
	yesNoRe      = regexp.MustCompile(`\b(YES|NO)\b`)
)

// ParseTrustScore extracts the first standalone digit 1-5 from free text.
// Any standalone digit in range matches, including digits that are not a
// rating. The second return is false when no digit is found.
func ParseTrustScore(text string) (int, bool) {
	m := trustScoreRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return int(m[1][0] - '0'), true
}

// ParseYesNo extracts the first standalone YES or NO token, case-insensitive.
// The second return is false when neither token is found.
func ParseYesNo(text string) (bool, bool) {
	m := yesNoRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(text)))
	if m == nil {
		return false, false
	}
	return m[1] == "YES", true
}

// NextPhase returns the phase after observing an openness score.
// trust_building advances at openness >= 3, case_conceptualization at >= 4,
// solution_exploration never advances. Unknown phases pass through unchanged.
func NextPhase(current Phase, openness int) Phase {
	switch current {
	case PhaseTrustBuilding:
		if openness >= upgradeAt[PhaseTrustBuilding] {
			return PhaseCaseConceptualization
		}
	case PhaseCaseConceptualization:
		if openness >= upgradeAt[PhaseCaseConceptualization] {
			return PhaseSolutionExploration
		}
	}
	return current
}

// TrustEvalInterval returns how many dialogue turns pass between trust
// evaluations for a persona resistance level. Unknown or empty levels use
// the beginner cadence.
func TrustEvalInterval(resistanceLevel string) int {
	switch strings.ToLower(strings.TrimSpace(resistanceLevel)) {
	case "beginner":
		return 2
	case "intermediate":
		return 4
	case "advanced":
		return 6
	default:
		return 2
	}
}
