package driver

import (
	"sort"
	"strings"
)

// MaxCandidates is how many ranked incremental-column candidates an
// inspector returns per table.
const MaxCandidates = 5

// UsableNonNullPercent is the minimum measured non-null percentage for a
// candidate to be considered usable. Candidates below it are still
// returned, ranked last, so the caller sees why they were demoted.
const UsableNonNullPercent = 90.0

// candidate name keywords, strongest first. Substring match; the highest
// matching weight wins.
var candidateKeywords = []struct {
	keyword string
	weight  int
}{
	{"ID", 10},
	{"UPDATE_TIME", 9},
	{"MODIFY_TIME", 9},
	{"UPDATE_DATE", 8},
	{"CREATE_TIME", 7},
	{"CREATE_DATE", 7},
	{"SEQ", 6},
	{"SEQUENCE", 6},
}

// ScoreCandidateName returns the keyword priority score for a column name.
func ScoreCandidateName(name string) int {
	upper := strings.ToUpper(name)
	score := 0
	for _, kw := range candidateKeywords {
		if strings.Contains(upper, kw.keyword) && kw.weight > score {
			score = kw.weight
		}
	}
	return score
}

// EligibleCandidate reports whether a column can serve as an incremental
// column at all: it must be numeric or temporal, and either match a
// priority keyword or be temporal (any timestamp column is worth ranking).
func EligibleCandidate(c Column) bool {
	if !c.IsNumeric() && !c.IsTemporal() {
		return false
	}
	return ScoreCandidateName(c.Name) > 0 || c.IsTemporal()
}

// RankCandidates sorts candidates usable-first by (score desc, non-null
// percentage desc) and truncates to MaxCandidates. Input order does not
// matter; the slice is sorted in place and returned.
func RankCandidates(cands []Candidate) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		ui := cands[i].NonNullPercent >= UsableNonNullPercent
		uj := cands[j].NonNullPercent >= UsableNonNullPercent
		if ui != uj {
			return ui
		}
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].NonNullPercent > cands[j].NonNullPercent
	})
	if len(cands) > MaxCandidates {
		cands = cands[:MaxCandidates]
	}
	return cands
}
