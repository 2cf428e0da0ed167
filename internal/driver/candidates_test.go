package driver

import "testing"

func TestScoreCandidateName(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"ID", 10},
		{"ORDER_ID", 10},
		{"UPDATE_TIME", 9},
		{"MODIFY_TIME", 9},
		{"UPDATE_DATE", 8},
		{"CREATE_TIME", 7},
		{"CREATE_DATE", 7},
		{"ROW_SEQ", 6},
		{"SEQUENCE_NO", 6},
		{"DESCRIPTION", 0},
		{"update_time", 9}, // case-insensitive
	}

	for _, tt := range tests {
		if got := ScoreCandidateName(tt.name); got != tt.want {
			t.Errorf("ScoreCandidateName(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestEligibleCandidate(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		want bool
	}{
		{"scored number", Column{Name: "ID", DataType: "NUMBER"}, true},
		{"unscored timestamp", Column{Name: "LOADED_AT", DataType: "TIMESTAMP"}, true},
		{"unscored number", Column{Name: "AMOUNT", DataType: "NUMBER"}, false},
		{"scored varchar", Column{Name: "EXTERNAL_ID", DataType: "VARCHAR2"}, false},
		{"date", Column{Name: "HIRE_DATE", DataType: "DATE"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EligibleCandidate(tt.col); got != tt.want {
				t.Errorf("EligibleCandidate(%s %s) = %v, want %v",
					tt.col.Name, tt.col.DataType, got, tt.want)
			}
		})
	}
}

func TestRankCandidates(t *testing.T) {
	cands := []Candidate{
		{Name: "CREATE_TIME", Score: 7, NonNullPercent: 100},
		{Name: "ID", Score: 10, NonNullPercent: 100},
		{Name: "UPDATE_TIME", Score: 9, NonNullPercent: 99.5},
		{Name: "ROW_SEQ", Score: 6, NonNullPercent: 100},
	}

	ranked := RankCandidates(cands)
	want := []string{"ID", "UPDATE_TIME", "CREATE_TIME", "ROW_SEQ"}
	for i, name := range want {
		if ranked[i].Name != name {
			t.Errorf("rank %d = %s, want %s", i, ranked[i].Name, name)
		}
	}
}

// A candidate with a high keyword score but a mostly-null column is still
// returned, ranked behind every usable candidate, with its measured
// percentage intact so the caller can reject it.
func TestRankCandidatesDemotesSparseColumns(t *testing.T) {
	cands := []Candidate{
		{Name: "UPDATE_TIME", Score: 9, NonNullPercent: 12.3},
		{Name: "CREATE_TIME", Score: 7, NonNullPercent: 100},
	}

	ranked := RankCandidates(cands)
	if ranked[0].Name != "CREATE_TIME" {
		t.Errorf("usable candidate should rank first, got %s", ranked[0].Name)
	}
	if ranked[1].Name != "UPDATE_TIME" || ranked[1].NonNullPercent != 12.3 {
		t.Errorf("sparse candidate should rank last with pct exposed, got %+v", ranked[1])
	}
}

func TestRankCandidatesTruncates(t *testing.T) {
	var cands []Candidate
	for i := 0; i < 8; i++ {
		cands = append(cands, Candidate{Name: "C", Score: i, NonNullPercent: 100})
	}
	if got := len(RankCandidates(cands)); got != MaxCandidates {
		t.Errorf("RankCandidates returned %d candidates, want %d", got, MaxCandidates)
	}
}
