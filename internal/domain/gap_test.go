package domain

import "testing"

func TestClassifyGap(t *testing.T) {
	tests := []struct {
		name      string
		gap       int
		threshold int
		want      GapClass
	}{
		{"below threshold", 1, 2, GapSmall},
		{"at threshold", 2, 2, GapBig},
		{"above threshold", 3, 2, GapBig},
		{"zero gap", 0, 2, GapSmall},
		{"observer scored higher", -3, 2, GapSmall},
		{"higher threshold", 3, 4, GapSmall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyGap(tt.gap, tt.threshold); got != tt.want {
				t.Errorf("ClassifyGap(%d, %d) = %s, want %s", tt.gap, tt.threshold, got, tt.want)
			}
		})
	}
}

// Self 6 against observer 3 crosses the default threshold of 2, the
// canonical overclaim case.
func TestClassifyGap_Overclaim(t *testing.T) {
	self, observer := 6, 3
	if got := ClassifyGap(self-observer, 2); got != GapBig {
		t.Errorf("gap %d classified %s, want BG", self-observer, got)
	}
}

func TestMatchFromClasses(t *testing.T) {
	tests := []struct {
		generative GapClass
		rule       GapClass
		want       MatchType
	}{
		{GapSmall, GapSmall, MatchTypeA},
		{GapSmall, GapBig, MatchTypeB},
		{GapBig, GapSmall, MatchTypeC},
		{GapBig, GapBig, MatchTypeD},
	}
	for _, tt := range tests {
		if got := MatchFromClasses(tt.generative, tt.rule); got != tt.want {
			t.Errorf("MatchFromClasses(%s, %s) = %s, want %s", tt.generative, tt.rule, got, tt.want)
		}
	}
}
