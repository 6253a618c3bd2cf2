package domain

// GapClass buckets a self/observer gap by threshold: BG (big gap) when
// gap >= threshold, SG (small gap) otherwise.
type GapClass string

const (
	GapBig   GapClass = "BG"
	GapSmall GapClass = "SG"
)

// Gap returns self score minus observer score. It is only defined when the
// cell actually self-evaluated and the observer pass has run; ok is false
// otherwise.
func (r *InteractionRecord) Gap() (int, bool) {
	if r.SelfStatus != SelfScored || r.SelfScore == nil || r.ObserverScore == nil {
		return 0, false
	}
	return *r.SelfScore - *r.ObserverScore, true
}

// ClassifyGap thresholds a gap value. Derived at export or query time, never
// persisted ahead of both scores existing.
func ClassifyGap(gap, threshold int) GapClass {
	if gap >= threshold {
		return GapBig
	}
	return GapSmall
}

// MatchType pairs the gap classifications of the two context-present cells
// (generative first, rule second) into the four-way interaction typing.
type MatchType string

const (
	MatchTypeA MatchType = "A" // both small
	MatchTypeB MatchType = "B" // generative small, rule big
	MatchTypeC MatchType = "C" // generative big, rule small
	MatchTypeD MatchType = "D" // both big
)

func MatchFromClasses(generative, rule GapClass) MatchType {
	switch {
	case generative == GapSmall && rule == GapSmall:
		return MatchTypeA
	case generative == GapSmall && rule == GapBig:
		return MatchTypeB
	case generative == GapBig && rule == GapSmall:
		return MatchTypeC
	default:
		return MatchTypeD
	}
}
