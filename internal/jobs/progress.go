// Package jobs tracks long-running artifact-generation jobs by polling and
// reconciles their placeholder references once they finish.
package jobs

// phaseRange is the slice of overall progress a phase occupies. Ranges are
// non-overlapping and weighted by real phase duration: transcript
// generation dominates wall-clock time, so a naive phase-index average
// would misrepresent progress.
type phaseRange struct {
	lo, hi float64
}

var phaseRanges = map[string]phaseRange{
	"starting":   {0, 0},
	"outline":    {0, 15},
	"transcript": {15, 65},
	"audio":      {65, 90},
	"combining":  {90, 100},
}

// OverallProgress maps a phase-local percentage to the overall displayed
// percentage by linear interpolation within the phase's weighted range.
// Unknown phases map to 0 rather than erroring.
func OverallProgress(phase string, phasePct float64) float64 {
	r, ok := phaseRanges[phase]
	if !ok {
		return 0
	}
	if phasePct < 0 {
		phasePct = 0
	}
	if phasePct > 100 {
		phasePct = 100
	}
	return r.lo + (r.hi-r.lo)*phasePct/100
}
