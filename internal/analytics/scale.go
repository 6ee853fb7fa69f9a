package analytics

import "fmt"

// LinearScale maps value from [domainMin, domainMax] onto [rangeMin, rangeMax].
// A zero-width domain has no meaningful mapping and returns ErrDegenerateDomain.
func LinearScale(domainMin, domainMax, rangeMin, rangeMax, value float64) (float64, error) {
	if domainMax == domainMin {
		return 0, fmt.Errorf("scale [%g, %g]: %w", domainMin, domainMax, ErrDegenerateDomain)
	}
	return rangeMin + (value-domainMin)/(domainMax-domainMin)*(rangeMax-rangeMin), nil
}

// Scale is a reusable linear mapping. A degenerate domain turns it into a
// constant scale that maps every value to the middle of the range.
type Scale struct {
	DomainMin, DomainMax float64
	RangeMin, RangeMax   float64
}

// NewScale builds a scale from a domain and a range.
func NewScale(domainMin, domainMax, rangeMin, rangeMax float64) Scale {
	return Scale{
		DomainMin: domainMin,
		DomainMax: domainMax,
		RangeMin:  rangeMin,
		RangeMax:  rangeMax,
	}
}

// Degenerate reports whether the domain has zero width.
func (s Scale) Degenerate() bool {
	return s.DomainMax == s.DomainMin
}

// Map projects v into the range.
func (s Scale) Map(v float64) float64 {
	if s.Degenerate() {
		return (s.RangeMin + s.RangeMax) / 2
	}
	out, _ := LinearScale(s.DomainMin, s.DomainMax, s.RangeMin, s.RangeMax, v)
	return out
}
