package generate

const (
	MinActionMinutes = 5
	MaxActionMinutes = 60
)

// ClampMinutes bounds a proposed duration. With an allocation the upper bound
// is 70% of it (floored), never below MinActionMinutes.
func ClampMinutes(proposed, allocation int, hasAllocation bool) int {
	upper := MaxActionMinutes
	if hasAllocation {
		if share := allocation * 7 / 10; share < upper {
			upper = share
		}
	}
	m := proposed
	if m > upper {
		m = upper
	}
	if m < MinActionMinutes {
		m = MinActionMinutes
	}
	return m
}
