package matrix

// ResolveDefaultTime picks the most common duration among the active records.
// Ties go to the value seen first; no active records yields FallbackMinutes.
func ResolveDefaultTime(records []Record) int {
	counts := map[int]int{}
	var order []int
	for _, r := range records {
		if !r.IsActive {
			continue
		}
		if _, seen := counts[r.BaseTimeMinutes]; !seen {
			order = append(order, r.BaseTimeMinutes)
		}
		counts[r.BaseTimeMinutes]++
	}
	if len(order) == 0 {
		return FallbackMinutes
	}

	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}
