package domain

import "math"

// minPrepMinutes applies when no item carries per-unit timing.
const minPrepMinutes = 5

// EstimatePrepMinutes computes the expected preparation time for an order.
// Items cook in parallel, so the base is the slowest line item
// (per-unit minutes * quantity); each additional distinct item adds a one
// minute handling penalty.
func EstimatePrepMinutes(items []OrderItem) int {
	base := 0.0
	timed := false
	for _, it := range items {
		if it.PrepMinutesPerUnit <= 0 {
			continue
		}
		timed = true
		if m := it.PrepMinutesPerUnit * float64(it.Quantity); m > base {
			base = m
		}
	}
	if !timed {
		return minPrepMinutes
	}
	penalty := float64(len(items) - 1)
	return int(math.Ceil(base + penalty))
}
