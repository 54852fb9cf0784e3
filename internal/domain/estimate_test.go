package domain

import "testing"

func TestEstimatePrepMinutes(t *testing.T) {
	cases := []struct {
		name  string
		items []OrderItem
		want  int
	}{
		{
			// base = max(10*1, 6*2) = 12, penalty = 1
			name: "two timed items",
			items: []OrderItem{
				{ProductName: "Lasagna", Quantity: 1, PrepMinutesPerUnit: 10},
				{ProductName: "Arepa", Quantity: 2, PrepMinutesPerUnit: 6},
			},
			want: 13,
		},
		{
			name: "single item no penalty",
			items: []OrderItem{
				{ProductName: "Soup", Quantity: 3, PrepMinutesPerUnit: 4},
			},
			want: 12,
		},
		{
			name: "no timing known falls back to minimum",
			items: []OrderItem{
				{ProductName: "Juice", Quantity: 2},
				{ProductName: "Coffee", Quantity: 1},
			},
			want: 5,
		},
		{
			name: "fractional time rounds up",
			items: []OrderItem{
				{ProductName: "Empanada", Quantity: 3, PrepMinutesPerUnit: 1.5},
			},
			want: 5, // ceil(4.5)
		},
		{
			name: "untimed items still count toward the penalty",
			items: []OrderItem{
				{ProductName: "Steak", Quantity: 1, PrepMinutesPerUnit: 10},
				{ProductName: "Water", Quantity: 1},
				{ProductName: "Bread", Quantity: 1},
			},
			want: 12,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimatePrepMinutes(tc.items); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}
