package handler

import "testing"

func TestBatchConcurrency(t *testing.T) {
	cases := []struct {
		name          string
		requested     int
		maxConcurrent int
		want          int
	}{
		{"unset defaults", 0, 4, defaultBatchConcurrency},
		{"negative defaults", -1, 4, defaultBatchConcurrency},
		{"requested within pool", 3, 4, 3},
		{"capped by pool", 8, 4, 4},
		{"no pool cap", 8, 0, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := batchConcurrency(tc.requested, tc.maxConcurrent); got != tc.want {
				t.Errorf("batchConcurrency(%d, %d) = %d, want %d",
					tc.requested, tc.maxConcurrent, got, tc.want)
			}
		})
	}
}
