package parallel

import (
	"sync/atomic"
	"testing"
)

func TestRowsCoversEveryRowOnce(t *testing.T) {
	for _, n := range []int{1, 7, 1000, 1599, 4097} {
		hits := make([]int32, n)
		Rows(n, 0, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("n=%d: row %d visited %d times", n, i, h)
			}
		}
	}
}

func TestRowsZero(t *testing.T) {
	called := false
	Rows(0, 10, func(start, end int) { called = true })
	Rows(-1, 0, func(start, end int) { called = true })
	if called {
		t.Error("fn must not be called without rows")
	}
}

func TestRowsBelowThresholdIsSequential(t *testing.T) {
	var calls int32
	Rows(50, DefaultThreshold, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 50 {
			t.Errorf("got range [%d,%d), want [0,50)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected a single sequential call, got %d", calls)
	}
}

func TestRanges(t *testing.T) {
	tests := []struct {
		n, workers int
		want       [][2]int
	}{
		{10, 3, [][2]int{{0, 4}, {4, 8}, {8, 10}}},
		{2, 8, [][2]int{{0, 1}, {1, 2}}},
		{5, 0, [][2]int{{0, 5}}},
		{0, 4, nil},
	}
	for _, tt := range tests {
		got := Ranges(tt.n, tt.workers)
		if len(got) != len(tt.want) {
			t.Errorf("Ranges(%d, %d) = %v, want %v", tt.n, tt.workers, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Ranges(%d, %d) = %v, want %v", tt.n, tt.workers, got, tt.want)
				break
			}
		}
	}
}
