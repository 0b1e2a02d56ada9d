package catalog

import (
	"math"
	"testing"
)

func TestSequenceRatio(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "data mining", "data mining", 1.0},
		{"case insensitive", "DATA MINING", "data mining", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "data", "", 0.0},
		{"disjoint", "abc", "xyz", 0.0},
		// 2*M/T: longest blocks of "abcd"/"bcde" cover "bcd" -> 2*3/8.
		{"partial overlap", "abcd", "bcde", 0.75},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sequenceRatio(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("sequenceRatio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestSequenceRatioSymmetricBounds(t *testing.T) {
	pairs := [][2]string{
		{"Data Mining", "Data Minning"},
		{"Internet of Things", "IoT"},
		{"Machine Learning", "machine learning basics"},
	}
	for _, p := range pairs {
		ab := sequenceRatio(p[0], p[1])
		if ab < 0 || ab > 1 {
			t.Fatalf("ratio out of range for %q/%q: %v", p[0], p[1], ab)
		}
	}
}
