package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCues(n int) []Cue {
	cues := make([]Cue, n)
	for i := range cues {
		cues[i] = Cue{Index: i + 1}
	}
	return cues
}

func TestSplitBalanced(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		sliceSize int
		wantSizes []int
	}{
		{"fits in one slice", 10, 20, []int{10}},
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder spread to front", 23, 10, []int{8, 8, 7}},
		{"no tiny tail", 101, 100, []int{51, 50}},
		{"single cue", 1, 10, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slices := SplitBalanced(makeCues(tt.total), tt.sliceSize)
			require.Len(t, slices, len(tt.wantSizes))
			for i, slice := range slices {
				assert.Len(t, slice, tt.wantSizes[i])
			}
		})
	}
}

func TestSplitBalancedSizesDifferByAtMostOne(t *testing.T) {
	for total := 1; total <= 200; total++ {
		slices := SplitBalanced(makeCues(total), 30)
		min, max, sum := total, 0, 0
		for _, slice := range slices {
			if len(slice) < min {
				min = len(slice)
			}
			if len(slice) > max {
				max = len(slice)
			}
			sum += len(slice)
		}
		require.Equal(t, total, sum, "total=%d", total)
		require.LessOrEqual(t, max-min, 1, "total=%d", total)
	}
}

func TestSplitBalancedPreservesOrder(t *testing.T) {
	slices := SplitBalanced(makeCues(25), 10)
	var flattened []Cue
	for _, slice := range slices {
		flattened = append(flattened, slice...)
	}
	assert.Equal(t, makeCues(25), flattened)
}

func TestSplitBalancedEmpty(t *testing.T) {
	assert.Nil(t, SplitBalanced(nil, 10))
}

func TestSplitThirds(t *testing.T) {
	slices := SplitThirds(makeCues(30))
	require.Len(t, slices, 3)
	for _, slice := range slices {
		assert.Len(t, slice, 10)
	}

	slices = SplitThirds(makeCues(11))
	require.Len(t, slices, 3)
	assert.Len(t, slices[0], 4)
	assert.Len(t, slices[1], 4)
	assert.Len(t, slices[2], 3)

	slices = SplitThirds(makeCues(2))
	require.Len(t, slices, 2)
}
