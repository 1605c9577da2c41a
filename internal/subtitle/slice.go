package subtitle

// SplitBalanced divides cues into ceil(total/sliceSize) slices whose sizes
// differ by at most one. The first total%numSlices slices take the extra cue,
// so no tiny tail slice is ever produced.
func SplitBalanced(cues []Cue, sliceSize int) [][]Cue {
	total := len(cues)
	if total == 0 {
		return nil
	}
	if sliceSize <= 0 || total <= sliceSize {
		return [][]Cue{cues}
	}

	numSlices := (total + sliceSize - 1) / sliceSize
	return splitEven(cues, numSlices)
}

// SplitThirds divides cues into three near-even parts, used when a failed
// translation batch is retried in smaller pieces.
func SplitThirds(cues []Cue) [][]Cue {
	return splitEven(cues, 3)
}

func splitEven(cues []Cue, numSlices int) [][]Cue {
	total := len(cues)
	if numSlices > total {
		numSlices = total
	}
	if numSlices <= 1 {
		return [][]Cue{cues}
	}

	base := total / numSlices
	remainder := total % numSlices

	slices := make([][]Cue, 0, numSlices)
	offset := 0
	for i := 0; i < numSlices; i++ {
		size := base
		if i < remainder {
			size++
		}
		slices = append(slices, cues[offset:offset+size])
		offset += size
	}
	return slices
}
