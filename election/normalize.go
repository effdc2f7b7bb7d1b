// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package election

import (
	"sort"

	"github.com/pkg/errors"
)

type unsigned interface {
	~uint16 | ~uint32 | ~uint64
}

type indexed[T unsigned] struct {
	idx   int
	value T
}

// Normalize adjusts the input so that it sums up to target, changing every element by as little as possible.
// Increments go to the smallest elements first and decrements come from the largest.
func Normalize[T unsigned](input []T, target T) ([]T, error) {
	var sum T
	for _, v := range input {
		next := sum + v
		if next < sum {
			return nil, errors.Wrap(ErrArithmetic, "sum of input overflows type")
		}
		sum = next
	}
	count := len(input)
	if count == 0 {
		return []T{}, nil
	}
	countT := T(count)
	if int(countT) != count {
		return nil, errors.Wrap(ErrArithmetic, "length of input is too large")
	}
	var diff T
	if target > sum {
		diff = target - sum
	} else {
		diff = sum - target
	}
	if diff == 0 {
		return append([]T(nil), input...), nil
	}
	needsBump := target > sum
	perRound := diff / countT
	leftover := diff % countT

	out := make([]indexed[T], count)
	for i, v := range input {
		out[i] = indexed[T]{idx: i, value: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].value < out[j].value })

	if needsBump {
		minIndex := 0
		threshold := target / countT
		if perRound != 0 {
			for i := 0; i < count; i++ {
				out[minIndex].value += perRound
				if out[minIndex].value >= threshold {
					minIndex = (minIndex + 1) % count
				}
			}
		}
		for leftover != 0 {
			out[minIndex].value++
			if out[minIndex].value >= threshold {
				minIndex = (minIndex + 1) % count
			}
			leftover--
		}
	} else {
		maxIndex := count - 1
		threshold := out[0].value
		prev := func(i int) int {
			if i == 0 {
				return count - 1
			}
			return i - 1
		}
		if perRound != 0 {
			for i := 0; i < count; i++ {
				if out[maxIndex].value >= perRound {
					out[maxIndex].value -= perRound
				} else {
					leftover += perRound - out[maxIndex].value
					out[maxIndex].value = 0
				}
				if out[maxIndex].value <= threshold {
					maxIndex = prev(maxIndex)
				}
			}
		}
		for leftover != 0 {
			if out[maxIndex].value > 0 {
				out[maxIndex].value--
				if out[maxIndex].value <= threshold {
					maxIndex = prev(maxIndex)
				}
				leftover--
			} else {
				maxIndex = prev(maxIndex)
			}
		}
	}

	res := make([]T, count)
	for _, o := range out {
		res[o.idx] = o.value
	}
	return res, nil
}
