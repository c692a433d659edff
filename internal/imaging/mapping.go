// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package imaging

// BandMapping selects the zero-based source bands shown as red, green and blue.
type BandMapping struct {
	Red    int    `yaml:"red" json:"red"`
	Green  int    `yaml:"green" json:"green"`
	Blue   int    `yaml:"blue" json:"blue"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// DefaultMapping picks display bands from the band count alone.
func DefaultMapping(count int) BandMapping {
	switch {
	case count <= 1:
		return BandMapping{0, 0, 0, "single-band fallback"}
	case count == 2:
		return BandMapping{0, 1, 1, "two-band fallback"}
	default:
		return BandMapping{0, 1, 2, "rgb-first fallback"}
	}
}

// Indexes converts m to 1-based band indexes valid for count bands.
// Negative entries select band 1 and entries past the end select the last band.
func (m BandMapping) Indexes(count int) [3]int {
	var out [3]int

	for i, v := range []int{m.Red, m.Green, m.Blue} {
		switch {
		case v < 0:
			out[i] = 1
		case v+1 > count:
			out[i] = count
		default:
			out[i] = v + 1
		}
	}

	return out
}

// Select returns the planes picked by m from planes.
func (m BandMapping) Select(planes [][]float64) [][]float64 {
	idx := m.Indexes(len(planes))
	out := make([][]float64, 0, len(idx))

	for _, i := range idx {
		if i < 1 {
			continue
		}

		out = append(out, planes[i-1])
	}

	return out
}
