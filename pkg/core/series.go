package core

import "golang.org/x/exp/constraints"

// Series is a time series of ordered values
// It provides methods for analyzing time series data
type Series[T constraints.Ordered] []T

// Values returns the underlying slice of values
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value at a specified position from the end
// position 0 is the last value, 1 is the second-to-last, etc.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns a slice with the last 'size' values
// If size exceeds the length, returns the entire series
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Highest returns the maximum over the last 'size' values
func (s Series[T]) Highest(size int) T {
	window := s.LastValues(size)
	max := window[0]
	for _, v := range window[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Lowest returns the minimum over the last 'size' values
func (s Series[T]) Lowest(size int) T {
	window := s.LastValues(size)
	min := window[0]
	for _, v := range window[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
