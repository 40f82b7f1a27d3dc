package fuzzy

// Set is a membership function over a crisp input. Both triangular and
// trapezoidal shapes are stored as the four breakpoints a <= b <= c <= d;
// a triangle is a trapezoid whose plateau collapses to a single point.
type Set struct {
	a, b, c, d float64
}

// Triangular builds a set that is zero outside (a, c) and peaks at b.
func Triangular(a, b, c float64) Set {
	return Set{a: a, b: b, c: b, d: c}
}

// Trapezoidal builds a set with full membership on [b, c] and linear
// shoulders down to a and d.
func Trapezoidal(a, b, c, d float64) Set {
	return Set{a: a, b: b, c: c, d: d}
}

// Evaluate returns the degree of membership of x in [0, 1].
func (s Set) Evaluate(x float64) float64 {
	switch {
	case x < s.a || x > s.d:
		return 0
	case x >= s.b && x <= s.c:
		return 1
	case x < s.b:
		// Left shoulder. A vertical edge (a == b) counts as full membership.
		if s.b == s.a {
			return 1
		}
		return (x - s.a) / (s.b - s.a)
	default:
		if s.d == s.c {
			return 1
		}
		return (s.d - x) / (s.d - s.c)
	}
}

// Support returns the interval outside which membership is zero.
func (s Set) Support() (float64, float64) {
	return s.a, s.d
}
