package envelope

const (
	DefaultAttack  = 0.01
	DefaultRelease = 0.05
)

// Breakpoint is a gain target reached at time T seconds after grain start.
type Breakpoint struct {
	T float64
	V float64
}

// Curve is a piecewise-linear gain curve: ramp up, hold, ramp down.
type Curve [4]Breakpoint

// Shape returns the attack-hold-release curve for a grain of the given
// duration. Attack is clamped to the duration and the release start never
// precedes the end of attack, so breakpoint times are non-decreasing.
func Shape(duration, attack, release float64) Curve {
	if duration <= 0 {
		return Curve{}
	}
	attack = clamp(attack, 0, duration)
	release = max(release, 0)
	hold := max(attack, duration-release)
	return Curve{
		{T: 0, V: 0},
		{T: attack, V: 1},
		{T: hold, V: 1},
		{T: duration, V: 0},
	}
}

// Duration is the time of the final breakpoint.
func (c Curve) Duration() float64 { return c[len(c)-1].T }

// ValueAt returns the curve's gain t seconds after grain start. Outside the
// curve the gain is zero.
func (c Curve) ValueAt(t float64) float64 {
	if t < 0 || t > c.Duration() {
		return 0
	}
	for i := 1; i < len(c); i++ {
		a, b := c[i-1], c[i]
		if t > b.T {
			continue
		}
		span := b.T - a.T
		if span <= 0 {
			return b.V
		}
		return a.V + (b.V-a.V)*(t-a.T)/span
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
