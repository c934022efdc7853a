package railsim

import "math"

// State is one sample of the robot's planar rigid-body state.
type State struct {
	// X is the position along the rail, m.
	X float64
	// Y is the lateral position of the chassis center, m. Zero is centered
	// between the flanges.
	Y float64
	// Theta is the yaw angle relative to the rail direction, rad.
	Theta float64
	// VX, VY are the longitudinal and lateral velocities, m/s.
	VX float64
	VY float64
	// Omega is the yaw rate, rad/s.
	Omega float64
}

// madd returns s + d*scale, treating both as 6-vectors.
func (s State) madd(d State, scale float64) State {
	return State{
		X:     s.X + d.X*scale,
		Y:     s.Y + d.Y*scale,
		Theta: s.Theta + d.Theta*scale,
		VX:    s.VX + d.VX*scale,
		VY:    s.VY + d.VY*scale,
		Omega: s.Omega + d.Omega*scale,
	}
}

func (s State) finite() bool {
	for _, v := range [...]float64{s.X, s.Y, s.Theta, s.VX, s.VY, s.Omega} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
