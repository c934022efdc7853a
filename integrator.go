package railsim

// rk4Step advances the state one fixed step of classical fourth-order
// Runge-Kutta. The contact springs make the system stiff; callers keep the
// step at or below a few milliseconds (see Simulator.Simulate).
func rk4Step(deriv func(State) State, s State, dt float64) State {
	k1 := deriv(s)
	k2 := deriv(s.madd(k1, dt/2))
	k3 := deriv(s.madd(k2, dt/2))
	k4 := deriv(s.madd(k3, dt))

	out := s.madd(k1, dt/6)
	out = out.madd(k2, dt/3)
	out = out.madd(k3, dt/3)
	return out.madd(k4, dt/6)
}
