package railsim

import (
	"testing"

	"go.viam.com/test"
)

func newTestDynamics(t *testing.T, spacing float64) *Dynamics {
	t.Helper()
	return NewDynamics(DefaultParams(), newTestContact(t, spacing), spacing)
}

func TestDriveProfile(t *testing.T) {
	d := newTestDynamics(t, 0.01)
	for _, c := range []struct {
		vx   float64
		want float64
	}{
		{0, 0.75},
		{1.0, 0.75},
		{1.45, 0.5},  // tapered inside the look-ahead horizon
		{1.49, 0.1},
		{1.5, 0},
		{2.0, 0},
	} {
		ds := d.Derivative(State{VX: c.vx})
		test.That(t, ds.VX, test.ShouldAlmostEqual, c.want)
	}
}

func TestKinematicIdentity(t *testing.T) {
	d := newTestDynamics(t, 0.01)
	s := State{X: 1, Y: 0.001, Theta: 0.002, VX: 0.5, VY: 0.01, Omega: 0.03}
	ds := d.Derivative(s)
	test.That(t, ds.X, test.ShouldAlmostEqual, s.VX)
	test.That(t, ds.Y, test.ShouldAlmostEqual, s.VY)
	test.That(t, ds.Theta, test.ShouldAlmostEqual, s.Omega)
}

func TestForwardYawCoupling(t *testing.T) {
	d := newTestDynamics(t, 0.01)
	// No contact, no lateral speed: the lateral acceleration is pure
	// centripetal coupling, -vx*omega.
	ds := d.Derivative(State{VX: 1.0, Omega: 0.1})
	test.That(t, ds.VY, test.ShouldAlmostEqual, -0.1)

	ds = d.Derivative(State{VX: 1.0, Omega: -0.05})
	test.That(t, ds.VY, test.ShouldAlmostEqual, 0.05)
}

func TestRestoringTorqueOnset(t *testing.T) {
	d := newTestDynamics(t, 0.01)
	maxYaw := MaxYaw(0.01, 1.2)

	// Inside 80% of the envelope: no restoring torque at all.
	ds := d.Derivative(State{Theta: maxYaw * 0.5})
	test.That(t, ds.Omega, test.ShouldEqual, 0.0)

	// Between 80% and 100%: the soft spring pushes back.
	soft := d.Derivative(State{Theta: maxYaw * 0.9})
	test.That(t, soft.Omega, test.ShouldBeLessThan, 0.0)

	// Well past the envelope: the hard spring dominates.
	hard := d.Derivative(State{Theta: maxYaw * 2})
	test.That(t, hard.Omega, test.ShouldBeLessThan, soft.Omega)

	// Symmetric for negative yaw.
	test.That(t, d.Derivative(State{Theta: -maxYaw * 2}).Omega, test.ShouldBeGreaterThan, 0.0)
}

func TestYawDamping(t *testing.T) {
	narrow := newTestDynamics(t, 0.01)
	inertia := DefaultParams().MomentOfInertia()

	ds := narrow.Derivative(State{Omega: 1.0})
	test.That(t, ds.Omega, test.ShouldAlmostEqual, (-200.0-1000.0)/inertia)

	// Wider spacing carries more linear damping.
	wide := newTestDynamics(t, 0.1)
	ds = wide.Derivative(State{Omega: 1.0})
	test.That(t, ds.Omega, test.ShouldAlmostEqual, (-(300.0+1000.0*0.1)-1000.0)/inertia)
}

func TestLateralDampingRatioRule(t *testing.T) {
	d := newTestDynamics(t, 0.01)
	mass := DefaultParams().TotalMass()

	// Under 30% of forward speed: plain linear damping.
	ds := d.Derivative(State{VX: 1.0, VY: 0.2})
	test.That(t, ds.VY, test.ShouldAlmostEqual, -200.0*0.2/mass)

	// Over it: extra damping on the excess.
	ds = d.Derivative(State{VX: 1.0, VY: 0.5})
	test.That(t, ds.VY, test.ShouldAlmostEqual, (-200.0*0.5-500.0*(0.5-0.3))/mass)

	// Near standstill the ratio rule is meaningless and stays off.
	ds = d.Derivative(State{VX: 0.05, VY: 0.5})
	test.That(t, ds.VY, test.ShouldAlmostEqual, -200.0*0.5/mass)
}

func TestContactTorque(t *testing.T) {
	p := DefaultParams()
	d := newTestDynamics(t, 0.005)

	// Penetrated on the +y side: net force and torque both push back.
	ds := d.Derivative(State{Y: 0.006})
	force := 1e6 * 0.001
	wantVY := -force / p.TotalMass()
	wantOmega := -force * p.GuideWheelSeparation / 2 / p.MomentOfInertia()
	test.That(t, ds.VY, test.ShouldAlmostEqual, wantVY)
	test.That(t, ds.Omega, test.ShouldAlmostEqual, wantOmega)
}
