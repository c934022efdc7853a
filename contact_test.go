package railsim

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func newTestContact(t *testing.T, spacing float64) *ContactModel {
	t.Helper()
	p := DefaultParams()
	m, err := NewContactModel(p, NewRailGeometry(p, spacing, 0, 0), DefaultContactConfig())
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestNoContactWhenCentered(t *testing.T) {
	for _, spacing := range []float64{0.001, 0.005, 0.01, 0.05, 0.1} {
		m := newTestContact(t, spacing)
		f := m.Force(0, 0, 0, 0)
		test.That(t, f, test.ShouldResemble, ContactForce{})
	}
}

func TestContactOnsetAtSpacing(t *testing.T) {
	m := newTestContact(t, 0.01)

	test.That(t, m.Force(0, 0.0099, 0, 0), test.ShouldResemble, ContactForce{})
	test.That(t, m.Force(0, -0.0099, 0, 0), test.ShouldResemble, ContactForce{})

	over := m.Force(0, 0.0101, 0, 0)
	test.That(t, over.Left, test.ShouldBeGreaterThan, 0.0)
	test.That(t, over.Right, test.ShouldEqual, 0.0)

	under := m.Force(0, -0.0101, 0, 0)
	test.That(t, under.Right, test.ShouldBeGreaterThan, 0.0)
	test.That(t, under.Left, test.ShouldEqual, 0.0)
}

func TestPenetrationForceMonotonic(t *testing.T) {
	m := newTestContact(t, 0.005)
	prev := 0.0
	for _, y := range []float64{0.006, 0.008, 0.012, 0.02, 0.05, 0.2} {
		f := m.Force(0, y, 0, 0)
		test.That(t, f.Left, test.ShouldBeGreaterThanOrEqualTo, prev)
		prev = f.Left
	}
}

func TestPureSpringForce(t *testing.T) {
	m := newTestContact(t, 0.005)
	f := m.Force(0, 0.006, 0, 0)
	test.That(t, f.PenetrationLeft, test.ShouldAlmostEqual, 0.001)
	test.That(t, f.Left, test.ShouldAlmostEqual, 1e6*0.001)
}

func TestPenetrationCappedAtFlangeHeight(t *testing.T) {
	p := DefaultParams()
	m := newTestContact(t, 0.005)
	for _, y := range []float64{0.05, 0.5, 5.0} {
		f := m.Force(0, y, 0, 0)
		test.That(t, f.PenetrationLeft, test.ShouldAlmostEqual, p.RailFlangeHeight)
	}
	f := m.Force(0, -5.0, 0, 0)
	test.That(t, f.PenetrationRight, test.ShouldAlmostEqual, p.RailFlangeHeight)
}

func TestRepulsiveOnly(t *testing.T) {
	for _, spacing := range []float64{0.001, 0.01, 0.1} {
		m := newTestContact(t, spacing)
		for _, y := range []float64{-0.2, -0.05, -0.01, 0, 0.01, 0.05, 0.2} {
			for _, vy := range []float64{-5, -0.5, -0.02, 0, 0.02, 0.5, 5} {
				f := m.Force(0, y, vy, 0)
				test.That(t, f.Left, test.ShouldBeGreaterThanOrEqualTo, 0.0)
				test.That(t, f.Right, test.ShouldBeGreaterThanOrEqualTo, 0.0)
			}
		}
	}
}

func TestWideSpacingSoftening(t *testing.T) {
	wide := newTestContact(t, 0.1)
	f := wide.Force(0, 0.101, 0, 0)
	test.That(t, f.PenetrationLeft, test.ShouldAlmostEqual, 0.001)
	test.That(t, f.Left, test.ShouldAlmostEqual, 1e6*math.Sqrt(0.05/0.1)*0.001)

	// At the knee and below, full stiffness.
	knee := newTestContact(t, 0.05)
	f = knee.Force(0, 0.051, 0, 0)
	test.That(t, f.Left, test.ShouldAlmostEqual, 1e6*0.001)
}

func TestFrictionDeadband(t *testing.T) {
	m := newTestContact(t, 0.005)

	// Below the dead-band: spring and damper only.
	f := m.Force(0, 0.006, 0.005, 0)
	test.That(t, f.Left, test.ShouldAlmostEqual, 1e6*0.001+1000*0.005)

	// Above it: friction proportional to the normal force joins in.
	f = m.Force(0, 0.006, 0.02, 0)
	normal := 1e6*0.001 + 1000*0.02
	test.That(t, f.Left, test.ShouldAlmostEqual, normal+0.3*normal)
}

func TestDamperCannotPullWheelIn(t *testing.T) {
	m := newTestContact(t, 0.005)
	// Rapidly opening contact: the damper term exceeds the spring term.
	f := m.Force(0, 0.006, -5, 0)
	test.That(t, f.Left, test.ShouldEqual, 0.0)
	test.That(t, f.PenetrationLeft, test.ShouldAlmostEqual, 0.001)
}

func TestContactConfigValidate(t *testing.T) {
	for _, c := range []struct {
		name   string
		mutate func(*ContactConfig)
	}{
		{"zero stiffness", func(c *ContactConfig) { c.Stiffness = 0 }},
		{"negative damping", func(c *ContactConfig) { c.Damping = -1 }},
		{"friction at one", func(c *ContactConfig) { c.Friction = 1 }},
		{"negative deadband", func(c *ContactConfig) { c.FrictionDeadband = -0.01 }},
		{"NaN softening", func(c *ContactConfig) { c.SofteningSpacing = math.NaN() }},
	} {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultContactConfig()
			c.mutate(&cfg)
			test.That(t, cfg.Validate(), test.ShouldNotBeNil)

			p := DefaultParams()
			_, err := NewContactModel(p, NewRailGeometry(p, 0.01, 0, 0), cfg)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}
