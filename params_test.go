package railsim

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	test.That(t, p.Validate(), test.ShouldBeNil)
	test.That(t, p.TotalMass(), test.ShouldAlmostEqual, 1588.0)
	test.That(t, p.MomentOfInertia(), test.ShouldAlmostEqual, 1588.0*1.2*1.2/12.0)
	test.That(t, p.MomentOfInertia(), test.ShouldBeGreaterThan, 0.0)
}

func TestMomentOfInertiaTracksParams(t *testing.T) {
	p := DefaultParams()
	before := p.MomentOfInertia()
	p.MaxPalletMass = 0
	test.That(t, p.MomentOfInertia(), test.ShouldBeLessThan, before)
	p.WheelBase = 2.4
	test.That(t, p.MomentOfInertia(), test.ShouldAlmostEqual, 227.0*2.4*2.4/12.0)
}

func TestParamsValidate(t *testing.T) {
	for _, c := range []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero robot mass", func(p *Params) { p.RobotMass = 0 }},
		{"negative pallet mass", func(p *Params) { p.MaxPalletMass = -1 }},
		{"zero wheel base", func(p *Params) { p.WheelBase = 0 }},
		{"NaN max speed", func(p *Params) { p.MaxSpeed = math.NaN() }},
		{"zero acceleration", func(p *Params) { p.Acceleration = 0 }},
		{"zero guide wheel width", func(p *Params) { p.GuideWheelWidth = 0 }},
		{"negative flange height", func(p *Params) { p.RailFlangeHeight = -0.01 }},
		{"infinite flange separation", func(p *Params) { p.FlangeSeparation = math.Inf(1) }},
	} {
		t.Run(c.name, func(t *testing.T) {
			p := DefaultParams()
			c.mutate(&p)
			test.That(t, p.Validate(), test.ShouldNotBeNil)
		})
	}
}

func TestParamsValidateReportsEverything(t *testing.T) {
	var p Params
	err := p.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "robot mass")
	test.That(t, err.Error(), test.ShouldContainSubstring, "wheel base")
	test.That(t, err.Error(), test.ShouldContainSubstring, "acceleration")
}
