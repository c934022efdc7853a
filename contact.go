package railsim

import (
	"math"

	"github.com/pkg/errors"
)

// ContactConfig tunes the flange contact force law. The softening knee is an
// engineering heuristic, not derived physics: wide clearances behave as a
// less rigid contact, modeled by scaling stiffness with sqrt(knee/spacing).
type ContactConfig struct {
	// Stiffness of the normal spring term, N/m.
	Stiffness float64
	// Damping of the normal velocity term, N·s/m.
	Damping float64
	// Friction coefficient between guide wheel and flange.
	Friction float64
	// FrictionDeadband suppresses friction below this lateral speed, m/s,
	// so numerical jitter near rest does not produce chattering forces.
	FrictionDeadband float64
	// SofteningSpacing is the spacing above which stiffness is reduced, m.
	SofteningSpacing float64
}

// DefaultContactConfig returns the tuning used for the production rails.
func DefaultContactConfig() ContactConfig {
	return ContactConfig{
		Stiffness:        1e6,
		Damping:          1000,
		Friction:         0.3,
		FrictionDeadband: 0.01,
		SofteningSpacing: 0.05,
	}
}

// Validate checks the tuning is usable.
func (c ContactConfig) Validate() error {
	if !isFinite(c.Stiffness) || c.Stiffness <= 0 {
		return errors.Errorf("contact stiffness must be finite and positive, got %v", c.Stiffness)
	}
	if !isFinite(c.Damping) || c.Damping < 0 {
		return errors.Errorf("contact damping must be finite and non-negative, got %v", c.Damping)
	}
	if !isFinite(c.Friction) || c.Friction < 0 || c.Friction >= 1 {
		return errors.Errorf("friction coefficient must be in [0,1), got %v", c.Friction)
	}
	if !isFinite(c.FrictionDeadband) || c.FrictionDeadband < 0 {
		return errors.Errorf("friction deadband must be finite and non-negative, got %v", c.FrictionDeadband)
	}
	if !isFinite(c.SofteningSpacing) || c.SofteningSpacing <= 0 {
		return errors.Errorf("softening spacing must be finite and positive, got %v", c.SofteningSpacing)
	}
	return nil
}

// ContactForce is one sample of the guide wheel/flange interaction. Forces
// are repulsive only and therefore never negative; penetrations are capped at
// the flange height, since a wheel cannot sink deeper than the flange is
// tall. The cap doubles as the climbing signal downstream.
type ContactForce struct {
	// Left, Right are the per-side side forces, N.
	Left  float64
	Right float64
	// PenetrationLeft, PenetrationRight are the per-side flange
	// penetrations, m.
	PenetrationLeft  float64
	PenetrationRight float64
}

func (f ContactForce) finite() bool {
	for _, v := range [...]float64{f.Left, f.Right, f.PenetrationLeft, f.PenetrationRight} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ContactModel computes the per-side contact force between the guide wheels
// and the rail flanges from the chassis lateral state.
type ContactModel struct {
	params Params
	geom   RailGeometry
	cfg    ContactConfig

	halfWidth float64
	leftY     float64
	rightY    float64
}

// NewContactModel validates the tuning and binds it to one rail geometry.
func NewContactModel(params Params, geom RailGeometry, cfg ContactConfig) (*ContactModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid contact config")
	}
	return &ContactModel{
		params:    params,
		geom:      geom,
		cfg:       cfg,
		halfWidth: params.GuideWheelWidth / 2,
		leftY:     -params.GuideWheelSeparationAcross / 2,
		rightY:    params.GuideWheelSeparationAcross / 2,
	}, nil
}

func (m *ContactModel) effectiveStiffness() float64 {
	k := m.cfg.Stiffness
	if spacing := m.geom.Spacing(); spacing > m.cfg.SofteningSpacing {
		k *= math.Sqrt(m.cfg.SofteningSpacing / spacing)
	}
	return k
}

// Force computes the contact sample at longitudinal position x for lateral
// position y, lateral velocity vy and yaw theta. The fore and aft guide
// wheels on a side average out to the chassis-center lateral position for
// small yaw, so theta does not shift the contact edges; it is accepted to
// keep the signature stable for models that resolve the wheels individually.
func (m *ContactModel) Force(x, y, vy, theta float64) ContactForce {
	_ = theta

	leftFlange, rightFlange := m.geom.FlangePositions(x)

	leftEdge := y + m.leftY + m.halfWidth
	rightEdge := y + m.rightY - m.halfWidth

	// Positive gap: clearance remains. Negative gap: the wheel edge has
	// crossed the flange line.
	gapLeft := leftFlange - leftEdge
	gapRight := rightEdge - rightFlange

	var out ContactForce
	if gapLeft < 0 {
		out.PenetrationLeft = math.Min(-gapLeft, m.params.RailFlangeHeight)
		out.Left = m.sideForce(out.PenetrationLeft, vy, +1)
	}
	if gapRight < 0 {
		out.PenetrationRight = math.Min(-gapRight, m.params.RailFlangeHeight)
		out.Right = m.sideForce(out.PenetrationRight, vy, -1)
	}
	return out
}

// sideForce evaluates the spring-damper-friction law for one side. closing
// is +1 when positive vy closes the gap on this side, -1 when negative vy
// does.
func (m *ContactModel) sideForce(penetration, vy float64, closing float64) float64 {
	normal := m.effectiveStiffness()*penetration + m.cfg.Damping*closing*vy
	if normal < 0 {
		// The damper may not pull the wheel into the flange.
		normal = 0
	}
	var friction float64
	if math.Abs(vy) > m.cfg.FrictionDeadband {
		friction = m.cfg.Friction * normal * sign(closing*vy)
	}
	// Friction magnitude is at most Friction*normal with Friction < 1, so
	// the side force stays repulsive.
	return normal + friction
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
