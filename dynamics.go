package railsim

import "math"

// Drive and stabilization tuning. These are engineering policy values
// carried over from the field-calibrated model, not derived physics.
const (
	// driveHorizon is the look-ahead used to taper forward acceleration so
	// a step never overshoots max speed, s.
	driveHorizon = 0.1

	// hardYawSpring and softYawSpring implement the geometric yaw limit as
	// stiff restoring springs: beyond MaxYaw the fore/aft guide wheels
	// would bind, which the model cannot represent as a true constraint.
	hardYawSpring = 1e6
	softYawSpring = 1e4
	// softYawOnset is the fraction of MaxYaw where the soft spring engages.
	softYawOnset = 0.8

	// Yaw damping: linear base, widened above wideSpacing, plus a
	// quadratic term that caps high yaw rates.
	yawDampingBase      = 200.0
	yawDampingWideBase  = 300.0
	yawDampingWideSlope = 1000.0
	yawDampingQuadratic = 1000.0
	wideSpacing         = 0.05

	// Lateral damping: linear base plus extra damping once lateral speed
	// exceeds maxLateralRatio of forward speed (rail-guided vehicles are
	// operated with lateral speed under ~30% of forward speed).
	lateralDamping       = 200.0
	lateralExcessDamping = 500.0
	maxLateralRatio      = 0.3
	// minForwardSpeed gates the ratio rule; the ratio is meaningless near
	// standstill.
	minForwardSpeed = 0.1
)

// Dynamics produces the 6-state time derivative for the integrator:
// forward drive, flange contact, forward/yaw coupling, and the restoring and
// damping terms that keep the model inside its geometric envelope.
type Dynamics struct {
	params  Params
	contact *ContactModel
	spacing float64

	totalMass float64
	inertia   float64
	maxYaw    float64
	leverArm  float64
}

// NewDynamics binds the derivative to one contact model and spacing.
func NewDynamics(params Params, contact *ContactModel, spacing float64) *Dynamics {
	return &Dynamics{
		params:    params,
		contact:   contact,
		spacing:   spacing,
		totalMass: params.TotalMass(),
		inertia:   params.MomentOfInertia(),
		maxYaw:    MaxYaw(spacing, params.WheelBase),
		leverArm:  params.GuideWheelSeparation / 2,
	}
}

// Derivative evaluates d(state)/dt. The system is autonomous; time enters
// only through the state itself.
func (d *Dynamics) Derivative(s State) State {
	// Forward drive: constant acceleration, tapered inside the look-ahead
	// horizon so max speed is approached, never overshot.
	var ax float64
	if s.VX < d.params.MaxSpeed {
		ax = math.Min(d.params.Acceleration, (d.params.MaxSpeed-s.VX)/driveHorizon)
	}

	cf := d.contact.Force(s.X, s.Y, s.VY, s.Theta)
	netForce := cf.Right - cf.Left

	// The fore/aft guide wheel pair turns a side force difference into a
	// yaw torque about the chassis center.
	torque := netForce * d.leverArm
	torque += d.restoringTorque(s.Theta)

	yawDampingLinear := yawDampingBase
	if d.spacing > wideSpacing {
		yawDampingLinear = yawDampingWideBase + yawDampingWideSlope*d.spacing
	}
	dampingTorque := -yawDampingLinear*s.Omega - yawDampingQuadratic*s.Omega*math.Abs(s.Omega)

	// Forward motion with a yaw rate swings the chassis laterally.
	couplingForce := -d.totalMass * s.VX * s.Omega

	return State{
		X:     s.VX,
		Y:     s.VY,
		Theta: s.Omega,
		VX:    ax,
		VY:    (netForce + couplingForce + d.lateralDampingForce(s.VX, s.VY)) / d.totalMass,
		Omega: (torque + dampingTorque) / d.inertia,
	}
}

// restoringTorque enforces the geometric yaw envelope: a very stiff spring
// past MaxYaw, a soft spring from softYawOnset of it.
func (d *Dynamics) restoringTorque(theta float64) float64 {
	abs := math.Abs(theta)
	switch {
	case abs > d.maxYaw:
		return -hardYawSpring * (abs - d.maxYaw) * sign(theta)
	case d.maxYaw > 0 && abs > d.maxYaw*softYawOnset:
		return -softYawSpring * (abs/d.maxYaw - softYawOnset) * sign(theta)
	}
	return 0
}

func (d *Dynamics) lateralDampingForce(vx, vy float64) float64 {
	force := -lateralDamping * vy
	if vx > minForwardSpeed {
		if limit := math.Abs(vx) * maxLateralRatio; math.Abs(vy) > limit {
			force -= lateralExcessDamping * (math.Abs(vy) - limit) * sign(vy)
		}
	}
	return force
}
