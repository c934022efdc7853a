// Package railsim simulates the lateral and yaw dynamics of a rail-guided
// warehouse robot whose guide wheels may contact vertical flanges on the
// rails. It answers, for a given guide-wheel-to-flange clearance ("spacing"),
// whether travel is stable or degenerates into repeated side-to-side impacts
// against the rails ("ping-ponging"), and quantifies contact forces, energy
// transfer into the rails, and the risk of a guide wheel climbing over a
// flange.
package railsim

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Gravity used for weight-based force ratios, m/s².
const Gravity = 9.81

// Params holds the physical and geometric constants of one robot/rail
// configuration. All fields are SI (meters, kilograms, seconds). A Params
// value is treated as immutable once a simulation is constructed from it.
type Params struct {
	// RobotMass is the unloaded chassis mass, kg.
	RobotMass float64
	// MaxPalletMass is the heaviest payload the robot carries, kg. The
	// simulation always runs fully loaded.
	MaxPalletMass float64

	// Drive wheels: four per side in two sets of two. They carry the load
	// and set the wheel base; they never contact the flanges.
	DriveWheelDiameter float64
	DriveWheelWidth    float64
	WheelSpacingInSet  float64
	WheelSetSeparation float64

	// Guide wheels: horizontal wheels that contact the flanges laterally.
	GuideWheelDiameter float64
	GuideWheelWidth    float64
	// GuideWheelSeparation is the front-to-back distance between the two
	// guide wheels on one side.
	GuideWheelSeparation float64
	// GuideWheelSeparationAcross is the distance between the left and
	// right guide wheel centers.
	GuideWheelSeparationAcross float64

	// MaxSpeed and Acceleration define the forward drive profile.
	MaxSpeed     float64
	Acceleration float64

	// WheelBase is the distance between the outside faces of the first and
	// last drive wheels.
	WheelBase float64

	// Rail cross-section.
	RailFlangeHeight    float64
	RailHorizontalWidth float64
	FlangeSeparation    float64
}

// DefaultParams returns the measured constants of the production robot.
func DefaultParams() Params {
	return Params{
		RobotMass:     227.0,  // 500 lbs
		MaxPalletMass: 1361.0, // 3000 lbs

		DriveWheelDiameter: 0.1,
		DriveWheelWidth:    0.0381,
		WheelSpacingInSet:  0.105,
		WheelSetSeparation: 0.749,

		GuideWheelDiameter:         0.08,
		GuideWheelWidth:            0.016,
		GuideWheelSeparation:       0.464,
		GuideWheelSeparationAcross: 1.1192,

		MaxSpeed:     1.5,
		Acceleration: 0.75,

		WheelBase: 1.2,

		RailFlangeHeight:    0.01905, // 0.75 in
		RailHorizontalWidth: 0.06604, // 2.6 in
		FlangeSeparation:    1.2192,  // 48 in
	}
}

// TotalMass is the chassis plus a full payload, kg.
func (p Params) TotalMass() float64 {
	return p.RobotMass + p.MaxPalletMass
}

// MomentOfInertia approximates the loaded robot as a uniform bar of length
// WheelBase: I = m L² / 12. Derived on demand so it can never go stale
// against the mass or wheel base.
func (p Params) MomentOfInertia() float64 {
	return p.TotalMass() * p.WheelBase * p.WheelBase / 12.0
}

// Validate reports every violated constraint, combined into one error.
// Simulations must not be constructed from invalid parameters; the dynamics
// divide by TotalMass and MomentOfInertia.
func (p Params) Validate() error {
	var err error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			err = multierr.Append(err, errors.Errorf(format, args...))
		}
	}

	check(isFinite(p.RobotMass) && p.RobotMass > 0, "robot mass must be finite and positive, got %v", p.RobotMass)
	check(isFinite(p.MaxPalletMass) && p.MaxPalletMass >= 0, "pallet mass must be finite and non-negative, got %v", p.MaxPalletMass)
	check(isFinite(p.WheelBase) && p.WheelBase > 0, "wheel base must be finite and positive, got %v", p.WheelBase)
	check(isFinite(p.MaxSpeed) && p.MaxSpeed > 0, "max speed must be finite and positive, got %v", p.MaxSpeed)
	check(isFinite(p.Acceleration) && p.Acceleration > 0, "acceleration must be finite and positive, got %v", p.Acceleration)
	check(isFinite(p.GuideWheelWidth) && p.GuideWheelWidth > 0, "guide wheel width must be finite and positive, got %v", p.GuideWheelWidth)
	check(isFinite(p.GuideWheelSeparation) && p.GuideWheelSeparation > 0,
		"guide wheel separation must be finite and positive, got %v", p.GuideWheelSeparation)
	check(isFinite(p.GuideWheelSeparationAcross) && p.GuideWheelSeparationAcross > 0,
		"guide wheel across-separation must be finite and positive, got %v", p.GuideWheelSeparationAcross)
	check(isFinite(p.RailFlangeHeight) && p.RailFlangeHeight >= 0,
		"rail flange height must be finite and non-negative, got %v", p.RailFlangeHeight)
	check(isFinite(p.RailHorizontalWidth) && p.RailHorizontalWidth > 0,
		"rail horizontal width must be finite and positive, got %v", p.RailHorizontalWidth)
	check(isFinite(p.FlangeSeparation) && p.FlangeSeparation > 0,
		"flange separation must be finite and positive, got %v", p.FlangeSeparation)
	if err == nil && p.MomentOfInertia() <= 0 {
		err = errors.New("moment of inertia must be positive")
	}
	return err
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
