package railsim

import "math"

// RailGeometry maps a longitudinal position to the lateral positions of the
// two flanges. The flange positions are expressed relative to the guide
// wheel contact edges: with the robot centered the gap to each flange equals
// the configured spacing. Rails may carry a constant angle and a curvature
// (angle change per meter); both shift the flange pair laterally.
type RailGeometry struct {
	spacing       float64
	railAngle     float64
	anglePerMeter float64

	leftBase  float64
	rightBase float64
}

// NewRailGeometry builds the flange map for one spacing. spacing, railAngle
// and anglePerMeter are assumed validated by the caller (see Config).
func NewRailGeometry(params Params, spacing, railAngle, anglePerMeter float64) RailGeometry {
	halfWidth := params.GuideWheelWidth / 2
	leftEdge := -params.GuideWheelSeparationAcross/2 + halfWidth
	rightEdge := params.GuideWheelSeparationAcross/2 - halfWidth
	return RailGeometry{
		spacing:       spacing,
		railAngle:     railAngle,
		anglePerMeter: anglePerMeter,
		leftBase:      leftEdge + spacing,
		rightBase:     rightEdge - spacing,
	}
}

// Spacing is the designed centered-robot gap, m.
func (g RailGeometry) Spacing() float64 {
	return g.spacing
}

// AngleAt is the rail angle at longitudinal position x, rad.
func (g RailGeometry) AngleAt(x float64) float64 {
	return g.railAngle + g.anglePerMeter*x
}

// FlangePositions returns the lateral positions of the left and right
// flanges at longitudinal position x. Small-angle approximation: an angled
// rail shifts both flanges by tan(angle)·x.
func (g RailGeometry) FlangePositions(x float64) (left, right float64) {
	shift := math.Tan(g.AngleAt(x)) * x
	return g.leftBase + shift, g.rightBase + shift
}

// WheelLayout holds the longitudinal stations of the drive and guide wheels.
// It feeds no force calculation; it exists for geometry reporting and for the
// admissible-offset bound.
type WheelLayout struct {
	// WheelX are the four drive wheel centers, front to rear.
	WheelX [4]float64
	// GuideCenterX is the guide wheel group center, centered between the
	// two drive wheel sets.
	GuideCenterX float64
	// GuideFrontX, GuideRearX are the per-side guide wheel stations.
	GuideFrontX float64
	GuideRearX  float64
	// GuideLeftY, GuideRightY are the lateral guide wheel centers.
	GuideLeftY  float64
	GuideRightY float64
	// MaxDriveWheelOffset is how far the chassis can shift laterally before
	// a drive wheel leaves the horizontal rail surface.
	MaxDriveWheelOffset float64
}

// NewWheelLayout derives the wheel stations from the physical parameters.
func NewWheelLayout(params Params) WheelLayout {
	var l WheelLayout
	l.WheelX[0] = -params.WheelBase / 2
	l.WheelX[1] = l.WheelX[0] + params.WheelSpacingInSet
	l.WheelX[2] = l.WheelX[1] + params.WheelSetSeparation
	l.WheelX[3] = l.WheelX[2] + params.WheelSpacingInSet

	l.GuideCenterX = (l.WheelX[1] + l.WheelX[2]) / 2
	l.GuideFrontX = l.GuideCenterX - params.GuideWheelSeparation/2
	l.GuideRearX = l.GuideCenterX + params.GuideWheelSeparation/2
	l.GuideLeftY = -params.GuideWheelSeparationAcross / 2
	l.GuideRightY = params.GuideWheelSeparationAcross / 2

	if params.RailHorizontalWidth > params.DriveWheelWidth {
		l.MaxDriveWheelOffset = (params.RailHorizontalWidth - params.DriveWheelWidth) / 2
	}
	return l
}

// MaxOffset is the lateral offset at which a guide wheel first touches a
// flange: the spacing itself, by definition.
func (l WheelLayout) MaxOffset(spacing float64) float64 {
	return spacing
}

// MaxYaw is the largest yaw angle geometrically admissible for a given
// spacing before the fore/aft guide wheels bind against the flanges.
func MaxYaw(spacing, wheelBase float64) float64 {
	if spacing <= 0 || wheelBase <= 0 {
		return 0
	}
	return math.Atan(spacing / wheelBase)
}
