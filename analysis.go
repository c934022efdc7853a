package railsim

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AnalyzerConfig holds the classification and safety thresholds. Every value
// is operating policy calibrated on the production fleet, not derived
// physics; change them only with domain sign-off.
type AnalyzerConfig struct {
	// MaxSafeContactForce flags rail-bending concern, N.
	MaxSafeContactForce float64
	// ClimbingForceFraction is the peak-force-to-weight ratio above which
	// a wheel could be levered over the flange.
	ClimbingForceFraction float64
	// HighEnergyLimit flags excessive energy pumped into the rails, J.
	HighEnergyLimit float64
	// ClimbingRiskLimit is the penetration/flange-height fraction treated
	// as high climbing risk.
	ClimbingRiskLimit float64

	// FrequencyLimit (and FrequencyLimitWide above WideSpacing) is the
	// oscillation frequency treated as ping-ponging, Hz. Wider gaps are
	// judged at a lower frequency.
	FrequencyLimit     float64
	FrequencyLimitWide float64
	WideSpacing        float64

	// RailHitForce is the per-side force threshold that counts as a
	// discrete flange strike, N; RailHitLimit is the strike count (over
	// the fixed travel distance) treated as ping-ponging.
	RailHitForce float64
	RailHitLimit int

	// Growth detection: the trajectory splits into GrowthWindows windows;
	// the per-window peak amplitudes are fit with a degree-1 trend. A
	// slope above GrowthSlope (m per window) is growing, and growing runs
	// whose peak exceeds GrowthAmplitudeFactor times the spacing count as
	// ping-ponging.
	GrowthWindows         int
	GrowthSlope           float64
	GrowthAmplitudeFactor float64
}

// DefaultAnalyzerConfig returns the fleet-calibrated thresholds.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MaxSafeContactForce:   50000.0,
		ClimbingForceFraction: 0.4,
		HighEnergyLimit:       1000.0,
		ClimbingRiskLimit:     0.8,
		FrequencyLimit:        0.5,
		FrequencyLimitWide:    0.3,
		WideSpacing:           0.05,
		RailHitForce:          10.0,
		RailHitLimit:          10,
		GrowthWindows:         5,
		GrowthSlope:           0.001,
		GrowthAmplitudeFactor: 1.5,
	}
}

// Validate checks the thresholds are usable.
func (c AnalyzerConfig) Validate() error {
	if c.GrowthWindows < 2 {
		return errors.Errorf("growth windows must be at least 2, got %d", c.GrowthWindows)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"max safe contact force", c.MaxSafeContactForce},
		{"climbing force fraction", c.ClimbingForceFraction},
		{"high energy limit", c.HighEnergyLimit},
		{"climbing risk limit", c.ClimbingRiskLimit},
		{"frequency limit", c.FrequencyLimit},
		{"wide frequency limit", c.FrequencyLimitWide},
		{"wide spacing", c.WideSpacing},
		{"rail hit force", c.RailHitForce},
	} {
		if !isFinite(f.value) || f.value <= 0 {
			return errors.Errorf("%s must be finite and positive, got %v", f.name, f.value)
		}
	}
	return nil
}

// Verdict is the stability, safety and ping-pong classification of one
// completed run.
type Verdict struct {
	// Lateral and yaw excursion statistics over the run.
	LateralStd float64
	LateralMax float64
	AngularStd float64
	AngularMax float64

	// OscillationFrequency counts full left-right-left cycles per second,
	// from sign changes of the lateral velocity. ZeroCrossings is the raw
	// sign-change count behind it.
	OscillationFrequency float64
	ZeroCrossings        int

	// RailHits counts discrete flange strikes: per-side force rising
	// through the noise threshold from below.
	RailHits int

	// MaxContactForce is the peak instantaneous total rail load
	// (|left|+|right|), N. MaxPenetration is the peak per-side flange
	// penetration, m.
	MaxContactForce float64
	MaxPenetration  float64

	// EnergyImparted is the energy pumped into the rails over the run, J.
	// Power counts only while a side force acts against motion into that
	// rail, so it is non-negative by construction.
	EnergyImparted float64

	// ClimbingRisk is MaxPenetration as a fraction of the flange height,
	// in [0,1]. ClimbingForceRisk fires when the peak contact force
	// exceeds ClimbingForceFraction of the vehicle weight.
	ClimbingRisk      float64
	ClimbingForceRisk bool

	// Growth trend of the per-window peak amplitudes, m per window.
	IsGrowing      bool
	AmplitudeTrend float64

	// IsPingPonging is the combined instability verdict.
	IsPingPonging bool

	// Safety flags.
	ExcessiveForce   bool
	HighEnergy       bool
	ClimbingRiskHigh bool
}

// StabilityAnalyzer classifies completed trajectories for one spacing.
type StabilityAnalyzer struct {
	params  Params
	spacing float64
	cfg     AnalyzerConfig
}

// NewStabilityAnalyzer validates the thresholds and binds them to a spacing.
func NewStabilityAnalyzer(params Params, spacing float64, cfg AnalyzerConfig) (*StabilityAnalyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid analyzer config")
	}
	return &StabilityAnalyzer{params: params, spacing: spacing, cfg: cfg}, nil
}

// Analyze computes the verdict for a completed trajectory.
func (a *StabilityAnalyzer) Analyze(traj *Trajectory) (*Verdict, error) {
	if traj == nil || len(traj.Time) == 0 {
		return nil, errors.New("empty trajectory")
	}
	n := len(traj.Time)
	if len(traj.States) != n || len(traj.Forces) != n {
		return nil, errors.Errorf("trajectory length mismatch: %d times, %d states, %d forces",
			n, len(traj.States), len(traj.Forces))
	}

	y := make([]float64, n)
	theta := make([]float64, n)
	vy := make([]float64, n)
	left := make([]float64, n)
	right := make([]float64, n)
	for i := range traj.States {
		y[i] = traj.States[i].Y
		theta[i] = traj.States[i].Theta
		vy[i] = traj.States[i].VY
		left[i] = traj.Forces[i].Left
		right[i] = traj.Forces[i].Right
	}

	v := &Verdict{
		LateralStd: sampleStd(y),
		LateralMax: maxAbs(y),
		AngularStd: sampleStd(theta),
		AngularMax: maxAbs(theta),
	}

	for i := range traj.Forces {
		if total := math.Abs(left[i]) + math.Abs(right[i]); total > v.MaxContactForce {
			v.MaxContactForce = total
		}
		if pen := math.Max(traj.Forces[i].PenetrationLeft, traj.Forces[i].PenetrationRight); pen > v.MaxPenetration {
			v.MaxPenetration = pen
		}
	}

	v.EnergyImparted = a.energyImparted(traj.Time, left, right, vy)

	if a.params.RailFlangeHeight > 0 {
		v.ClimbingRisk = v.MaxPenetration / a.params.RailFlangeHeight
	}
	if weight := a.params.TotalMass() * Gravity; weight > 0 {
		v.ClimbingForceRisk = v.MaxContactForce/weight > a.cfg.ClimbingForceFraction
	}

	v.ZeroCrossings = signChanges(vy)
	if last := traj.Time[n-1]; last > 0 {
		// One full oscillation is two direction changes.
		v.OscillationFrequency = float64(v.ZeroCrossings) / (2 * last)
	}

	v.RailHits = a.countHits(left) + a.countHits(right)
	v.AmplitudeTrend, v.IsGrowing = a.growthTrend(y)

	freqLimit := a.cfg.FrequencyLimit
	if a.spacing > a.cfg.WideSpacing {
		freqLimit = a.cfg.FrequencyLimitWide
	}
	v.IsPingPonging = v.OscillationFrequency > freqLimit ||
		v.RailHits > a.cfg.RailHitLimit ||
		(v.IsGrowing && v.LateralMax > a.spacing*a.cfg.GrowthAmplitudeFactor)

	v.ExcessiveForce = v.MaxContactForce > a.cfg.MaxSafeContactForce
	v.HighEnergy = v.EnergyImparted > a.cfg.HighEnergyLimit
	v.ClimbingRiskHigh = v.ClimbingRisk > a.cfg.ClimbingRiskLimit || v.ClimbingForceRisk
	return v, nil
}

// energyImparted integrates (trapezoidal rule) the power delivered into a
// rail. Power counts only while the chassis moves into the rail the force
// comes from: the "left" side engages moving one way, the "right" side the
// other.
func (a *StabilityAnalyzer) energyImparted(t, left, right, vy []float64) float64 {
	if len(t) < 2 {
		return 0
	}
	power := make([]float64, len(t))
	for i := range power {
		if left[i] > 0 && vy[i] < 0 {
			power[i] += left[i] * -vy[i]
		}
		if right[i] > 0 && vy[i] > 0 {
			power[i] += right[i] * vy[i]
		}
	}
	return integrate.Trapezoidal(t, power)
}

// countHits counts rising edges of one side's force through the noise
// threshold: discrete flange strikes, as opposed to sustained contact.
func (a *StabilityAnalyzer) countHits(force []float64) int {
	hits := 0
	for i := 1; i < len(force); i++ {
		if force[i] > a.cfg.RailHitForce && force[i-1] <= a.cfg.RailHitForce {
			hits++
		}
	}
	return hits
}

// growthTrend splits the lateral series into equal windows, fits the
// per-window peak with a least-squares line and reports the slope.
func (a *StabilityAnalyzer) growthTrend(y []float64) (trend float64, growing bool) {
	windows := a.cfg.GrowthWindows
	size := len(y) / windows
	if size == 0 {
		return 0, false
	}
	idx := make([]float64, windows)
	amps := make([]float64, windows)
	for i := 0; i < windows; i++ {
		start := i * size
		end := start + size
		if i == windows-1 {
			end = len(y)
		}
		idx[i] = float64(i)
		amps[i] = maxAbs(y[start:end])
	}
	_, slope := stat.LinearRegression(idx, amps, nil, false)
	return slope, slope > a.cfg.GrowthSlope
}

func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, v := range xs {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// signChanges counts transitions of the sign of xs, zeros included, the way
// a direction-change counter sees them.
func signChanges(xs []float64) int {
	changes := 0
	for i := 1; i < len(xs); i++ {
		if sign(xs[i]) != sign(xs[i-1]) {
			changes++
		}
	}
	return changes
}
