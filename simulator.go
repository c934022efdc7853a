package railsim

import (
	"context"
	"fmt"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// DefaultStep is the integration step used when a caller does not supply
// one, s. The contact stiffness of the default tuning needs millisecond-scale
// steps.
const DefaultStep = 1e-3

// maxStep bounds the step a caller may request; beyond ~10 ms the contact
// springs are no longer resolved by an explicit integrator.
const maxStep = 0.01

// ctxCheckInterval is how many integration steps run between context checks.
const ctxCheckInterval = 1024

// Config describes one scenario: a spacing, an initial misalignment, and the
// rail alignment. Zero-valued Contact/Analyzer fields are replaced by the
// defaults at construction.
type Config struct {
	// Spacing is the centered-robot guide wheel to flange gap, m.
	Spacing float64
	// InitialTheta is the initial yaw misalignment, rad. See SkewToTheta
	// for deriving it from a front-to-back skew measurement.
	InitialTheta float64
	// RailAngle is a constant rail angle, rad.
	RailAngle float64
	// RailAnglePerMeter is the rail angle change per meter, rad/m.
	RailAnglePerMeter float64

	Contact  ContactConfig
	Analyzer AnalyzerConfig
}

// Validate rejects physically senseless scenarios before any integration.
func (c Config) Validate() error {
	if !isFinite(c.Spacing) || c.Spacing <= 0 || c.Spacing > 0.5 {
		return errors.Errorf("spacing must be finite, positive and at most 0.5 m, got %v", c.Spacing)
	}
	if !isFinite(c.InitialTheta) || math.Abs(c.InitialTheta) > 0.5 {
		return errors.Errorf("initial yaw must be finite and within ±0.5 rad, got %v", c.InitialTheta)
	}
	if !isFinite(c.RailAngle) || !isFinite(c.RailAnglePerMeter) {
		return errors.Errorf("rail angle %v and curvature %v must be finite", c.RailAngle, c.RailAnglePerMeter)
	}
	return nil
}

// DivergenceError reports a non-finite value in an integrated trajectory.
// It is a scenario outcome distinct from any stability verdict: a diverged
// run has no verdict at all.
type DivergenceError struct {
	// Time of the first non-finite sample, s.
	Time float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("numerical divergence: non-finite trajectory value at t=%.4fs", e.Time)
}

// Trajectory is a completed run: sample times, the state series, and the
// contact forces recomputed at each retained sample. All three slices have
// equal length and are not mutated after Simulate returns.
type Trajectory struct {
	Time   []float64
	States []State
	Forces []ContactForce
}

// Simulator owns one scenario and drives it from initial conditions to a
// distance or duration stop.
type Simulator struct {
	logger golog.Logger
	params Params
	cfg    Config

	geom     RailGeometry
	layout   WheelLayout
	contact  *ContactModel
	dynamics *Dynamics
	analyzer *StabilityAnalyzer
}

// NewSimulator validates parameters and scenario and assembles the model
// chain. All validation happens here; Simulate assumes a sound scenario.
func NewSimulator(logger golog.Logger, params Params, cfg Config) (*Simulator, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid robot parameters")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	if cfg.Contact == (ContactConfig{}) {
		cfg.Contact = DefaultContactConfig()
	}
	if cfg.Analyzer == (AnalyzerConfig{}) {
		cfg.Analyzer = DefaultAnalyzerConfig()
	}

	geom := NewRailGeometry(params, cfg.Spacing, cfg.RailAngle, cfg.RailAnglePerMeter)
	contact, err := NewContactModel(params, geom, cfg.Contact)
	if err != nil {
		return nil, err
	}
	analyzer, err := NewStabilityAnalyzer(params, cfg.Spacing, cfg.Analyzer)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		logger:   logger,
		params:   params,
		cfg:      cfg,
		geom:     geom,
		layout:   NewWheelLayout(params),
		contact:  contact,
		dynamics: NewDynamics(params, contact, cfg.Spacing),
		analyzer: analyzer,
	}, nil
}

// Geometry returns the scenario's rail geometry.
func (s *Simulator) Geometry() RailGeometry { return s.geom }

// Layout returns the derived wheel layout.
func (s *Simulator) Layout() WheelLayout { return s.layout }

// initialOffset picks the starting lateral offset for the scenario. This is
// a tunable run-seeding policy, not a physical initial condition: the run
// must exhibit contact to say anything about stability, so wider spacings
// start proportionally further off center.
func (s *Simulator) initialOffset() float64 {
	switch spacing := s.cfg.Spacing; {
	case spacing < 0.002:
		// Near-zero clearance: start nearly centered and let the yaw
		// misalignment provoke contact.
		return s.params.WheelBase * math.Tan(s.cfg.InitialTheta) * 0.5
	case spacing < 0.01:
		return spacing * 0.2
	default:
		return spacing * 0.3
	}
}

// initialState seeds the run: at the origin, laterally offset per policy,
// yawed by the configured misalignment, at rest.
func (s *Simulator) initialState() State {
	return State{Y: s.initialOffset(), Theta: s.cfg.InitialTheta}
}

// travelDuration is the closed-form time to cover dist with the
// accelerate-then-cruise drive profile.
func (s *Simulator) travelDuration(dist float64) float64 {
	accelTime := s.params.MaxSpeed / s.params.Acceleration
	accelDist := 0.5 * s.params.Acceleration * accelTime * accelTime
	if dist <= accelDist {
		return math.Sqrt(2 * dist / s.params.Acceleration)
	}
	return accelTime + (dist-accelDist)/s.params.MaxSpeed
}

// Simulate integrates the scenario with a fixed step until maxDistance is
// covered or the duration bound expires, then recomputes the contact force
// at every retained sample. A non-finite trajectory returns the trajectory
// together with a *DivergenceError.
func (s *Simulator) Simulate(ctx context.Context, duration, step, maxDistance float64) (*Trajectory, error) {
	if !isFinite(duration) || duration <= 0 {
		return nil, errors.Errorf("duration must be finite and positive, got %v", duration)
	}
	if !isFinite(step) || step <= 0 || step > maxStep {
		return nil, errors.Errorf("step must be in (0, %v] s, got %v", maxStep, step)
	}
	if !isFinite(maxDistance) || maxDistance <= 0 {
		return nil, errors.Errorf("max distance must be finite and positive, got %v", maxDistance)
	}

	actual := math.Min(s.travelDuration(maxDistance), duration)
	samples := int(math.Ceil(actual / step))
	if samples < 1 {
		samples = 1
	}
	s.logger.Debugf("spacing %.1fmm: integrating %d steps of %.1fms (duration %.3fs)",
		s.cfg.Spacing*1000, samples, step*1000, actual)

	traj := &Trajectory{
		Time:   make([]float64, 0, samples),
		States: make([]State, 0, samples),
	}
	state := s.initialState()
	for i := 0; i < samples; i++ {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		traj.Time = append(traj.Time, float64(i)*step)
		traj.States = append(traj.States, state)
		if state.X >= maxDistance {
			break
		}
		state = rk4Step(s.dynamics.Derivative, state, step)
	}

	traj.Forces = make([]ContactForce, len(traj.States))
	for i, st := range traj.States {
		traj.Forces[i] = s.contact.Force(st.X, st.Y, st.VY, st.Theta)
	}

	for i := range traj.States {
		if !traj.States[i].finite() || !traj.Forces[i].finite() {
			return traj, &DivergenceError{Time: traj.Time[i]}
		}
	}
	return traj, nil
}

// Analyze classifies a completed trajectory. See StabilityAnalyzer.
func (s *Simulator) Analyze(traj *Trajectory) (*Verdict, error) {
	return s.analyzer.Analyze(traj)
}
