package railsim

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// SkewToTheta converts a measured front-to-back lateral skew in millimeters
// into the equivalent initial yaw angle in radians.
func SkewToTheta(skewMM, wheelBase float64) float64 {
	return skewMM / 1000.0 / wheelBase
}

// SweepConfig describes a batch over spacing values. Spacings are given in
// millimeters, matching how clearances are specified on the rail drawings;
// everything else is SI.
type SweepConfig struct {
	// SpacingsMM are the clearances to evaluate, mm. Each one is an
	// independent scenario.
	SpacingsMM []float64
	// Duration bounds each run, s. Runs stop earlier once MaxDistance is
	// covered.
	Duration float64
	// Step is the integration step, s; zero selects DefaultStep.
	Step float64
	// InitialSkewMM seeds each run's yaw misalignment, mm front-to-back.
	InitialSkewMM float64
	// MaxDistance is the travel distance per run, m.
	MaxDistance float64
	// RailAngle and RailAnglePerMeter describe the rail alignment.
	RailAngle         float64
	RailAnglePerMeter float64
}

// Validate rejects batch-level mistakes up front. Per-spacing problems are
// not checked here; they surface on the individual results.
func (c SweepConfig) Validate() error {
	var err error
	if len(c.SpacingsMM) == 0 {
		err = multierr.Append(err, errors.New("no spacing values given"))
	}
	if !isFinite(c.Duration) || c.Duration <= 0 {
		err = multierr.Append(err, errors.Errorf("duration must be finite and positive, got %v", c.Duration))
	}
	if !isFinite(c.Step) || c.Step < 0 {
		err = multierr.Append(err, errors.Errorf("step must be finite and non-negative, got %v", c.Step))
	}
	if !isFinite(c.InitialSkewMM) {
		err = multierr.Append(err, errors.Errorf("initial skew must be finite, got %v", c.InitialSkewMM))
	}
	if !isFinite(c.MaxDistance) || c.MaxDistance <= 0 {
		err = multierr.Append(err, errors.Errorf("max distance must be finite and positive, got %v", c.MaxDistance))
	}
	if !isFinite(c.RailAngle) || !isFinite(c.RailAnglePerMeter) {
		err = multierr.Append(err, errors.Errorf("rail angle %v and curvature %v must be finite",
			c.RailAngle, c.RailAnglePerMeter))
	}
	return err
}

// ScenarioResult is the outcome for one spacing value. Err carries scenario
// construction failures and numerical divergence; when Err is set, Analysis
// is nil and Trajectory holds whatever was produced before the failure.
type ScenarioResult struct {
	SpacingMM  float64
	Trajectory *Trajectory
	Analysis   *Verdict
	Err        error
}

// RunSpacingAnalysis runs one scenario per spacing value and classifies each
// run. Scenarios are independent and run in parallel; a failing spacing is
// reported on its own result and never aborts the rest of the sweep. The
// returned map is keyed by spacing in millimeters.
func RunSpacingAnalysis(ctx context.Context, logger golog.Logger, params Params, cfg SweepConfig) (map[float64]*ScenarioResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid sweep config")
	}
	step := cfg.Step
	if step == 0 {
		step = DefaultStep
	}
	initialTheta := SkewToTheta(cfg.InitialSkewMM, params.WheelBase)

	results := make(map[float64]*ScenarioResult, len(cfg.SpacingsMM))
	var (
		mu   sync.Mutex
		wait sync.WaitGroup
	)
	for _, spacingMM := range cfg.SpacingsMM {
		spacingMM := spacingMM
		wait.Add(1)
		goutils.PanicCapturingGo(func() {
			defer wait.Done()
			res := runScenario(ctx, logger, params, Config{
				Spacing:           spacingMM / 1000.0,
				InitialTheta:      initialTheta,
				RailAngle:         cfg.RailAngle,
				RailAnglePerMeter: cfg.RailAnglePerMeter,
			}, cfg.Duration, step, cfg.MaxDistance)
			res.SpacingMM = spacingMM
			mu.Lock()
			results[spacingMM] = res
			mu.Unlock()
		})
	}
	wait.Wait()
	return results, nil
}

func runScenario(
	ctx context.Context,
	logger golog.Logger,
	params Params,
	cfg Config,
	duration, step, maxDistance float64,
) *ScenarioResult {
	sim, err := NewSimulator(logger, params, cfg)
	if err != nil {
		logger.Warnw("scenario rejected", "spacing_mm", cfg.Spacing*1000, "error", err)
		return &ScenarioResult{Err: err}
	}
	traj, err := sim.Simulate(ctx, duration, step, maxDistance)
	if err != nil {
		logger.Warnw("scenario failed", "spacing_mm", cfg.Spacing*1000, "error", err)
		return &ScenarioResult{Trajectory: traj, Err: err}
	}
	verdict, err := sim.Analyze(traj)
	if err != nil {
		return &ScenarioResult{Trajectory: traj, Err: err}
	}
	return &ScenarioResult{Trajectory: traj, Analysis: verdict}
}
