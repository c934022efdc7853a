// Package main runs guide wheel spacing sweeps from the command line and
// reports a stability verdict per spacing.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/warebotics/railsim"
)

var logger = golog.NewDevelopmentLogger("railsim")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command. Numeric flags are strings because the flag
// parser only handles bool/string/int natively.
type Arguments struct {
	Spacings  string `flag:"spacings,usage=comma separated spacing values in mm (default 1 2 5 10 20 50 100)"`
	Duration  string `flag:"duration,default=10,usage=max run duration (s)"`
	Skew      string `flag:"skew,default=10,usage=initial front-to-back skew (mm)"`
	Distance  string `flag:"distance,default=10,usage=travel distance per run (m)"`
	Step      string `flag:"step,default=0.001,usage=integration step (s)"`
	RailAngle string `flag:"rail-angle,default=0,usage=constant rail angle (rad)"`
	Curvature string `flag:"curvature,default=0,usage=rail angle change per meter (rad/m)"`
	PlotDir   string `flag:"plot-dir,usage=write lateral and yaw charts as PNG to this directory"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	spacings := []float64{1, 2, 5, 10, 20, 50, 100}
	if argsParsed.Spacings != "" {
		var err error
		if spacings, err = parseFloatList(argsParsed.Spacings); err != nil {
			return errors.Wrap(err, "bad -spacings")
		}
	}
	sort.Float64s(spacings)

	var duration, skew, distance, step, railAngle, curvature float64
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"duration", argsParsed.Duration, &duration},
		{"skew", argsParsed.Skew, &skew},
		{"distance", argsParsed.Distance, &distance},
		{"step", argsParsed.Step, &step},
		{"rail-angle", argsParsed.RailAngle, &railAngle},
		{"curvature", argsParsed.Curvature, &curvature},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return errors.Wrapf(err, "bad -%s", f.name)
		}
		*f.dst = v
	}

	results, err := railsim.RunSpacingAnalysis(ctx, logger, railsim.DefaultParams(), railsim.SweepConfig{
		SpacingsMM:        spacings,
		Duration:          duration,
		Step:              step,
		InitialSkewMM:     skew,
		MaxDistance:       distance,
		RailAngle:         railAngle,
		RailAnglePerMeter: curvature,
	})
	if err != nil {
		return err
	}

	printVerdicts(spacings, results)

	var failed error
	for _, spacing := range spacings {
		if res := results[spacing]; res.Err != nil {
			failed = multierr.Append(failed, errors.Wrapf(res.Err, "spacing %gmm", spacing))
		}
	}

	if argsParsed.PlotDir != "" {
		if err := writeCharts(argsParsed.PlotDir, spacings, results); err != nil {
			return multierr.Combine(failed, err)
		}
		logger.Infof("charts written to %s", argsParsed.PlotDir)
	}
	return failed
}

func parseFloatList(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad value %q", p)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no values given")
	}
	return out, nil
}

func printVerdicts(spacings []float64, results map[float64]*railsim.ScenarioResult) {
	w := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPACING (mm)\tPING-PONG\tFREQ (Hz)\tHITS\tMAX FORCE (N)\tENERGY (J)\tCLIMB RISK\tLATERAL MAX (mm)\tYAW MAX (deg)\tFLAGS")
	for _, spacing := range spacings {
		res := results[spacing]
		if res.Err != nil {
			fmt.Fprintf(w, "%g\tFAILED\t-\t-\t-\t-\t-\t-\t-\t%v\n", spacing, res.Err)
			continue
		}
		v := res.Analysis
		var flags []string
		if v.ExcessiveForce {
			flags = append(flags, "excessive-force")
		}
		if v.HighEnergy {
			flags = append(flags, "high-energy")
		}
		if v.ClimbingRiskHigh {
			flags = append(flags, "climbing")
		}
		fmt.Fprintf(w, "%g\t%t\t%.2f\t%d\t%.0f\t%.1f\t%.2f\t%.1f\t%.2f\t%s\n",
			spacing,
			v.IsPingPonging,
			v.OscillationFrequency,
			v.RailHits,
			v.MaxContactForce,
			v.EnergyImparted,
			v.ClimbingRisk,
			v.LateralMax*1000,
			v.AngularMax*180/math.Pi,
			strings.Join(flags, ","),
		)
	}
	w.Flush()
}

func writeCharts(dir string, spacings []float64, results map[float64]*railsim.ScenarioResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	charts := []struct {
		file  string
		title string
		yAxis string
		value func(railsim.State) float64
	}{
		{"lateral.png", "Lateral position", "y (mm)", func(s railsim.State) float64 { return s.Y * 1000 }},
		{"yaw.png", "Yaw angle", "theta (deg)", func(s railsim.State) float64 { return s.Theta * 180 / math.Pi }},
	}
	for _, c := range charts {
		p := plot.New()
		p.Title.Text = c.title
		p.X.Label.Text = "t (s)"
		p.Y.Label.Text = c.yAxis
		for i, spacing := range spacings {
			res := results[spacing]
			if res.Err != nil {
				continue
			}
			pts := make(plotter.XYs, len(res.Trajectory.Time))
			for j, t := range res.Trajectory.Time {
				pts[j].X = t
				pts[j].Y = c.value(res.Trajectory.States[j])
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return err
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("%gmm", spacing), line)
		}
		if err := p.Save(10*vg.Inch, 6*vg.Inch, filepath.Join(dir, c.file)); err != nil {
			return err
		}
	}
	return nil
}
