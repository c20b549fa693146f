package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/cmd/setup"
	"github.com/mpapenbr/crewchief/pkg/config"
	"github.com/mpapenbr/crewchief/pkg/model"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type options struct {
	format string
	cars   []string
}

func NewSimulateCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "runs all laps without delay and prints the analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetupLogger(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sess, err := setup.NewSession()
			if err != nil {
				return err
			}
			log.Debug("simulating", log.String("session", sess.Key()))
			return run(ctx, cmd.OutOrStdout(), sess.Advance, config.TotalLaps, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format,
		"output",
		"o",
		FormatText,
		"output format (text, json)")
	cmd.Flags().StringSliceVar(&opts.cars,
		"car",
		nil,
		"only print these car numbers")
	return cmd
}

type advanceFunc func(ctx context.Context) (*model.TickResult, error)

//nolint:whitespace // editor/linter issue
func run(
	ctx context.Context, w io.Writer, advance advanceFunc, totalLaps int, opts options,
) error {
	if opts.format != FormatText && opts.format != FormatJSON {
		return fmt.Errorf("unknown output format %q", opts.format)
	}
	enc := json.NewEncoder(w)
	for lap := 1; lap <= totalLaps; lap++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick, err := advance(ctx)
		if err != nil {
			return err
		}
		tick.Cars = filterCars(tick.Cars, opts.cars)
		if opts.format == FormatJSON {
			if err := enc.Encode(tick); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(w, formatTick(tick)); err != nil {
			return err
		}
	}
	return nil
}

func filterCars(cars []model.CarAnalysis, only []string) []model.CarAnalysis {
	if len(only) == 0 {
		return cars
	}
	return lo.Filter(cars, func(ca model.CarAnalysis, _ int) bool {
		return lo.Contains(only, ca.Car.CarNumber)
	})
}

func formatTick(tick *model.TickResult) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "Lap %d/%d  %s %.1f°C track, grip %.2f, risk %s\n",
		tick.CurrentLap, tick.TotalLaps,
		tick.Weather.Current.Conditions, tick.Weather.Current.TrackTempC,
		tick.Weather.TrackGripScore, tick.Weather.RiskLevel)
	for i := range tick.Cars {
		b.WriteString(formatCar(&tick.Cars[i]))
	}
	return b.String()
}

func formatCar(ca *model.CarAnalysis) string {
	chase := "-"
	if ca.LeadChase != nil {
		chase = fmt.Sprintf("%s %ss/lap (%s)",
			ca.LeadChase.TargetCarNumber,
			decimal.NewFromFloat(ca.LeadChase.RequiredDeltaPerLap).StringFixed(3),
			ca.LeadChase.Feasibility)
	}
	return fmt.Sprintf(
		"  P%-2d #%-4s %-22s last %s z=%5s %-16s tire %3.0f%% engine %3.0f%% "+
			"%-8s fatigue %3.0f %-6s chase %s\n",
		ca.Car.Position, ca.Car.CarNumber, ca.Car.Driver,
		ca.Car.LastLapTime,
		decimal.NewFromFloat(ca.Pace.ZScore).StringFixed(2),
		ca.Pace.Trend,
		ca.EngineTire.TireWear, ca.EngineTire.EngineHealth,
		ca.EngineTire.RecommendedMode,
		ca.DriverState.FatigueScore, ca.DriverState.StressLevel,
		chase)
}
