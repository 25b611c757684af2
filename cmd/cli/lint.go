package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fulfilld/sourcing-service/internal/filter"
	"github.com/fulfilld/sourcing-service/internal/model"
	"github.com/fulfilld/sourcing-service/internal/rules"
	"github.com/fulfilld/sourcing-service/internal/scoring"
)

var lintEvaluate bool

var lintCmd = &cobra.Command{
	Use:   "lint <rule-file>",
	Short: "Compile a location filter rule and report errors",
	Long: `Compiles a rule script without touching the database. With --evaluate
the rule is also run against a synthetic location and probe order to catch
runtime errors (unknown identifiers, type mismatches, non-boolean results).`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintEvaluate, "evaluate", false, "evaluate against a synthetic location after compiling")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading rule file: %w", err)
	}

	prog, err := rules.Compile(string(source))
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}
	logger.Info().Str("file", args[0]).Msg("rule compiles")

	if !lintEvaluate {
		return nil
	}

	lat, lon := filter.WarmStartLatitude, filter.WarmStartLongitude
	probe := &model.OrderRequest{
		OrderID:   "LINT-PROBE",
		Latitude:  &lat,
		Longitude: &lon,
		Items: []model.OrderItem{{
			SKU:              "LINT-SKU",
			Quantity:         1,
			DeliveryType:     model.DeliveryStandard,
			LocationFilterID: "LINT",
		}},
	}
	loc := &model.Location{ID: 1, Name: "Lint Location", TransitTime: 2, Latitude: lat, Longitude: lon, IsActive: true}
	weights := scoring.WeightsMap(scoring.BuiltinDefault())

	env := rules.BuildEnv(loc, probe, probe.EffectiveOrderTime(), weights)
	result, err := prog.EvalBool(env)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	logger.Info().Bool("result", result).Msg("rule evaluates cleanly")
	return nil
}
