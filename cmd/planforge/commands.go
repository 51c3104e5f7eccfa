package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"planforge/internal/acquire"
	"planforge/internal/catalog"
	"planforge/internal/config"
	"planforge/internal/executor"
	"planforge/internal/graph"
	"planforge/internal/plan"
	"planforge/internal/producer"
	"planforge/internal/telemetry"
)

const version = "0.3.0"

var runAfterPlan bool

// planCmd formulates a plan for a goal and optionally executes it.
var planCmd = &cobra.Command{
	Use:   "plan [goal]",
	Short: "Formulate a validated plan for a goal",
	Long: `Asks the configured producer tiers for a plan, resolves it against the
operation catalog, and prints the resulting dependency graph. With --run the
plan is also executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

// describeCmd previews the dependency graph without executing anything.
var describeCmd = &cobra.Command{
	Use:   "describe [goal]",
	Short: "Show the dependency graph a goal would produce",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDescribe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("planforge", version)
	},
}

func init() {
	planCmd.Flags().BoolVar(&runAfterPlan, "run", false, "Execute the plan after formulation")
}

func runPlan(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")
	cat := demoCatalog(cfg.Execution.SandboxDir)

	resolved, metrics, tracker, err := formulate(cmd.Context(), goal, cat)
	if err != nil {
		return err
	}
	defer func() {
		if tracker != nil {
			if err := tracker.Save(); err != nil {
				logger.Warn("Failed to save telemetry", zap.Error(err))
			}
		}
	}()

	printMetrics(metrics)
	if resolved.Status() != plan.StatusReady {
		for _, reason := range resolved.Errors() {
			fmt.Println("  ✗", reason)
		}
		return fmt.Errorf("no tier produced a valid plan after %d attempts", metrics.TotalAttempts)
	}

	d, err := graph.Build(resolved.ActionSteps())
	if err != nil {
		return fmt.Errorf("plan %s is not schedulable: %w", resolved.ID, err)
	}
	fmt.Printf("Plan %s (%d steps):\n%s\n", resolved.ID, len(d.Nodes), d.Describe())

	if !runAfterPlan {
		return nil
	}
	return execute(cmd, resolved.ID, d)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")
	cat := demoCatalog(cfg.Execution.SandboxDir)

	resolved, metrics, tracker, err := formulate(cmd.Context(), goal, cat)
	if err != nil {
		return err
	}
	if tracker != nil {
		defer tracker.Save()
	}

	if resolved.Status() != plan.StatusReady {
		printMetrics(metrics)
		return fmt.Errorf("plan did not validate: %s", resolved.ErrorSummary())
	}

	d, err := graph.Build(resolved.ActionSteps())
	if err != nil {
		return err
	}
	fmt.Println(d.Describe())
	return nil
}

// formulate wires the configured tiers into an acquisition controller and
// runs it for the goal.
func formulate(ctx context.Context, goal string, cat *catalog.Catalog) (*plan.ResolvedPlan, *acquire.PlanningMetrics, *telemetry.Tracker, error) {
	resolver := plan.NewResolver(cat, catalog.NewResolverRegistry())

	tiers, err := buildTiers(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	var opts []acquire.Option
	var tracker *telemetry.Tracker
	if cfg.Telemetry.Enabled {
		tracker, err = telemetry.NewTracker(cfg.Telemetry.Path)
		if err != nil {
			logger.Warn("Telemetry disabled", zap.Error(err))
		} else {
			opts = append(opts, acquire.WithRecorder(tracker))
		}
	}

	controller, err := acquire.NewController(tiers, resolver, opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	prompt := planPrompt(goal, cat)
	resolved, metrics := controller.Formulate(ctx, prompt)
	return resolved, metrics, tracker, nil
}

func execute(cmd *cobra.Command, planID string, d *graph.DAG) error {
	var (
		res *executor.Result
		err error
	)
	if cfg.Execution.Concurrent {
		res, err = executor.NewLaneExecutor(cfg.Execution.MaxWorkers).Run(cmd.Context(), planID, d)
	} else {
		res, err = executor.New().RunDAG(cmd.Context(), planID, d)
	}
	if err != nil {
		return err
	}

	for _, o := range res.Outcomes {
		switch o.Status {
		case executor.StepOK:
			fmt.Printf("  ✓ %s (%s) %s\n", o.StepID, o.ActionID, o.Duration.Round(time.Millisecond))
		case executor.StepFailed:
			fmt.Printf("  ✗ %s (%s): %v\n", o.StepID, o.ActionID, o.Err)
		case executor.StepNotRun:
			fmt.Printf("  - %s (%s) not run\n", o.StepID, o.ActionID)
		}
	}
	if !res.Success {
		return fmt.Errorf("run %s failed at step %s", res.RunID, res.FailedStep)
	}
	fmt.Printf("Run %s succeeded, context keys: %v\n", res.RunID, res.Context.Keys())
	return nil
}

// buildTiers constructs one producer per configured tier. An empty tier list
// is allowed; formulation then degrades to a dry run.
func buildTiers(ctx context.Context, cfg *config.Config) ([]acquire.Tier, error) {
	tiers := make([]acquire.Tier, 0, len(cfg.Tiers))
	for i, tc := range cfg.Tiers {
		var (
			p   acquire.Producer
			err error
		)
		switch tc.Provider {
		case "openai":
			oc := producer.DefaultOpenAIConfig(tc.APIKey)
			oc.Model = tc.Model
			oc.Timeout = tc.Timeout
			if tc.BaseURL != "" {
				oc.BaseURL = tc.BaseURL
			}
			p = producer.NewOpenAIClient(oc)
		case "gemini":
			p, err = producer.NewGeminiProducer(ctx, tc.APIKey, tc.Model)
		case "static":
			p = producer.NewStaticProducer(demoPlanJSON)
		default:
			err = fmt.Errorf("tier %d: unknown provider %q", i, tc.Provider)
		}
		if err != nil {
			return nil, err
		}
		modelID := tc.Model
		if modelID == "" {
			modelID = tc.Provider
		}
		tiers = append(tiers, acquire.Tier{
			Producer:    p,
			ModelID:     modelID,
			MaxAttempts: tc.MaxAttempts,
		})
	}
	return tiers, nil
}

// planPrompt renders the goal plus the catalog the model may draw from.
func planPrompt(goal string, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("Goal: ")
	b.WriteString(goal)
	b.WriteString("\n\nAvailable operations:\n")
	for _, op := range cat.All() {
		b.WriteString("- ")
		b.WriteString(op.ID)
		if op.Description != "" {
			b.WriteString(": ")
			b.WriteString(op.Description)
		}
		for _, param := range op.Params {
			fmt.Fprintf(&b, "\n    %s (%s)", param.Name, param.Kind)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func printMetrics(m *acquire.PlanningMetrics) {
	if m.TotalAttempts == 0 {
		fmt.Println("No producers configured; dry run.")
		return
	}
	fmt.Printf("Attempts: %d across %d tier(s)", m.TotalAttempts, m.TiersAttempted())
	if m.Succeeded() {
		fmt.Printf(", accepted from %s", m.SuccessfulModelID)
	}
	fmt.Println()
}
