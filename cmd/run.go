// Package cmd implements the argus command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"argus/bootstrap"
	"argus/core"
	"argus/service"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

var severityColors = map[string]*color.Color{
	core.SeverityCritical: color.New(color.FgRed, color.Bold),
	core.SeverityHigh:     color.New(color.FgRed),
	core.SeverityMedium:   color.New(color.FgYellow),
	core.SeverityLow:      color.New(color.FgCyan),
}

// NewRootCmd builds the argus root command.
func NewRootCmd() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Batch security log detection pipeline",
		Long: `Argus ingests a batch of authentication/event logs, scores them for
anomalous behavior, matches them against known attack signatures, and
emits a single prioritized alert stream.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(newRunCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	var (
		configFile string
		input      string
		format     string
		rulesFile  string
		webhook    string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the detection pipeline once over a log batch",
		Long:  "Collect the configured log batch, run normalization, deduplication, anomaly scoring and rule matching, and emit the unified alert stream.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, sugar := bootstrap.InitLogger(verbose)
			defer logger.Sync()

			cfg, err := bootstrap.InitConfig(configFile, sugar)
			if err != nil {
				return err
			}
			if input != "" {
				cfg.LogPath = input
			}
			if format != "" {
				cfg.InputFormat = format
			}
			if rulesFile != "" {
				cfg.RulesFile = rulesFile
			}
			if webhook != "" {
				cfg.Alerting.Webhook = webhook
			}

			pipeline, err := service.NewPipeline(cfg, sugar)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = " analyzing log batch..."
			s.Start()

			report, err := pipeline.Run(context.Background())
			s.Stop()
			if err != nil {
				errorColor.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
				return err
			}

			printSummary(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./argus.yaml)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Log batch file (overrides LOG_PATH)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Batch format: json or msgpack")
	cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "Additional YAML rule definitions")
	cmd.Flags().StringVarP(&webhook, "webhook", "w", "", "Alert webhook URL (overrides ALERT_WEBHOOK)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func printSummary(report *core.RunReport) {
	headerColor.Println("\n=== Argus run summary ===")
	fmt.Printf("records ingested:  %d\n", report.RecordsIn)
	fmt.Printf("behavior groups:   %d\n", report.Groups)
	fmt.Printf("scorer:            %s\n", report.ScorerAlgorithm)
	fmt.Printf("alerts:            %d\n", len(report.Alerts))
	fmt.Printf("transport:         %s", report.TransportStatus)
	if report.TransportDetail != "" {
		fmt.Printf(" (%s)", report.TransportDetail)
	}
	fmt.Println()

	for _, alert := range report.Alerts {
		c, ok := severityColors[alert.UnifiedSeverity]
		if !ok {
			c = color.New(color.Reset)
		}
		c.Printf("  [%s] ", alert.UnifiedSeverity)
		fmt.Println(alert.Message)
	}

	if len(report.Warnings) > 0 {
		warningColor.Printf("\n%d warning(s):\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	if len(report.Alerts) == 0 {
		successColor.Println("\nno threats detected")
	}
}
