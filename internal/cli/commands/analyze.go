package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridwatch/evaudit/pkg/config"
	"github.com/gridwatch/evaudit/pkg/diagnostic"
	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/output"
	"github.com/gridwatch/evaudit/pkg/reboot"
	"github.com/gridwatch/evaudit/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	ConfigFile string
	Output     string
	Devices    []string
	Workers    int
	Verbose    bool
	Quiet      bool
	Progress   bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [log-dir]",
		Short: "Analyze device log bundles for faults and data loss",
		Long: `Analyze every extracted device log folder under the given directory.

For each device the system and OCPP logs are read, an absolute timeline is
reconstructed from RTC anchors, and the detectors report:
  - Reboot and outage events with their classified cause
  - Charging transactions whose ids or stop records were lost
  - Connector protocol-state violations and anomalies
  - The firmware version history

The log directory may come from the argument or from a config file.

Exit codes:
  0 - No issues detected
  1 - Issues detected on at least one device
  2 - Configuration or runtime error`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output format (text|json)")
	cmd.Flags().StringSliceVar(&opts.Devices, "device", nil, "Analyze specific device serial(s) only (can be repeated)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Worker pool cap (0 = config default)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show raw boundary lines and full histories")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Show per-device progress on stderr")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(ctx, opts, args)
	if err != nil {
		return err
	}

	devices, err := collectDevices(cfg)
	if err != nil {
		return err
	}

	started := time.Now()

	runner := newRunner(cfg, opts)
	reports := runner.Run(devices)
	if opts.Progress {
		fmt.Fprintln(os.Stderr)
	}

	batch := output.NewBatch(reports, cfg.LogDir, opts.ConfigFile, started)

	formatter, err := output.NewFormatter(cfg.Format, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	if err := formatter.Format(ctx, batch, os.Stdout); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Send webhooks (errors logged but don't fail analysis)
	sendWebhooks(ctx, cfg, opts, batch)

	// Set exit code based on results
	if batch.HasIssues() {
		ExitCode = 1
	}

	return nil
}

// loadConfig merges the config file, defaults, and command-line overrides.
func loadConfig(ctx context.Context, opts *AnalyzeOptions, args []string) (*config.Config, error) {
	var cfg *config.Config
	if opts.ConfigFile != "" {
		loaded, err := config.Load(ctx, opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if len(args) > 0 {
		cfg.LogDir = args[0]
	}
	if len(opts.Devices) > 0 {
		cfg.Devices = opts.Devices
	}
	if opts.Workers > 0 {
		cfg.Runner.Workers = opts.Workers
	}
	if opts.Output != "" {
		cfg.Format = opts.Output
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// collectDevices discovers device folders and applies the serial filter.
func collectDevices(cfg *config.Config) ([]logset.DeviceLogs, error) {
	all, err := logset.Collect(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("collecting device logs: %w", err)
	}

	var devices []logset.DeviceLogs
	for _, dev := range all {
		if cfg.MatchesDevice(dev.Serial) {
			devices = append(devices, dev)
		}
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no device log folders found under %s", cfg.LogDir)
	}
	return devices, nil
}

// sendWebhooks sends the batch to all configured webhooks.
// Errors are logged to stderr but don't fail the analysis.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *AnalyzeOptions, batch *output.Batch) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !shouldFireWebhook(wh.Trigger, batch.HasIssues()) {
			continue
		}

		resp := client.Send(ctx, batch, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			fmt.Fprintf(os.Stderr, "Webhook %s: sent (%d, %s)\n", name, resp.StatusCode, resp.Duration)
		} else {
			fmt.Fprintf(os.Stderr, "Webhook %s: failed (%v)\n", name, resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

// shouldFireWebhook determines if a webhook should fire based on trigger and issues.
func shouldFireWebhook(trigger config.WebhookTrigger, hasIssues bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	case config.WebhookTriggerOnIssues:
		return hasIssues
	default:
		// Default to on_issues
		return hasIssues
	}
}

func newRunner(cfg *config.Config, opts *AnalyzeOptions) *diagnostic.Runner {
	analyzer := diagnostic.NewAnalyzer(
		diagnostic.WithClassifier(&reboot.Classifier{
			ReportGap:       cfg.Gaps.Report,
			ProbeGap:        cfg.Gaps.Probe,
			MinCorrectedGap: cfg.Gaps.MinCorrected,
			BannerGap:       cfg.Gaps.Banner,
		}),
		diagnostic.WithMeterFloor(cfg.Meter.Floor),
	)

	runner := diagnostic.NewRunner(analyzer)
	runner.Workers = cfg.Runner.Workers
	runner.ProgressTick = cfg.Runner.ProgressInterval

	if opts.Progress {
		runner.Render = func(status map[string]string) {
			done := 0
			for _, stage := range status {
				if stage == "done" || stage == "failed" {
					done++
				}
			}
			fmt.Fprintf(os.Stderr, "\ranalyzing %d devices: %d complete", len(status), done)
		}
	}

	return runner
}
