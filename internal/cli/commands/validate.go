package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridwatch/evaudit/pkg/config"
	"github.com/gridwatch/evaudit/pkg/logset"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate an evaudit configuration file without running analysis.

Checks:
  - YAML syntax
  - Required fields
  - Device serial format
  - Threshold consistency
  - Device folder discovery (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("Validating %s...\n", configPath)

	// Load and validate config
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Report what we found
	fmt.Printf("\nConfiguration valid!\n")
	fmt.Printf("  Log directory:  %s\n", cfg.LogDir)
	if len(cfg.Devices) > 0 {
		fmt.Printf("  Device filter:  %d serial(s)\n", len(cfg.Devices))
	} else {
		fmt.Printf("  Device filter:  none (all devices)\n")
	}
	fmt.Printf("  Output format:  %s\n", cfg.Format)
	fmt.Printf("  Workers:        %d\n", cfg.Runner.Workers)

	fmt.Printf("\nThresholds:\n")
	fmt.Printf("  Report gap:        %s\n", cfg.Gaps.Report)
	fmt.Printf("  OCPP probe gap:    %s\n", cfg.Gaps.Probe)
	fmt.Printf("  Min corrected gap: %s\n", cfg.Gaps.MinCorrected)
	fmt.Printf("  Banner gap:        %s\n", cfg.Gaps.Banner)
	fmt.Printf("  Meter floor:       %d register units\n", cfg.Meter.Floor)
	fmt.Printf("  Progress interval: %s\n", cfg.Runner.ProgressInterval.Round(time.Millisecond))

	// Check the log directory (warnings only)
	devices, err := logset.Collect(cfg.LogDir)
	if err != nil {
		fmt.Printf("\nWarning: cannot scan log directory: %v\n", err)
	} else if len(devices) == 0 {
		fmt.Printf("\nWarning: no device log folders found under %s\n", cfg.LogDir)
	} else {
		fmt.Printf("\nDevices discovered: %d\n", len(devices))
		for _, dev := range devices {
			marker := " "
			if cfg.MatchesDevice(dev.Serial) {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, dev.Serial)
		}
		if len(cfg.Devices) > 0 {
			fmt.Println("  (* = included by device filter)")
		}
	}

	return nil
}
