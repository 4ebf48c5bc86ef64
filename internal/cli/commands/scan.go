package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gridwatch/evaudit/pkg/logset"
)

// ScanOptions holds command-line options for the scan command.
type ScanOptions struct {
	Output      string
	ShowFiles   bool
	WriteConfig string
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	opts := &ScanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <log-dir>",
		Short: "List discovered device log folders",
		Long: `Scan a directory for extracted device log folders without analyzing them.

Reports each discovered device serial and its rotated log files, in the
order they would be read (oldest rotation first). Useful for verifying a
log bundle before running analyze.

Optionally generates a starter config file with --write-config.

Example:
  evaudit scan /var/log/chargers
  evaudit scan --files /var/log/chargers
  evaudit scan --write-config evaudit.yaml /var/log/chargers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVar(&opts.ShowFiles, "files", false, "List every rotated log file per device")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runScan(args []string, opts *ScanOptions) error {
	logDir := args[0]

	devices, err := logset.Collect(logDir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", logDir, err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(logDir, devices, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputScanJSON(logDir, devices)
	default:
		return outputScanText(logDir, devices, opts)
	}
}

func outputScanText(logDir string, devices []logset.DeviceLogs, opts *ScanOptions) error {
	fmt.Println("=== Device Log Scan ===")
	fmt.Println()
	fmt.Printf("Directory: %s\n", logDir)
	fmt.Printf("Devices found: %d\n", len(devices))
	fmt.Println()

	if len(devices) == 0 {
		fmt.Println("No device log folders detected.")
		fmt.Println()
		fmt.Println("Tip: each device folder must contain a SystemLog or OCPP16J_Log.csv,")
		fmt.Println("either at the folder root or under Storage/SystemLog/.")
		return nil
	}

	for _, dev := range devices {
		fmt.Printf("%s\n", dev.Serial)
		fmt.Printf("  Folder: %s\n", dev.Folder)
		fmt.Printf("  System log files: %d, OCPP log files: %d\n",
			len(dev.SystemLogs), len(dev.OCPPLogs))

		if opts.ShowFiles {
			for _, path := range dev.SystemLogs {
				fmt.Printf("    %s\n", path)
			}
			for _, path := range dev.OCPPLogs {
				fmt.Printf("    %s\n", path)
			}
		}
		fmt.Println()
	}

	return nil
}

// JSONDevice represents one discovered device in JSON output.
type JSONDevice struct {
	Serial     string   `json:"serial"`
	Folder     string   `json:"folder"`
	SystemLogs []string `json:"system_logs"`
	OCPPLogs   []string `json:"ocpp_logs"`
}

// JSONScan represents the full JSON scan output.
type JSONScan struct {
	Directory string       `json:"directory"`
	Devices   []JSONDevice `json:"devices"`
}

func outputScanJSON(logDir string, devices []logset.DeviceLogs) error {
	out := JSONScan{
		Directory: logDir,
		Devices:   make([]JSONDevice, 0, len(devices)),
	}

	for _, dev := range devices {
		out.Devices = append(out.Devices, JSONDevice{
			Serial:     dev.Serial,
			Folder:     dev.Folder,
			SystemLogs: dev.SystemLogs,
			OCPPLogs:   dev.OCPPLogs,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file for the scanned directory.
func writeStarterConfig(logDir string, devices []logset.DeviceLogs, configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	absLogDir := logDir
	if abs, err := filepath.Abs(logDir); err == nil {
		absLogDir = abs
	}

	content := generateStarterConfig(absLogDir, devices)

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(logDir string, devices []logset.DeviceLogs) string {
	deviceLines := ""
	for _, dev := range devices {
		deviceLines += fmt.Sprintf("#   - %s\n", dev.Serial)
	}
	if deviceLines == "" {
		deviceLines = "#   - KKB241600073WE\n"
	}

	return fmt.Sprintf(`# evaudit Configuration
# Generated by: evaudit scan

log_dir: %s

# Restrict analysis to specific device serials (default: all):
# devices:
%s
# Reboot classification thresholds:
# gaps:
#   report: 2h         # smallest gap worth reporting
#   probe: 24h         # consult OCPP log beyond this
#   min_corrected: 3m  # smallest RTC-corrected gap counted as power loss
#   banner: 6m         # largest gap for a controlled firmware reboot

# Meter register audit:
# meter:
#   floor: 100000      # lifetime-energy floor in register units

# Worker pool:
# runner:
#   workers: 8
#   progress_interval: 500ms

# Output format (text|json):
# format: text
`, logDir, deviceLines)
}
