// evaudit - EV Charging Station Log Diagnostics
//
// evaudit reconstructs absolute timelines from year-less rotated charger
// logs and reports reboots, lost charging transactions, connector protocol
// anomalies, and firmware history per device.
package main

import (
	"os"

	"github.com/gridwatch/evaudit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
