// Package logset discovers and reads the rotated log file sets of EV
// charging stations.
package logset

// Line is a raw log line read from a device log file.
type Line struct {
	// Text is the raw line content.
	Text string

	// Source is the file path this line came from.
	Source string

	// Num is the 1-based line number in the source file.
	Num int
}

// DeviceLogs describes the log files belonging to one charging station,
// with each rotation set ordered oldest-first.
type DeviceLogs struct {
	// Serial is the 14-character device serial number, or the folder name
	// when no serial could be extracted.
	Serial string

	// Folder is the extracted log folder for this device.
	Folder string

	// SystemLogs are the rotated system log files, oldest rotation first.
	SystemLogs []string

	// OCPPLogs are the rotated OCPP protocol log files, oldest rotation first.
	OCPPLogs []string
}
