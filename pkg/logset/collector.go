package logset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Log file base names inside a device folder, relative to Folder.
const (
	systemLogBase = "SystemLog"
	ocppLogBase   = "OCPP16J_Log.csv"
	logSubdir     = "Storage/SystemLog"
)

// serialPattern matches the 14-character device serial embedded in an
// extracted log folder name, e.g. "[2025.11.10-00.37]KKB241600073WE".
var serialPattern = regexp.MustCompile(`\]?([A-Z0-9]{14})`)

// Collect scans root for extracted device log folders and returns one
// DeviceLogs per folder that contains a system log. Folders without logs
// are skipped silently; an unreadable root is an error.
func Collect(root string) ([]DeviceLogs, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading log directory %s: %w", root, err)
	}

	var devices []DeviceLogs
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dev, ok := collectDevice(filepath.Join(root, entry.Name()))
		if ok {
			devices = append(devices, dev)
		}
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Serial < devices[j].Serial })
	return devices, nil
}

// collectDevice builds the DeviceLogs for a single extracted folder.
// Returns false when the folder holds no system log at all.
func collectDevice(folder string) (DeviceLogs, bool) {
	logDir := filepath.Join(folder, filepath.FromSlash(logSubdir))
	if _, err := os.Stat(logDir); err != nil {
		// Some bundles place logs directly in the folder root.
		logDir = folder
	}

	dev := DeviceLogs{
		Serial:     serialFromName(filepath.Base(folder)),
		Folder:     folder,
		SystemLogs: RotationSet(logDir, systemLogBase),
		OCPPLogs:   RotationSet(logDir, ocppLogBase),
	}

	if len(dev.SystemLogs) == 0 && len(dev.OCPPLogs) == 0 {
		return DeviceLogs{}, false
	}
	return dev, true
}

func serialFromName(name string) string {
	if m := serialPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// RotationSet returns the rotated files for base in dir, ordered oldest
// rotation first: highest numeric suffix down to the bare base name.
// A ".gz" suffix after the rotation number is accepted.
func RotationSet(dir, base string) []string {
	type rotation struct {
		path  string
		index int
	}

	var found []rotation
	for _, candidate := range []string{base, base + ".gz"} {
		path := filepath.Join(dir, candidate)
		if fileExists(path) {
			// Suffix absence means the newest file.
			found = append(found, rotation{path: path, index: -1})
			break
		}
	}

	// Device folder names contain glob metacharacters, so rotations are
	// matched by listing rather than globbing.
	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, base+".") {
			continue
		}
		suffix := strings.TrimPrefix(name, base+".")
		suffix = strings.TrimSuffix(suffix, ".gz")
		idx, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		found = append(found, rotation{path: filepath.Join(dir, name), index: idx})
	}

	// Highest suffix = oldest, so descending index, bare name (-1) last.
	sort.Slice(found, func(i, j int) bool { return found[i].index > found[j].index })

	paths := make([]string, 0, len(found))
	for _, r := range found {
		paths = append(paths, r.path)
	}
	return paths
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
