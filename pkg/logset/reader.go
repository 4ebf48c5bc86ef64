package logset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds a single log line; device logs occasionally embed
// whole OCPP payloads on one line.
const maxLineSize = 1024 * 1024

// ReadLines reads every line from the given files in order. Files that
// cannot be opened or read are skipped and reported as warnings rather
// than failing the set. Rotated files compressed with gzip (".gz") are
// decompressed transparently.
func ReadLines(files []string) ([]Line, []string) {
	var lines []Line
	var warnings []string

	for _, path := range files {
		fileLines, err := readFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", path, err))
			continue
		}
		lines = append(lines, fileLines...)
	}

	return lines, warnings
}

func readFile(path string) ([]Line, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided log paths are expected
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var lines []Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	num := 0
	for scanner.Scan() {
		num++
		lines = append(lines, Line{
			Text:   scanner.Text(),
			Source: path,
			Num:    num,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
