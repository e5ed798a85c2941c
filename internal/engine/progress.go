package engine

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	progressPattern  = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)
	destPattern      = regexp.MustCompile(`^\[(?:download|ExtractAudio)\] Destination: (.+)$`)
	mergePattern     = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
	alreadyDLPattern = regexp.MustCompile(`^\[download\] (.+) has already been downloaded`)
)

// ParseProgress extracts the percentage from a "[download]  42.5% ..." line.
// The value is clamped to [0,100].
func ParseProgress(line string) (float64, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return clampPercent(pct), true
}

// ParseDestination returns the output file named by line, or "".
// Merge and extraction lines override an earlier download destination.
func ParseDestination(line string) string {
	line = strings.TrimSpace(line)
	for _, re := range []*regexp.Regexp{mergePattern, destPattern, alreadyDLPattern} {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// ScanOutputLines is a bufio.SplitFunc that ends a line at '\n', '\r' or
// "\r\n". Progress redraws that use a bare carriage return become separate
// lines.
func ScanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 == len(data) && !atEOF {
				return 0, nil, nil
			}
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
