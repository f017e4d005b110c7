package nxapi

import "strings"

// ExtractBlock pulls one top-level configuration block out of running-config
// text. A block is the header line plus every following line indented under
// it. Returns nil when the header is not present, which callers record as
// the resource being absent.
func ExtractBlock(configText string, header string) []string {
	return ExtractBlockFunc(configText, func(line string) bool {
		return line == header
	})
}

// ExtractBlockFunc is ExtractBlock with a caller-supplied header predicate.
// Useful when the exact header is not known in advance, e.g. a class-map
// whose match mode on the device differs from the compiled one.
func ExtractBlockFunc(configText string, match func(headerLine string) bool) []string {
	lines := strings.Split(configText, "\n")

	for i, raw := range lines {
		line := strings.TrimRight(raw, " \r")
		if line == "" || strings.HasPrefix(line, " ") {
			continue
		}
		if !match(line) {
			continue
		}

		block := []string{line}
		for _, raw := range lines[i+1:] {
			sub := strings.TrimRight(raw, " \r")
			if sub == "" {
				continue
			}
			if !strings.HasPrefix(sub, " ") {
				break
			}
			block = append(block, sub)
		}
		return block
	}

	return nil
}

// Normalize collapses runs of whitespace inside each line so that device
// output and compiled commands compare structurally rather than textually.
// Blank lines are dropped.
func Normalize(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return out
}
