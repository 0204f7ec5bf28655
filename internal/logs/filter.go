package logs

import (
	"encoding/json"
	"strings"
)

// Filter selects log lines. The zero value matches every line.
type Filter struct {
	RunID    string
	ItemPath string
	// MinLevel is one of debug, info, warn or error.
	MinLevel string
}

func (f Filter) empty() bool {
	return f.RunID == "" && f.ItemPath == "" && f.MinLevel == ""
}

// Match reports whether line passes the filter. Run IDs match by prefix so
// the short IDs printed by `trailcam status` work.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	fields := parseLine(line)
	if f.MinLevel != "" && levelRank(fields["level"]) < levelRank(f.MinLevel) {
		return false
	}
	if f.RunID != "" && !strings.HasPrefix(fields["run_id"], f.RunID) {
		return false
	}
	if f.ItemPath != "" && fields["item_path"] != f.ItemPath {
		return false
	}
	return true
}

// parseLine extracts level and key=value fields from a JSON or console line.
func parseLine(line string) map[string]string {
	fields := map[string]string{}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					fields[k] = s
				}
			}
			fields["level"] = strings.ToLower(fields["level"])
			return fields
		}
	}

	// Console: "<ts> <LEVEL> [component] message key=value ..."
	parts := strings.Fields(trimmed)
	if len(parts) > 1 {
		fields["level"] = strings.ToLower(parts[1])
	}
	for _, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			continue
		}
		fields[key] = strings.Trim(value, `"`)
	}
	return fields
}

func levelRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return 0
	case "info", "":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 1
	}
}
