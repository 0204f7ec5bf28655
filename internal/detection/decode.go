package detection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedOutput is returned when detector output is not one of the
// accepted JSON shapes.
var ErrMalformedOutput = errors.New("malformed detector output")

type batchPayload struct {
	Images []imagePayload `json:"images"`
}

type imagePayload struct {
	File             string             `json:"file"`
	MaxDetectionConf *float64           `json:"max_detection_conf"`
	Failure          string             `json:"failure"`
	Detections       []detectionPayload `json:"detections"`
}

type detectionPayload struct {
	Category json.RawMessage   `json:"category"`
	Conf     json.RawMessage   `json:"conf"`
	BBox     []json.RawMessage `json:"bbox"`
}

// Decode parses detector output and aligns it to inputs. It accepts the
// MegaDetector batch shape {"images":[...]} or a bare array of image
// entries. Entries are matched to inputs by file path, then by base name.
// Inputs with no entry get an empty Result.
func Decode(data []byte, inputs []string, cats CategoryMap) ([]Result, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]int, len(entries))
	byBase := make(map[string]int, len(entries))
	ambiguous := make(map[string]bool)
	for i, e := range entries {
		file := filepath.Clean(strings.TrimSpace(e.File))
		if file == "." {
			continue
		}
		byPath[file] = i
		base := filepath.Base(file)
		if _, dup := byBase[base]; dup {
			ambiguous[base] = true
		}
		byBase[base] = i
	}

	results := make([]Result, len(inputs))
	for i, input := range inputs {
		results[i] = Result{Path: input}
		idx, ok := byPath[filepath.Clean(input)]
		if !ok {
			base := filepath.Base(input)
			if !ambiguous[base] {
				idx, ok = byBase[base]
			}
		}
		if !ok {
			continue
		}
		results[i] = convert(input, entries[idx], cats)
	}
	return results, nil
}

func parseEntries(data []byte) ([]imagePayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}
	switch trimmed[0] {
	case '{':
		var batch batchPayload
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return batch.Images, nil
	case '[':
		var entries []imagePayload
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: expected JSON object or array", ErrMalformedOutput)
	}
}

func convert(path string, entry imagePayload, cats CategoryMap) Result {
	res := Result{Path: path, Failure: strings.TrimSpace(entry.Failure)}
	maxConf := 0.0
	for _, d := range entry.Detections {
		det, ok := validate(d, cats)
		if !ok {
			res.Dropped++
			continue
		}
		maxConf = math.Max(maxConf, det.Confidence)
		res.Detections = append(res.Detections, det)
	}
	res.MaxConfidence = maxConf
	if entry.MaxDetectionConf != nil && !math.IsNaN(*entry.MaxDetectionConf) {
		res.MaxConfidence = clamp01(*entry.MaxDetectionConf)
	}
	return res
}

func validate(d detectionPayload, cats CategoryMap) (Detection, bool) {
	conf, ok := parseNumber(d.Conf)
	if !ok {
		return Detection{}, false
	}
	code, ok := parseCode(d.Category)
	if !ok || len(d.BBox) != 4 {
		return Detection{}, false
	}
	var coords [4]float64
	for i, raw := range d.BBox {
		if coords[i], ok = parseNumber(raw); !ok {
			return Detection{}, false
		}
	}
	if coords[2] < 0 || coords[3] < 0 {
		return Detection{}, false
	}
	return Detection{
		Category:    cats.Classify(code),
		RawCategory: code,
		Confidence:  clamp01(conf),
		Box:         Box{X: coords[0], Y: coords[1], W: coords[2], H: coords[3]},
	}, true
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseCode accepts "1" or 1.
func parseCode(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
