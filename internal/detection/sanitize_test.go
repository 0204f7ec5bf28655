package detection

import "testing"

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"detections":[]}`, `{"detections":[]}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":[1,2,],}", `{"a":[1,2]}`},
		{"{\n  \"a\": 1 // one\n}", "{\n  \"a\": 1 \n}"},
		{`/* note */ {"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		if got := sanitizeModelJSON(tt.in); got != tt.want {
			t.Fatalf("sanitizeModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
