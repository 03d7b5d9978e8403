package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// decodeLines parses every JSONL line in data.
func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("bad JSONL line %q: %v", sc.Text(), err)
		}
		out = append(out, entry)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"Debug", slog.LevelDebug},
		{"TRACE", LevelTrace},
		{"loud", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) must sit below LevelDebug", LevelTrace)
	}
}

func TestNewLogger_TraceRounds(t *testing.T) {
	tests := []struct {
		level     string
		wantRound bool
		wantDebug bool
	}{
		{"info", false, false},
		{"debug", false, true},
		{"trace", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Log(context.Background(), LevelTrace, "propagation round", "round", 2)
			logger.Debug("analysis complete", "label", "Balanced")

			out := buf.String()
			if got := strings.Contains(out, "propagation round"); got != tt.wantRound {
				t.Errorf("round line visible = %v, want %v:\n%s", got, tt.wantRound, out)
			}
			if tt.wantRound && !strings.Contains(out, "level=TRACE") {
				t.Errorf("trace line not labelled TRACE:\n%s", out)
			}
			if got := strings.Contains(out, "analysis complete"); got != tt.wantDebug {
				t.Errorf("debug line visible = %v, want %v:\n%s", got, tt.wantDebug, out)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	for _, lvl := range []slog.Level{LevelTrace, slog.LevelInfo, slog.LevelError} {
		if logger.Enabled(context.Background(), lvl) {
			t.Errorf("Discard enabled at %v", lvl)
		}
	}
}

func TestNewDecisionLogger(t *testing.T) {
	tests := []struct {
		level       string
		wantLogger  bool
		wantTracing bool
	}{
		{"info", false, false},
		{"", false, false},
		{"debug", true, false},
		{"trace", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "nested")
			dl := NewDecisionLogger(dir, tt.level)
			defer dl.Close()

			if (dl != nil) != tt.wantLogger {
				t.Fatalf("logger = %v, want present %v", dl, tt.wantLogger)
			}
			if dl.Tracing() != tt.wantTracing {
				t.Errorf("Tracing() = %v, want %v", dl.Tracing(), tt.wantTracing)
			}

			dl.Log(map[string]any{"event": "analysis", "chart": "庚子 乙丑 丙寅 戊寅"})
			dl.Close()

			data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
			if !tt.wantLogger {
				if err == nil {
					t.Error("decisions.jsonl written at info level")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			lines := decodeLines(t, data)
			if len(lines) != 1 || lines[0]["event"] != "analysis" {
				t.Errorf("lines = %v", lines)
			}
		})
	}
}

func TestNewDecisionLogger_Appends(t *testing.T) {
	dir := t.TempDir()
	for _, chart := range []string{"戊寅 甲午 壬午 庚午", "辛巳 壬戌 甲子 丁丑"} {
		dl := NewDecisionLogger(dir, "debug")
		dl.Log(map[string]any{"event": "analysis", "chart": chart})
		dl.Close()
	}

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := decodeLines(t, data); len(lines) != 2 || lines[1]["chart"] != "辛巳 壬戌 甲子 丁丑" {
		t.Errorf("lines = %v", lines)
	}
}

func TestDecisionWriter_Log(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDecisionWriter(&buf, true)
	if !dl.Tracing() {
		t.Error("writer built with trace should report Tracing")
	}

	event := map[string]any{"event": "propagation_round", "round": 3, "energy": []float64{1.5, 0}}
	dl.Log(event)
	if _, ok := event["time"]; ok {
		t.Error("Log mutated the caller's map")
	}

	// NaN cannot be encoded; the event is dropped.
	dl.Log(map[string]any{"event": "analysis", "strength_score": math.NaN()})

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0]["event"] != "propagation_round" || lines[0]["round"] != 3.0 {
		t.Errorf("entry = %v", lines[0])
	}
	if ts, _ := lines[0]["time"].(string); ts == "" {
		t.Error("missing time field")
	}
}

func TestDecisionWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDecisionWriter(&buf, false)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dl.Log(map[string]any{"event": "analysis", "case": i})
		}()
	}
	wg.Wait()

	seen := map[float64]bool{}
	for _, entry := range decodeLines(t, buf.Bytes()) {
		seen[entry["case"].(float64)] = true
	}
	if len(seen) != 40 {
		t.Errorf("got %d distinct lines, want 40", len(seen))
	}
}

func TestDecisionLogger_CloseAndNil(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDecisionWriter(&buf, false)
	dl.Close()
	dl.Log(map[string]any{"event": "analysis"})
	if buf.Len() != 0 {
		t.Errorf("write after Close: %q", buf.String())
	}

	var none *DecisionLogger
	if none.Tracing() {
		t.Error("nil logger reports Tracing")
	}
	none.Log(map[string]any{"event": "analysis"})
	none.Close()
}
