package report

import (
	"bytes"
	"strings"
	"testing"

	"ZKPong/internal/pong"
	"ZKPong/internal/transcript"
)

func recordGame(t *testing.T, ticks int) []transcript.Entry {
	t.Helper()
	rec := transcript.NewRecorder(ticks + 1)
	tuning := pong.DefaultTuning().WithMaxTicks(ticks)
	if _, err := pong.NewGame(tuning, rec).Run(t.Context(), pong.ImmediateScheduler{}); err != nil {
		t.Fatalf("run game: %v", err)
	}
	return rec.Freeze().Entries()
}

func TestRenderWritesCharts(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, recordGame(t, 10), WithTitle("demo match")); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"demo match", "10 ticks, score 0:0", "Paddle positions", "echarts"} {
		if !strings.Contains(html, want) {
			t.Fatalf("report missing %q", want)
		}
	}
}

func TestRenderRejectsEmptyTranscript(t *testing.T) {
	if err := Render(&bytes.Buffer{}, nil); err == nil {
		t.Fatalf("expected error for empty transcript")
	}
}
