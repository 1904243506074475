package encode

import (
	"testing"
	"time"

	"github.com/meetscribe/api/internal/model"
)

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line string
		want time.Duration
		ok   bool
	}{
		// out_time_ms is microseconds despite the name.
		{"out_time_ms=1500000", 1500 * time.Millisecond, true},
		{"  out_time_ms=0\n", 0, true},
		{"out_time_ms=-1", 0, false},
		{"out_time_ms=abc", 0, false},
		{"frame=42", 0, false},
		{"progress=continue", 0, false},
	}
	for _, c := range cases {
		got, ok := parseProgressLine(c.line)
		if ok != c.ok || got != c.want {
			t.Errorf("parseProgressLine(%q) = (%s, %v), want (%s, %v)", c.line, got, ok, c.want, c.ok)
		}
	}
}

func TestCodecArgs(t *testing.T) {
	if args := codecArgs("out.webm", model.QualityBalanced); args[1] != "libvpx-vp9" {
		t.Errorf("expected vp9 for webm, got %v", args)
	}
	if args := codecArgs("out.mp3", model.QualityBalanced); args[0] != "-vn" {
		t.Errorf("expected audio-only args for mp3, got %v", args)
	}

	fast := codecArgs("out.mp4", model.QualitySpeed)
	best := codecArgs("out.mp4", model.QualityBest)
	if fast[3] == best[3] {
		t.Errorf("expected quality profiles to change the preset, got %v vs %v", fast, best)
	}
}
