package encode

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/meetscribe/api/internal/model"
)

// FFmpeg encodes via the ffmpeg binary, mapping -progress output to the
// progress callback.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

func (f *FFmpeg) Encode(ctx context.Context, inputPath, outputPath string, profile model.QualityProfile, onProgress Progress) error {
	total, err := f.probeDuration(ctx, inputPath)
	if err != nil {
		// Progress reporting degrades to nothing; the encode itself can
		// still succeed.
		log.Printf("Could not probe duration of %s: %v", inputPath, err)
	}

	args := []string{"-y", "-i", inputPath}
	args = append(args, codecArgs(outputPath, profile)...)
	args = append(args, "-progress", "pipe:1", "-nostats", "-loglevel", "error", outputPath)

	cmd := exec.CommandContext(ctx, f.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		elapsed, ok := parseProgressLine(scanner.Text())
		if !ok || total <= 0 || onProgress == nil {
			continue
		}
		onProgress(float64(elapsed) / float64(total) * 100)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// parseProgressLine extracts elapsed output time from one -progress line.
// ffmpeg reports out_time_ms in microseconds despite the name.
func parseProgressLine(line string) (time.Duration, bool) {
	value, ok := strings.CutPrefix(strings.TrimSpace(line), "out_time_ms=")
	if !ok {
		return 0, false
	}
	micros, err := strconv.ParseInt(value, 10, 64)
	if err != nil || micros < 0 {
		return 0, false
	}
	return time.Duration(micros) * time.Microsecond, true
}

func (f *FFmpeg) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func codecArgs(outputPath string, profile model.QualityProfile) []string {
	preset, crf := "medium", "23"
	switch profile {
	case model.QualitySpeed:
		preset, crf = "veryfast", "28"
	case model.QualityBest:
		preset, crf = "slow", "18"
	}

	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".webm":
		return []string{"-c:v", "libvpx-vp9", "-crf", crf, "-b:v", "0", "-c:a", "libopus"}
	case ".mp3":
		return []string{"-vn", "-c:a", "libmp3lame", "-q:a", "2"}
	default:
		return []string{"-c:v", "libx264", "-preset", preset, "-crf", crf, "-c:a", "aac", "-movflags", "+faststart"}
	}
}
