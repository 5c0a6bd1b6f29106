package localmedia

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lectoria/storyforge-backend/internal/platform/logger"
)

// Tools shells out to system binaries for the media work no API covers.
//
// REQUIRED BINARIES in worker runtime:
// - ffmpeg for audio chunk concatenation
//
// Synchronous and deterministic; call from worker activities, not handlers.
type Tools interface {
	AssertReady(ctx context.Context) error

	// ConcatAudio joins same-codec audio files into one, in the order given.
	ConcatAudio(ctx context.Context, inputPaths []string, outPath string) error
}

type tools struct {
	log            *logger.Logger
	ffmpegPath     string
	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("service", "MediaTools"),
		ffmpegPath:     "ffmpeg",
		defaultTimeout: 5 * time.Minute,
	}
}

func (t *tools) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(t.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return nil
}

func (t *tools) ConcatAudio(ctx context.Context, inputPaths []string, outPath string) error {
	if len(inputPaths) == 0 {
		return fmt.Errorf("no input files")
	}

	// ffmpeg concat demuxer wants a list file next to the inputs.
	listPath := filepath.Join(filepath.Dir(outPath), fmt.Sprintf("concat-%d.txt", time.Now().UnixNano()))
	var list strings.Builder
	for _, p := range inputPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve input %s: %w", p, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	ctx, cancel := context.WithTimeout(ctx, t.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.log.Error("ffmpeg concat failed", "error", err, "output", truncate(string(out), 2000))
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
