// Package ffmpeg locates the ffmpeg and ffprobe binaries and runs
// ffmpeg-go pipelines under a context.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

const (
	EnvFFmpegPath  = "RECUT_FFMPEG_PATH"
	EnvFFprobePath = "RECUT_FFPROBE_PATH"
)

var ErrNotFound = errors.New("ffmpeg binaries not found")

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// Ensure resolves both binaries once per process.
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = locate(os.Getenv, exec.LookPath)
	})
	return ensurePath, ensureErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func FFprobePath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

// environment overrides win, then PATH
func locate(getenv func(string) string, lookPath func(string) (string, error)) (BinaryPaths, error) {
	paths := BinaryPaths{
		FFmpeg:  getenv(EnvFFmpegPath),
		FFprobe: getenv(EnvFFprobePath),
	}
	if paths.FFmpeg == "" {
		if found, err := lookPath("ffmpeg"); err == nil {
			paths.FFmpeg = found
		}
	}
	if paths.FFprobe == "" {
		if found, err := lookPath("ffprobe"); err == nil {
			paths.FFprobe = found
		}
	}

	switch {
	case paths.FFmpeg == "" && paths.FFprobe == "":
		return BinaryPaths{}, fmt.Errorf("%w: install ffmpeg or set %s and %s", ErrNotFound, EnvFFmpegPath, EnvFFprobePath)
	case paths.FFmpeg == "":
		return BinaryPaths{}, fmt.Errorf("%w: ffmpeg missing, set %s", ErrNotFound, EnvFFmpegPath)
	case paths.FFprobe == "":
		return BinaryPaths{}, fmt.Errorf("%w: ffprobe missing, set %s", ErrNotFound, EnvFFprobePath)
	}
	return paths, nil
}

// Run executes a stream with the resolved ffmpeg binary and kills it when
// ctx ends first.
func Run(ctx context.Context, stream *ffmpeggo.Stream) error {
	path, err := FFmpegPath()
	if err != nil {
		return err
	}
	cmd := stream.SetFfmpegPath(path).Compile()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}
