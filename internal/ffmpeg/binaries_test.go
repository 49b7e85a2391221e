package ffmpeg

import (
	"errors"
	"testing"
)

func TestLocate(t *testing.T) {
	notFound := func(string) (string, error) { return "", errors.New("not found") }
	onPath := func(name string) (string, error) { return "/usr/bin/" + name, nil }

	tests := []struct {
		name     string
		env      map[string]string
		lookPath func(string) (string, error)
		want     BinaryPaths
		wantErr  bool
	}{
		{
			name:     "path lookup",
			lookPath: onPath,
			want:     BinaryPaths{FFmpeg: "/usr/bin/ffmpeg", FFprobe: "/usr/bin/ffprobe"},
		},
		{
			name:     "env overrides path",
			env:      map[string]string{EnvFFmpegPath: "/opt/ffmpeg"},
			lookPath: onPath,
			want:     BinaryPaths{FFmpeg: "/opt/ffmpeg", FFprobe: "/usr/bin/ffprobe"},
		},
		{
			name:     "env only",
			env:      map[string]string{EnvFFmpegPath: "/opt/ffmpeg", EnvFFprobePath: "/opt/ffprobe"},
			lookPath: notFound,
			want:     BinaryPaths{FFmpeg: "/opt/ffmpeg", FFprobe: "/opt/ffprobe"},
		},
		{
			name:     "ffprobe missing",
			env:      map[string]string{EnvFFmpegPath: "/opt/ffmpeg"},
			lookPath: notFound,
			wantErr:  true,
		},
		{
			name:     "nothing installed",
			lookPath: notFound,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(key string) string { return tt.env[key] }
			got, err := locate(getenv, tt.lookPath)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
