// Package video pulls the audio track out of video files so they can be
// edited like any other recording.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/recut/internal/ffmpeg"
)

var ErrNoAudio = errors.New("video has no audio stream")

// video file information
type Info struct {
	Path       string
	Duration   time.Duration
	Width      int
	Height     int
	Codec      string
	HasAudio   bool
	AudioCodec string
}

// holds options for audio extraction
type ExtractAudioOptions struct {
	Format     string // wav, mp3, aac or flac
	SampleRate int
	Channels   int
	Bitrate    string // lossy formats only, e.g. "128k"
}

// recut edits and plays wav most reliably
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
	}
}

var codecs = map[string]string{
	"wav":  "pcm_s16le",
	"mp3":  "libmp3lame",
	"aac":  "aac",
	"flac": "flac",
}

// ValidFormat reports whether ExtractAudio can write the format.
func ValidFormat(format string) bool {
	_, ok := codecs[format]
	return ok
}

func extractStream(videoPath, outputPath string, opts ExtractAudioOptions) *ffmpeg.Stream {
	kwargs := ffmpeg.KwArgs{
		"vn":     "",
		"ar":     opts.SampleRate,
		"ac":     opts.Channels,
		"acodec": codecs[opts.Format],
	}
	if kwargs["acodec"] == "" {
		kwargs["acodec"] = codecs["wav"]
	}
	if opts.Bitrate != "" && (opts.Format == "mp3" || opts.Format == "aac") {
		kwargs["b:a"] = opts.Bitrate
	}
	return ffmpeg.Input(videoPath).Output(outputPath, kwargs).OverWriteOutput().Silent(true)
}

// ExtractAudio writes the audio track of videoPath to outputPath.
func ExtractAudio(ctx context.Context, videoPath, outputPath string, opts ExtractAudioOptions) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file not found: %s", videoPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := ffmpegbin.Run(ctx, extractStream(videoPath, outputPath, opts)); err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}
	return nil
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetInfo probes the container and its streams with ffprobe.
func GetInfo(ctx context.Context, videoPath string) (*Info, error) {
	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbe(out.Bytes())
	if err != nil {
		return nil, err
	}
	info.Path = videoPath
	return info, nil
}

func parseProbe(data []byte) (*Info, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{}
	if secs, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second)).Round(time.Microsecond)
	}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if info.Codec == "" {
				info.Codec, info.Width, info.Height = s.CodecName, s.Width, s.Height
			}
		case "audio":
			if !info.HasAudio {
				info.HasAudio, info.AudioCodec = true, s.CodecName
			}
		}
	}
	return info, nil
}
