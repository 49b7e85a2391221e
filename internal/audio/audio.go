// Package audio probes, compresses and cuts audio files with ffmpeg.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/sync/errgroup"

	ffmpegbin "github.com/mgpai22/recut/internal/ffmpeg"
)

// audio chunk info
type ChunkInfo struct {
	Path      string
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
}

// settings for audio compression
type CompressionOptions struct {
	Format     string // mp3 or aac
	SampleRate int
	Channels   int
	Bitrate    string // e.g. "64k"
}

// defaults for transcription uploads
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// duration of an audio/video file
func GetDuration(filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); err != nil {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(out.Bytes())
}

func parseProbeDuration(data []byte) (time.Duration, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Microsecond), nil
}

func codecArgs(format, bitrate string) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{}
	switch format {
	case "aac":
		kwargs["acodec"] = "aac"
	case "flac":
		kwargs["acodec"] = "flac"
	case "wav":
		kwargs["acodec"] = "pcm_s16le"
	default:
		kwargs["acodec"] = "libmp3lame"
	}
	if bitrate != "" && (format == "mp3" || format == "aac" || format == "") {
		kwargs["b:a"] = bitrate
	}
	return kwargs
}

// compresses an audio file with the given options
func CompressAudio(ctx context.Context, inputPath, outputPath string, opts CompressionOptions) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kwargs := codecArgs(opts.Format, opts.Bitrate)
	kwargs["vn"] = ""
	kwargs["ar"] = opts.SampleRate
	kwargs["ac"] = opts.Channels

	stream := ffmpeg.Input(inputPath).Output(outputPath, kwargs).OverWriteOutput().Silent(true)
	if err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	return nil
}

// planChunks cuts total into consecutive windows of at most size
func planChunks(total, size time.Duration) [][2]time.Duration {
	var out [][2]time.Duration
	for start := time.Duration(0); start < total; start += size {
		out = append(out, [2]time.Duration{start, min(start+size, total)})
	}
	return out
}

// ChunkAudio splits an audio file into chunks of chunkDuration, cutting up to
// concurrency chunks at once (10 when not positive).
func ChunkAudio(
	ctx context.Context,
	audioPath string,
	chunkDuration time.Duration,
	outputDir string,
	concurrency int,
) ([]ChunkInfo, error) {
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkDuration)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	totalDuration, err := GetDuration(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ext := filepath.Ext(audioPath)
	baseName := strings.TrimSuffix(filepath.Base(audioPath), ext)

	windows := planChunks(totalDuration, chunkDuration)
	chunks := make([]ChunkInfo, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, w := range windows {
		chunks[i] = ChunkInfo{
			Path:      filepath.Join(outputDir, fmt.Sprintf("%s_chunk_%03d%s", baseName, i, ext)),
			Index:     i,
			StartTime: w[0],
			EndTime:   w[1],
		}
		chunk := chunks[i]
		g.Go(func() error {
			stream := ffmpeg.Input(audioPath).
				Output(chunk.Path, ffmpeg.KwArgs{
					"ss": chunk.StartTime.Seconds(),
					"t":  (chunk.EndTime - chunk.StartTime).Seconds(),
					"c":  "copy",
				}).
				OverWriteOutput().
				Silent(true)
			if err := ffmpegbin.Run(gctx, stream); err != nil {
				return fmt.Errorf("failed to create chunk %d: %w", chunk.Index, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = CleanupChunks(chunks)
		return nil, err
	}
	return chunks, nil
}

var (
	videoExts = map[string]bool{
		".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true,
		".webm": true, ".m4v": true, ".mpeg": true, ".mpg": true, ".3gp": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".wav": true, ".aac": true, ".flac": true, ".ogg": true, ".m4a": true,
		".wma": true, ".aiff": true, ".opus": true,
	}
)

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is either audio or video
func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}

// removes all chunk files
func CleanupChunks(chunks []ChunkInfo) error {
	var lastErr error
	for _, chunk := range chunks {
		if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}
