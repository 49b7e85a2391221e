// Package waveform computes amplitude peaks for a recording and lays them
// out in edited order for painting.
package waveform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/recut/internal/ffmpeg"
)

const (
	DefaultSampleRate      = 8000
	DefaultSamplesPerPixel = 256
)

// Peak is the amplitude range of one block of samples.
type Peak struct {
	Min int16
	Max int16
}

// Peaks holds one Peak per SamplesPerPixel samples of the original recording.
type Peaks struct {
	SampleRate      int
	SamplesPerPixel int
	Duration        time.Duration
	Data            []Peak
}

// original time covered by one peak
func (p *Peaks) Resolution() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.SamplesPerPixel) * time.Second / time.Duration(p.SampleRate)
}

// Index returns the peak holding an original time, clamped to the data.
func (p *Peaks) Index(original time.Duration) int {
	res := p.Resolution()
	if res <= 0 || len(p.Data) == 0 {
		return 0
	}
	i := int(original / res)
	if i < 0 {
		return 0
	}
	if i >= len(p.Data) {
		return len(p.Data) - 1
	}
	return i
}

// Range merges the peaks covering [from, to) of original time.
func (p *Peaks) Range(from, to time.Duration) Peak {
	if len(p.Data) == 0 {
		return Peak{}
	}
	lo, hi := p.Index(from), p.Index(to-1)
	if hi < lo {
		hi = lo
	}
	out := p.Data[lo]
	for _, pk := range p.Data[lo+1 : hi+1] {
		if pk.Min < out.Min {
			out.Min = pk.Min
		}
		if pk.Max > out.Max {
			out.Max = pk.Max
		}
	}
	return out
}

// PeaksProvider supplies peaks for a source file.
type PeaksProvider interface {
	Peaks(ctx context.Context, path string, samplesPerPixel int) (*Peaks, error)
}

// FFmpegPeaks decodes the source to mono 16-bit PCM with ffmpeg.
type FFmpegPeaks struct {
	SampleRate int
}

func (f FFmpegPeaks) Peaks(ctx context.Context, path string, samplesPerPixel int) (*Peaks, error) {
	rate := f.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	var pcm bytes.Buffer
	stream := ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{
			"f":      "s16le",
			"acodec": "pcm_s16le",
			"ac":     1,
			"ar":     rate,
			"vn":     "",
		}).
		WithOutput(&pcm).
		Silent(true)
	if err := ffmpegbin.Run(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return Compute(&pcm, rate, samplesPerPixel)
}

// Compute reads little-endian signed 16-bit mono samples and reduces them to
// min/max pairs.
func Compute(r io.Reader, sampleRate, samplesPerPixel int) (*Peaks, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if samplesPerPixel <= 0 {
		samplesPerPixel = DefaultSamplesPerPixel
	}

	br := bufio.NewReader(r)
	buf := make([]byte, 2*samplesPerPixel)
	p := &Peaks{SampleRate: sampleRate, SamplesPerPixel: samplesPerPixel}
	total := 0
	for {
		n, err := io.ReadFull(br, buf)
		samples := n / 2
		if samples > 0 {
			pk := Peak{Min: sample(buf, 0), Max: sample(buf, 0)}
			for i := 1; i < samples; i++ {
				s := sample(buf, i)
				if s < pk.Min {
					pk.Min = s
				}
				if s > pk.Max {
					pk.Max = s
				}
			}
			p.Data = append(p.Data, pk)
			total += samples
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read samples: %w", err)
		}
	}
	p.Duration = time.Duration(total) * time.Second / time.Duration(sampleRate)
	return p, nil
}

func sample(buf []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[2*i:]))
}
