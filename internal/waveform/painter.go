package waveform

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/mgpai22/recut/internal/timemap"
)

// MapSource hands out the most recently published time map.
type MapSource interface {
	Map() *timemap.Map
}

// Painter re-renders the waveform when invalidated, at most once per
// interval. Bursts of invalidations collapse into one paint that uses the
// map current at paint time.
type Painter struct {
	peaks   *Peaks
	maps    MapSource
	width   int
	paint   func([]Column)
	limiter *rate.Limiter
	dirty   chan struct{}
}

func NewPainter(peaks *Peaks, maps MapSource, width int, interval time.Duration, paint func([]Column)) *Painter {
	return &Painter{
		peaks:   peaks,
		maps:    maps,
		width:   width,
		paint:   paint,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		dirty:   make(chan struct{}, 1),
	}
}

// Invalidate requests a repaint. It never blocks.
func (p *Painter) Invalidate() {
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

// Run paints until ctx is done.
func (p *Painter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.dirty:
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		// invalidations that arrived while throttled are covered by this paint
		select {
		case <-p.dirty:
		default:
		}
		p.paint(Render(p.peaks, p.maps.Map(), p.width))
	}
}

// Follow invalidates the painter for every map received until the channel
// closes or ctx is done.
func (p *Painter) Follow(ctx context.Context, updates <-chan *timemap.Map) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			p.Invalidate()
		}
	}
}
