package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/recut/internal/editor"
	"github.com/mgpai22/recut/internal/playback"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/timemap"
	"github.com/mgpai22/recut/internal/transport"
	"github.com/mgpai22/recut/internal/waveform"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the edited program through the audio engine",
	Long: `Start the configured audio engine and play the edited program. Playback
skips removed audio and follows the edited order.

While playing, type a command and press enter:
  p            toggle play/pause
  s SECONDS    seek to an edited time
  d CLIP_ID    delete a clip
  r CLIP_ID    restore a clip
  q            quit (edits are saved)

Examples:
  recut play
  recut play --start 30 --waveform`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("engine", "", "Audio engine binary (default from config)")
	playCmd.Flags().Float64("start", 0, "Edited time to start from, in seconds")
	playCmd.Flags().Bool("waveform", false, "Redraw the waveform as the program changes")
}

func runPlay(cmd *cobra.Command, args []string) error {
	enginePath := cfg.Engine.Path
	if v, _ := cmd.Flags().GetString("engine"); v != "" {
		enginePath = v
	}
	if enginePath == "" {
		return errors.New("no audio engine configured: set engine.path or use --engine")
	}
	start, _ := cmd.Flags().GetFloat64("start")
	showWaveform, _ := cmd.Flags().GetBool("waveform")

	f, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	var peaks *waveform.Peaks
	if showWaveform {
		if peaks, err = loadPeaks(ctx, f.AudioPath); err != nil {
			return err
		}
	}

	// the engine is shut down through Close, not by context cancellation
	proc, err := transport.Start(context.WithoutCancel(ctx), logger.Named("transport"), enginePath, cfg.Engine.Args...)
	if err != nil {
		return err
	}
	defer func() {
		if err := proc.Close(cfg.Engine.ShutdownGrace); err != nil {
			logger.Warnw("Audio engine did not shut down cleanly", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := playback.NewHub(proc, logger.Named("playback"))
	listener := newTerminalListener(os.Stdout, sess, cancel)
	coord := hub.NewCoordinator(sess, listener)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// nothing left to play once the engine stops talking
		defer cancel()
		return hub.Run(gctx)
	})
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return sess.Run(gctx) })

	edl, cancelEDL := sess.Subscribe()
	defer cancelEDL()
	g.Go(func() error { return followEDL(gctx, hub, sess, edl) })

	if peaks != nil {
		painter := waveform.NewPainter(peaks, sess, cfg.Waveform.Width, cfg.Waveform.RepaintInterval,
			func(cols []waveform.Column) {
				listener.println(waveform.ASCII(cols))
			})
		updates, cancelUpdates := sess.Subscribe()
		defer cancelUpdates()
		g.Go(func() error { return painter.Run(gctx) })
		g.Go(func() error { return painter.Follow(gctx, updates) })
		painter.Invalidate()
	}

	g.Go(func() error {
		if err := coord.Load(gctx, f.AudioPath); err != nil {
			return err
		}
		if err := hub.UpdateEDL(gctx, sess.Revision(), sess.Map()); err != nil {
			logger.Warnw("Audio engine rejected the edit list", "error", err)
		}
		if err := coord.Seek(gctx, timeline.FromSeconds(start)); err != nil {
			return err
		}
		if err := coord.Play(gctx); err != nil {
			return err
		}
		return readCommands(gctx, os.Stdin, coord, sess, cancel)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if saveErr := saveSession(projectPath, f, sess); err == nil {
		err = saveErr
	}
	return err
}

// followEDL pushes every republished map to the engine.
func followEDL(ctx context.Context, hub *playback.Hub, sess *editor.Session, updates <-chan *timemap.Map) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-updates:
			if !ok {
				return nil
			}
			if err := hub.UpdateEDL(ctx, sess.Revision(), m); err != nil {
				logger.Warnw("Audio engine rejected the edit list", "error", err)
			}
		}
	}
}

// readCommands runs interactive commands read from r until quit, EOF or ctx
// is done.
func readCommands(ctx context.Context, r io.Reader, coord *playback.Coordinator, sess *editor.Session, quit func()) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// stdin closed, keep playing until the program ends
				<-ctx.Done()
				return ctx.Err()
			}
			done, err := runCommand(ctx, line, coord, sess)
			if err != nil {
				logger.Warnw("Command failed", "command", line, "error", err)
			}
			if done {
				quit()
				return nil
			}
		}
	}
}

func runCommand(ctx context.Context, line string, coord *playback.Coordinator, sess *editor.Session) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	arg := func() (string, error) {
		if len(fields) < 2 {
			return "", fmt.Errorf("%s needs an argument", fields[0])
		}
		return fields[1], nil
	}

	switch fields[0] {
	case "q", "quit":
		return true, nil
	case "p", "pause", "play":
		if coord.State() == playback.StatePlaying {
			return false, coord.Pause(ctx)
		}
		return false, coord.Play(ctx)
	case "s", "seek":
		v, err := arg()
		if err != nil {
			return false, err
		}
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, fmt.Errorf("invalid time %q: %w", v, err)
		}
		return false, coord.Seek(ctx, timeline.FromSeconds(sec))
	case "d", "delete":
		id, err := arg()
		if err != nil {
			return false, err
		}
		return false, sess.Delete(id)
	case "r", "restore":
		id, err := arg()
		if err != nil {
			return false, err
		}
		return false, sess.Restore(id)
	}
	return false, fmt.Errorf("unknown command %q", fields[0])
}

// terminalListener prints playback progress. Calls come from the
// coordinator goroutine and from command callers.
type terminalListener struct {
	mu     sync.Mutex
	w      io.Writer
	maps   playback.MapSource
	onEnd  func()
	last   time.Duration
	period time.Duration
}

func newTerminalListener(w io.Writer, maps playback.MapSource, onEnd func()) *terminalListener {
	return &terminalListener{w: w, maps: maps, onEnd: onEnd, last: -time.Second, period: time.Second}
}

func (l *terminalListener) StateChanged(state playback.State) {
	l.println(fmt.Sprintf("[%s]", state))
	if state == playback.StateEnded {
		l.onEnd()
	}
}

func (l *terminalListener) PositionChanged(edited, original time.Duration) {
	l.mu.Lock()
	if edited >= l.last && edited-l.last < l.period {
		l.mu.Unlock()
		return
	}
	l.last = edited
	l.mu.Unlock()
	l.println(fmt.Sprintf("%s / %s  (source %s)",
		clock(edited), clock(l.maps.Map().Total()), clock(original)))
}

func (l *terminalListener) Failed(err error) {
	l.println("playback error: " + err.Error())
}

func (l *terminalListener) println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func clock(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	m := d / time.Minute
	s := float64(d%time.Minute) / float64(time.Second)
	return fmt.Sprintf("%02d:%04.1f", m, s)
}
