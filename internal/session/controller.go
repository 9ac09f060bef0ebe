// Package session runs attendance rounds: it rebuilds the gallery, watches
// the camera for a fixed window, records who was seen and hands the roster to
// the notifier, then rests and starts over.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/kozaktomas/rollcall/internal/attendance"
	"github.com/kozaktomas/rollcall/internal/capture"
	"github.com/kozaktomas/rollcall/internal/facematch"
	"github.com/kozaktomas/rollcall/internal/gallery"
)

// ErrSourceUnavailable is returned when the frame source cannot be opened.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// GalleryBuilder rebuilds the matching gallery from the enrolled references.
type GalleryBuilder interface {
	Build(ctx context.Context) (*facematch.Gallery, *gallery.BuildReport, error)
}

// Notifier accepts the roster of a finalized round.
type Notifier interface {
	Notify(ctx context.Context, s attendance.Summary) error
}

// Display renders round progress.
type Display interface {
	Begin(round int, duration time.Duration)
	Show(elapsed time.Duration, frame capture.Frame, matches []facematch.Match)
	End()
}

// Sink mirrors attendance somewhere besides the record file. Sink errors
// never affect a round.
type Sink interface {
	StartRound(ctx context.Context, info attendance.RoundInfo) error
	RecordEntry(ctx context.Context, roundID string, e attendance.Entry) error
	FinishRound(ctx context.Context, s attendance.Summary) error
}

// Options configures round timing and record placement.
type Options struct {
	RoundDuration time.Duration
	RestInterval  time.Duration
	AttendanceDir string
	// MaxRounds stops the controller after that many rounds; 0 runs forever.
	MaxRounds int
	Clock     clock.Clock
	// FrameFilter, if set, drops near-duplicate frames before extraction.
	FrameFilter *capture.FrameFilter
}

// Controller drives the round loop. It is single-threaded: Run must not be
// called concurrently.
type Controller struct {
	source    capture.Source
	extractor facematch.Extractor
	builder   GalleryBuilder
	notifier  Notifier
	opts      Options
	clock     clock.Clock

	Display Display
	Sink    Sink

	// OnPresent is called when an identity is first marked in a round.
	OnPresent func(round attendance.RoundInfo, e attendance.Entry)
	// OnRoundClosed is called with every finalized round, including one cut
	// short by cancellation.
	OnRoundClosed func(s attendance.Summary)

	mu        sync.Mutex
	state     State
	seq       int
	lastStart time.Time
}

// New creates a controller.
func New(source capture.Source, extractor facematch.Extractor, builder GalleryBuilder, notifier Notifier, opts Options) *Controller {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		source:    source,
		extractor: extractor,
		builder:   builder,
		notifier:  notifier,
		opts:      opts,
		clock:     clk,
		state:     Idle,
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rounds returns the number of rounds started so far.
func (c *Controller) Rounds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes rounds until ctx is cancelled, MaxRounds is reached, or a
// fatal error occurs. Cancellation and reaching MaxRounds return nil; an
// unopenable frame source returns an error wrapping ErrSourceUnavailable.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return c.stop()
		}

		c.setState(BuildingGallery)
		g, report, err := c.builder.Build(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.stop()
			}
			return c.halt(fmt.Errorf("building gallery: %w", err))
		}
		log.Printf("Gallery ready: %d identities, %d entries, %d references skipped",
			len(report.Identities), g.Len(), len(report.Skipped))

		c.mu.Lock()
		c.seq++
		c.mu.Unlock()
		summary, err := c.runRound(ctx, g, report.Identities)
		if err != nil {
			if ctx.Err() != nil {
				return c.stop()
			}
			return c.halt(err)
		}
		if ctx.Err() != nil {
			// A round cut short by cancellation is recorded but not sent.
			return c.stop()
		}

		if err := c.notifier.Notify(ctx, summary); err != nil {
			log.Printf("WARNING: notify: round %d roster not queued: %v", summary.Seq, err)
		}

		if c.opts.MaxRounds > 0 && c.seq >= c.opts.MaxRounds {
			return c.stop()
		}

		c.setState(Resting)
		log.Printf("Waiting %s for the next round", c.opts.RestInterval)
		if err := c.sleep(ctx, c.opts.RestInterval); err != nil {
			return c.stop()
		}
	}
}

func (c *Controller) stop() error {
	c.setState(Stopped)
	return nil
}

func (c *Controller) halt(err error) error {
	c.setState(Halted)
	return err
}

// runRound captures one round and returns its finalized roster. Frame read
// failures end the round early; only an unopenable source, an unwritable
// record, or an embedding size mismatch fail it.
func (c *Controller) runRound(ctx context.Context, g *facematch.Gallery, known []string) (attendance.Summary, error) {
	c.setState(Capturing)

	stream, err := c.source.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return attendance.Summary{}, ctx.Err()
		}
		return attendance.Summary{}, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, c.source.Name(), err)
	}
	defer stream.Close()
	log.Printf("Camera opened: %s", c.source.Name())

	start := attendance.NextStart(c.lastStart, c.clock.Now())
	round, err := attendance.OpenRound(c.opts.AttendanceDir, c.seq, start)
	if err != nil {
		return attendance.Summary{}, err
	}
	c.lastStart = round.Start
	info := round.Info()
	log.Printf("Round %d started, capturing for %s", round.Seq, c.opts.RoundDuration)

	if c.Sink != nil {
		if err := c.Sink.StartRound(ctx, info); err != nil {
			log.Printf("WARNING: round %d: attendance mirror: %v", round.Seq, err)
		}
	}
	if c.Display != nil {
		c.Display.Begin(round.Seq, c.opts.RoundDuration)
	}
	c.opts.FrameFilter.Reset()

	captureErr := c.capture(ctx, stream, g, round)

	if c.Display != nil {
		c.Display.End()
	}

	c.setState(RoundClosing)
	summary, err := round.Finalize(known, c.clock.Now())
	if err != nil {
		log.Printf("WARNING: round %d: closing record: %v", round.Seq, err)
	}
	log.Printf("Attendance saved: %s (%d present, %d absent)", summary.RecordPath, len(summary.Present), len(summary.Absent))

	if c.Sink != nil {
		// The mirror is updated even when the round was cut short.
		if err := c.Sink.FinishRound(context.WithoutCancel(ctx), summary); err != nil {
			log.Printf("WARNING: round %d: attendance mirror: %v", round.Seq, err)
		}
	}
	if c.OnRoundClosed != nil {
		c.OnRoundClosed(summary)
	}

	return summary, captureErr
}

// capture pulls frames until the round window elapses, the stream ends, or
// ctx is cancelled.
func (c *Controller) capture(ctx context.Context, stream capture.Stream, g *facematch.Gallery, round *attendance.Round) error {
	began := c.clock.Now()
	info := round.Info()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if c.clock.Since(began) >= c.opts.RoundDuration {
			return nil
		}

		frame, err := stream.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, io.EOF):
				log.Printf("WARNING: round %d: frame source ended early", round.Seq)
			default:
				log.Printf("WARNING: round %d: reading frame: %v", round.Seq, err)
			}
			return nil
		}

		if c.opts.FrameFilter.Duplicate(frame.Data) {
			continue
		}

		detected, err := c.extractor.DetectFaces(ctx, frame.Data)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("WARNING: round %d: skipping frame %d: %v", round.Seq, frame.Seq, err)
			continue
		}

		matches := make([]facematch.Match, 0, len(detected))
		for _, p := range detected {
			m, err := g.Resolve(p.Embedding)
			if err != nil {
				return fmt.Errorf("resolving face in frame %d: %w", frame.Seq, err)
			}
			m.BBox = p.BBox
			matches = append(matches, m)

			if m.Known() {
				c.mark(ctx, info, round, m.Identity)
			}
		}

		if c.Display != nil {
			c.Display.Show(c.clock.Since(began), frame, matches)
		}
	}
}

func (c *Controller) mark(ctx context.Context, info attendance.RoundInfo, round *attendance.Round, identity string) {
	now := c.clock.Now()
	added, err := round.Mark(identity, now)
	if err != nil {
		log.Printf("WARNING: round %d: recording %s: %v", round.Seq, identity, err)
		return
	}
	if !added {
		return
	}

	e := attendance.Entry{Identity: identity, Time: now}
	log.Printf("%s marked present at %s", identity, now.Format(attendance.TimeLayout))
	if c.Sink != nil {
		if err := c.Sink.RecordEntry(ctx, info.ID, e); err != nil {
			log.Printf("WARNING: round %d: attendance mirror: %v", round.Seq, err)
		}
	}
	if c.OnPresent != nil {
		c.OnPresent(info, e)
	}
}

// sleep waits d on the controller clock or until ctx is done.
func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := c.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
