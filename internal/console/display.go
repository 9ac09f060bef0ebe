// Package console renders round progress on the terminal and watches the
// keyboard for the quit command.
package console

import (
	"fmt"
	"io"
	"time"

	"github.com/kozaktomas/rollcall/internal/capture"
	"github.com/kozaktomas/rollcall/internal/facematch"
	"github.com/schollz/progressbar/v3"
)

// RoundDisplay shows a per-round progress bar counting down the capture
// window, with the faces seen in the latest frame as its description.
type RoundDisplay struct {
	out   io.Writer
	bar   *progressbar.ProgressBar
	round int
}

// NewRoundDisplay creates a display writing to out.
func NewRoundDisplay(out io.Writer) *RoundDisplay {
	return &RoundDisplay{out: out}
}

// Begin starts the bar for a round lasting duration.
func (d *RoundDisplay) Begin(round int, duration time.Duration) {
	d.round = round
	d.bar = progressbar.NewOptions(int(duration/time.Second),
		progressbar.OptionSetWriter(d.out),
		progressbar.OptionSetDescription(fmt.Sprintf("Round %d", round)),
		progressbar.OptionSetItsString("s"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionFullWidth(),
	)
}

// Show updates the bar with the elapsed time and the latest frame's faces.
func (d *RoundDisplay) Show(elapsed time.Duration, frame capture.Frame, matches []facematch.Match) {
	if d.bar == nil {
		return
	}
	d.bar.Describe(fmt.Sprintf("Round %d  frame %d  %s", d.round, frame.Seq, describeMatches(matches)))
	_ = d.bar.Set(int(elapsed / time.Second))
}

// End clears the bar.
func (d *RoundDisplay) End() {
	if d.bar == nil {
		return
	}
	_ = d.bar.Finish()
	d.bar = nil
}

func describeMatches(matches []facematch.Match) string {
	if len(matches) == 0 {
		return "no faces"
	}
	s := ""
	for i, m := range matches {
		if i > 0 {
			s += ", "
		}
		s += m.Identity
	}
	return s
}
