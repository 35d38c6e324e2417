// Package progress reports crawl progress on the console: a progress bar
// when stderr is a terminal, periodic log lines otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// Console implements geoscraper.Reporter.
type Console struct {
	w     io.Writer
	tty   bool
	desc  string
	every int
	log   *zap.Logger

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	total   int
	highest int
	stopped bool
}

// Option configures a Console.
type Option func(*Console)

// WithLogEvery sets how many pages pass between log lines in non-terminal
// mode. The last page is always logged.
func WithLogEvery(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.every = n
		}
	}
}

// WithLogger replaces the logger used in non-terminal mode.
func WithLogger(l *zap.Logger) Option {
	return func(c *Console) { c.log = l }
}

// New creates a Console writing to w. tty selects the progress bar.
func New(w io.Writer, tty bool, desc string, opts ...Option) *Console {
	c := &Console{
		w:     w,
		tty:   tty,
		desc:  desc,
		every: 10,
		log:   zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "progress"))
	return c
}

// Stderr creates a Console on os.Stderr, drawing a bar only on a terminal.
func Stderr(desc string, opts ...Option) *Console {
	fd := os.Stderr.Fd()
	return New(os.Stderr, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), desc, opts...)
}

// Start begins reporting for total pages.
func (c *Console) Start(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = total
	c.highest = 0
	c.stopped = false
	if !c.tty {
		c.log.Info("extracting pages", zap.Int("total", total))
		return
	}
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(c.desc),
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

// Update records that processed pages are done. Calls may arrive out of
// order from several workers; the bar never moves backwards.
func (c *Console) Update(processed int, counts model.CounterSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || processed <= c.highest {
		return
	}
	c.highest = processed

	if c.bar != nil {
		c.bar.Describe(fmt.Sprintf("%s written=%d geocoded=%d errors=%d",
			c.desc, counts.Written, counts.CoordsGeocoded, counts.Errors))
		_ = c.bar.Set(processed)
		return
	}
	if processed%c.every == 0 || processed == c.total {
		c.log.Info("progress",
			zap.Int("processed", processed),
			zap.Int("total", c.total),
			zap.Int64("written", counts.Written),
			zap.Int64("coords_from_page", counts.CoordsFromPage),
			zap.Int64("coords_geocoded", counts.CoordsGeocoded),
			zap.Int64("skipped_no_address", counts.SkippedNoAddress),
			zap.Int64("errors", counts.Errors),
		)
	}
}

// Stop ends reporting. It is safe to call more than once.
func (c *Console) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	if c.bar != nil {
		_ = c.bar.Finish()
		_, _ = fmt.Fprintln(c.w)
		c.bar = nil
	}
}
