package log

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Progress reports how far a long-running loop has advanced. It writes one
// structured event per update instead of redrawing a terminal line, so the
// output stays readable when logs go to a file.
type Progress struct {
	mu      sync.Mutex
	name    string
	total   int
	current int
	start   time.Time
	now     func() time.Time
	logger  zerolog.Logger
}

// NewProgress creates a progress reporter for total steps.
func NewProgress(name string, total int) *Progress {
	return &Progress{
		name:   name,
		total:  total,
		start:  time.Now(),
		now:    time.Now,
		logger: log.Logger,
	}
}

// Update records that current steps have completed and logs the position
// together with an ETA extrapolated from the elapsed time.
func (p *Progress) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	evt := p.logger.Info().
		Str("step", p.name).
		Int("done", p.current).
		Int("total", p.total)
	if pct, ok := p.percent(); ok {
		evt = evt.Float64("pct", pct)
	}
	if eta, ok := p.eta(); ok {
		evt = evt.Dur("eta", eta)
	}
	evt.Msg("progress")
}

// Finish logs the total elapsed time.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info().
		Str("step", p.name).
		Int("total", p.total).
		Dur("elapsed", p.now().Sub(p.start).Round(time.Millisecond)).
		Msg("completed")
}

func (p *Progress) percent() (float64, bool) {
	if p.total <= 0 {
		return 0, false
	}
	return float64(p.current) / float64(p.total) * 100, true
}

func (p *Progress) eta() (time.Duration, bool) {
	if p.total <= 0 || p.current <= 0 || p.current >= p.total {
		return 0, false
	}
	elapsed := p.now().Sub(p.start)
	perStep := elapsed / time.Duration(p.current)
	return perStep * time.Duration(p.total-p.current), true
}
