package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ashwinpj/learnloop/internal/config"
	"github.com/ashwinpj/learnloop/internal/pipeline"
	"github.com/ashwinpj/learnloop/pkg/learn"
)

// Scheduler drives the daily slot cycle. Each tick it resolves the current
// slot from the configured local-time windows and runs it; the pipeline's
// per-(date, slot) bookkeeping makes repeated ticks inside one window cheap.
type Scheduler struct {
	pipe *pipeline.Pipeline
	cfg  config.ScheduleConfig
	loc  *time.Location
	now  func() time.Time
}

// New creates a scheduler.
func New(pipe *pipeline.Pipeline, cfg config.ScheduleConfig) *Scheduler {
	return &Scheduler{
		pipe: pipe,
		cfg:  cfg,
		loc:  cfg.Location(),
		now:  time.Now,
	}
}

// CurrentSlot maps a moment to its ingestion slot, or "" outside every
// window.
func (s *Scheduler) CurrentSlot(t time.Time) learn.Slot {
	h := t.In(s.loc).Hour()
	switch {
	case h >= s.cfg.MorningStart && h < s.cfg.MorningEnd:
		return learn.SlotMorning
	case h >= s.cfg.MiddayStart && h < s.cfg.MiddayEnd:
		return learn.SlotMidday
	case h >= s.cfg.EveningStart && h < s.cfg.EveningEnd:
		return learn.SlotEvening
	default:
		return ""
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ParseTickInterval())
	defer ticker.Stop()

	fmt.Fprintf(os.Stderr, "scheduler: running (tick %s, tz %s)\n",
		s.cfg.ParseTickInterval(), s.loc)

	// Catch up immediately on start.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().In(s.loc)
	date := now.Format("2006-01-02")

	if slot := s.CurrentSlot(now); slot != "" {
		if err := s.pipe.RunSlot(ctx, date, slot); err != nil {
			fmt.Fprintf(os.Stderr, "  slot %s error: %v\n", slot, err)
		}
	}

	if now.Hour() >= s.cfg.EndOfDayHour {
		if err := s.pipe.EndOfDay(ctx, date); err != nil {
			fmt.Fprintf(os.Stderr, "  end-of-day error: %v\n", err)
		}
	}
}
