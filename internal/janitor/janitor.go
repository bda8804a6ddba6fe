// Package janitor performs scheduled maintenance on negotiation threads:
// reverting stalled negotiations and closing threads whose quote was
// withdrawn.
package janitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/econexus/parley/internal/models"
)

// Opts holds configuration for the janitor.
type Opts struct {
	DB       *gorm.DB
	MaxIdle  time.Duration // how long a NEGOTIATING thread may sit without messages
	Schedule string        // cron schedule; defaults to every ten minutes
	Out      io.Writer
}

// Janitor sweeps negotiation threads on a schedule.
type Janitor struct {
	db      *gorm.DB
	maxIdle time.Duration
	sched   string
	out     io.Writer
	now     func() time.Time
}

// New creates a Janitor, applying defaults for unset knobs.
func New(opts Opts) (*Janitor, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("janitor: db is required")
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = 4 * time.Hour
	}
	if opts.Schedule == "" {
		opts.Schedule = "@every 10m"
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Janitor{
		db:      opts.DB,
		maxIdle: opts.MaxIdle,
		sched:   opts.Schedule,
		out:     opts.Out,
		now:     time.Now,
	}, nil
}

// Start runs sweeps on the configured schedule until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(j.sched, func() {
		reverted, closed, err := j.Sweep()
		if err != nil {
			fmt.Fprintf(j.out, "janitor: sweep: %v\n", err)
			return
		}
		if reverted > 0 || closed > 0 {
			fmt.Fprintf(j.out, "janitor: reverted %d stalled thread(s), closed %d withdrawn thread(s)\n", reverted, closed)
		}
	}); err != nil {
		return fmt.Errorf("janitor: schedule %q: %w", j.sched, err)
	}
	c.Start()
	<-ctx.Done()
	stop := c.Stop()
	<-stop.Done()
	return ctx.Err()
}

// Sweep runs one maintenance pass and reports how many threads it touched.
func (j *Janitor) Sweep() (reverted, closed int, err error) {
	reverted, err = j.revertStalled()
	if err != nil {
		return 0, 0, err
	}
	closed, err = j.closeWithdrawn()
	if err != nil {
		return reverted, 0, err
	}
	return reverted, closed, nil
}

// revertStalled moves NEGOTIATING threads with no recent messages back to
// OPEN so the parties can restart or abandon them.
func (j *Janitor) revertStalled() (int, error) {
	cutoff := j.now().Add(-j.maxIdle)

	var threads []models.NegotiationThread
	if err := j.db.Where("status = ?", models.ThreadNegotiating).Find(&threads).Error; err != nil {
		return 0, fmt.Errorf("janitor: load negotiating threads: %w", err)
	}

	n := 0
	for _, thread := range threads {
		var last models.ChatMessage
		err := j.db.
			Where("thread_id = ?", thread.ID).
			Order("created_at DESC, id DESC").
			First(&last).Error
		lastActivity := thread.UpdatedAt
		if err == nil {
			lastActivity = last.CreatedAt
		}
		if lastActivity.After(cutoff) {
			continue
		}
		if err := j.db.Model(&models.NegotiationThread{}).Where("id = ?", thread.ID).
			Update("status", models.ThreadOpen).Error; err != nil {
			return n, fmt.Errorf("janitor: revert thread %s: %w", thread.ID, err)
		}
		n++
	}
	return n, nil
}

// closeWithdrawn closes threads whose quote has been withdrawn and reopens
// the underlying request for other sellers.
func (j *Janitor) closeWithdrawn() (int, error) {
	var threads []models.NegotiationThread
	if err := j.db.
		Joins("JOIN seller_quotes ON seller_quotes.id = negotiation_threads.quote_id").
		Where("negotiation_threads.status <> ? AND seller_quotes.status = ?",
			models.ThreadClosed, models.QuoteWithdrawn).
		Find(&threads).Error; err != nil {
		return 0, fmt.Errorf("janitor: load withdrawn threads: %w", err)
	}

	n := 0
	for _, thread := range threads {
		err := j.db.Transaction(func(db *gorm.DB) error {
			if err := db.Model(&models.NegotiationThread{}).Where("id = ?", thread.ID).
				Update("status", models.ThreadClosed).Error; err != nil {
				return err
			}
			return db.Model(&models.BuyerRequest{}).
				Where("id = ? AND status = ?", thread.RequestID, models.RequestNegotiating).
				Update("status", models.RequestOpen).Error
		})
		if err != nil {
			return n, fmt.Errorf("janitor: close thread %s: %w", thread.ID, err)
		}
		n++
	}
	return n, nil
}
