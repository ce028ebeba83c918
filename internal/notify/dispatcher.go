// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/eventboard/internal/metrics"
	"github.com/olegiv/eventboard/internal/store"
)

// AsyncDispatcher persists notifications from a bounded queue served by a
// worker pool. When the queue is full or the pool is stopped, Create falls
// back to delivering inline.
type AsyncDispatcher struct {
	queries *store.Queries
	mailer  Mailer
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	queue   chan job
	workers int
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// job is one unit of queued work: a notification or a bare email.
type job struct {
	msg  Message
	mail *Mail
}

// Config holds dispatcher configuration.
type Config struct {
	Workers   int // Number of concurrent delivery workers
	QueueSize int
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   3,
		QueueSize: 256,
	}
}

// NewAsyncDispatcher creates a dispatcher. mailer, logger and m may be nil.
func NewAsyncDispatcher(db *sql.DB, mailer Mailer, logger *slog.Logger, m *metrics.Metrics, cfg Config) *AsyncDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}

	return &AsyncDispatcher{
		queries: store.New(db),
		mailer:  mailer,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		queue:   make(chan job, cfg.QueueSize),
		workers: cfg.Workers,
		done:    make(chan struct{}),
	}
}

// Start starts the dispatcher workers.
func (d *AsyncDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting notification dispatcher", "workers", d.workers)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(context.WithoutCancel(ctx), i)
	}
}

// Stop stops the workers and delivers whatever is still queued.
func (d *AsyncDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping notification dispatcher")
	close(d.done)
	d.wg.Wait()

	for {
		select {
		case j := <-d.queue:
			d.run(context.Background(), j)
		default:
			d.metrics.SetQueueDepth(0)
			d.logger.Info("notification dispatcher stopped")
			return
		}
	}
}

func (d *AsyncDispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("notification worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			d.logger.Debug("notification worker stopping", "worker_id", id)
			return
		case j := <-d.queue:
			d.metrics.SetQueueDepth(len(d.queue))
			d.run(ctx, j)
		}
	}
}

func (d *AsyncDispatcher) run(ctx context.Context, j job) bool {
	if j.mail != nil {
		return d.send(ctx, *j.mail)
	}
	return d.deliver(ctx, j.msg)
}

// enqueue hands j to the workers, or runs it inline when the pool is
// stopped or the queue is full.
func (d *AsyncDispatcher) enqueue(ctx context.Context, j job) bool {
	d.mu.RLock()
	if d.running {
		select {
		case d.queue <- j:
			d.mu.RUnlock()
			d.metrics.Notification("queued")
			d.metrics.SetQueueDepth(len(d.queue))
			return true
		default:
			d.logger.Warn("notification queue full, delivering inline", "user_id", j.msg.UserID)
		}
	}
	d.mu.RUnlock()

	return d.run(context.WithoutCancel(ctx), j)
}

// Create implements Dispatcher.
func (d *AsyncDispatcher) Create(ctx context.Context, msg Message) bool {
	if msg.Kind == "" {
		msg.Kind = KindInfo
	}
	return d.enqueue(ctx, job{msg: msg})
}

// SendMail implements Dispatcher.
func (d *AsyncDispatcher) SendMail(ctx context.Context, m Mail) bool {
	return d.enqueue(ctx, job{mail: &m})
}

// CreateForUsers implements Dispatcher.
func (d *AsyncDispatcher) CreateForUsers(ctx context.Context, userIDs []int64, tmpl Message) int {
	n := 0
	for _, id := range userIDs {
		msg := tmpl
		msg.UserID = id
		if d.Create(ctx, msg) {
			n++
		}
	}
	return n
}

// deliver stores the notification and mails it when asked to.
func (d *AsyncDispatcher) deliver(ctx context.Context, msg Message) bool {
	_, err := d.queries.CreateNotification(ctx, store.CreateNotificationParams{
		UserID:      msg.UserID,
		Title:       msg.Title,
		Message:     msg.Body,
		Kind:        msg.Kind,
		RelatedType: sql.NullString{String: msg.RelatedType, Valid: msg.RelatedType != ""},
		RelatedID:   sql.NullInt64{Int64: msg.RelatedID, Valid: msg.RelatedID != 0},
		CreatedAt:   d.now(),
	})
	if err != nil {
		d.metrics.Notification("failed")
		d.logger.Error("failed to store notification", "error", err, "user_id", msg.UserID, "title", msg.Title)
		return false
	}
	d.metrics.Notification("stored")

	if msg.SendEmail {
		d.mailUser(ctx, msg.UserID, Mail{Subject: msg.Title, Body: msg.Body})
	}
	return true
}

// mailUser looks up the user's address and sends m. Failures are logged.
func (d *AsyncDispatcher) mailUser(ctx context.Context, userID int64, m Mail) {
	user, err := d.queries.GetUserByID(ctx, userID)
	if err != nil {
		d.logger.Warn("cannot mail notification, user lookup failed", "error", err, "user_id", userID)
		return
	}
	m.To = user.Email
	d.send(ctx, m)
}

func (d *AsyncDispatcher) send(ctx context.Context, m Mail) bool {
	if err := d.mailer.Send(ctx, m); err != nil {
		d.metrics.Notification("mail_failed")
		d.logger.Warn("failed to send email", "error", err, "to", m.To, "subject", m.Subject)
		return false
	}
	d.metrics.Notification("mailed")
	return true
}
