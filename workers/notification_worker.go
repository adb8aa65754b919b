package workers

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
	"github.com/phonginreallife/fieldwatch/services"
)

// NotificationWorker drains a bounded queue of rendered notifications into
// the notification sink, one delivery at a time
type NotificationWorker struct {
	Notifier services.Notifier
	Timeout  time.Duration

	queue  chan db.Notification
	sent   atomic.Int64
	failed atomic.Int64
}

func NewNotificationWorker(notifier services.Notifier, buffer int, timeout time.Duration) *NotificationWorker {
	return &NotificationWorker{
		Notifier: notifier,
		Timeout:  timeout,
		queue:    make(chan db.Notification, buffer),
	}
}

// Enqueue blocks while the queue is full, until ctx is done
func (w *NotificationWorker) Enqueue(ctx context.Context, n db.Notification) error {
	select {
	case w.queue <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartNotificationWorker delivers queued notifications until Close is called
// and the queue is drained
func (w *NotificationWorker) StartNotificationWorker() {
	log.Println("🔔 Notification worker started")
	for n := range w.queue {
		w.deliver(n)
	}
	log.Printf("🔔 Notification worker stopped (sent: %d, failed: %d)", w.sent.Load(), w.failed.Load())
}

// Close stops intake. Callers must not Enqueue afterwards.
func (w *NotificationWorker) Close() {
	close(w.queue)
}

func (w *NotificationWorker) deliver(n db.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), w.Timeout)
	defer cancel()

	if err := w.Notifier.Notify(ctx, n); err != nil {
		w.failed.Add(1)
		log.Printf("❌ Dispatcher: failed to deliver %s to %s (appointment %s): %v",
			n.Kind, n.Recipient, n.AppointmentID, err)
		return
	}
	w.sent.Add(1)
}

// Stats returns delivered and failed counts
func (w *NotificationWorker) Stats() (sent, failed int64) {
	return w.sent.Load(), w.failed.Load()
}

// Pending returns the number of queued notifications
func (w *NotificationWorker) Pending() int {
	return len(w.queue)
}
