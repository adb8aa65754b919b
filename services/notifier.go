package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

// Notifier delivers a rendered notification to its channel or recipient
type Notifier interface {
	Notify(ctx context.Context, n db.Notification) error
}

// Dispatcher queues notifications for asynchronous delivery
type Dispatcher interface {
	Enqueue(ctx context.Context, n db.Notification) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, n db.Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n db.Notification) error {
	return f(ctx, n)
}

// LogNotifier writes notifications to the process log. It is always part of
// the sink so alerts remain visible when no chat or push channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n db.Notification) error {
	if n.Severity != db.SeverityNone {
		log.Printf("🔔 [%s] %s → %s: %s", n.Severity, n.Kind, n.Recipient, n.Title)
	} else {
		log.Printf("💬 %s → %s: %s", n.Kind, n.Recipient, n.Title)
	}
	return nil
}

// MultiNotifier fans a notification out to every sink. Every sink is tried;
// the returned error joins the individual failures.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n db.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// auditTimeout bounds the log write, which runs after the delivery context may have expired
const auditTimeout = 5 * time.Second

// AuditedNotifier records every delivery attempt in the notification log
type AuditedNotifier struct {
	Next Notifier
	Log  *NotificationLogService
}

func (a *AuditedNotifier) Notify(ctx context.Context, n db.Notification) error {
	err := a.Next.Notify(ctx, n)

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if logErr := a.Log.Record(logCtx, n, err); logErr != nil {
		log.Printf("Failed to log notification %s: %v", n.ID, logErr)
	}
	if err != nil {
		return fmt.Errorf("deliver %s for appointment %s: %w", n.Kind, n.AppointmentID, err)
	}
	return nil
}
