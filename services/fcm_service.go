package services

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/phonginreallife/fieldwatch/db"
	"google.golang.org/api/option"
)

// messageSender is the part of the Firebase messaging client we use
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMService pushes worker-facing notifications to the worker's device
type FCMService struct {
	client messageSender
}

// NewFCMService initializes Firebase messaging from a service account file.
// Without credentials the service stays disabled and Notify is a no-op.
func NewFCMService(ctx context.Context, credentialsFile string) *FCMService {
	service := &FCMService{}
	if credentialsFile == "" {
		log.Println("FCM Service: no credentials configured, push notifications disabled")
		return service
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		log.Printf("Firebase app not initialized: %v (push notifications disabled)", err)
		return service
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		log.Printf("Firebase messaging client not initialized: %v (push notifications disabled)", err)
		return service
	}

	service.client = client
	log.Println("FCM Service: Direct Firebase messaging initialized")
	return service
}

func (s *FCMService) IsEnabled() bool {
	return s.client != nil
}

// Notify pushes worker notifications that carry a device token
func (s *FCMService) Notify(ctx context.Context, n db.Notification) error {
	if s.client == nil || n.Audience != db.AudienceWorker || n.DeviceToken == "" {
		return nil
	}

	response, err := s.client.Send(ctx, buildPushMessage(n))
	if err != nil {
		return fmt.Errorf("error sending FCM message to %s: %w", n.Recipient, err)
	}

	log.Printf("Successfully sent FCM %s to %s: %s", n.Kind, n.Recipient, response)
	return nil
}

func buildPushMessage(n db.Notification) *messaging.Message {
	data := map[string]string{
		"notification_id": n.ID,
		"type":            string(n.Kind),
		"severity":        n.Severity.String(),
	}
	if n.AppointmentID != "" {
		data["appointment_id"] = n.AppointmentID
	}

	priority := "normal"
	androidPriority := messaging.PriorityDefault
	if n.Severity >= db.SeverityUrgent {
		priority = "high"
		androidPriority = messaging.PriorityHigh
	}

	return &messaging.Message{
		Token: n.DeviceToken,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Text,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				Icon:         "ic_notification",
				Color:        getColorBySeverity(n.Severity),
				ChannelID:    "checkin_channel",
				Priority:     androidPriority,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: n.Title,
						Body:  n.Text,
					},
					Sound: "default",
					CustomData: map[string]interface{}{
						"appointment_id": n.AppointmentID,
						"type":           string(n.Kind),
					},
				},
			},
		},
	}
}

func getColorBySeverity(sev db.Severity) string {
	switch sev {
	case db.SeverityCritical:
		return "#dc2626"
	case db.SeverityUrgent:
		return "#ea580c"
	case db.SeverityWarning:
		return "#ca8a04"
	default:
		return "#16a34a"
	}
}
