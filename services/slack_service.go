package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

const defaultSlackAPIURL = "https://slack.com/api"

// SlackService posts notifications to the operations channel and to worker DMs
type SlackService struct {
	botToken string
	apiURL   string
	client   *http.Client
}

// SlackMessage represents the structure for sending Slack messages
type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
}

// SlackAttachment represents Slack message attachments
type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SlackResponse represents the response from Slack API
type SlackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"` // Message timestamp
}

func NewSlackService(botToken, apiURL string) *SlackService {
	if botToken == "" {
		log.Println("Warning: SLACK_BOT_TOKEN not set, Slack notifications will be disabled")
	}
	if apiURL == "" {
		apiURL = defaultSlackAPIURL
	}
	return &SlackService{
		botToken: botToken,
		apiURL:   strings.TrimRight(apiURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *SlackService) IsEnabled() bool {
	return s.botToken != ""
}

// Notify sends n to its Slack target. Notifications without a target are
// skipped, since not every worker has a linked Slack account.
func (s *SlackService) Notify(ctx context.Context, n db.Notification) error {
	if !s.IsEnabled() {
		return nil
	}
	if n.SlackTarget == "" {
		log.Printf("Slack: no target for %s to %s, skipping", n.Kind, n.Recipient)
		return nil
	}

	message := s.createSlackMessage(n)
	if _, err := s.sendSlackMessage(ctx, n.SlackTarget, message); err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}

	log.Printf("Sent Slack %s to %s (appointment: %s)", n.Kind, n.SlackTarget, n.AppointmentID)
	return nil
}

// createSlackMessage builds a rich Slack message for a notification
func (s *SlackService) createSlackMessage(n db.Notification) SlackMessage {
	color := "good"
	icon := ":white_check_mark:"
	switch n.Severity {
	case db.SeverityWarning:
		color = "warning"
		icon = ":hourglass_flowing_sand:"
	case db.SeverityUrgent:
		color = "#ff8c00"
		icon = ":warning:"
	case db.SeverityCritical:
		color = "danger"
		icon = ":rotating_light:"
	}
	if n.Kind == db.NotificationNoAppointment {
		color = "#999999"
		icon = ":grey_question:"
	}

	fields := []SlackField{}
	if n.AppointmentID != "" {
		fields = append(fields, SlackField{Title: "Appointment", Value: n.AppointmentID, Short: true})
	}
	if n.Severity != db.SeverityNone {
		fields = append(fields, SlackField{Title: "Severity", Value: n.Severity.String(), Short: true})
	}

	return SlackMessage{
		Text: n.Title,
		Attachments: []SlackAttachment{{
			Color:     color,
			Title:     n.Title,
			Text:      n.Text,
			Fields:    fields,
			Footer:    "fieldwatch check-in monitor",
			Timestamp: n.CreatedAt.Unix(),
		}},
		Username:  "fieldwatch",
		IconEmoji: icon,
	}
}

// sendSlackMessage sends message to Slack using chat.postMessage API
func (s *SlackService) sendSlackMessage(ctx context.Context, channel string, message SlackMessage) (*SlackResponse, error) {
	message.Channel = channel

	jsonData, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat.postMessage", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var slackResp SlackResponse
	if err := json.NewDecoder(resp.Body).Decode(&slackResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !slackResp.OK {
		return &slackResp, fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return &slackResp, nil
}
