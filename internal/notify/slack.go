// Package notify posts sync run summaries to a Slack incoming webhook.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/johndauphine/colsync/internal/config"
)

// Notifier sends run summaries to Slack.
type Notifier struct {
	config     *config.SlackConfig
	httpClient *http.Client

	// webhookURL overrides the configured URL; used by tests pointed at
	// a local server.
	webhookURL string
}

// SlackMessage is the webhook payload.
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is one colored block of fields.
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField is a titled value within an attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// New creates a Slack notifier. A nil or disabled config yields a
// notifier whose sends are no-ops.
func New(cfg *config.SlackConfig) *Notifier {
	if cfg == nil {
		cfg = &config.SlackConfig{}
	}
	return &Notifier{
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled reports whether sends will actually go out.
func (n *Notifier) IsEnabled() bool {
	return n.config.Enabled && (n.config.WebhookURL != "" || n.webhookURL != "")
}

func (n *Notifier) SyncStarted(runID, source, destination string, tableCount int) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.username(),
		IconEmoji: ":arrows_counterclockwise:",
		Attachments: []SlackAttachment{{
			Color: "#36a64f",
			Title: "Sync Started",
			Fields: []SlackField{
				{Title: "Run ID", Value: runID, Short: true},
				{Title: "Tables", Value: fmt.Sprintf("%d", tableCount), Short: true},
				{Title: "Source", Value: source, Short: true},
				{Title: "Destination", Value: destination, Short: true},
			},
			Footer:    "colsync",
			Timestamp: time.Now().Unix(),
		}},
	})
}

func (n *Notifier) SyncCompleted(runID string, startTime time.Time, duration time.Duration, tableCount int, rowCount int64) error {
	if !n.IsEnabled() {
		return nil
	}
	head := fmt.Sprintf("Sync completed. %d tables verified, %s rows in the destination.",
		tableCount, withCommas(rowCount))
	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.username(),
		IconEmoji: ":white_check_mark:",
		Text:      head,
		Attachments: []SlackAttachment{{
			Color: "#36a64f",
			Fields: []SlackField{
				{Title: "Run ID", Value: runID, Short: true},
				{Title: "Started", Value: startTime.UTC().Format("2006-01-02 15:04:05 UTC"), Short: true},
				{Title: "Duration", Value: formatDuration(duration), Short: true},
				{Title: "Tables", Value: fmt.Sprintf("%d", tableCount), Short: true},
				{Title: "Total Rows", Value: withCommas(rowCount), Short: true},
			},
			Footer:    "colsync",
			Timestamp: time.Now().Unix(),
		}},
	})
}

func (n *Notifier) SyncCompletedWithIssues(runID string, duration time.Duration, succeeded, mismatched, failed int, rowCount int64, issues []string) error {
	if !n.IsEnabled() {
		return nil
	}
	head := fmt.Sprintf("Sync completed with issues: %d ok, %d count mismatches, %d failed. %s rows synced.",
		succeeded, mismatched, failed, withCommas(rowCount))
	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.username(),
		IconEmoji: ":warning:",
		Text:      head,
		Attachments: []SlackAttachment{{
			Color: "#ffc107",
			Fields: []SlackField{
				{Title: "Run ID", Value: runID, Short: true},
				{Title: "Duration", Value: formatDuration(duration), Short: true},
				{Title: "Issues", Value: summarizeIssues(issues), Short: false},
			},
			Footer:    "colsync",
			Timestamp: time.Now().Unix(),
		}},
	})
}

func (n *Notifier) SyncFailed(runID string, err error, duration time.Duration) error {
	if !n.IsEnabled() {
		return nil
	}
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
		if len(errMsg) > 500 {
			errMsg = errMsg[:500] + "..."
		}
	}
	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.username(),
		IconEmoji: ":x:",
		Attachments: []SlackAttachment{{
			Color: "#dc3545",
			Title: "Sync Failed",
			Fields: []SlackField{
				{Title: "Run ID", Value: runID, Short: true},
				{Title: "Duration", Value: duration.Round(time.Second).String(), Short: true},
				{Title: "Error", Value: errMsg, Short: false},
			},
			Footer:    "colsync",
			Timestamp: time.Now().Unix(),
		}},
	})
}

func summarizeIssues(issues []string) string {
	if len(issues) == 0 {
		return "none recorded"
	}
	if len(issues) > 5 {
		return strings.Join(issues[:5], "\n") + fmt.Sprintf("\n... and %d more", len(issues)-5)
	}
	return strings.Join(issues, "\n")
}

func (n *Notifier) send(msg SlackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	url := n.webhookURL
	if url == "" {
		url = n.config.WebhookURL
	}
	resp, err := n.httpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending to Slack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) username() string {
	if n.config.Username != "" {
		return n.config.Username
	}
	return "colsync"
}

func withCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}
	var result []byte
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s/time.Second)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s/time.Second)
	}
	return fmt.Sprintf("%ds", s/time.Second)
}
