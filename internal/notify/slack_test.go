package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/johndauphine/colsync/internal/config"
)

func captureServer(t *testing.T, got *SlackMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(body, got); err != nil {
			t.Fatalf("payload not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	n := New(&config.SlackConfig{Enabled: false, WebhookURL: "http://should-not-be-called"})
	if n.IsEnabled() {
		t.Fatal("disabled config reports enabled")
	}
	if err := n.SyncStarted("run-1", "oracle://app", "out.duckdb", 3); err != nil {
		t.Errorf("disabled send returned error: %v", err)
	}
}

func TestSyncCompletedPayload(t *testing.T) {
	var got SlackMessage
	srv := captureServer(t, &got)
	defer srv.Close()

	n := New(&config.SlackConfig{Enabled: true, Channel: "#data-eng", Username: "colsync"})
	n.webhookURL = srv.URL

	start := time.Now().Add(-90 * time.Second)
	if err := n.SyncCompleted("run-7", start, 90*time.Second, 4, 1234567); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got.Channel != "#data-eng" {
		t.Errorf("channel = %q", got.Channel)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d", len(got.Attachments))
	}
	var sawRows bool
	for _, f := range got.Attachments[0].Fields {
		if f.Title == "Total Rows" && f.Value == "1,234,567" {
			sawRows = true
		}
	}
	if !sawRows {
		t.Errorf("total rows field missing or unformatted: %+v", got.Attachments[0].Fields)
	}
}

func TestSyncFailedTruncatesLongErrors(t *testing.T) {
	var got SlackMessage
	srv := captureServer(t, &got)
	defer srv.Close()

	n := New(&config.SlackConfig{Enabled: true})
	n.webhookURL = srv.URL

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	if err := n.SyncFailed("run-9", errLong(string(long)), time.Minute); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	for _, f := range got.Attachments[0].Fields {
		if f.Title == "Error" && len(f.Value) > 510 {
			t.Errorf("error field not truncated: %d bytes", len(f.Value))
		}
	}
}

type errLong string

func (e errLong) Error() string { return string(e) }

func TestSummarizeIssues(t *testing.T) {
	if s := summarizeIssues(nil); s != "none recorded" {
		t.Errorf("empty = %q", s)
	}
	many := []string{"a", "b", "c", "d", "e", "f", "g"}
	s := summarizeIssues(many)
	if want := "... and 2 more"; !strings.Contains(s, want) {
		t.Errorf("summary %q missing %q", s, want)
	}
}

func TestWithCommas(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := withCommas(tt.in); got != tt.want {
			t.Errorf("withCommas(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
