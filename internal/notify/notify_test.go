package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/SougoEdo/tardis-api-middleware/internal/job"
)

type captureSender struct {
	messages []string
	err      error
}

func (c *captureSender) Send(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, text)
	return nil
}

func sampleJob() *job.Job {
	return &job.Job{
		ID:        7,
		Exchange:  "binance",
		Symbols:   []string{"BTC-USDT", "ETH-USDT"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
		CreatedBy: "intern",
	}
}

func TestFormatSymbols(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		want    string
	}{
		{"empty", nil, ""},
		{"one", []string{"A"}, "A"},
		{"exactly three", []string{"A", "B", "C"}, "A, B, C"},
		{"five", []string{"A", "B", "C", "D", "E"}, "A, B, C (+2 more)"},
		{"four", []string{"A", "B", "C", "D"}, "A, B, C (+1 more)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSymbols(tt.symbols); got != tt.want {
				t.Errorf("formatSymbols(%v) = %q, want %q", tt.symbols, got, tt.want)
			}
		})
	}
}

func TestTruncateError(t *testing.T) {
	short := strings.Repeat("a", 200)
	if got := truncateError(short); got != short {
		t.Errorf("200-char message must pass through unmodified")
	}

	long := strings.Repeat("b", 201)
	got := truncateError(long)
	if got != strings.Repeat("b", 200)+"..." {
		t.Errorf("expected 200 chars plus ellipsis, got %d chars", len(got))
	}
}

func TestJobStarted_MessageFields(t *testing.T) {
	sender := &captureSender{}
	n := New(sender)

	if !n.JobStarted(context.Background(), sampleJob()) {
		t.Fatal("expected delivered=true")
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.messages))
	}
	msg := sender.messages[0]
	for _, want := range []string{"Download Started", "Job ID:</b> 7", "binance", "BTC-USDT, ETH-USDT", "2024-01-01 to 2024-01-02", "intern"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestJobCompleted_Duration(t *testing.T) {
	sender := &captureSender{}
	n := New(sender)

	d := 12.34
	n.JobCompleted(context.Background(), sampleJob(), &d)
	if !strings.Contains(sender.messages[0], "12.3 minutes") {
		t.Errorf("expected duration in message:\n%s", sender.messages[0])
	}

	n.JobCompleted(context.Background(), sampleJob(), nil)
	if strings.Contains(sender.messages[1], "Duration") {
		t.Errorf("expected no duration line:\n%s", sender.messages[1])
	}
}

func TestJobFailed_TruncatesError(t *testing.T) {
	sender := &captureSender{}
	n := New(sender)

	long := strings.Repeat("x", 250)
	n.JobFailed(context.Background(), sampleJob(), long)

	msg := sender.messages[0]
	if !strings.Contains(msg, "Download Failed") {
		t.Errorf("expected failure header:\n%s", msg)
	}
	if !strings.Contains(msg, strings.Repeat("x", 200)+"...") {
		t.Error("expected truncated error with ellipsis")
	}
	if strings.Contains(msg, strings.Repeat("x", 201)) {
		t.Error("error text exceeded the 200-char cap")
	}
}

func TestSendFailureIsNotDelivered(t *testing.T) {
	sender := &captureSender{err: errors.New("chat not found")}
	n := New(sender)

	if n.JobStarted(context.Background(), sampleJob()) {
		t.Error("expected delivered=false on transport failure")
	}
}

func TestNilSenderDropsQuietly(t *testing.T) {
	n := New(nil)
	if n.JobFailed(context.Background(), sampleJob(), "boom") {
		t.Error("expected delivered=false with no sender configured")
	}
}
