// Package notify formats and delivers job lifecycle notifications. Delivery
// is best-effort: a failed or unconfigured send is logged and reported as
// not delivered, and never surfaces as an error to the job state machine.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SougoEdo/tardis-api-middleware/internal/job"
)

const (
	maxSymbolsShown = 3
	maxErrorLength  = 200
)

// Sender delivers one rendered message over some transport.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Notifier renders the three message kinds and pushes them through a Sender.
// A nil sender degrades to log-only operation.
type Notifier struct {
	sender Sender
}

func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) JobStarted(ctx context.Context, j *job.Job) bool {
	msg := fmt.Sprintf(
		"🚀 <b>Download Started</b>\n\n"+
			"<b>Job ID:</b> %d\n"+
			"<b>Exchange:</b> %s\n"+
			"<b>Symbols:</b> %s\n"+
			"<b>Date Range:</b> %s to %s\n"+
			"<b>Requested by:</b> %s",
		j.ID, j.Exchange, formatSymbols(j.Symbols), j.StartDate, j.EndDate, j.CreatedBy,
	)
	return n.send(ctx, "started", j.ID, msg)
}

func (n *Notifier) JobCompleted(ctx context.Context, j *job.Job, durationMinutes *float64) bool {
	msg := fmt.Sprintf(
		"✅ <b>Download Completed</b>\n\n"+
			"<b>Job ID:</b> %d\n"+
			"<b>Exchange:</b> %s\n"+
			"<b>Symbols:</b> %s",
		j.ID, j.Exchange, formatSymbols(j.Symbols),
	)
	if durationMinutes != nil {
		msg += fmt.Sprintf("\n<b>Duration:</b> %.1f minutes", *durationMinutes)
	}
	return n.send(ctx, "completed", j.ID, msg)
}

func (n *Notifier) JobFailed(ctx context.Context, j *job.Job, errorMessage string) bool {
	msg := fmt.Sprintf(
		"❌ <b>Download Failed</b>\n\n"+
			"<b>Job ID:</b> %d\n"+
			"<b>Exchange:</b> %s\n"+
			"<b>Symbols:</b> %s\n"+
			"<b>Error:</b> %s",
		j.ID, j.Exchange, formatSymbols(j.Symbols), truncateError(errorMessage),
	)
	return n.send(ctx, "failed", j.ID, msg)
}

func (n *Notifier) send(ctx context.Context, kind string, jobID int64, text string) bool {
	if n.sender == nil {
		slog.Debug("notification sink not configured, dropping message", "kind", kind, "job", jobID)
		return false
	}
	if err := n.sender.Send(ctx, text); err != nil {
		slog.Error("send notification", "kind", kind, "job", jobID, "error", err)
		return false
	}
	slog.Info("notification sent", "kind", kind, "job", jobID)
	return true
}

// formatSymbols renders up to maxSymbolsShown symbols, summarizing the rest
// as a count: "A, B, C (+2 more)".
func formatSymbols(symbols []string) string {
	if len(symbols) <= maxSymbolsShown {
		return strings.Join(symbols, ", ")
	}
	return fmt.Sprintf("%s (+%d more)",
		strings.Join(symbols[:maxSymbolsShown], ", "),
		len(symbols)-maxSymbolsShown,
	)
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	return msg[:maxErrorLength] + "..."
}
