package printer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"duet-backup/core/source"
)

// Notifier shows messages on the printer display with M291.
type Notifier struct {
	client *Client
}

// NewNotifier creates a Notifier.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// Notify sends a non-blocking message box (S1) without timeout (T0).
func (n *Notifier) Notify(ctx context.Context, message string) error {
	return n.send(ctx, MessageGCode(message))
}

// NotifyFor sends a non-blocking message box that closes after d, rounded
// up to whole seconds.
func (n *Notifier) NotifyFor(ctx context.Context, message string, d time.Duration) error {
	return n.send(ctx, TimedMessageGCode(message, d))
}

func (n *Notifier) send(ctx context.Context, gcode string) error {
	q := url.Values{}
	q.Set("gcode", gcode)
	if _, err := n.client.get(ctx, "/rr_gcode", q); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// MessageGCode formats message as an M291 command. Double quotes are doubled
// as the gcode parser expects.
func MessageGCode(message string) string {
	return TimedMessageGCode(message, 0)
}

// TimedMessageGCode is MessageGCode with a display timeout. d <= 0 keeps the
// box open.
func TimedMessageGCode(message string, d time.Duration) string {
	seconds := int64(0)
	if d > 0 {
		seconds = int64((d + time.Second - 1) / time.Second)
	}
	return fmt.Sprintf(`M291 S1 T%d P"%s"`, seconds, strings.ReplaceAll(message, `"`, `""`))
}

var _ source.TimedNotifier = (*Notifier)(nil)
