// Package notify delivers alert text to the configured channels.
// Delivery is best-effort by contract: a failing channel is logged and
// reported in the run status, never allowed to abort the run.
package notify

import (
	"context"
	"log"
)

// Notifier delivers one alert message for one device.
type Notifier interface {
	// Name identifies the channel in logs and the run status.
	Name() string

	// Send delivers the message. deviceID lets channels that address
	// per-device topics route the message.
	Send(ctx context.Context, deviceID, message string) error
}

// Fanout sends to every notifier and returns the names of the channels
// that failed. Failures are logged here so callers only count them.
func Fanout(ctx context.Context, notifiers []Notifier, deviceID, message string) []string {
	var failed []string
	for _, n := range notifiers {
		if err := n.Send(ctx, deviceID, message); err != nil {
			log.Printf("⚠️  %s notification failed for %s: %v", n.Name(), deviceID, err)
			failed = append(failed, n.Name())
		}
	}
	return failed
}
