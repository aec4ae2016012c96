// Package notify delivers new-lead alerts to the sales team.
//
// A Dispatcher fans out to however many channels are configured (email,
// SMS). Delivery is best effort: a failed alert is logged and the chat
// turn proceeds, because notification failure must never block a visitor.
package notify

import (
	"context"
	"log/slog"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// Notifier sends a single new-lead alert over one channel.
type Notifier interface {
	// NotifyNewLead alerts the sales team about a freshly captured lead.
	NotifyNewLead(ctx context.Context, lead *models.Lead) error
	// Name identifies the channel for logging.
	Name() string
}

// Dispatcher fans a new-lead alert out to every configured channel.
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher creates a dispatcher over the given channels. A dispatcher
// with no channels is valid and does nothing.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// NotifyNewLead sends the alert on every channel, logging failures without
// returning them. Each channel is attempted even if an earlier one fails.
func (d *Dispatcher) NotifyNewLead(ctx context.Context, lead *models.Lead) {
	if lead == nil {
		return
	}
	for _, n := range d.notifiers {
		if err := n.NotifyNewLead(ctx, lead); err != nil {
			slog.Error("Dispatcher.NotifyNewLead: channel delivery failed",
				"channel", n.Name(), "error", err, "sessionID", lead.SessionID)
			continue
		}
		slog.Info("Dispatcher.NotifyNewLead: alert delivered",
			"channel", n.Name(), "sessionID", lead.SessionID)
	}
}

// Channels returns the number of configured channels.
func (d *Dispatcher) Channels() int {
	return len(d.notifiers)
}
