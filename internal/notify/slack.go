// Package notify forwards noteworthy room events to Slack. The notifier is a
// bus mirror: best-effort, buffered, never blocking the kernel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/hiveroom/hiveroom/internal/bus"
)

// Only room-level milestones reach Slack; per-cycle chatter stays in the
// activity log.
var notableKinds = map[string]bool{
	bus.KindDecisionProposed: true,
	bus.KindDecisionResolved: true,
	bus.KindRateLimited:      true,
	bus.KindLoopStarted:      true,
	bus.KindLoopStopped:      true,
}

// SlackNotifier posts notable activity events to one Slack channel.
type SlackNotifier struct {
	api     *slack.Client
	channel string
	events  chan bus.Event
	done    chan struct{}
}

// NewSlackNotifier creates and starts a notifier.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	n := &SlackNotifier{
		api:     slack.New(token),
		channel: channel,
		events:  make(chan bus.Event, 64),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Publish implements bus.Mirror. Events are dropped when the buffer is full.
func (n *SlackNotifier) Publish(ev bus.Event) {
	if !notableKinds[ev.Kind] {
		return
	}
	select {
	case n.events <- ev:
	default:
		slog.Warn("Slack notifier buffer full, dropping event", "kind", ev.Kind)
	}
}

// Close stops the notifier after draining buffered events.
func (n *SlackNotifier) Close() {
	close(n.events)
	<-n.done
}

func (n *SlackNotifier) run() {
	defer close(n.done)
	for ev := range n.events {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, _, err := n.api.PostMessageContext(ctx, n.channel,
			slack.MsgOptionText(format(ev), false))
		cancel()
		if err != nil {
			slog.Warn("Slack post failed", "kind", ev.Kind, "error", err)
		}
	}
}

func format(ev bus.Event) string {
	who := ev.AgentID
	if who == "" {
		who = "room"
	}
	return fmt.Sprintf("[%s] %s: %s %s", ev.RoomID, who, ev.Kind, ev.Detail)
}
