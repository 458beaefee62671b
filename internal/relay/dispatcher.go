package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type DispatchResult struct {
	NotificationID string
	Success        bool
	Error          string
	Timestamp      time.Time
}

// ChannelHandler delivers a notification over one channel.
type ChannelHandler interface {
	Send(ctx context.Context, n Notification) DispatchResult
}

// logHandler stands in for a real channel integration: it writes the
// notification to the log and reports success.
type logHandler struct {
	channel Channel
	logger  *slog.Logger
}

func (h logHandler) Send(_ context.Context, n Notification) DispatchResult {
	h.logger.Info("[notification]",
		"type", n.Type,
		"channel", h.channel,
		"recipient", n.Recipient,
		"payload", string(n.Payload),
	)
	return DispatchResult{
		NotificationID: n.ID,
		Success:        true,
		Timestamp:      time.Now().UTC(),
	}
}

type Dispatcher struct {
	handlers map[Channel]ChannelHandler
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	handlers := make(map[Channel]ChannelHandler, len(Channels))
	for _, ch := range Channels {
		handlers[ch] = logHandler{channel: ch, logger: logger}
	}
	return &Dispatcher{handlers: handlers}
}

// WithHandler replaces the handler for ch.
func (d *Dispatcher) WithHandler(ch Channel, h ChannelHandler) *Dispatcher {
	d.handlers[ch] = h
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) DispatchResult {
	handler, ok := d.handlers[n.Channel]
	if !ok {
		return DispatchResult{
			NotificationID: n.ID,
			Error:          fmt.Sprintf("unknown channel: %s", n.Channel),
			Timestamp:      time.Now().UTC(),
		}
	}
	return handler.Send(ctx, n)
}
