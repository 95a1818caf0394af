package mail

import (
	"context"
	"log/slog"
	"time"
)

const defaultQueueSize = 64

// Dispatcher sends queued mail on a background worker so that notification
// failures never fail the request that triggered them.
type Dispatcher struct {
	sender Sender
	queue  chan Message
}

// NewDispatcher wraps a sender with an async queue.
func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		sender: sender,
		queue:  make(chan Message, queueSize),
	}
}

// Enqueue schedules a message for delivery. It never blocks; when the queue
// is full the message is dropped and logged.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		slog.Warn("mail_queue_full", "to", msg.To, "subject", msg.Subject)
	}
}

// Run delivers queued mail until the context is cancelled. Remaining queued
// messages are drained with a short grace period on shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := d.sender.Send(sendCtx, msg); err != nil {
		slog.Error("mail_send_failed", "to", msg.To, "subject", msg.Subject, "err", err)
		return
	}
	slog.Info("mail_sent", "to", msg.To, "subject", msg.Subject)
}

func (d *Dispatcher) drain() {
	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case msg := <-d.queue:
			drainCtx, cancel := context.WithDeadline(context.Background(), deadline)
			err := d.sender.Send(drainCtx, msg)
			cancel()
			if err != nil {
				slog.Error("mail_send_failed", "to", msg.To, "subject", msg.Subject, "err", err)
			}
			if time.Now().After(deadline) {
				return
			}
		default:
			return
		}
	}
}
