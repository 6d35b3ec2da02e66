// Package dispatch routes inbound messages through the gate and into the
// flow engine, serializing all work per user so concurrent deliveries and
// quote callbacks for the same traveler never interleave.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/gate"
	"github.com/unravelhq/tripflow/internal/metrics"
	"github.com/unravelhq/tripflow/internal/phone"
	"github.com/unravelhq/tripflow/internal/transport"
)

// DefaultProcessTimeout bounds handling of a single inbound message,
// including answer engine and backend calls.
const DefaultProcessTimeout = 45 * time.Second

// Processor handles one admitted message. Satisfied by the flow engine.
type Processor interface {
	Process(ctx context.Context, userID, text string) ([]string, error)
}

// TextSender delivers replies. Satisfied by the transport connector.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	engine  Processor
	gate    *gate.Gate
	sender  TextSender
	locks   *keyedMutex
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a dispatcher.
func New(engine Processor, g *gate.Gate, sender TextSender, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	return &Dispatcher{
		engine:  engine,
		gate:    g,
		sender:  sender,
		locks:   newKeyedMutex(),
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// HandleInbound processes one message from the bridge. Gate drops are
// not errors; the message is simply absorbed.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg transport.InboundMessage) error {
	userID := phone.Canonical(msg.UserID)
	if userID == "" {
		d.logger.Warn("inbound message without resolvable sender",
			zap.String("raw_user_id", msg.UserID),
		)
		if d.metrics != nil {
			d.metrics.RecordMessage("dropped")
		}
		return nil
	}

	admitted, reason := d.gate.Admit(userID, msg.MessageID, msg.Text)
	if !admitted {
		if d.metrics != nil {
			d.metrics.RecordGateDrop(string(reason))
			d.metrics.RecordMessage("dropped")
		}
		return nil
	}

	var processErr error
	d.Serialize(userID, func() {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		replies, err := d.engine.Process(ctx, userID, msg.Text)
		if err != nil {
			processErr = err
			return
		}

		for _, reply := range replies {
			if err := d.sender.SendText(ctx, userID, reply); err != nil {
				// Remaining replies are skipped; a half-delivered prompt
				// sequence beats an out-of-order one.
				d.logger.Error("reply delivery failed",
					zap.String("user_id", userID),
					zap.Error(err),
				)
				if d.metrics != nil {
					d.metrics.RecordTransportSend(false)
				}
				return
			}
			if d.metrics != nil {
				d.metrics.RecordTransportSend(true)
			}
		}
	})

	if processErr != nil {
		if d.metrics != nil {
			d.metrics.RecordMessage("error")
		}
		d.logger.Error("message processing failed",
			zap.String("user_id", userID),
			zap.Error(processErr),
		)
		return processErr
	}

	if d.metrics != nil {
		d.metrics.RecordMessage("processed")
	}
	return nil
}

// Serialize runs fn holding the user's lock. Quote reconciliation uses
// this to avoid interleaving with in-flight message processing for the
// same traveler.
func (d *Dispatcher) Serialize(userID string, fn func()) {
	unlock := d.locks.lock(userID)
	defer unlock()
	fn()
}
