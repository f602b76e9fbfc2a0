package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// minReconnectBackoff and maxReconnectBackoff bound the delay between
// reconnect attempts after the L1 event feed drops (spec.md §4.10/§7).
const (
	minReconnectBackoff = 1 * time.Second
	maxReconnectBackoff = 30 * time.Second
)

// DepositEvent is the L1 bridge program's deposit notification, delivered
// over the oracle's websocket subscription alongside the L1 slot it landed
// in.
type DepositEvent struct {
	Sender Address `json:"sender"`
	Amount uint64  `json:"amount"`
	Slot   uint64  `json:"slot"`
}

// DepositRelay is the L2 system inbox's effect of a relayed deposit: credit
// the depositor's L2 balance.
type DepositRelay interface {
	CreditDeposit(addr Address, amount uint64)
}

// Oracle subscribes to the L1 bridge program's deposit events over a
// websocket and relays each one exactly once to the L2 system inbox,
// de-duplicating on (sender, slot) rather than (sender, amount) so repeated
// deposits of the same amount in different slots are not conflated
// (spec.md §9 Open Question #4).
type Oracle struct {
	wsURL string
	relay DepositRelay
	dial  *websocket.Dialer

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewOracle returns an Oracle that dials wsURL and relays through relay.
func NewOracle(wsURL string, relay DepositRelay) *Oracle {
	return &Oracle{
		wsURL: wsURL,
		relay: relay,
		dial:  websocket.DefaultDialer,
		seen:  make(map[string]struct{}),
	}
}

func depositKey(ev DepositEvent) string {
	return fmt.Sprintf("%s:%d", ev.Sender.String(), ev.Slot)
}

// Run connects to the L1 event feed and relays deposit events until ctx is
// cancelled, reconnecting with exponential backoff (capped at
// maxReconnectBackoff) whenever the connection drops.
func (o *Oracle) Run(ctx context.Context) error {
	backoff := minReconnectBackoff
	for {
		connected, err := o.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = minReconnectBackoff
		} else {
			backoff *= 2
			if backoff > maxReconnectBackoff {
				backoff = maxReconnectBackoff
			}
		}
		logrus.WithError(err).WithField("retry_in", backoff).Warn("L1 deposit feed disconnected; reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// runConnection dials the L1 event feed once and relays messages until the
// connection errors or ctx is cancelled. connected reports whether the dial
// itself succeeded, so Run can distinguish a dial failure (keep backing off)
// from a drop after a live connection (reset backoff).
func (o *Oracle) runConnection(ctx context.Context) (connected bool, err error) {
	conn, _, err := o.dial.DialContext(ctx, o.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial L1 deposit feed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("L1 deposit feed closed: %w", err)
		}
		var ev DepositEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			logrus.WithError(err).Warn("discarding malformed L1 deposit event")
			continue
		}
		o.relayOnce(ev)
	}
}

func (o *Oracle) relayOnce(ev DepositEvent) {
	key := depositKey(ev)
	o.mu.Lock()
	if _, dup := o.seen[key]; dup {
		o.mu.Unlock()
		logrus.WithField("key", key).Debug("ignoring duplicate L1 deposit event")
		return
	}
	o.seen[key] = struct{}{}
	o.mu.Unlock()

	o.relay.CreditDeposit(ev.Sender, ev.Amount)
	logrus.WithFields(logrus.Fields{
		"sender": ev.Sender.String(),
		"amount": ev.Amount,
		"slot":   ev.Slot,
	}).Info("relayed L1 deposit to L2")
}
