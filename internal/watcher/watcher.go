// Package watcher follows the facilitator's settlement event feed and marks
// journaled settlements confirmed once they land on chain.
package watcher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Journal is the subset of the store the watcher writes to.
type Journal interface {
	MarkSettlementConfirmed(ctx context.Context, txHash string, confirmedAt time.Time) (int64, error)
}

// SettlementEvent is one message from the facilitator feed.
type SettlementEvent struct {
	Type        string    `json:"type"`
	Transaction string    `json:"transaction"`
	Network     string    `json:"network"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

const eventSettlementConfirmed = "settlement.confirmed"

type Watcher struct {
	Endpoint string
	Journal  Journal
}

// Run connects, subscribes, and processes events until the context is
// canceled, reconnecting with a short pause after any failure.
func (w *Watcher) Run(ctx context.Context) {
	if w.Endpoint == "" {
		log.Printf("settlement watcher disabled: ws endpoint is empty")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := w.connect(ctx)
		if err != nil {
			log.Printf("ws connect failed: %v", err)
			sleep(ctx, 3*time.Second)
			continue
		}
		log.Printf("ws connected %s", w.Endpoint)

		w.readLoop(ctx, conn)
		_ = conn.Close()
		sleep(ctx, 2*time.Second)
	}
}

func (w *Watcher) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, w.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	sub := map[string]any{
		"type":    "subscribe",
		"channel": "settlements",
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (w *Watcher) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Printf("ws read failed: %v", err)
			return
		}

		ev, ok, err := ParseEvent(msg)
		if err != nil {
			log.Printf("ws parse failed: %v", err)
			continue
		}
		if !ok {
			continue
		}

		updated, err := w.Journal.MarkSettlementConfirmed(ctx, ev.Transaction, ev.ConfirmedAt)
		if err != nil {
			log.Printf("mark settlement confirmed failed: %v", err)
			continue
		}
		if updated > 0 {
			log.Printf("settlement confirmed tx=%s network=%s", ev.Transaction, ev.Network)
		}
	}
}

// ParseEvent decodes a feed message. The second return is false for messages
// that are valid JSON but not confirmation events (acks, heartbeats).
func ParseEvent(msg []byte) (*SettlementEvent, bool, error) {
	var ev SettlementEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return nil, false, err
	}
	if ev.Type != eventSettlementConfirmed || ev.Transaction == "" {
		return nil, false, nil
	}
	if ev.ConfirmedAt.IsZero() {
		ev.ConfirmedAt = time.Now().UTC()
	}
	return &ev, true, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
