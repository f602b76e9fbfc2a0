package core_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	core "l2rollup/core"
)

type recordingRelay struct {
	mu    sync.Mutex
	calls []core.Address
	sum   uint64
}

func (r *recordingRelay) CreditDeposit(addr core.Address, amount uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, addr)
	r.sum += amount
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestOracleRelaysAndDedupsBySenderAndSlot(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sender core.Address
		sender[0] = 7
		events := []string{
			`{"sender":"` + sender.String() + `","amount":100,"slot":1}`,
			`{"sender":"` + sender.String() + `","amount":100,"slot":1}`, // duplicate: same sender+slot
			`{"sender":"` + sender.String() + `","amount":50,"slot":2}`,  // same sender, different slot
		}
		for _, ev := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(ev)); err != nil {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	relay := &recordingRelay{}
	oracle := core.NewOracle(wsURL, relay)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- oracle.Run(ctx) }()

	deadline := time.Now().Add(1 * time.Second)
	for relay.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if got := relay.count(); got != 2 {
		t.Fatalf("relay.count() = %d, want 2 (duplicate slot 1 event must be ignored)", got)
	}
	if relay.sum != 150 {
		t.Fatalf("relay.sum = %d, want 150", relay.sum)
	}
}
