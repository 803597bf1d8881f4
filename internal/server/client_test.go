package server

import (
	"testing"
	"time"

	"github.com/greysquirr3l/morgan-bevy/internal/network"
	"github.com/greysquirr3l/morgan-bevy/pkg/api"
)

// Хаб продолжает слать, из Send никто не читает: после смерти
// writePump пересыльщик обязан завершиться, а не висеть на отправке.
func TestForwarderStopsWhenWriterIsGone(t *testing.T) {
	c := &Client{
		Send: make(chan api.ServerResponse),
		done: make(chan struct{}),
	}
	updates := make(chan api.ServerResponse, 1)

	finished := make(chan struct{})
	go func() {
		c.forwardUpdates(updates)
		close(finished)
	}()

	// Сообщение взято из хаба, но доставить его некому
	updates <- api.ServerResponse{Type: api.TypeLevelChanged, Success: true}
	close(c.done)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Forwarder is still blocked on a dead connection")
	}

	if _, ok := <-c.Send; ok {
		t.Error("Send must be closed after the forwarder exits")
	}
}

// Обычный путь завершения: Unregister закрывает канал хаба,
// пересыльщик досылает остаток и закрывает Send.
func TestForwarderClosesSendOnUnregister(t *testing.T) {
	hub := network.NewBroadcaster()
	c := NewClient(nil, hub, nil)

	updates := hub.Register(c.SessionID)
	go c.forwardUpdates(updates)

	hub.SendTo(c.SessionID, api.ServerResponse{Type: api.TypeResult, Success: true})
	hub.Unregister(c.SessionID)

	deadline := time.After(2 * time.Second)
	got := 0
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				if got != 1 {
					t.Errorf("Expected 1 forwarded message before close, got %d", got)
				}
				return
			}
			if msg.Type != api.TypeResult {
				t.Errorf("Unexpected message type %q", msg.Type)
			}
			got++
		case <-deadline:
			t.Fatal("Send was never closed after Unregister")
		}
	}
}
