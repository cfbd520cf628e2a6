package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestEventHubDeliversEvents(t *testing.T) {
	hub := NewEventHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(httptestHandler(hub))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("client was not registered")
	}

	hub.Publish("retrain", map[string]string{"message": "retrain completed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if msg.Type != "retrain" || msg.ID == "" || !strings.Contains(string(msg.Data), "retrain completed") {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestEventHubPublishWithoutClients(t *testing.T) {
	hub := NewEventHub(zap.NewNop())
	for i := 0; i < 1000; i++ {
		hub.Publish("prediction", i)
	}
}

func httptestHandler(hub *EventHub) http.Handler {
	return http.HandlerFunc(hub.HandleWebSocket)
}
