package wstransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/allbus/corebus/internal/wire"
)

func TestSendMessageRoundTripsOverRealWebSocket(t *testing.T) {
	var upgrader websocket.Upgrader
	serverLink := make(chan *Link, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverLink <- Accept(conn, nil)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var server *Link
	select {
	case server = <-serverLink:
	case <-time.After(time.Second):
		t.Fatal("server never accepted connection")
	}
	defer server.Close()

	msg, err := wire.NewMethodCall(1, "/obj", "com.example.Widget", "Spin",
		[]wire.Arg{{Type: wire.TypeString, Str: "hi"}}, wire.Signature("s"))
	if err != nil {
		t.Fatal(err)
	}

	if err := client.SendMessage(msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	got, err := server.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.Serial != msg.Serial || got.Type != wire.TypeMethodCall {
		t.Fatalf("got %+v", got)
	}
	if err := wire.UnmarshalArgs(got, wire.Signature("s")); err != nil {
		t.Fatalf("UnmarshalArgs: %v", err)
	}
	if len(got.Args) != 1 || got.Args[0].Str != "hi" {
		t.Fatalf("got args %+v", got.Args)
	}
}
