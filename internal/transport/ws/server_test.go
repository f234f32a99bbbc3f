package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"manaforge.ai/internal/catalogs"
	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/persistence/docstore"
	"manaforge.ai/internal/protocol"
	"manaforge.ai/internal/session"
	"manaforge.ai/internal/tuning"
)

type echoBackend struct{}

func (echoBackend) Complete(ctx context.Context, messages []genai.Message, opts genai.Options) (string, error) {
	return "A quiet tale.", nil
}

func (echoBackend) Image(ctx context.Context, prompt, size string) (genai.ImageRef, error) {
	return genai.ImageRef{}, errors.New("no images")
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	store, err := docstore.OpenFile(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	tu := tuning.Default()
	sess := session.New(session.Config{Store: store, Backend: echoBackend{}, Tuning: tu})
	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := NewServer(sess, catalogs.Default(), tu.Digest(), log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readResult(t *testing.T, conn *websocket.Conn) protocol.ResultMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var res protocol.ResultMsg
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Type != protocol.TypeResult {
		t.Fatalf("expected RESULT, got %q", res.Type)
	}
	return res
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var w protocol.WelcomeMsg
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	return w
}

func act(id string, a protocol.Action) protocol.ActMsg {
	return protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ID: id, Action: a}
}

func TestHandshake_Welcome(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	w := hello(t, conn)
	if w.Type != protocol.TypeWelcome || w.SessionID == "" {
		t.Fatalf("unexpected welcome: %+v", w)
	}
	if w.Catalogs.Races != len(catalogs.Default().Races) || len(w.Catalogs.CatalogsDigest) != 64 {
		t.Fatalf("unexpected catalog digests: %+v", w.Catalogs)
	}
	if w.Worlds == nil || len(w.Worlds) != 0 {
		t.Fatalf("expected empty world list, got %v", w.Worlds)
	}
}

func TestHandshake_RejectsWrongFirstMessage(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	send(t, conn, act("1", protocol.Action{Type: protocol.ActStoryState}))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestAct_ResultsAndCodes(t *testing.T) {
	srv, url := startServer(t)
	conn := dial(t, url)
	hello(t, conn)

	send(t, conn, act("1", protocol.Action{Type: protocol.ActCreateWorld, World: "Eldemoor"}))
	res := readResult(t, conn)
	if !res.OK || res.AckFor != "1" {
		t.Fatalf("create world: %+v", res)
	}
	var view struct {
		World string `json:"world"`
	}
	if err := json.Unmarshal(res.Data, &view); err != nil || view.World != "Eldemoor" {
		t.Fatalf("result data: %s (%v)", res.Data, err)
	}
	if srv.Connections() != 1 {
		t.Fatalf("connections: %d", srv.Connections())
	}

	cases := []struct {
		msg  any
		code string
	}{
		{act("2", protocol.Action{Type: protocol.ActCreateWorld, World: "Eldemoor"}), protocol.ErrConflict},
		{act("3", protocol.Action{Type: "TELEPORT"}), protocol.ErrBadRequest},
		{act("4", protocol.Action{Type: protocol.ActApplyChoice, Option: "Press onward"}), protocol.ErrInvalidTransition},
		{protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: "0.9", ID: "5"}, protocol.ErrProtoBadRequest},
		{protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version}, protocol.ErrProtoBadRequest},
	}
	for _, tc := range cases {
		send(t, conn, tc.msg)
		res := readResult(t, conn)
		if res.OK || res.Code != tc.code || !protocol.IsKnownCode(res.Code) {
			t.Fatalf("expected %s, got %+v", tc.code, res)
		}
	}

	send(t, conn, act("6", protocol.Action{Type: protocol.ActAdvanceTime, Days: 2}))
	res = readResult(t, conn)
	var sv struct {
		Day int `json:"day"`
	}
	if err := json.Unmarshal(res.Data, &sv); err != nil || !res.OK || sv.Day != 2 {
		t.Fatalf("advance time: %+v", res)
	}
}
