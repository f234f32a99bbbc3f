package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"manaforge.ai/internal/catalogs"
	"manaforge.ai/internal/protocol"
	"manaforge.ai/internal/session"
)

// Applier runs one action against session state.
type Applier interface {
	Apply(ctx context.Context, a protocol.Action) (any, error)
	Info() session.Info
}

type Server struct {
	sess         Applier
	cat          *catalogs.Catalogs
	tuningDigest string
	log          *log.Logger

	upgrader websocket.Upgrader
	conns    atomic.Int64
}

func NewServer(sess Applier, cat *catalogs.Catalogs, tuningDigest string, logger *log.Logger) *Server {
	s := &Server{
		sess:         sess,
		cat:          cat,
		tuningDigest: tuningDigest,
		log:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// Connections reports the number of clients past the handshake.
func (s *Server) Connections() int64 { return s.conns.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := s.handshake(conn)
		if client == "" {
			return
		}
		s.conns.Add(1)
		defer s.conns.Add(-1)
		s.log.Printf("client connected: %s", client)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan protocol.ResultMsg, 8)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case res := <-out:
					if err := writeJSON(conn, res); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res := s.handle(ctx, msg)
			select {
			case out <- res:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
		s.log.Printf("client disconnected: %s", client)
	}
}

// handle turns one inbound frame into exactly one RESULT.
func (s *Server) handle(ctx context.Context, msg []byte) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeAct {
		return reject(res, protocol.ErrProtoBadRequest, "expected ACT")
	}
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		return reject(res, protocol.ErrProtoBadRequest, "malformed ACT: "+err.Error())
	}
	res.AckFor = act.ID
	if act.ProtocolVersion != protocol.Version {
		return reject(res, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if !protocol.IsKnownAction(act.Action.Type) {
		return reject(res, protocol.ErrBadRequest, "unknown action "+act.Action.Type)
	}

	data, err := s.sess.Apply(ctx, act.Action)
	if err != nil {
		code := session.Code(err)
		if code == protocol.ErrInternal {
			s.log.Printf("%s failed: %v", act.Action.Type, err)
		}
		return reject(res, code, err.Error())
	}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			s.log.Printf("%s: encode result: %v", act.Action.Type, err)
			return reject(res, protocol.ErrInternal, "encode result")
		}
		res.Data = b
	}
	res.OK = true
	return res
}

func reject(res protocol.ResultMsg, code, message string) protocol.ResultMsg {
	res.OK = false
	res.Code = code
	res.Message = message
	return res
}

func (s *Server) handshake(conn *websocket.Conn) (client string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return ""
	}
	client = strings.TrimSpace(hello.ClientName)
	if client == "" {
		client = "client"
	}

	info := s.sess.Info()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       info.ID,
		Worlds:          info.Worlds,
		ActiveWorld:     info.ActiveWorld,
		Day:             info.Day,
		Catalogs: protocol.CatalogDigests{
			CatalogsDigest: s.cat.Digest,
			TuningDigest:   s.tuningDigest,
			Races:          len(s.cat.Races),
			Classes:        len(s.cat.Classes),
		},
	}
	if welcome.Worlds == nil {
		welcome.Worlds = []string{}
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return client
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
