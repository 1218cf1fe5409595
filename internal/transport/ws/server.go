package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/world"
)

const outQueue = 32

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(r.Context(), conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			in, code := decodeInput(msg)
			if code != "" {
				reject(out, in, code)
				continue
			}
			select {
			case s.world.Inbox() <- world.InputEnvelope{SessionID: sessionID, Input: in}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		cancel()
		s.world.Leave() <- sessionID
		if s.log != nil {
			s.log.Printf("ws: session %s closed", sessionID)
		}
	}
}

// decodeInput returns the parsed INPUT or an error code for the client.
func decodeInput(msg []byte) (protocol.InputMsg, string) {
	var in protocol.InputMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeInput {
		return in, protocol.ErrProtoBadRequest
	}
	if err := json.Unmarshal(msg, &in); err != nil {
		return in, protocol.ErrProtoBadRequest
	}
	if in.ProtocolVersion != protocol.Version || in.Kind == "" {
		return in, protocol.ErrProtoBadRequest
	}
	return in, ""
}

func reject(out chan []byte, in protocol.InputMsg, code string) {
	b, err := json.Marshal(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Seq:             in.Seq,
		Kind:            in.Kind,
		OK:              false,
		Code:            code,
		Message:         "malformed INPUT",
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, outQueue)
	respCh := make(chan world.JoinResponse, 1)
	joinCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	select {
	case s.world.Join() <- world.JoinRequest{Name: hello.PlayerName, Out: out, Resp: respCh}:
	case <-joinCtx.Done():
		return "", nil
	}
	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-joinCtx.Done():
		return "", nil
	}

	// Send welcome + catalogs immediately.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	for _, c := range resp.Catalogs {
		if err := writeJSON(conn, c); err != nil {
			return "", nil
		}
	}
	return resp.Welcome.SessionID, out
}

func closePolicy(conn *websocket.Conn, reason string) {
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
