// Copyright (c) 2026 Quanta Exchange Contributors
//
// gateway speaks the DIFF wire protocol over a WebSocket connection: client
// frames ({"aid":"peek_message"}, "insert_order", "cancel_order",
// "subscribe_quote", "set_chart") in, {"aid":"rtn_data","data":[...]}
// batches out. The read/dispatch loop is shaped like the teacher's
// LiveClient: a buffered reader blocking on the next frame, handed off to a
// type-specific decoder, generalized here from a raw DBN/JSON market-data
// socket to a gobwas/ws connection carrying DIFF JSON frames.

package diff

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/valyala/fastjson"

	"github.com/quantaex/qx-store/snapshot"
)

// OrderHandler dispatches the client-originated, non-peek DIFF requests.
// Order matching itself is out of scope for the gateway; these calls only
// translate the wire frame into a domain operation.
type OrderHandler interface {
	InsertOrder(ctx context.Context, userID string, raw json.RawMessage) error
	CancelOrder(ctx context.Context, userID string, raw json.RawMessage) error
	SubscribeQuote(ctx context.Context, userID string, insList string) error
	SetChart(ctx context.Context, userID string, raw json.RawMessage) error
}

// clientFrame is the envelope every Client->Server DIFF frame shares.
type clientFrame struct {
	Aid     string          `json:"aid"`
	InsList string          `json:"ins_list,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// Session is one upgraded WebSocket connection bound to a single user.
type Session struct {
	conn    net.Conn
	userID  string
	snapMgr *snapshot.Manager
	handler OrderHandler
	log     *slog.Logger

	writeMu sync.Mutex
	peekMu  sync.Mutex // serializes peek goroutines: one outstanding peek at a time
}

// NewSession wraps an already-upgraded WebSocket net.Conn (see ws.Upgrade)
// for userID.
func NewSession(conn net.Conn, userID string, snapMgr *snapshot.Manager, handler OrderHandler, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{conn: conn, userID: userID, snapMgr: snapMgr, handler: handler, log: logger}
}

// Upgrade performs the WebSocket handshake on a freshly-accepted TCP
// connection, the server-side mirror of the teacher's client-side
// net.Dial-then-handshake connect step.
func Upgrade(conn net.Conn) error {
	_, err := ws.Upgrade(conn)
	return err
}

// UpgradeWithUserID performs the handshake like Upgrade, additionally
// capturing the "user_id" query parameter off the upgrade request's
// request-target (e.g. "/ws?user_id=alice"), so the caller can bind the
// resulting Session without a separate authentication frame.
func UpgradeWithUserID(conn net.Conn) (userID string, err error) {
	u := ws.Upgrader{
		OnRequest: func(uri []byte) error {
			target, perr := url.Parse(string(uri))
			if perr != nil {
				return nil // malformed request-target: leave userID empty, handled by caller
			}
			userID = target.Query().Get("user_id")
			return nil
		},
	}
	_, err = u.Upgrade(conn)
	return userID, err
}

// Serve reads client frames until ctx is cancelled or the connection
// closes. peek_message is dispatched asynchronously (so a long-blocking
// peek never stalls processing of other frames); every other aid is
// forwarded to the handler inline.
func (s *Session) Serve(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, op, err := wsutil.ReadClientData(s.conn)
		if err != nil {
			return fmt.Errorf("diff: read client frame: %w", err)
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn("diff: malformed client frame", "user_id", s.userID, "error", err)
			continue
		}
		frame.Raw = data

		switch frame.Aid {
		case "peek_message":
			go s.runPeek(ctx)
		case "insert_order":
			if err := s.handler.InsertOrder(ctx, s.userID, frame.Raw); err != nil {
				s.log.Warn("diff: insert_order failed", "user_id", s.userID, "error", err)
			}
		case "cancel_order":
			if err := s.handler.CancelOrder(ctx, s.userID, frame.Raw); err != nil {
				s.log.Warn("diff: cancel_order failed", "user_id", s.userID, "error", err)
			}
		case "subscribe_quote":
			if err := s.handler.SubscribeQuote(ctx, s.userID, frame.InsList); err != nil {
				s.log.Warn("diff: subscribe_quote failed", "user_id", s.userID, "error", err)
			}
		case "set_chart":
			if err := s.handler.SetChart(ctx, s.userID, frame.Raw); err != nil {
				s.log.Warn("diff: set_chart failed", "user_id", s.userID, "error", err)
			}
		default:
			s.log.Warn("diff: unknown aid", "user_id", s.userID, "aid", frame.Aid)
		}
	}
}

// runPeek blocks on the snapshot manager's peek and, if it returns any
// patches, writes one rtn_data frame carrying them. Only one peek runs at
// a time per session, matching the protocol's one-outstanding-peek
// contract.
func (s *Session) runPeek(ctx context.Context) {
	s.peekMu.Lock()
	defer s.peekMu.Unlock()

	patches, err := s.snapMgr.Peek(ctx, s.userID)
	if err != nil {
		s.log.Warn("diff: peek failed", "user_id", s.userID, "error", err)
		return
	}
	if len(patches) == 0 {
		return
	}
	if err := s.writeRtnData(patches); err != nil {
		s.log.Warn("diff: write rtn_data failed", "user_id", s.userID, "error", err)
	}
}

// writeRtnData serializes {"aid":"rtn_data","data":[patch, ...]} directly
// against fastjson.Value.MarshalTo rather than via segmentio/encoding/json:
// fastjson.Value doesn't implement json.Marshaler, so the patch array is
// built by hand and only the envelope is plain text.
func (s *Session) writeRtnData(patches []*fastjson.Value) error {
	body := []byte(`{"aid":"rtn_data","data":[`)
	for i, p := range patches {
		if i > 0 {
			body = append(body, ',')
		}
		body = p.MarshalTo(body)
	}
	body = append(body, ']', '}')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wsutil.WriteServerMessage(s.conn, ws.OpText, body)
}

// NewMessageID mints a message id for a patch pushed into C10, so the
// snapshot manager's dedup set can suppress a retried push.
func NewMessageID() string {
	return uuid.NewString()
}

// WriteRaw writes payload as a single WebSocket text frame, serializing
// with the same mutex as the peek-driven rtn_data writes. Used by
// cmd/qx-gateway to deliver notify (C13) push batches over the same
// connection a Session already owns.
func (s *Session) WriteRaw(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wsutil.WriteServerMessage(s.conn, ws.OpText, payload)
}
