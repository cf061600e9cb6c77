package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

const realtimePath = "/realtime/v1/websocket"

// channel is one joined realtime topic.
type channel struct {
	conn     *websocket.Conn
	topic    string
	writeMu  sync.Mutex
	ref      int
	joinRef  string
	done     chan struct{}
	once     sync.Once
	lostOnce sync.Once
	wg       sync.WaitGroup
	log      *zap.Logger
	ownerID  string
	onChange gateway.ChangeHandler

	// token returns the current access token, refreshing it when needed.
	// sentToken is the last one the server saw; both belong to the
	// heartbeat loop.
	token     func(context.Context) (string, error)
	sentToken string
}

// SubscribeToOwnerChanges opens a realtime socket and joins a channel
// filtered to ownerID's rows. The returned function leaves the channel and
// closes the socket; after it returns onChange is not called again.
//
// A dropped socket or a channel the server closes or rejects ends the feed
// with a model.ChangeFeedLost event. Refreshed access tokens are passed on
// to the server at each heartbeat.
func (g *Gateway) SubscribeToOwnerChanges(
	ctx context.Context,
	ownerID string,
	onChange gateway.ChangeHandler,
) (func(), error) {
	token, err := g.accessToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	wsURL, err := g.realtimeURL()
	if err != nil {
		return nil, err
	}
	conn, resp, err := g.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, &gateway.AuthError{Op: "subscribe", Message: err.Error()}
		}
		return nil, &gateway.TransportError{Op: "subscribe", StatusCode: status, Err: err}
	}

	ch := &channel{
		conn:     conn,
		topic:    "realtime:" + tableName + ":" + ownerID,
		done:     make(chan struct{}),
		log:      g.log.With(zap.String("owner", ownerID)),
		ownerID:  ownerID,
		onChange: onChange,
		token: func(ctx context.Context) (string, error) {
			return g.accessToken(ctx, ownerID)
		},
		sentToken: token,
	}

	join := map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]any{{
				"event":  "*",
				"schema": "public",
				"table":  tableName,
				"filter": "user_id=eq." + ownerID,
			}},
		},
		"access_token": token,
	}
	ref, err := ch.send("phx_join", ch.topic, join)
	if err != nil {
		conn.Close()
		return nil, &gateway.TransportError{Op: "subscribe", Err: fmt.Errorf("joining channel: %w", err)}
	}
	ch.joinRef = ref

	ch.wg.Add(2)
	go ch.readLoop()
	go ch.heartbeatLoop(ctx, g.heartbeat)

	return ch.close, nil
}

func (g *Gateway) realtimeURL() (string, error) {
	u, err := url.Parse(g.client.baseURL + realtimePath)
	if err != nil {
		return "", fmt.Errorf("parsing realtime url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"apikey": {g.client.anonKey}, "vsn": {"1.0.0"}}.Encode()
	return u.String(), nil
}

// send writes one frame and returns its ref.
func (c *channel) send(event, topic string, payload map[string]any) (string, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ref++
	ref := strconv.Itoa(c.ref)
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ref, c.conn.WriteJSON(phoenixMessage{
		Topic:   topic,
		Event:   event,
		Payload: payload,
		Ref:     ref,
	})
}

func (c *channel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// lost reports the end of the feed to the subscriber once, unless the
// subscriber closed it.
func (c *channel) lost(reason string, err error) {
	if c.closed() {
		return
	}
	c.lostOnce.Do(func() {
		c.log.Warn("realtime feed lost", zap.String("reason", reason), zap.Error(err))
		c.onChange(model.ChangeEvent{Type: model.ChangeFeedLost, OwnerID: c.ownerID})
	})
}

func (c *channel) readLoop() {
	defer c.wg.Done()
	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.lost("connection closed", err)
			return
		}
		if c.closed() {
			return
		}

		switch msg.Event {
		case "postgres_changes":
			if ev, ok := c.decodeChange(msg.Payload); ok {
				c.onChange(ev)
			}
		case "phx_reply":
			var reply replyPayload
			if json.Unmarshal(msg.Payload, &reply) == nil && reply.Status == "error" {
				if msg.Ref != c.joinRef {
					c.log.Debug("realtime request rejected", zap.ByteString("response", reply.Response))
					continue
				}
				c.lost("join rejected", errors.New(string(reply.Response)))
				_ = c.conn.Close()
				return
			}
		case "phx_error", "phx_close":
			if msg.Topic == c.topic {
				c.lost("channel "+strings.TrimPrefix(msg.Event, "phx_"), nil)
				_ = c.conn.Close()
				return
			}
		case "system":
			c.log.Debug("realtime notice", zap.String("event", msg.Event), zap.ByteString("payload", msg.Payload))
		}
	}
}

func (c *channel) heartbeatLoop(ctx context.Context, every time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			go c.close()
			return
		case <-ticker.C:
			if _, err := c.send("heartbeat", "phoenix", map[string]any{}); err != nil {
				c.log.Debug("heartbeat failed", zap.Error(err))
			}
			c.passToken(ctx)
		}
	}
}

// passToken sends the current access token when it differs from the one
// the server has, so the channel outlives the token it joined with.
func (c *channel) passToken(ctx context.Context) {
	token, err := c.token(ctx)
	switch {
	case gateway.IsAuthError(err) || errors.Is(err, gateway.ErrUnauthenticated):
		c.lost("session ended", err)
		return
	case err != nil:
		c.log.Debug("checking access token failed", zap.Error(err))
		return
	case token == c.sentToken:
		return
	}
	if _, err := c.send("access_token", c.topic, map[string]any{"access_token": token}); err != nil {
		c.log.Debug("sending access token failed", zap.Error(err))
		return
	}
	c.sentToken = token
}

// decodeChange turns a postgres_changes payload into a ChangeEvent. Rows of
// other owners are dropped even though the server filter should exclude
// them.
func (c *channel) decodeChange(payload json.RawMessage) (model.ChangeEvent, bool) {
	var p changePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.log.Debug("undecodable change", zap.Error(err))
		return model.ChangeEvent{}, false
	}

	row := p.Data.Record
	if len(row) == 0 {
		row = p.Data.OldRecord
	}
	owner, _ := row["user_id"].(string)
	if owner != "" && owner != c.ownerID {
		return model.ChangeEvent{}, false
	}
	id, _ := row["id"].(string)

	return model.ChangeEvent{
		Type:     model.ChangeType(strings.ToUpper(p.Data.Type)),
		OwnerID:  c.ownerID,
		RecordID: id,
	}, true
}

// close leaves the channel, closes the socket and waits for the read and
// heartbeat loops to exit. It is safe to call more than once.
func (c *channel) close() {
	c.once.Do(func() {
		close(c.done)
		_, _ = c.send("phx_leave", c.topic, map[string]any{})
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.writeMu.Unlock()
		c.conn.Close()
	})
	c.wg.Wait()
}
