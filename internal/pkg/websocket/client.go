package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Sessions only send control frames
	maxMessageSize = 512
)

// Message types sent to a session
const (
	MessageSubscribed = "subscribed"
	MessageChange     = "change"
)

// Message is the JSON frame pushed to a session.
type Message struct {
	Type   string            `json:"type"`
	Filter *FilterMessage    `json:"filter,omitempty"`
	Event  *changefeed.Event `json:"event,omitempty"`
}

// FilterMessage echoes the effective filter back to the session.
type FilterMessage struct {
	Table     changefeed.Table `json:"table,omitempty"`
	StudentID int64            `json:"studentId,omitempty"`
	EventID   int64            `json:"eventId,omitempty"`
	Class     string           `json:"class,omitempty"`
}

// Client is a middleman between the websocket connection and a change feed
// subscription
type Client struct {
	// The WebSocket connection
	conn *websocket.Conn

	// Change feed subscription feeding this session
	sub *changefeed.Subscription

	// User ID of the session owner
	userID int64

	// Logger instance
	logger zerolog.Logger
}

// readPump discards client frames and keeps the read deadline alive. It
// closes the subscription when the peer goes away, which stops writePump.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			// Don't log normal close conditions as warnings
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info().Int64("userID", c.userID).Msg("WebSocket closed normally")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Int64("userID", c.userID).Msg("Unexpected WebSocket close")
			} else {
				c.logger.Debug().Err(err).Int64("userID", c.userID).Msg("WebSocket read error")
			}
			return
		}
	}
}

// writePump pushes change events to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		c.conn.Close()
	}()

	filter := c.sub.Filter()
	if err := c.write(Message{Type: MessageSubscribed, Filter: &FilterMessage{
		Table:     filter.Table,
		StudentID: filter.StudentID,
		EventID:   filter.EventID,
		Class:     filter.Class,
	}}); err != nil {
		return
	}

	for {
		select {
		case event, ok := <-c.sub.C:
			if !ok {
				// The feed dropped this session or shut down
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription closed"))
				return
			}
			if err := c.write(Message{Type: MessageChange, Event: &event}); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal session message")
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
