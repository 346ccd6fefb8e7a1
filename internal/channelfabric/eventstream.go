package channelfabric

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// substrateEvent is a presence/delivery-ack notification pushed by the
// substrate over its persistent connection (distinct from the RPC-style
// operations in substrate.go). Grounded on
// _examples/niski84-the-hive/internal/drone/websocket/client.go's
// reconnecting client, repointed at the messaging substrate's event feed.
type substrateEvent struct {
	Type      string          `json:"type"`
	ChannelID string          `json:"channel_id"`
	UID       string          `json:"uid"`
	Data      json.RawMessage `json:"data"`
}

// eventStreamClient maintains a long-lived, auto-reconnecting websocket
// connection to the substrate's event feed and forwards decoded events to
// onEvent. Nil-safe: when URL is empty, Connect is a no-op and nothing
// ever connects (spec §4.9's best-effort posture applies here too).
type eventStreamClient struct {
	url      string
	apiKey   string
	onEvent  func(substrateEvent)
	conn     *websocket.Conn
	done     chan struct{}
	closeOnce sync.Once
	mu       sync.Mutex
	closed   bool
}

func newEventStreamClient(rawURL, apiKey string, onEvent func(substrateEvent)) *eventStreamClient {
	return &eventStreamClient{url: rawURL, apiKey: apiKey, onEvent: onEvent, done: make(chan struct{})}
}

// Connect dials the substrate's event feed and starts the read loop in
// the background. A dial failure is logged and retried via reconnect
// rather than returned, since this runs detached from request handling.
func (c *eventStreamClient) Connect() {
	if c.url == "" {
		return
	}
	go c.connectLoop()
}

func (c *eventStreamClient) connectLoop() {
	if err := c.dial(); err != nil {
		log.Warn().Err(err).Msg("channelfabric: event stream dial failed, will retry")
		c.reconnect()
		return
	}
	c.readLoop()
}

func (c *eventStreamClient) dial() error {
	u, err := url.Parse(c.url)
	if err != nil {
		return err
	}

	headers := make(map[string][]string)
	if c.apiKey != "" {
		headers["Authorization"] = []string{"Bearer " + c.apiKey}
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), headers)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error { return nil })
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	log.Info().Str("url", c.url).Msg("channelfabric: event stream connected")
	return nil
}

func (c *eventStreamClient) readLoop() {
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	readChan := make(chan error, 1)
	go func() {
		for {
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				readChan <- websocket.ErrCloseSent
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, message, err := conn.ReadMessage()
			if err != nil {
				readChan <- err
				return
			}

			var evt substrateEvent
			if err := json.Unmarshal(message, &evt); err != nil {
				log.Warn().Err(err).Msg("channelfabric: discarding malformed event stream frame")
				continue
			}
			if c.onEvent != nil {
				c.onEvent(evt)
			}
		}
	}()

	for {
		select {
		case <-pingTicker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn != nil {
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					log.Warn().Err(err).Msg("channelfabric: event stream ping failed")
					c.reconnect()
					return
				}
			}
		case err := <-readChan:
			if err != nil {
				log.Warn().Err(err).Msg("channelfabric: event stream closed, reconnecting")
			}
			c.reconnect()
			return
		case <-c.done:
			return
		}
	}
}

func (c *eventStreamClient) reconnect() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	time.Sleep(5 * time.Second)
	c.connectLoop()
}

// Close shuts the stream down; safe to call multiple times.
func (c *eventStreamClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()
		close(c.done)
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}
