package channelfabric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deskwise/deskwise/internal/config"
)

// substrateClient is a thin HTTP client for the messaging substrate's
// admin API (subscriber management, message/event send, search/sync),
// grounded on
// original_source/repos/tgo-api/app/services/wukongim_client.py's
// request/response shape; HTTP plumbing follows
// internal/embedding/openai.go's client conventions. When disabled
// (BaseURL == "") every call is a no-op success, matching the original's
// `self.enabled` short-circuit.
type substrateClient struct {
	cfg        config.ChannelFabricConfig
	httpClient *http.Client
}

func newSubstrateClient(cfg config.ChannelFabricConfig) *substrateClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &substrateClient{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

func (c *substrateClient) enabled() bool { return c.cfg.BaseURL != "" }

// doRequest posts a JSON body to endpoint and decodes the JSON response
// into out (if non-nil). Every exported substrate operation funnels
// through here, the same shape as wukongim_client.py's `_make_request`.
func (c *substrateClient) doRequest(ctx context.Context, method, endpoint string, body any, out any) error {
	if !c.enabled() {
		return nil
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal substrate request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build substrate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("substrate request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read substrate response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("substrate %s returned %d: %s", endpoint, resp.StatusCode, string(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal substrate response: %w", err)
	}
	return nil
}

type addSubscribersRequest struct {
	ChannelID   string   `json:"channel_id"`
	ChannelType int      `json:"channel_type"`
	Subscribers []string `json:"subscribers"`
}

func (c *substrateClient) addChannelSubscribers(ctx context.Context, channelID string, channelType int, subscribers []string) error {
	return c.doRequest(ctx, http.MethodPost, "/channel/subscriber/add", addSubscribersRequest{
		ChannelID: channelID, ChannelType: channelType, Subscribers: subscribers,
	}, nil)
}

func (c *substrateClient) removeChannelSubscribers(ctx context.Context, channelID string, channelType int, subscribers []string) error {
	return c.doRequest(ctx, http.MethodPost, "/channel/subscriber/remove", addSubscribersRequest{
		ChannelID: channelID, ChannelType: channelType, Subscribers: subscribers,
	}, nil)
}

type sendMessageRequest struct {
	ChannelID   string         `json:"channel_id"`
	ChannelType int            `json:"channel_type"`
	FromUID     string         `json:"from_uid"`
	Payload     map[string]any `json:"payload"`
	ClientMsgNo string         `json:"client_msg_no,omitempty"`
}

type sendMessageResponse struct {
	MessageID   string `json:"message_id"`
	ClientMsgNo string `json:"client_msg_no"`
}

// sendSystemMessage posts a {type, content, extra} payload from the
// "system" account (spec §4.9: staff-assigned/session-closed/
// session-transferred messages).
func (c *substrateClient) sendSystemMessage(ctx context.Context, channelID string, channelType, msgType int, content string, extra []map[string]any) (string, error) {
	payload := map[string]any{"type": msgType, "content": content, "extra": extra}
	var resp sendMessageResponse
	err := c.doRequest(ctx, http.MethodPost, "/message/send", sendMessageRequest{
		ChannelID: channelID, ChannelType: channelType, FromUID: "system", Payload: payload,
	}, &resp)
	return resp.MessageID, err
}

type sendEventRequest struct {
	ChannelID   string         `json:"channel_id"`
	ChannelType int            `json:"channel_type"`
	EventType   string         `json:"event_type"`
	Data        map[string]any `json:"data"`
	ClientMsgNo string         `json:"client_msg_no"`
}

// sendEvent posts a structured, non-message notification (visitor
// presence update, queue-updated) carrying a client_msg_no for client
// correlation (spec §4.9).
func (c *substrateClient) sendEvent(ctx context.Context, channelID string, channelType int, eventType string, data map[string]any, clientMsgNo string) error {
	return c.doRequest(ctx, http.MethodPost, "/event/send", sendEventRequest{
		ChannelID: channelID, ChannelType: channelType, EventType: eventType, Data: data, ClientMsgNo: clientMsgNo,
	}, nil)
}

type searchMessagesRequest struct {
	UID   string `json:"uid"`
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// searchMessages is a thin pass-through; the substrate does the actual
// full-text search over message history (spec §4.9).
func (c *substrateClient) searchMessages(ctx context.Context, uid, query string, limit int) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.doRequest(ctx, http.MethodPost, "/message/search", searchMessagesRequest{UID: uid, Query: query, Limit: limit}, &raw)
	return raw, err
}

type syncConversationsRequest struct {
	UID string `json:"uid"`
}

func (c *substrateClient) syncConversations(ctx context.Context, uid string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.doRequest(ctx, http.MethodPost, "/conversation/sync", syncConversationsRequest{UID: uid}, &raw)
	return raw, err
}

type setUnreadRequest struct {
	UID         string `json:"uid"`
	ChannelID   string `json:"channel_id"`
	ChannelType int    `json:"channel_type"`
	Unread      int    `json:"unread"`
}

func (c *substrateClient) setConversationUnread(ctx context.Context, uid, channelID string, channelType, unread int) error {
	return c.doRequest(ctx, http.MethodPost, "/conversation/setUnread", setUnreadRequest{
		UID: uid, ChannelID: channelID, ChannelType: channelType, Unread: unread,
	}, nil)
}

type kickDeviceRequest struct {
	UID        string `json:"uid"`
	DeviceFlag string `json:"device_flag"`
}

func (c *substrateClient) kickDevice(ctx context.Context, uid, deviceFlag string) error {
	return c.doRequest(ctx, http.MethodPost, "/user/device/kick", kickDeviceRequest{UID: uid, DeviceFlag: deviceFlag}, nil)
}
