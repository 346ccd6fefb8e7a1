package channelfabric

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/config"
)

func TestSubstrateClientDisabledIsNoop(t *testing.T) {
	c := newSubstrateClient(config.ChannelFabricConfig{})
	err := c.addChannelSubscribers(context.Background(), "visitor:1", ChannelTypeCustomerService, []string{"s-staff"})
	assert.NoError(t, err)
}

func TestSubstrateClientSendsAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id":"m-1","client_msg_no":"c-1"}`))
	}))
	defer srv.Close()

	c := newSubstrateClient(config.ChannelFabricConfig{BaseURL: srv.URL, APIKey: "secret-key"})
	id, err := c.sendSystemMessage(context.Background(), "visitor:1", ChannelTypeCustomerService, MsgTypeStaffAssigned, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestSubstrateClientPropagatesNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := newSubstrateClient(config.ChannelFabricConfig{BaseURL: srv.URL})
	err := c.removeChannelSubscribers(context.Background(), "visitor:1", ChannelTypeCustomerService, []string{"s-staff"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSubstrateClientSearchMessagesDecodesRawResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchMessagesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "visitor-1-staff", req.UID)
		assert.Equal(t, "refund", req.Query)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"msg-1"}]`))
	}))
	defer srv.Close()

	c := newSubstrateClient(config.ChannelFabricConfig{BaseURL: srv.URL})
	raw, err := c.searchMessages(context.Background(), "visitor-1-staff", "refund", 10)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"msg-1"}]`, string(raw))
}
