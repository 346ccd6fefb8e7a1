package channelfabric_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/channelfabric"
	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

const testProject = "proj-channel"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("DESKWISE_DATA_DIR", dir)
	defer os.Unsetenv("DESKWISE_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeatOperatorCreatesMembershipAndRemovesPriorStaff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	visitorID := uuid.NewString()

	var addCalls, removeCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channel/subscriber/add":
			addCalls++
		case "/channel/subscriber/remove":
			removeCalls++
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	adapter := channelfabric.NewAdapter(s, config.ChannelFabricConfig{BaseURL: srv.URL})
	defer adapter.Close()

	require.NoError(t, s.UpsertChannelMember(ctx, &models.ChannelMember{
		ID: uuid.NewString(), ProjectID: testProject, ChannelID: "visitor:" + visitorID,
		ChannelType: channelfabric.ChannelTypeCustomerService, MemberID: "staff-old", MemberType: models.MemberStaff,
	}))

	err := adapter.SeatOperator(ctx, testProject, visitorID, "staff-new")
	require.NoError(t, err)

	members, err := s.ListActiveMembers(ctx, "visitor:"+visitorID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "staff-new", members[0].MemberID)
	assert.Equal(t, 1, addCalls)
	assert.Equal(t, 1, removeCalls)
}

func TestSeatOperatorIsIdempotentForSameStaff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	visitorID := uuid.NewString()

	adapter := channelfabric.NewAdapter(s, config.ChannelFabricConfig{})
	defer adapter.Close()

	require.NoError(t, adapter.SeatOperator(ctx, testProject, visitorID, "staff-1"))
	require.NoError(t, adapter.SeatOperator(ctx, testProject, visitorID, "staff-1"))

	members, err := s.ListActiveMembers(ctx, "visitor:"+visitorID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestEmitStaffAssignedUsesStaffDisplayName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	visitorID := uuid.NewString()

	require.NoError(t, s.UpsertStaff(ctx, &models.Staff{
		ID: "staff-1", ProjectID: testProject, IsActive: true, Role: "user", Name: "Alex Operator",
	}))

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id":"m-1"}`))
	}))
	defer srv.Close()

	adapter := channelfabric.NewAdapter(s, config.ChannelFabricConfig{BaseURL: srv.URL})
	defer adapter.Close()

	err := adapter.EmitStaffAssigned(ctx, testProject, visitorID, "staff-1")
	require.NoError(t, err)
	assert.Contains(t, gotBody, "Alex Operator")
}

func TestEmitQueueUpdatedIsNoopWhenSubstrateDisabled(t *testing.T) {
	s := newTestStore(t)
	adapter := channelfabric.NewAdapter(s, config.ChannelFabricConfig{})
	defer adapter.Close()

	err := adapter.EmitQueueUpdated(context.Background(), testProject, 3)
	assert.NoError(t, err)
}
