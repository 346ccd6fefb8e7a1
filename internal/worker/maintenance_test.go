package worker_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/worker"
	"github.com/deskwise/deskwise/pkg/models"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("DESKWISE_DATA_DIR", dir)
	defer os.Unsetenv("DESKWISE_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMaintenanceExpiresStaleWaitingEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &models.VisitorWaitingQueue{
		ID:        uuid.NewString(),
		ProjectID: "proj-1",
		VisitorID: uuid.NewString(),
		SessionID: uuid.NewString(),
		Position:  1,
		Status:    models.QueueWaiting,
		ExpiredAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, s.CreateWaitingEntry(ctx, entry))

	m := worker.NewMaintenance(s, time.Minute, 30*24*time.Hour)
	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	m.Start(runCtx)

	ordered, err := s.ListWaitingOrdered(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, ordered, 0, "expired entry should no longer be WAITING/ordered")
}

func TestMaintenancePrunesOldSoftDeletedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChannelMember(ctx, &models.ChannelMember{
		ID: uuid.NewString(), ProjectID: "proj-1", ChannelID: "visitor:1",
		ChannelType: 1, MemberID: "staff-1", MemberType: models.MemberStaff,
	}))
	require.NoError(t, s.SoftDeleteOtherStaffMembers(ctx, "visitor:1", "staff-2"))

	purged, err := s.PruneSoftDeleted(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, 1)

	members, err := s.ListActiveMembers(ctx, "visitor:1")
	require.NoError(t, err)
	assert.Empty(t, members)
}
