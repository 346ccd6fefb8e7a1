package assignment_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/assignment"
	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

const testProject = "proj-assign"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("DESKWISE_DATA_DIR", dir)
	defer os.Unsetenv("DESKWISE_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func seedVisitor(t *testing.T, s store.Store) *models.Visitor {
	t.Helper()
	v := &models.Visitor{
		ID:            uuid.NewString(),
		ProjectID:     testProject,
		PlatformID:    "plat-1",
		ServiceStatus: models.ServiceStatusNew,
		LastVisitTime: time.Now(),
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.UpsertVisitor(context.Background(), v))
	return v
}

func seedStaff(t *testing.T, s store.Store, opts ...func(*models.Staff)) *models.Staff {
	t.Helper()
	st := &models.Staff{
		ID:        uuid.NewString(),
		ProjectID: testProject,
		IsActive:  true,
		Role:      "user",
		Name:      "Agent " + uuid.NewString()[:6],
	}
	for _, o := range opts {
		o(st)
	}
	require.NoError(t, s.UpsertStaff(context.Background(), st))
	return st
}

func newEngine(s store.Store) *assignment.Engine {
	return assignment.NewEngine(s, nil, config.AssignmentConfig{}, config.RoutingConfig{QueueDefaultTimeoutMinutes: 30})
}

func TestTransferToStaffAssignsSoleCandidate(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	staff := seedStaff(t, s)
	e := newEngine(s)

	result, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{
		Source:     models.AssignmentManual,
		AllowQueue: true,
	})
	require.NoError(t, err)
	assert.Equal(t, assignment.OutcomeAssigned, result.Outcome)
	assert.Equal(t, staff.ID, result.AssignedStaff)

	updated, err := s.GetVisitor(context.Background(), testProject, visitor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusActive, updated.ServiceStatus)
}

func TestTransferToStaffPrefersDirectTarget(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	_ = seedStaff(t, s)
	target := seedStaff(t, s)
	e := newEngine(s)

	result, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{
		TargetStaffID: target.ID,
		AllowQueue:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, assignment.OutcomeAssigned, result.Outcome)
	assert.Equal(t, target.ID, result.AssignedStaff)
}

func TestTransferToStaffLoadBalancesAcrossMultipleCandidates(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	busy := seedStaff(t, s)
	idle := seedStaff(t, s)
	e := newEngine(s)

	busySession := &models.VisitorSession{
		ID: uuid.NewString(), ProjectID: testProject, VisitorID: uuid.NewString(),
		StaffID: busy.ID, Status: models.SessionOpen, CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateSession(context.Background(), busySession))

	result, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{AllowQueue: true})
	require.NoError(t, err)
	assert.Equal(t, assignment.OutcomeAssigned, result.Outcome)
	assert.Equal(t, idle.ID, result.AssignedStaff)
}

func TestTransferToStaffHonorsLastOperatorAffinity(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	preferred := seedStaff(t, s)
	_ = seedStaff(t, s)
	e := newEngine(s)

	priorSession := &models.VisitorSession{
		ID: uuid.NewString(), ProjectID: testProject, VisitorID: visitor.ID,
		StaffID: preferred.ID, Status: models.SessionClosed, CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, s.CreateSession(context.Background(), priorSession))

	result, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{AllowQueue: true})
	require.NoError(t, err)
	assert.Equal(t, preferred.ID, result.AssignedStaff)
}

func TestTransferToStaffRespectsMaxConcurrentChats(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	staff := seedStaff(t, s)
	require.NoError(t, s.UpsertAssignmentRule(context.Background(), &models.VisitorAssignmentRule{
		ProjectID: testProject, MaxConcurrentChats: 1,
	}))
	e := newEngine(s)

	fullSession := &models.VisitorSession{
		ID: uuid.NewString(), ProjectID: testProject, VisitorID: uuid.NewString(),
		StaffID: staff.ID, Status: models.SessionOpen, CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateSession(context.Background(), fullSession))

	result, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{AllowQueue: true})
	require.NoError(t, err)
	assert.Equal(t, assignment.OutcomeQueued, result.Outcome)
	assert.Equal(t, 1, result.QueuePosition)
}

func TestTransferToStaffQueuesWhenNoCandidatesAndAllowed(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	e := newEngine(s)

	result, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{AllowQueue: true})
	require.NoError(t, err)
	assert.Equal(t, assignment.OutcomeQueued, result.Outcome)
	assert.Equal(t, 1, result.QueuePosition)

	updated, err := s.GetVisitor(context.Background(), testProject, visitor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusQueued, updated.ServiceStatus)
}

func TestTransferToStaffRefusesWhenNoCandidatesAndQueueingDisallowed(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	e := newEngine(s)

	result, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{AllowQueue: false})
	require.NoError(t, err)
	assert.Equal(t, assignment.OutcomeRefused, result.Outcome)
}

func TestCancelVisitorFromQueueMarksCancelled(t *testing.T) {
	s := newTestStore(t)
	visitor := seedVisitor(t, s)
	e := newEngine(s)

	_, err := e.TransferToStaff(context.Background(), testProject, visitor.ID, assignment.TransferOptions{AllowQueue: true})
	require.NoError(t, err)

	require.NoError(t, e.CancelVisitorFromQueue(context.Background(), testProject, visitor.ID))

	_, err = s.GetWaitingEntry(context.Background(), testProject, visitor.ID)
	assert.Error(t, err, "cancelled entries are no longer WAITING")
}

func TestAssignFromWaitingQueuePopsHighestPriorityLowestPosition(t *testing.T) {
	s := newTestStore(t)
	visitorA := seedVisitor(t, s)
	visitorB := seedVisitor(t, s)
	e := newEngine(s)

	_, err := e.TransferToStaff(context.Background(), testProject, visitorA.ID, assignment.TransferOptions{AllowQueue: true})
	require.NoError(t, err)
	_, err = e.TransferToStaff(context.Background(), testProject, visitorB.ID, assignment.TransferOptions{AllowQueue: true})
	require.NoError(t, err)

	staff := seedStaff(t, s)
	result, err := e.AssignFromWaitingQueue(context.Background(), testProject, staff.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, assignment.OutcomeAssigned, result.Outcome)
	assert.Equal(t, staff.ID, result.AssignedStaff)
	assert.Equal(t, visitorA.ID, result.Session.VisitorID, "equal priority, so the lower position (first queued) is popped")
}

func TestAssignFromWaitingQueueReturnsNilWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	e := newEngine(s)
	result, err := e.AssignFromWaitingQueue(context.Background(), testProject, "some-staff")
	require.NoError(t, err)
	assert.Nil(t, result)
}
