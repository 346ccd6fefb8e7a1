package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

// newTestStore creates a fresh in-memory store for tests with no persistence.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("DESKWISE_DATA_DIR", dir)
	defer os.Unsetenv("DESKWISE_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

const testProject = "proj-1"

func TestCollectionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Collection{
		ID:          uuid.NewString(),
		ProjectID:   testProject,
		Type:        models.CollectionFile,
		DisplayName: "Product Docs",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, s.CreateCollection(ctx, c))

	got, err := s.GetCollection(ctx, testProject, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Product Docs", got.DisplayName)

	got.DisplayName = "Renamed Docs"
	require.NoError(t, s.UpdateCollection(ctx, got))

	got2, err := s.GetCollection(ctx, testProject, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Docs", got2.DisplayName)

	require.NoError(t, s.DeleteCollection(ctx, testProject, c.ID))
	_, err = s.GetCollection(ctx, testProject, c.ID)
	assert.Error(t, err, "soft-deleted collection should not be fetchable")

	list, err := s.ListCollections(ctx, store.ListFilter{ProjectID: testProject})
	require.NoError(t, err)
	assert.Len(t, list, 0)
}

func TestCollectionListScopedByProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, &models.Collection{ID: uuid.NewString(), ProjectID: testProject, Type: models.CollectionQA, DisplayName: "a"}))
	require.NoError(t, s.CreateCollection(ctx, &models.Collection{ID: uuid.NewString(), ProjectID: "other-project", Type: models.CollectionQA, DisplayName: "b"}))

	list, err := s.ListCollections(ctx, store.ListFilter{ProjectID: testProject})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "a", list[0].DisplayName)
}

func TestFileStatusLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := &models.File{
		ID:               uuid.NewString(),
		ProjectID:        testProject,
		OriginalFilename: "handbook.pdf",
		Status:           models.FileStatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, s.CreateFile(ctx, f))

	require.True(t, f.CanTransitionTo(models.FileStatusProcessing))
	f.Status = models.FileStatusProcessing
	require.NoError(t, s.UpdateFile(ctx, f))

	got, err := s.GetFile(ctx, testProject, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusProcessing, got.Status)

	require.False(t, got.CanTransitionTo(models.FileStatusPending), "status must not move backward")
	require.True(t, got.CanTransitionTo(models.FileStatusFailed), "any non-terminal status can fail")
}

func TestFileDocumentLexicalSearchFindsChineseQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := []models.FileDocument{
		{ID: uuid.NewString(), ProjectID: testProject, CollectionID: "col-1", Content: "如何重置密码？请前往设置页面点击重置密码按钮。", CreatedAt: time.Now()},
		{ID: uuid.NewString(), ProjectID: testProject, CollectionID: "col-1", Content: "unrelated English content about shipping", CreatedAt: time.Now()},
	}
	require.NoError(t, s.CreateFileDocuments(ctx, docs))

	results, err := s.LexicalSearch(ctx, testProject, "重置密码", store.SearchFilter{CollectionID: "col-1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Document.Content, "重置密码")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestQAPairDuplicateQuestionHashRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	qa := &models.QAPair{
		ID:           uuid.NewString(),
		ProjectID:    testProject,
		CollectionID: "col-1",
		Question:     "What are your business hours?",
		Answer:       "9am to 5pm.",
		QuestionHash: "hash-1",
		Status:       models.QAStatusProcessed,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateQAPair(ctx, qa))

	dup := *qa
	dup.ID = uuid.NewString()
	err := s.CreateQAPair(ctx, &dup)
	assert.Error(t, err)

	found, err := s.GetQAPairByHash(ctx, "col-1", "hash-1")
	require.NoError(t, err)
	assert.Equal(t, qa.ID, found.ID)
}

func TestWebsitePageDedupByURLHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.WebsitePage{
		ID:         uuid.NewString(),
		CrawlJobID: "job-1",
		ProjectID:  testProject,
		URL:        "https://example.com/faq",
		URLHash:    "urlhash-1",
		Status:     models.PageStatusFetched,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, s.CreateWebsitePage(ctx, p))

	dup := *p
	dup.ID = uuid.NewString()
	err := s.CreateWebsitePage(ctx, &dup)
	assert.Error(t, err, "revisiting the same URL in a crawl must not create a second page row")

	found, err := s.GetWebsitePageByURLHash(ctx, "job-1", "urlhash-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
}

func TestInboxMessageDedupOnReplay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &models.InboxMessage{
		ID:         uuid.NewString(),
		PlatformID: "platform-1",
		MessageID:  "wx-msg-42",
		FromUser:   "visitor-1",
		Content:    "hello",
		Status:     models.InboxStatusPending,
		ReceivedAt: time.Now(),
	}
	require.NoError(t, s.CreateInboxMessage(ctx, "wecom_inbox", msg))

	err := s.CreateInboxMessage(ctx, "wecom_inbox", msg)
	assert.Error(t, err, "replaying the same webhook payload must not create a duplicate row")
}

func TestWaitingQueueOrderingByPriorityThenPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []*models.VisitorWaitingQueue{
		{ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v1", Position: 1, Priority: 0, Status: models.QueueWaiting, ExpiredAt: time.Now().Add(time.Hour), CreatedAt: time.Now()},
		{ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v2", Position: 2, Priority: 5, Status: models.QueueWaiting, ExpiredAt: time.Now().Add(time.Hour), CreatedAt: time.Now()},
		{ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v3", Position: 3, Priority: 0, Status: models.QueueWaiting, ExpiredAt: time.Now().Add(time.Hour), CreatedAt: time.Now()},
	}
	for _, e := range entries {
		require.NoError(t, s.CreateWaitingEntry(ctx, e))
	}

	ordered, err := s.ListWaitingOrdered(ctx, testProject)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "v2", ordered[0].VisitorID, "higher priority should be served first")
	assert.Equal(t, "v1", ordered[1].VisitorID)
	assert.Equal(t, "v3", ordered[2].VisitorID)
}

func TestWaitingQueueExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expired := &models.VisitorWaitingQueue{
		ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v-exp",
		Status: models.QueueWaiting, ExpiredAt: time.Now().Add(-time.Minute), CreatedAt: time.Now(),
	}
	notExpired := &models.VisitorWaitingQueue{
		ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v-ok",
		Status: models.QueueWaiting, ExpiredAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateWaitingEntry(ctx, expired))
	require.NoError(t, s.CreateWaitingEntry(ctx, notExpired))

	found, err := s.ListExpiredWaiting(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "v-exp", found[0].VisitorID)
}

func TestAssignmentHistoryIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendAssignmentHistory(ctx, &models.VisitorAssignmentHistory{
			ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v1",
			Source: models.AssignmentRule, CreatedAt: time.Now(),
		}))
	}
	// There is no exposed delete/update on AssignmentHistoryStore, which is
	// itself the test: the interface offers no way to mutate past entries.
}

func TestChannelMemberSoftDeletesPreviousStaffOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	staffA := &models.ChannelMember{ID: uuid.NewString(), ProjectID: testProject, ChannelID: "chan-1", MemberID: "staff-a", MemberType: models.MemberStaff, CreatedAt: time.Now()}
	staffB := &models.ChannelMember{ID: uuid.NewString(), ProjectID: testProject, ChannelID: "chan-1", MemberID: "staff-b", MemberType: models.MemberStaff, CreatedAt: time.Now()}
	visitor := &models.ChannelMember{ID: uuid.NewString(), ProjectID: testProject, ChannelID: "chan-1", MemberID: "visitor-1", MemberType: models.MemberVisitor, CreatedAt: time.Now()}

	require.NoError(t, s.UpsertChannelMember(ctx, staffA))
	require.NoError(t, s.UpsertChannelMember(ctx, staffB))
	require.NoError(t, s.UpsertChannelMember(ctx, visitor))

	require.NoError(t, s.SoftDeleteOtherStaffMembers(ctx, "chan-1", "staff-b"))

	members, err := s.ListActiveMembers(ctx, "chan-1")
	require.NoError(t, err)
	require.Len(t, members, 2, "staff-a removed, staff-b and the visitor remain")

	ids := map[string]bool{}
	for _, m := range members {
		ids[m.MemberID] = true
	}
	assert.True(t, ids["staff-b"])
	assert.True(t, ids["visitor-1"])
	assert.False(t, ids["staff-a"])
}

func TestSessionCountsByStaff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, &models.VisitorSession{ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v1", StaffID: "staff-1", Status: models.SessionOpen, CreatedAt: time.Now()}))
	require.NoError(t, s.CreateSession(ctx, &models.VisitorSession{ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v2", StaffID: "staff-1", Status: models.SessionOpen, CreatedAt: time.Now()}))
	require.NoError(t, s.CreateSession(ctx, &models.VisitorSession{ID: uuid.NewString(), ProjectID: testProject, VisitorID: "v3", StaffID: "staff-2", Status: models.SessionClosed, CreatedAt: time.Now()}))

	n, err := s.CountOpenSessionsByStaff(ctx, testProject, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n2, err := s.CountOpenSessionsByStaff(ctx, testProject, "staff-2")
	require.NoError(t, err)
	assert.Equal(t, 0, n2)
}

func TestCloseFlushesSnapshotToDisk(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("DESKWISE_DATA_DIR", dir)
	s := store.NewMemoryStore()
	os.Unsetenv("DESKWISE_DATA_DIR")

	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, &models.Collection{
		ID: "persist-me", ProjectID: testProject, Type: models.CollectionQA,
		DisplayName: "Persisted", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))
	require.NoError(t, s.Close())

	os.Setenv("DESKWISE_DATA_DIR", dir)
	s2 := store.NewMemoryStore()
	os.Unsetenv("DESKWISE_DATA_DIR")
	defer s2.Close()

	got, err := s2.GetCollection(ctx, testProject, "persist-me")
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.DisplayName)
}
