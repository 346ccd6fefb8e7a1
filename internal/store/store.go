// Package store provides the relational storage interface and
// implementations for the control plane. MemoryStore backs zero-config
// single-binary deployments and tests; PostgresStore backs production.
package store

import (
	"context"
	"time"

	"github.com/deskwise/deskwise/pkg/models"
)

// Store is the primary storage interface. All component code depends on
// this interface so the in-memory and PostgreSQL implementations are
// interchangeable.
type Store interface {
	CollectionStore
	FileStore
	FileDocumentStore
	QAPairStore
	CrawlJobStore
	WebsitePageStore
	EmbeddingConfigStore
	PlatformStore
	InboxStore
	VisitorStore
	SessionStore
	StaffStore
	AssignmentRuleStore
	WaitingQueueStore
	AssignmentHistoryStore
	ChannelMemberStore
	MaintenanceStore

	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// ListFilter provides common pagination/filter options. Every query that
// accepts one must also be given a ProjectID — the project-scoping
// invariant (spec §3) — so the type signature forces callers not to
// forget tenant isolation.
type ListFilter struct {
	ProjectID string
	Limit     int
	Offset    int
	Since     *time.Time
}

// ── Collection ───────────────────────────────────────────────

type CollectionStore interface {
	ListCollections(ctx context.Context, filter ListFilter) ([]models.Collection, error)
	GetCollection(ctx context.Context, projectID, id string) (*models.Collection, error)
	CreateCollection(ctx context.Context, c *models.Collection) error
	UpdateCollection(ctx context.Context, c *models.Collection) error
	DeleteCollection(ctx context.Context, projectID, id string) error
}

// ── File ─────────────────────────────────────────────────────

type FileStore interface {
	ListFiles(ctx context.Context, filter ListFilter, collectionID string) ([]models.File, error)
	GetFile(ctx context.Context, projectID, id string) (*models.File, error)
	CreateFile(ctx context.Context, f *models.File) error
	UpdateFile(ctx context.Context, f *models.File) error
	DeleteFile(ctx context.Context, projectID, id string) error
}

// ── FileDocument ─────────────────────────────────────────────

type FileDocumentStore interface {
	CreateFileDocuments(ctx context.Context, docs []models.FileDocument) error
	GetFileDocument(ctx context.Context, projectID, id string) (*models.FileDocument, error)
	ListFileDocumentsByFile(ctx context.Context, projectID, fileID string) ([]models.FileDocument, error)
	DeleteFileDocument(ctx context.Context, projectID, id string) error
	// LexicalSearch ranks FileDocument rows by content_tsv relevance (ts_rank_cd equivalent).
	LexicalSearch(ctx context.Context, projectID, query string, filter SearchFilter, limit int) ([]ScoredDocument, error)
}

// SearchFilter narrows a search to a collection and/or arbitrary tag filters.
type SearchFilter struct {
	CollectionID string
	Tags         map[string]any
}

// ScoredDocument pairs a FileDocument with a relevance score from a
// lexical or fused search.
type ScoredDocument struct {
	Document models.FileDocument
	Score    float64
}

// ── QAPair ───────────────────────────────────────────────────

type QAPairStore interface {
	ListQAPairs(ctx context.Context, filter ListFilter, collectionID string) ([]models.QAPair, error)
	GetQAPair(ctx context.Context, projectID, id string) (*models.QAPair, error)
	GetQAPairByHash(ctx context.Context, collectionID, questionHash string) (*models.QAPair, error)
	CreateQAPair(ctx context.Context, qa *models.QAPair) error
	UpdateQAPair(ctx context.Context, qa *models.QAPair) error
	DeleteQAPair(ctx context.Context, projectID, id string) error
}

// ── WebsiteCrawlJob ──────────────────────────────────────────

type CrawlJobStore interface {
	GetCrawlJob(ctx context.Context, projectID, id string) (*models.WebsiteCrawlJob, error)
	CreateCrawlJob(ctx context.Context, j *models.WebsiteCrawlJob) error
	UpdateCrawlJob(ctx context.Context, j *models.WebsiteCrawlJob) error
}

// ── WebsitePage ──────────────────────────────────────────────

type WebsitePageStore interface {
	GetWebsitePage(ctx context.Context, projectID, id string) (*models.WebsitePage, error)
	GetWebsitePageByURLHash(ctx context.Context, crawlJobID, urlHash string) (*models.WebsitePage, error)
	ListWebsitePagesByCollection(ctx context.Context, collectionID string) ([]models.WebsitePage, error)
	CreateWebsitePage(ctx context.Context, p *models.WebsitePage) error
	UpdateWebsitePage(ctx context.Context, p *models.WebsitePage) error
}

// ── EmbeddingConfig ──────────────────────────────────────────

type EmbeddingConfigStore interface {
	GetActiveEmbeddingConfig(ctx context.Context, projectID string) (*models.EmbeddingConfigRow, error)
	UpsertEmbeddingConfig(ctx context.Context, cfg *models.EmbeddingConfigRow) error
}

// ── Platform ─────────────────────────────────────────────────

type PlatformStore interface {
	GetPlatformByAPIKey(ctx context.Context, apiKey string) (*models.Platform, error)
	GetPlatform(ctx context.Context, projectID, id string) (*models.Platform, error)
}

// ── Inbox ────────────────────────────────────────────────────

// InboxStore persists normalized inbound messages. CreateInboxMessage
// must translate a unique-violation on (platform_id, message_id) into
// ErrDuplicateMessage rather than a generic error (spec §4.7, §5).
type InboxStore interface {
	CreateInboxMessage(ctx context.Context, table string, msg *models.InboxMessage) error
}

// ── Visitor ──────────────────────────────────────────────────

type VisitorStore interface {
	GetVisitor(ctx context.Context, projectID, id string) (*models.Visitor, error)
	UpsertVisitor(ctx context.Context, v *models.Visitor) error
}

// SessionStore manages VisitorSession rows (not to be confused with any
// agent-runtime conversation session — there is no such concept here).
type SessionStore interface {
	GetOpenSession(ctx context.Context, projectID, visitorID string) (*models.VisitorSession, error)
	CreateSession(ctx context.Context, s *models.VisitorSession) error
	UpdateSession(ctx context.Context, s *models.VisitorSession) error
	CountOpenSessionsByStaff(ctx context.Context, projectID, staffID string) (int, error)
	// GetLastStaffForVisitor returns the staff_id of the visitor's most
	// recently created session that had one assigned, or "" if none
	// (spec §4.8 step 3, last-operator affinity).
	GetLastStaffForVisitor(ctx context.Context, projectID, visitorID string) (string, error)
}

// ── Staff ────────────────────────────────────────────────────

type StaffStore interface {
	ListStaff(ctx context.Context, projectID string) ([]models.Staff, error)
	GetStaff(ctx context.Context, projectID, id string) (*models.Staff, error)
	UpsertStaff(ctx context.Context, s *models.Staff) error
}

// ── VisitorAssignmentRule ────────────────────────────────────

type AssignmentRuleStore interface {
	GetAssignmentRule(ctx context.Context, projectID string) (*models.VisitorAssignmentRule, error)
	UpsertAssignmentRule(ctx context.Context, r *models.VisitorAssignmentRule) error
}

// ── VisitorWaitingQueue ──────────────────────────────────────

type WaitingQueueStore interface {
	GetWaitingEntry(ctx context.Context, projectID, visitorID string) (*models.VisitorWaitingQueue, error)
	CountWaiting(ctx context.Context, projectID string) (int, error)
	CreateWaitingEntry(ctx context.Context, q *models.VisitorWaitingQueue) error
	UpdateWaitingEntry(ctx context.Context, q *models.VisitorWaitingQueue) error
	ListWaitingOrdered(ctx context.Context, projectID string) ([]models.VisitorWaitingQueue, error)
	ListExpiredWaiting(ctx context.Context, asOf time.Time) ([]models.VisitorWaitingQueue, error)
}

// ── VisitorAssignmentHistory (append-only) ───────────────────

type AssignmentHistoryStore interface {
	AppendAssignmentHistory(ctx context.Context, h *models.VisitorAssignmentHistory) error
}

// ── ChannelMember ────────────────────────────────────────────

type ChannelMemberStore interface {
	ListActiveMembers(ctx context.Context, channelID string) ([]models.ChannelMember, error)
	UpsertChannelMember(ctx context.Context, m *models.ChannelMember) error
	SoftDeleteOtherStaffMembers(ctx context.Context, channelID, keepMemberID string) error
}

// MaintenanceStore is implemented by Store and exercised by the periodic
// sweep in internal/worker/maintenance.go.
type MaintenanceStore interface {
	// PruneSoftDeleted physically removes every soft-deleted row (across
	// collections, files, QA pairs, platforms, and channel members) whose
	// DeletedAt is older than olderThan. Returns the number of rows purged.
	PruneSoftDeleted(ctx context.Context, olderThan time.Duration) (int, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist under
// the requested tenant.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrDuplicateMessage is returned by CreateInboxMessage when the
// (platform_id, message_id) unique constraint already has a row; intake
// handlers must treat this as success (spec §4.7, §7).
type ErrDuplicateMessage struct {
	PlatformID string
	MessageID  string
}

func (e *ErrDuplicateMessage) Error() string {
	return "duplicate inbox message: " + e.PlatformID + "/" + e.MessageID
}
