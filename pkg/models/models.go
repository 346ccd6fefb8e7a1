// Package models holds the tenant-scoped entities described by the data
// model: every row carries a ProjectID, and soft-deletable entities carry
// a nullable DeletedAt so stores can exclude them by default.
package models

import "time"

// ── Collection ───────────────────────────────────────────────

type CollectionType string

const (
	CollectionFile    CollectionType = "file"
	CollectionWebsite CollectionType = "website"
	CollectionQA      CollectionType = "qa"
)

type Collection struct {
	ID          string            `json:"id" db:"id"`
	ProjectID   string            `json:"project_id" db:"project_id"`
	Type        CollectionType    `json:"type" db:"type"`
	DisplayName string            `json:"display_name" db:"display_name"`
	Description string            `json:"description,omitempty" db:"description"`
	Metadata    map[string]any    `json:"metadata,omitempty" db:"metadata"`
	Tags        []string          `json:"tags,omitempty" db:"tags"`
	CrawlConfig map[string]any    `json:"crawl_config,omitempty" db:"crawl_config"`
	FileCount   int               `json:"file_count,omitempty" db:"-"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time        `json:"-" db:"deleted_at"`
}

// ── File ─────────────────────────────────────────────────────

type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusChunking   FileStatus = "chunking"
	FileStatusEmbedding  FileStatus = "embedding"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// IsTerminal reports whether s is a terminal File status (spec §3:
// "terminal states are completed and failed").
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

type File struct {
	ID               string         `json:"id" db:"id"`
	ProjectID        string         `json:"project_id" db:"project_id"`
	CollectionID     string         `json:"collection_id,omitempty" db:"collection_id"`
	OriginalFilename string         `json:"original_filename" db:"original_filename"`
	Size             int64          `json:"size" db:"size"`
	ContentType      string         `json:"content_type" db:"content_type"`
	StorageProvider  string         `json:"storage_provider" db:"storage_provider"`
	StoragePath      string         `json:"storage_path" db:"storage_path"`
	StorageMetadata  map[string]any `json:"storage_metadata,omitempty" db:"storage_metadata"`
	Status           FileStatus     `json:"status" db:"status"`
	Language         string         `json:"language,omitempty" db:"language"`
	Description      string         `json:"description,omitempty" db:"description"`
	Tags             []string       `json:"tags,omitempty" db:"tags"`
	DocumentCount    int            `json:"document_count,omitempty" db:"document_count"`
	TotalTokens      int            `json:"total_tokens,omitempty" db:"total_tokens"`
	ErrorMessage     string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time     `json:"-" db:"deleted_at"`
}

// CanTransitionTo enforces "File.status transitions only forward or to
// failed" (spec §3).
func (f *File) CanTransitionTo(next FileStatus) bool {
	if f.Status.IsTerminal() {
		return false
	}
	if next == FileStatusFailed {
		return true
	}
	order := []FileStatus{FileStatusPending, FileStatusProcessing, FileStatusChunking, FileStatusEmbedding, FileStatusCompleted}
	cur, want := -1, -1
	for i, s := range order {
		if s == f.Status {
			cur = i
		}
		if s == next {
			want = i
		}
	}
	return cur >= 0 && want > cur
}

// ── FileDocument ─────────────────────────────────────────────

type FileDocument struct {
	ID                  string         `json:"id" db:"id"`
	ProjectID           string         `json:"project_id" db:"project_id"`
	FileID              *string        `json:"file_id,omitempty" db:"file_id"`
	CollectionID        string         `json:"collection_id,omitempty" db:"collection_id"`
	Content             string         `json:"content" db:"content"`
	ContentTSV          string         `json:"-" db:"content_tsv"`
	ContentLength        int            `json:"content_length" db:"content_length"`
	TokenCount          int            `json:"token_count,omitempty" db:"token_count"`
	ChunkID             string         `json:"chunk_id,omitempty" db:"chunk_id"`
	ChunkIndex          int            `json:"chunk_index,omitempty" db:"chunk_index"`
	SectionTitle        string         `json:"section_title,omitempty" db:"section_title"`
	PageNumber          int            `json:"page_number,omitempty" db:"page_number"`
	ContentType         string         `json:"content_type" db:"content_type"` // paragraph/heading/qa_pair/...
	Language            string         `json:"language,omitempty" db:"language"`
	ConfidenceScore     float64        `json:"confidence_score,omitempty" db:"confidence_score"`
	Tags                map[string]any `json:"tags,omitempty" db:"tags"`
	EmbeddingModel      string         `json:"embedding_model,omitempty" db:"embedding_model"`
	EmbeddingDimensions int            `json:"embedding_dimensions,omitempty" db:"embedding_dimensions"`
	Embedding           []float32      `json:"-" db:"embedding"`
	DocumentTitle       string         `json:"document_title,omitempty" db:"document_title"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

// ── QAPair ───────────────────────────────────────────────────

type QAStatus string

const (
	QAStatusPending    QAStatus = "pending"
	QAStatusProcessing QAStatus = "processing"
	QAStatusProcessed  QAStatus = "processed"
	QAStatusFailed     QAStatus = "failed"
)

type QAPair struct {
	ID           string         `json:"id" db:"id"`
	ProjectID    string         `json:"project_id" db:"project_id"`
	CollectionID string         `json:"collection_id" db:"collection_id"`
	Question     string         `json:"question" db:"question"`
	Answer       string         `json:"answer" db:"answer"`
	QuestionHash string         `json:"-" db:"question_hash"`
	Category     string         `json:"category,omitempty" db:"category"`
	Subcategory  string         `json:"subcategory,omitempty" db:"subcategory"`
	Tags         []string       `json:"tags,omitempty" db:"tags"`
	QAMetadata   map[string]any `json:"qa_metadata,omitempty" db:"qa_metadata"`
	SourceType   string         `json:"source_type" db:"source_type"`
	Status       QAStatus       `json:"status" db:"status"`
	DocumentID   string         `json:"document_id,omitempty" db:"document_id"`
	Priority     int            `json:"priority" db:"priority"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time     `json:"-" db:"deleted_at"`
}

// ── WebsiteCrawlJob ──────────────────────────────────────────

type CrawlJobStatus string

const (
	CrawlStatusPending    CrawlJobStatus = "pending"
	CrawlStatusCrawling   CrawlJobStatus = "crawling"
	CrawlStatusProcessing CrawlJobStatus = "processing"
	CrawlStatusCompleted  CrawlJobStatus = "completed"
	CrawlStatusFailed     CrawlJobStatus = "failed"
	CrawlStatusCancelled  CrawlJobStatus = "cancelled"
)

type WebsiteCrawlJob struct {
	ID               string         `json:"id" db:"id"`
	ProjectID        string         `json:"project_id" db:"project_id"`
	CollectionID     string         `json:"collection_id" db:"collection_id"`
	StartURL         string         `json:"start_url" db:"start_url"`
	MaxPages         int            `json:"max_pages" db:"max_pages"`
	MaxDepth         int            `json:"max_depth" db:"max_depth"`
	IncludePatterns  []string       `json:"include_patterns,omitempty" db:"include_patterns"`
	ExcludePatterns  []string       `json:"exclude_patterns,omitempty" db:"exclude_patterns"`
	Status           CrawlJobStatus `json:"status" db:"status"`
	PagesDiscovered  int            `json:"pages_discovered" db:"pages_discovered"`
	PagesCrawled     int            `json:"pages_crawled" db:"pages_crawled"`
	PagesProcessed   int            `json:"pages_processed" db:"pages_processed"`
	PagesFailed      int            `json:"pages_failed" db:"pages_failed"`
	CrawlOptions     map[string]any `json:"crawl_options,omitempty" db:"crawl_options"`
	ErrorMessage     string         `json:"error_message,omitempty" db:"error_message"`
	TaskID           string         `json:"task_id,omitempty" db:"task_id"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time     `json:"-" db:"deleted_at"`

	cancelRequested bool
}

// RequestCancel marks the job for cancellation; the crawl loop observes
// this between pages (spec §5 "Cancellation").
func (j *WebsiteCrawlJob) RequestCancel() { j.cancelRequested = true }

// CancelRequested reports whether RequestCancel was called on this handle.
func (j *WebsiteCrawlJob) CancelRequested() bool { return j.cancelRequested }

// ── WebsitePage ──────────────────────────────────────────────

type PageStatus string

const (
	PageStatusPending   PageStatus = "pending"
	PageStatusFetched   PageStatus = "fetched"
	PageStatusExtracted PageStatus = "extracted"
	PageStatusProcessed PageStatus = "processed"
	PageStatusFailed    PageStatus = "failed"
)

type WebsitePage struct {
	ID              string         `json:"id" db:"id"`
	CrawlJobID      string         `json:"crawl_job_id" db:"crawl_job_id"`
	CollectionID    string         `json:"collection_id" db:"collection_id"`
	ProjectID       string         `json:"project_id" db:"project_id"`
	FileID          string         `json:"file_id,omitempty" db:"file_id"`
	URL             string         `json:"url" db:"url"`
	URLHash         string         `json:"url_hash" db:"url_hash"`
	Title           string         `json:"title,omitempty" db:"title"`
	Depth           int            `json:"depth" db:"depth"`
	ContentMarkdown string         `json:"content_markdown,omitempty" db:"content_markdown"`
	ContentLength   int            `json:"content_length" db:"content_length"`
	ContentHash     string         `json:"content_hash,omitempty" db:"content_hash"`
	MetaDescription string         `json:"meta_description,omitempty" db:"meta_description"`
	PageMetadata    map[string]any `json:"page_metadata,omitempty" db:"page_metadata"`
	Status          PageStatus     `json:"status" db:"status"`
	HTTPStatusCode  int            `json:"http_status_code,omitempty" db:"http_status_code"`
	ErrorMessage    string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// ── EmbeddingConfig ──────────────────────────────────────────

type EmbeddingProvider string

const (
	EmbeddingProviderOpenAI           EmbeddingProvider = "openai"
	EmbeddingProviderOpenAICompatible EmbeddingProvider = "openai_compatible"
	EmbeddingProviderQwen3            EmbeddingProvider = "qwen3"
)

type EmbeddingConfigRow struct {
	ProjectID  string            `json:"project_id" db:"project_id"`
	Provider   EmbeddingProvider `json:"provider" db:"provider"`
	Model      string            `json:"model" db:"model"`
	Dimensions int               `json:"dimensions" db:"dimensions"`
	BatchSize  int               `json:"batch_size" db:"batch_size"`
	APIKey     string            `json:"-" db:"api_key"`
	BaseURL    string            `json:"base_url,omitempty" db:"base_url"`
	IsActive   bool              `json:"is_active" db:"is_active"`
}

// ── Platform ─────────────────────────────────────────────────

type AIMode string

const (
	AIModeAuto AIMode = "auto"
	AIModeOff  AIMode = "off"
)

type Platform struct {
	ID                  string         `json:"id" db:"id"`
	ProjectID           string         `json:"project_id" db:"project_id"`
	Type                string         `json:"type" db:"type"` // wecom, wecom_bot, feishu, dingtalk, telegram, wukongim
	APIKey              string         `json:"-" db:"api_key"`
	Config              map[string]any `json:"config,omitempty" db:"config"`
	IsActive            bool           `json:"is_active" db:"is_active"`
	AIMode              AIMode         `json:"ai_mode" db:"ai_mode"`
	AgentIDs            []string       `json:"agent_ids,omitempty" db:"agent_ids"`
	LogoPath            string         `json:"logo_path,omitempty" db:"logo_path"`
	FallbackToAITimeout int            `json:"fallback_to_ai_timeout,omitempty" db:"fallback_to_ai_timeout"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	DeletedAt           *time.Time     `json:"-" db:"deleted_at"`
}

// ── Inbox (one logical shape, one table per source type) ─────

type InboxStatus string

const (
	InboxStatusPending    InboxStatus = "pending"
	InboxStatusProcessing InboxStatus = "processing"
	InboxStatusDone       InboxStatus = "done"
	InboxStatusFailed     InboxStatus = "failed"
)

// InboxMessage is the shared shape backing wecom_inbox, wecom_bot_inbox,
// feishu_inbox, dingtalk_inbox, telegram_inbox, wukongim_inbox.
type InboxMessage struct {
	ID               string         `json:"id" db:"id"`
	PlatformID       string         `json:"platform_id" db:"platform_id"`
	SourceTable      string         `json:"-" db:"-"` // which per-platform table this belongs to
	MessageID        string         `json:"message_id" db:"message_id"`
	FromUser         string         `json:"from_user" db:"from_user"`
	ConversationKey  string         `json:"conversation_key,omitempty" db:"conversation_key"` // chat/channel/conversation id
	MsgType          string         `json:"msg_type" db:"msg_type"`
	Content          string         `json:"content" db:"content"`
	RawPayload       map[string]any `json:"raw_payload,omitempty" db:"raw_payload"`
	Status           InboxStatus    `json:"status" db:"status"`
	ReceivedAt       time.Time      `json:"received_at" db:"received_at"`
}

// ── Visitor ──────────────────────────────────────────────────

type ServiceStatus string

const (
	ServiceStatusNew    ServiceStatus = "NEW"
	ServiceStatusQueued ServiceStatus = "QUEUED"
	ServiceStatusActive ServiceStatus = "ACTIVE"
	ServiceStatusClosed ServiceStatus = "CLOSED"
)

type Visitor struct {
	ID             string        `json:"id" db:"id"`
	ProjectID      string        `json:"project_id" db:"project_id"`
	PlatformID     string        `json:"platform_id" db:"platform_id"`
	PlatformOpenID string        `json:"platform_open_id" db:"platform_open_id"`
	IsOnline       bool          `json:"is_online" db:"is_online"`
	AIDisabled     bool          `json:"ai_disabled" db:"ai_disabled"`
	ServiceStatus  ServiceStatus `json:"service_status" db:"service_status"`
	LastVisitTime  time.Time     `json:"last_visit_time" db:"last_visit_time"`
	LastOfflineTime *time.Time   `json:"last_offline_time,omitempty" db:"last_offline_time"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	DeletedAt      *time.Time    `json:"-" db:"deleted_at"`
}

// ── VisitorSession ───────────────────────────────────────────

type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

type VisitorSession struct {
	ID         string        `json:"id" db:"id"`
	ProjectID  string        `json:"project_id" db:"project_id"`
	VisitorID  string        `json:"visitor_id" db:"visitor_id"`
	PlatformID string        `json:"platform_id,omitempty" db:"platform_id"`
	StaffID    string        `json:"staff_id,omitempty" db:"staff_id"`
	Status     SessionStatus `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	ClosedAt   *time.Time    `json:"closed_at,omitempty" db:"closed_at"`
}

// ── Staff ────────────────────────────────────────────────────

type Staff struct {
	ID            string `json:"id" db:"id"`
	ProjectID     string `json:"project_id" db:"project_id"`
	Status        string `json:"status" db:"status"`
	IsActive      bool   `json:"is_active" db:"is_active"`
	ServicePaused bool   `json:"service_paused" db:"service_paused"`
	Role          string `json:"role" db:"role"` // auto-assignment candidates require role == "user"
	Name          string `json:"name" db:"name"`
	Nickname      string `json:"nickname,omitempty" db:"nickname"`
	Description   string `json:"description,omitempty" db:"description"`
}

// Eligible reports the base eligibility filter for assignment candidates,
// independent of service-window/concurrency checks (spec §4.8 step 2).
func (s *Staff) Eligible() bool {
	return s.IsActive && !s.ServicePaused && s.Role == "user"
}

// ── VisitorAssignmentRule ────────────────────────────────────

type VisitorAssignmentRule struct {
	ProjectID               string   `json:"project_id" db:"project_id"`
	MaxConcurrentChats      int      `json:"max_concurrent_chats,omitempty" db:"max_concurrent_chats"`
	ServiceWeekdays         []int    `json:"service_weekdays,omitempty" db:"service_weekdays"` // 0=Sunday..6=Saturday
	ServiceStartTime        string   `json:"service_start_time,omitempty" db:"service_start_time"` // "HH:MM"
	ServiceEndTime          string   `json:"service_end_time,omitempty" db:"service_end_time"`
	Timezone                string   `json:"timezone" db:"timezone"`
	LLMAssignmentEnabled    bool     `json:"llm_assignment_enabled" db:"llm_assignment_enabled"`
	AIProviderID            string   `json:"ai_provider_id,omitempty" db:"ai_provider_id"`
	Model                   string   `json:"model,omitempty" db:"model"`
	EffectivePrompt         string   `json:"effective_prompt,omitempty" db:"effective_prompt"`
	QueueWaitTimeoutMinutes int      `json:"queue_wait_timeout_minutes,omitempty" db:"queue_wait_timeout_minutes"`
}

// ── VisitorWaitingQueue ──────────────────────────────────────

type QueueStatus string

const (
	QueueWaiting   QueueStatus = "WAITING"
	QueueAssigned  QueueStatus = "ASSIGNED"
	QueueCancelled QueueStatus = "CANCELLED"
	QueueExpired   QueueStatus = "EXPIRED"
)

type VisitorWaitingQueue struct {
	ID             string      `json:"id" db:"id"`
	ProjectID      string      `json:"project_id" db:"project_id"`
	VisitorID      string      `json:"visitor_id" db:"visitor_id"`
	SessionID      string      `json:"session_id" db:"session_id"`
	Source         string      `json:"source" db:"source"`
	Position       int         `json:"position" db:"position"`
	Priority       int         `json:"priority" db:"priority"`
	Status         QueueStatus `json:"status" db:"status"`
	VisitorMessage string      `json:"visitor_message,omitempty" db:"visitor_message"`
	Reason         string      `json:"reason,omitempty" db:"reason"`
	ExpiredAt      time.Time   `json:"expired_at" db:"expired_at"`
	AIDisabled     bool        `json:"ai_disabled,omitempty" db:"ai_disabled"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// ── VisitorAssignmentHistory (append-only) ───────────────────

type AssignmentSource string

const (
	AssignmentManual   AssignmentSource = "MANUAL"
	AssignmentLLM      AssignmentSource = "LLM"
	AssignmentRule     AssignmentSource = "RULE"
	AssignmentTransfer AssignmentSource = "TRANSFER"
)

type VisitorAssignmentHistory struct {
	ID                 string           `json:"id" db:"id"`
	ProjectID          string           `json:"project_id" db:"project_id"`
	VisitorID          string           `json:"visitor_id" db:"visitor_id"`
	SessionID          string           `json:"session_id,omitempty" db:"session_id"`
	AssignedStaffID    string           `json:"assigned_staff_id,omitempty" db:"assigned_staff_id"`
	PreviousStaffID    string           `json:"previous_staff_id,omitempty" db:"previous_staff_id"`
	AssignedByStaffID  string           `json:"assigned_by_staff_id,omitempty" db:"assigned_by_staff_id"`
	Source             AssignmentSource `json:"source" db:"source"`
	VisitorMessage     string           `json:"visitor_message,omitempty" db:"visitor_message"`
	Notes              string           `json:"notes,omitempty" db:"notes"`
	ModelUsed          string           `json:"model_used,omitempty" db:"model_used"`
	PromptUsed         string           `json:"prompt_used,omitempty" db:"prompt_used"`
	LLMResponse        string           `json:"llm_response,omitempty" db:"llm_response"`
	Reasoning          string           `json:"reasoning,omitempty" db:"reasoning"`
	CandidateStaffIDs  []string         `json:"candidate_staff_ids,omitempty" db:"candidate_staff_ids"`
	CandidateScores    map[string]float64 `json:"candidate_scores,omitempty" db:"candidate_scores"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
}

// ── ChannelMember ────────────────────────────────────────────

type MemberType string

const (
	MemberStaff   MemberType = "STAFF"
	MemberVisitor MemberType = "VISITOR"
)

type ChannelMember struct {
	ID          string     `json:"id" db:"id"`
	ProjectID   string     `json:"project_id" db:"project_id"`
	ChannelID   string     `json:"channel_id" db:"channel_id"`
	ChannelType int        `json:"channel_type" db:"channel_type"`
	MemberID    string     `json:"member_id" db:"member_id"`
	MemberType  MemberType `json:"member_type" db:"member_type"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	DeletedAt   *time.Time `json:"-" db:"deleted_at"`
}
