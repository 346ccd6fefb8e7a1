// In-memory Store implementation. Used as the zero-config default and
// for tests. Supports file-based snapshot persistence so data survives
// restarts, the same debounced-save pattern the teacher uses.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deskwise/deskwise/pkg/models"
)

type snapshot struct {
	Collections  map[string]*models.Collection          `json:"collections"`
	Files        map[string]*models.File                 `json:"files"`
	Documents    map[string]*models.FileDocument          `json:"documents"`
	QAPairs      map[string]*models.QAPair               `json:"qa_pairs"`
	CrawlJobs    map[string]*models.WebsiteCrawlJob       `json:"crawl_jobs"`
	Pages        map[string]*models.WebsitePage           `json:"pages"`
	EmbedConfigs map[string]*models.EmbeddingConfigRow    `json:"embed_configs"`
	Platforms    map[string]*models.Platform              `json:"platforms"`
	Visitors     map[string]*models.Visitor                `json:"visitors"`
	Sessions     map[string]*models.VisitorSession          `json:"sessions"`
	Staff        map[string]*models.Staff                   `json:"staff"`
	Rules        map[string]*models.VisitorAssignmentRule   `json:"rules"`
	Queue        map[string]*models.VisitorWaitingQueue     `json:"queue"`
	History      []*models.VisitorAssignmentHistory         `json:"history"`
	Members      map[string]*models.ChannelMember            `json:"members"`
}

// MemoryStore implements Store with RWMutex-guarded maps.
type MemoryStore struct {
	mu sync.RWMutex

	collections  map[string]*models.Collection
	files        map[string]*models.File
	documents    map[string]*models.FileDocument
	qaPairs      map[string]*models.QAPair
	crawlJobs    map[string]*models.WebsiteCrawlJob
	pages        map[string]*models.WebsitePage
	embedConfigs map[string]*models.EmbeddingConfigRow // key: project_id
	platforms    map[string]*models.Platform
	visitors     map[string]*models.Visitor
	sessions     map[string]*models.VisitorSession
	staff        map[string]*models.Staff
	rules        map[string]*models.VisitorAssignmentRule // key: project_id
	queue        map[string]*models.VisitorWaitingQueue
	history      []*models.VisitorAssignmentHistory
	members      map[string]*models.ChannelMember // key: channel_id:member_id

	inboxSeen map[string]bool // key: table:platform_id:message_id — dedup guard

	snapshotPath string
	saveMu       sync.Mutex
	saveCh       chan struct{}
	doneCh       chan struct{}
}

// NewMemoryStore creates a new in-memory store. If DESKWISE_DATA_DIR is
// set, data is persisted to a JSON file in that directory.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		collections:  make(map[string]*models.Collection),
		files:        make(map[string]*models.File),
		documents:    make(map[string]*models.FileDocument),
		qaPairs:      make(map[string]*models.QAPair),
		crawlJobs:    make(map[string]*models.WebsiteCrawlJob),
		pages:        make(map[string]*models.WebsitePage),
		embedConfigs: make(map[string]*models.EmbeddingConfigRow),
		platforms:    make(map[string]*models.Platform),
		visitors:     make(map[string]*models.Visitor),
		sessions:     make(map[string]*models.VisitorSession),
		staff:        make(map[string]*models.Staff),
		rules:        make(map[string]*models.VisitorAssignmentRule),
		queue:        make(map[string]*models.VisitorWaitingQueue),
		history:      make([]*models.VisitorAssignmentHistory, 0),
		members:      make(map[string]*models.ChannelMember),
		inboxSeen:    make(map[string]bool),
		saveCh:       make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
	}

	if dataDir := os.Getenv("DESKWISE_DATA_DIR"); dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err == nil {
			m.snapshotPath = filepath.Join(dataDir, "data.json")
			m.load()
		}
	}

	go m.saveLoop()
	return m
}

func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.saveCh:
			m.persist()
		case <-m.doneCh:
			return
		}
	}
}

func (m *MemoryStore) touch() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

func (m *MemoryStore) persist() {
	if m.snapshotPath == "" {
		return
	}
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	snap := snapshot{
		Collections: m.collections, Files: m.files, Documents: m.documents,
		QAPairs: m.qaPairs, CrawlJobs: m.crawlJobs, Pages: m.pages,
		EmbedConfigs: m.embedConfigs, Platforms: m.platforms, Visitors: m.visitors,
		Sessions: m.sessions, Staff: m.staff, Rules: m.rules, Queue: m.queue,
		History: m.history, Members: m.members,
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	os.Rename(tmp, m.snapshotPath)
}

func (m *MemoryStore) load() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		return
	}
	var snap snapshot
	if json.Unmarshal(data, &snap) != nil {
		return
	}
	if snap.Collections != nil {
		m.collections = snap.Collections
	}
	if snap.Files != nil {
		m.files = snap.Files
	}
	if snap.Documents != nil {
		m.documents = snap.Documents
	}
	if snap.QAPairs != nil {
		m.qaPairs = snap.QAPairs
	}
	if snap.CrawlJobs != nil {
		m.crawlJobs = snap.CrawlJobs
	}
	if snap.Pages != nil {
		m.pages = snap.Pages
	}
	if snap.EmbedConfigs != nil {
		m.embedConfigs = snap.EmbedConfigs
	}
	if snap.Platforms != nil {
		m.platforms = snap.Platforms
	}
	if snap.Visitors != nil {
		m.visitors = snap.Visitors
	}
	if snap.Sessions != nil {
		m.sessions = snap.Sessions
	}
	if snap.Staff != nil {
		m.staff = snap.Staff
	}
	if snap.Rules != nil {
		m.rules = snap.Rules
	}
	if snap.Queue != nil {
		m.queue = snap.Queue
	}
	if snap.History != nil {
		m.history = snap.History
	}
	if snap.Members != nil {
		m.members = snap.Members
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	close(m.doneCh)
	m.persist()
	return nil
}

func (m *MemoryStore) Migrate(ctx context.Context) error { return nil }

// ── Collection ───────────────────────────────────────────────

func (m *MemoryStore) ListCollections(ctx context.Context, filter ListFilter) ([]models.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Collection
	for _, c := range m.collections {
		if c.ProjectID != filter.ProjectID || c.DeletedAt != nil {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

func (m *MemoryStore) GetCollection(ctx context.Context, projectID, id string) (*models.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[id]
	if !ok || c.ProjectID != projectID || c.DeletedAt != nil {
		return nil, &ErrNotFound{Entity: "collection", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateCollection(ctx context.Context, c *models.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.collections[c.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) UpdateCollection(ctx context.Context, c *models.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[c.ID]; !ok {
		return &ErrNotFound{Entity: "collection", Key: c.ID}
	}
	cp := *c
	m.collections[c.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) DeleteCollection(ctx context.Context, projectID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok || c.ProjectID != projectID {
		return &ErrNotFound{Entity: "collection", Key: id}
	}
	now := time.Now()
	c.DeletedAt = &now
	m.touch()
	return nil
}

// ── File ─────────────────────────────────────────────────────

func (m *MemoryStore) ListFiles(ctx context.Context, filter ListFilter, collectionID string) ([]models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.File
	for _, f := range m.files {
		if f.ProjectID != filter.ProjectID || f.DeletedAt != nil {
			continue
		}
		if collectionID != "" && f.CollectionID != collectionID {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

func (m *MemoryStore) GetFile(ctx context.Context, projectID, id string) (*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok || f.ProjectID != projectID || f.DeletedAt != nil {
		return nil, &ErrNotFound{Entity: "file", Key: id}
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) CreateFile(ctx context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.files[f.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) UpdateFile(ctx context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[f.ID]; !ok {
		return &ErrNotFound{Entity: "file", Key: f.ID}
	}
	cp := *f
	m.files[f.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) DeleteFile(ctx context.Context, projectID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.ProjectID != projectID {
		return &ErrNotFound{Entity: "file", Key: id}
	}
	now := time.Now()
	f.DeletedAt = &now
	m.touch()
	return nil
}

// ── FileDocument ─────────────────────────────────────────────

func (m *MemoryStore) CreateFileDocuments(ctx context.Context, docs []models.FileDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range docs {
		cp := docs[i]
		m.documents[cp.ID] = &cp
	}
	m.touch()
	return nil
}

func (m *MemoryStore) GetFileDocument(ctx context.Context, projectID, id string) (*models.FileDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok || d.ProjectID != projectID {
		return nil, &ErrNotFound{Entity: "document", Key: id}
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) ListFileDocumentsByFile(ctx context.Context, projectID, fileID string) ([]models.FileDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.FileDocument
	for _, d := range m.documents {
		if d.ProjectID == projectID && d.FileID != nil && *d.FileID == fileID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (m *MemoryStore) DeleteFileDocument(ctx context.Context, projectID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.ProjectID != projectID {
		return &ErrNotFound{Entity: "document", Key: id}
	}
	delete(m.documents, id)
	m.touch()
	return nil
}

func (m *MemoryStore) LexicalSearch(ctx context.Context, projectID, query string, filter SearchFilter, limit int) ([]ScoredDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := tokenize(query)
	var out []ScoredDocument
	for _, d := range m.documents {
		if d.ProjectID != projectID {
			continue
		}
		if filter.CollectionID != "" && d.CollectionID != filter.CollectionID {
			continue
		}
		score := lexicalScore(d.Content, terms)
		if score <= 0 {
			continue
		}
		out = append(out, ScoredDocument{Document: *d, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Document.CreatedAt.After(out[j].Document.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// tokenize lower-cases and splits on non-alphanumeric runes, treating
// each CJK rune as its own token so Chinese queries (spec's literal
// "重置密码" scenario) still match.
func tokenize(s string) []string {
	s = strings.ToLower(s)
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			cur.WriteRune(r)
		case r > 0x2E80: // CJK and beyond: treat each rune as its own token
			flush()
			toks = append(toks, string(r))
		default:
			flush()
		}
	}
	flush()
	return toks
}

func lexicalScore(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lc := strings.ToLower(content)
	var hits float64
	for _, t := range terms {
		hits += float64(strings.Count(lc, t))
	}
	if hits == 0 {
		return 0
	}
	// ts_rank_cd-like: reward density relative to document length.
	return hits / (1 + float64(len(content))/500.0)
}

// ── QAPair ───────────────────────────────────────────────────

func (m *MemoryStore) ListQAPairs(ctx context.Context, filter ListFilter, collectionID string) ([]models.QAPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.QAPair
	for _, q := range m.qaPairs {
		if q.ProjectID != filter.ProjectID || q.DeletedAt != nil {
			continue
		}
		if collectionID != "" && q.CollectionID != collectionID {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

func (m *MemoryStore) GetQAPair(ctx context.Context, projectID, id string) (*models.QAPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.qaPairs[id]
	if !ok || q.ProjectID != projectID || q.DeletedAt != nil {
		return nil, &ErrNotFound{Entity: "qa_pair", Key: id}
	}
	cp := *q
	return &cp, nil
}

func (m *MemoryStore) GetQAPairByHash(ctx context.Context, collectionID, questionHash string) (*models.QAPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.qaPairs {
		if q.CollectionID == collectionID && q.QuestionHash == questionHash && q.DeletedAt == nil {
			cp := *q
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "qa_pair", Key: questionHash}
}

func (m *MemoryStore) CreateQAPair(ctx context.Context, qa *models.QAPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.qaPairs {
		if q.CollectionID == qa.CollectionID && q.QuestionHash == qa.QuestionHash && q.DeletedAt == nil {
			return &ErrDuplicateMessage{PlatformID: qa.CollectionID, MessageID: qa.QuestionHash}
		}
	}
	cp := *qa
	m.qaPairs[qa.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) UpdateQAPair(ctx context.Context, qa *models.QAPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.qaPairs[qa.ID]; !ok {
		return &ErrNotFound{Entity: "qa_pair", Key: qa.ID}
	}
	cp := *qa
	m.qaPairs[qa.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) DeleteQAPair(ctx context.Context, projectID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qaPairs[id]
	if !ok || q.ProjectID != projectID {
		return &ErrNotFound{Entity: "qa_pair", Key: id}
	}
	now := time.Now()
	q.DeletedAt = &now
	m.touch()
	return nil
}

// ── WebsiteCrawlJob ──────────────────────────────────────────

func (m *MemoryStore) GetCrawlJob(ctx context.Context, projectID, id string) (*models.WebsiteCrawlJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.crawlJobs[id]
	if !ok || j.ProjectID != projectID {
		return nil, &ErrNotFound{Entity: "crawl_job", Key: id}
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryStore) CreateCrawlJob(ctx context.Context, j *models.WebsiteCrawlJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.crawlJobs[j.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) UpdateCrawlJob(ctx context.Context, j *models.WebsiteCrawlJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.crawlJobs[j.ID]; !ok {
		return &ErrNotFound{Entity: "crawl_job", Key: j.ID}
	}
	cp := *j
	m.crawlJobs[j.ID] = &cp
	m.touch()
	return nil
}

// ── WebsitePage ──────────────────────────────────────────────

func (m *MemoryStore) GetWebsitePage(ctx context.Context, projectID, id string) (*models.WebsitePage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[id]
	if !ok || p.ProjectID != projectID {
		return nil, &ErrNotFound{Entity: "website_page", Key: id}
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetWebsitePageByURLHash(ctx context.Context, crawlJobID, urlHash string) (*models.WebsitePage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pages {
		if p.CrawlJobID == crawlJobID && p.URLHash == urlHash {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "website_page", Key: urlHash}
}

func (m *MemoryStore) ListWebsitePagesByCollection(ctx context.Context, collectionID string) ([]models.WebsitePage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.WebsitePage
	for _, p := range m.pages {
		if p.CollectionID == collectionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateWebsitePage(ctx context.Context, p *models.WebsitePage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.pages {
		if existing.CrawlJobID == p.CrawlJobID && existing.URLHash == p.URLHash {
			return &ErrDuplicateMessage{PlatformID: p.CrawlJobID, MessageID: p.URLHash}
		}
	}
	cp := *p
	m.pages[p.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) UpdateWebsitePage(ctx context.Context, p *models.WebsitePage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[p.ID]; !ok {
		return &ErrNotFound{Entity: "website_page", Key: p.ID}
	}
	cp := *p
	m.pages[p.ID] = &cp
	m.touch()
	return nil
}

// ── EmbeddingConfig ──────────────────────────────────────────

func (m *MemoryStore) GetActiveEmbeddingConfig(ctx context.Context, projectID string) (*models.EmbeddingConfigRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.embedConfigs[projectID]
	if !ok || !cfg.IsActive {
		return nil, &ErrNotFound{Entity: "embedding_config", Key: projectID}
	}
	cp := *cfg
	return &cp, nil
}

func (m *MemoryStore) UpsertEmbeddingConfig(ctx context.Context, cfg *models.EmbeddingConfigRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.embedConfigs[cfg.ProjectID] = &cp
	m.touch()
	return nil
}

// ── Platform ─────────────────────────────────────────────────

func (m *MemoryStore) GetPlatformByAPIKey(ctx context.Context, apiKey string) (*models.Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.platforms {
		if p.APIKey == apiKey && p.IsActive && p.DeletedAt == nil {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "platform", Key: apiKey}
}

func (m *MemoryStore) GetPlatform(ctx context.Context, projectID, id string) (*models.Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.platforms[id]
	if !ok || p.ProjectID != projectID {
		return nil, &ErrNotFound{Entity: "platform", Key: id}
	}
	cp := *p
	return &cp, nil
}

// ── Inbox ────────────────────────────────────────────────────

func (m *MemoryStore) CreateInboxMessage(ctx context.Context, table string, msg *models.InboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := table + ":" + msg.PlatformID + ":" + msg.MessageID
	if m.inboxSeen[key] {
		return &ErrDuplicateMessage{PlatformID: msg.PlatformID, MessageID: msg.MessageID}
	}
	m.inboxSeen[key] = true
	m.touch()
	return nil
}

// ── Visitor ──────────────────────────────────────────────────

func (m *MemoryStore) GetVisitor(ctx context.Context, projectID, id string) (*models.Visitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.visitors[id]
	if !ok || v.ProjectID != projectID {
		return nil, &ErrNotFound{Entity: "visitor", Key: id}
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) UpsertVisitor(ctx context.Context, v *models.Visitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.visitors[v.ID] = &cp
	m.touch()
	return nil
}

// ── VisitorSession ───────────────────────────────────────────

func (m *MemoryStore) GetOpenSession(ctx context.Context, projectID, visitorID string) (*models.VisitorSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ProjectID == projectID && s.VisitorID == visitorID && s.Status == models.SessionOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "session", Key: visitorID}
}

func (m *MemoryStore) CreateSession(ctx context.Context, s *models.VisitorSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, s *models.VisitorSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return &ErrNotFound{Entity: "session", Key: s.ID}
	}
	cp := *s
	m.sessions[s.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) CountOpenSessionsByStaff(ctx context.Context, projectID, staffID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.ProjectID == projectID && s.StaffID == staffID && s.Status == models.SessionOpen {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetLastStaffForVisitor(ctx context.Context, projectID, visitorID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.VisitorSession
	for _, s := range m.sessions {
		if s.ProjectID != projectID || s.VisitorID != visitorID || s.StaffID == "" {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.StaffID, nil
}

// ── Staff ────────────────────────────────────────────────────

func (m *MemoryStore) ListStaff(ctx context.Context, projectID string) ([]models.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Staff
	for _, s := range m.staff {
		if s.ProjectID == projectID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetStaff(ctx context.Context, projectID, id string) (*models.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staff[id]
	if !ok || s.ProjectID != projectID {
		return nil, &ErrNotFound{Entity: "staff", Key: id}
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) UpsertStaff(ctx context.Context, s *models.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.staff[s.ID] = &cp
	m.touch()
	return nil
}

// ── VisitorAssignmentRule ────────────────────────────────────

func (m *MemoryStore) GetAssignmentRule(ctx context.Context, projectID string) (*models.VisitorAssignmentRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[projectID]
	if !ok {
		return nil, &ErrNotFound{Entity: "assignment_rule", Key: projectID}
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) UpsertAssignmentRule(ctx context.Context, r *models.VisitorAssignmentRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rules[r.ProjectID] = &cp
	m.touch()
	return nil
}

// ── VisitorWaitingQueue ──────────────────────────────────────

func (m *MemoryStore) GetWaitingEntry(ctx context.Context, projectID, visitorID string) (*models.VisitorWaitingQueue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.queue {
		if q.ProjectID == projectID && q.VisitorID == visitorID && q.Status == models.QueueWaiting {
			cp := *q
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "waiting_queue", Key: visitorID}
}

func (m *MemoryStore) CountWaiting(ctx context.Context, projectID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, q := range m.queue {
		if q.ProjectID == projectID && q.Status == models.QueueWaiting {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateWaitingEntry(ctx context.Context, q *models.VisitorWaitingQueue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.queue {
		if existing.ProjectID == q.ProjectID && existing.VisitorID == q.VisitorID && existing.Status == models.QueueWaiting {
			return &ErrDuplicateMessage{PlatformID: q.ProjectID, MessageID: q.VisitorID}
		}
	}
	cp := *q
	m.queue[q.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) UpdateWaitingEntry(ctx context.Context, q *models.VisitorWaitingQueue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queue[q.ID]; !ok {
		return &ErrNotFound{Entity: "waiting_queue", Key: q.ID}
	}
	cp := *q
	m.queue[q.ID] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) ListWaitingOrdered(ctx context.Context, projectID string) ([]models.VisitorWaitingQueue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.VisitorWaitingQueue
	for _, q := range m.queue {
		if q.ProjectID == projectID && q.Status == models.QueueWaiting {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (m *MemoryStore) ListExpiredWaiting(ctx context.Context, asOf time.Time) ([]models.VisitorWaitingQueue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.VisitorWaitingQueue
	for _, q := range m.queue {
		if q.Status == models.QueueWaiting && q.ExpiredAt.Before(asOf) {
			out = append(out, *q)
		}
	}
	return out, nil
}

// ── VisitorAssignmentHistory ─────────────────────────────────

func (m *MemoryStore) AppendAssignmentHistory(ctx context.Context, h *models.VisitorAssignmentHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *h
	m.history = append(m.history, &cp)
	m.touch()
	return nil
}

// ── ChannelMember ────────────────────────────────────────────

func memberKey(channelID, memberID string) string { return channelID + ":" + memberID }

func (m *MemoryStore) ListActiveMembers(ctx context.Context, channelID string) ([]models.ChannelMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ChannelMember
	for _, mem := range m.members {
		if mem.ChannelID == channelID && mem.DeletedAt == nil {
			out = append(out, *mem)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertChannelMember(ctx context.Context, mem *models.ChannelMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.members[memberKey(mem.ChannelID, mem.MemberID)] = &cp
	m.touch()
	return nil
}

func (m *MemoryStore) SoftDeleteOtherStaffMembers(ctx context.Context, channelID, keepMemberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, mem := range m.members {
		if mem.ChannelID == channelID && mem.MemberType == models.MemberStaff && mem.MemberID != keepMemberID && mem.DeletedAt == nil {
			mem.DeletedAt = &now
		}
	}
	m.touch()
	return nil
}

// PruneSoftDeleted physically deletes soft-deleted rows across every
// entity that supports soft-delete once they're older than olderThan,
// grounded on agentoven's retention janitor
// (control-plane/internal/retention/janitor.go's archive-then-purge
// sweep, minus the archive step — nothing in this component's scope
// asks for archival, only eviction of stale tombstones).
func (m *MemoryStore) PruneSoftDeleted(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	purged := 0

	for id, c := range m.collections {
		if c.DeletedAt != nil && c.DeletedAt.Before(cutoff) {
			delete(m.collections, id)
			purged++
		}
	}
	for id, f := range m.files {
		if f.DeletedAt != nil && f.DeletedAt.Before(cutoff) {
			delete(m.files, id)
			purged++
		}
	}
	for id, q := range m.qaPairs {
		if q.DeletedAt != nil && q.DeletedAt.Before(cutoff) {
			delete(m.qaPairs, id)
			purged++
		}
	}
	for id, p := range m.platforms {
		if p.DeletedAt != nil && p.DeletedAt.Before(cutoff) {
			delete(m.platforms, id)
			purged++
		}
	}
	for key, mem := range m.members {
		if mem.DeletedAt != nil && mem.DeletedAt.Before(cutoff) {
			delete(m.members, key)
			purged++
		}
	}

	if purged > 0 {
		m.touch()
	}
	return purged, nil
}

// ── helpers ──────────────────────────────────────────────────

func paginate[T any](items []T, filter ListFilter) []T {
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items
}
