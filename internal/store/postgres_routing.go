package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskwise/deskwise/pkg/models"
)

// inboxTables lists every per-platform inbox table CreateInboxMessage is
// allowed to target. The table name arrives as a caller-supplied string
// (spec §4.7: "one logical shape, one table per source type"), so it is
// checked against this allowlist rather than interpolated directly.
var inboxTables = map[string]bool{
	"wecom_inbox":     true,
	"wecom_bot_inbox": true,
	"feishu_inbox":    true,
	"dingtalk_inbox":  true,
	"telegram_inbox":  true,
	"wukongim_inbox":  true,
}

const inboxDDL = `
CREATE TABLE IF NOT EXISTS wecom_inbox (
	id TEXT PRIMARY KEY, platform_id TEXT NOT NULL, message_id TEXT NOT NULL, from_user TEXT NOT NULL,
	conversation_key TEXT NOT NULL DEFAULT '', msg_type TEXT NOT NULL, content TEXT NOT NULL,
	raw_payload JSONB NOT NULL DEFAULT '{}', status TEXT NOT NULL, received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_wecom_inbox_dedup ON wecom_inbox (platform_id, message_id);

CREATE TABLE IF NOT EXISTS wecom_bot_inbox (
	id TEXT PRIMARY KEY, platform_id TEXT NOT NULL, message_id TEXT NOT NULL, from_user TEXT NOT NULL,
	conversation_key TEXT NOT NULL DEFAULT '', msg_type TEXT NOT NULL, content TEXT NOT NULL,
	raw_payload JSONB NOT NULL DEFAULT '{}', status TEXT NOT NULL, received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_wecom_bot_inbox_dedup ON wecom_bot_inbox (platform_id, message_id);

CREATE TABLE IF NOT EXISTS feishu_inbox (
	id TEXT PRIMARY KEY, platform_id TEXT NOT NULL, message_id TEXT NOT NULL, from_user TEXT NOT NULL,
	conversation_key TEXT NOT NULL DEFAULT '', msg_type TEXT NOT NULL, content TEXT NOT NULL,
	raw_payload JSONB NOT NULL DEFAULT '{}', status TEXT NOT NULL, received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_feishu_inbox_dedup ON feishu_inbox (platform_id, message_id);

CREATE TABLE IF NOT EXISTS dingtalk_inbox (
	id TEXT PRIMARY KEY, platform_id TEXT NOT NULL, message_id TEXT NOT NULL, from_user TEXT NOT NULL,
	conversation_key TEXT NOT NULL DEFAULT '', msg_type TEXT NOT NULL, content TEXT NOT NULL,
	raw_payload JSONB NOT NULL DEFAULT '{}', status TEXT NOT NULL, received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dingtalk_inbox_dedup ON dingtalk_inbox (platform_id, message_id);

CREATE TABLE IF NOT EXISTS telegram_inbox (
	id TEXT PRIMARY KEY, platform_id TEXT NOT NULL, message_id TEXT NOT NULL, from_user TEXT NOT NULL,
	conversation_key TEXT NOT NULL DEFAULT '', msg_type TEXT NOT NULL, content TEXT NOT NULL,
	raw_payload JSONB NOT NULL DEFAULT '{}', status TEXT NOT NULL, received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_telegram_inbox_dedup ON telegram_inbox (platform_id, message_id);

CREATE TABLE IF NOT EXISTS wukongim_inbox (
	id TEXT PRIMARY KEY, platform_id TEXT NOT NULL, message_id TEXT NOT NULL, from_user TEXT NOT NULL,
	conversation_key TEXT NOT NULL DEFAULT '', msg_type TEXT NOT NULL, content TEXT NOT NULL,
	raw_payload JSONB NOT NULL DEFAULT '{}', status TEXT NOT NULL, received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_wukongim_inbox_dedup ON wukongim_inbox (platform_id, message_id);
`

func (s *PostgresStore) CreateInboxMessage(ctx context.Context, table string, msg *models.InboxMessage) error {
	if !inboxTables[table] {
		return fmt.Errorf("create inbox message: unknown inbox table %q", table)
	}
	raw, err := json.Marshal(msg.RawPayload)
	if err != nil {
		return fmt.Errorf("marshal inbox message raw_payload: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, platform_id, message_id, from_user, conversation_key, msg_type, content,
		raw_payload, status, received_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, table)
	_, err = s.db(ctx).Exec(ctx, query, msg.ID, msg.PlatformID, msg.MessageID, msg.FromUser, msg.ConversationKey, msg.MsgType,
		msg.Content, raw, msg.Status, msg.ReceivedAt)
	if isUniqueViolation(err) {
		return &ErrDuplicateMessage{PlatformID: msg.PlatformID, MessageID: msg.MessageID}
	}
	if err != nil {
		return fmt.Errorf("create inbox message: %w", err)
	}
	return nil
}

// ── Visitor ──────────────────────────────────────────────────

const visitorsDDL = `
CREATE TABLE IF NOT EXISTS visitors (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	platform_id        TEXT NOT NULL,
	platform_open_id   TEXT NOT NULL,
	is_online          BOOLEAN NOT NULL DEFAULT FALSE,
	ai_disabled        BOOLEAN NOT NULL DEFAULT FALSE,
	service_status     TEXT NOT NULL,
	last_visit_time    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_offline_time  TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at         TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_visitors_platform_open_id ON visitors (platform_id, platform_open_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_visitors_project ON visitors (project_id) WHERE deleted_at IS NULL;
`

func (s *PostgresStore) GetVisitor(ctx context.Context, projectID, id string) (*models.Visitor, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, platform_id, platform_open_id, is_online, ai_disabled, service_status,
		last_visit_time, last_offline_time, created_at, deleted_at FROM visitors WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`, projectID, id)
	v, err := scanVisitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "visitor", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) UpsertVisitor(ctx context.Context, v *models.Visitor) error {
	_, err := s.db(ctx).Exec(ctx, `INSERT INTO visitors (id, project_id, platform_id, platform_open_id, is_online, ai_disabled,
		service_status, last_visit_time, last_offline_time, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (platform_id, platform_open_id) WHERE deleted_at IS NULL
		DO UPDATE SET is_online=$5, ai_disabled=$6, service_status=$7, last_visit_time=$8, last_offline_time=$9`,
		v.ID, v.ProjectID, v.PlatformID, v.PlatformOpenID, v.IsOnline, v.AIDisabled, v.ServiceStatus, v.LastVisitTime, v.LastOfflineTime, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

func scanVisitor(row rowScanner) (models.Visitor, error) {
	var v models.Visitor
	if err := row.Scan(&v.ID, &v.ProjectID, &v.PlatformID, &v.PlatformOpenID, &v.IsOnline, &v.AIDisabled, &v.ServiceStatus,
		&v.LastVisitTime, &v.LastOfflineTime, &v.CreatedAt, &v.DeletedAt); err != nil {
		return v, fmt.Errorf("scan visitor: %w", err)
	}
	return v, nil
}

// ── VisitorSession ───────────────────────────────────────────

const sessionsDDL = `
CREATE TABLE IF NOT EXISTS visitor_sessions (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL,
	visitor_id  TEXT NOT NULL,
	platform_id TEXT NOT NULL DEFAULT '',
	staff_id    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	closed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sessions_visitor_open ON visitor_sessions (project_id, visitor_id) WHERE status = 'OPEN';
CREATE INDEX IF NOT EXISTS idx_sessions_staff_open ON visitor_sessions (project_id, staff_id) WHERE status = 'OPEN';
CREATE INDEX IF NOT EXISTS idx_sessions_visitor_history ON visitor_sessions (project_id, visitor_id, created_at DESC);
`

func (s *PostgresStore) GetOpenSession(ctx context.Context, projectID, visitorID string) (*models.VisitorSession, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, visitor_id, platform_id, staff_id, status, created_at, closed_at
		FROM visitor_sessions WHERE project_id=$1 AND visitor_id=$2 AND status='OPEN' ORDER BY created_at DESC LIMIT 1`, projectID, visitorID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "visitor_session", Key: visitorID}
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *models.VisitorSession) error {
	_, err := s.db(ctx).Exec(ctx, `INSERT INTO visitor_sessions (id, project_id, visitor_id, platform_id, staff_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, sess.ID, sess.ProjectID, sess.VisitorID, sess.PlatformID, sess.StaffID, sess.Status, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *models.VisitorSession) error {
	tag, err := s.db(ctx).Exec(ctx, `UPDATE visitor_sessions SET staff_id=$3, status=$4, closed_at=$5
		WHERE project_id=$1 AND id=$2`, sess.ProjectID, sess.ID, sess.StaffID, sess.Status, sess.ClosedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "visitor_session", Key: sess.ID}
	}
	return nil
}

func (s *PostgresStore) CountOpenSessionsByStaff(ctx context.Context, projectID, staffID string) (int, error) {
	var count int
	err := s.db(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visitor_sessions WHERE project_id=$1 AND staff_id=$2 AND status='OPEN'`,
		projectID, staffID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetLastStaffForVisitor(ctx context.Context, projectID, visitorID string) (string, error) {
	var staffID string
	err := s.db(ctx).QueryRow(ctx, `SELECT staff_id FROM visitor_sessions WHERE project_id=$1 AND visitor_id=$2 AND staff_id <> ''
		ORDER BY created_at DESC LIMIT 1`, projectID, visitorID).Scan(&staffID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last staff for visitor: %w", err)
	}
	return staffID, nil
}

func scanSession(row rowScanner) (models.VisitorSession, error) {
	var sess models.VisitorSession
	if err := row.Scan(&sess.ID, &sess.ProjectID, &sess.VisitorID, &sess.PlatformID, &sess.StaffID, &sess.Status, &sess.CreatedAt, &sess.ClosedAt); err != nil {
		return sess, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

// ── Staff ────────────────────────────────────────────────────

const staffDDL = `
CREATE TABLE IF NOT EXISTS staff (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	service_paused BOOLEAN NOT NULL DEFAULT FALSE,
	role           TEXT NOT NULL DEFAULT 'user',
	name           TEXT NOT NULL DEFAULT '',
	nickname       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_staff_project ON staff (project_id);
`

func (s *PostgresStore) ListStaff(ctx context.Context, projectID string) ([]models.Staff, error) {
	rows, err := s.db(ctx).Query(ctx, `SELECT id, project_id, status, is_active, service_paused, role, name, nickname, description
		FROM staff WHERE project_id=$1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []models.Staff
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetStaff(ctx context.Context, projectID, id string) (*models.Staff, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, status, is_active, service_paused, role, name, nickname, description
		FROM staff WHERE project_id=$1 AND id=$2`, projectID, id)
	st, err := scanStaff(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "staff", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) UpsertStaff(ctx context.Context, st *models.Staff) error {
	_, err := s.db(ctx).Exec(ctx, `INSERT INTO staff (id, project_id, status, is_active, service_paused, role, name, nickname, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET status=$3, is_active=$4, service_paused=$5, role=$6, name=$7, nickname=$8, description=$9`,
		st.ID, st.ProjectID, st.Status, st.IsActive, st.ServicePaused, st.Role, st.Name, st.Nickname, st.Description)
	if err != nil {
		return fmt.Errorf("upsert staff: %w", err)
	}
	return nil
}

func scanStaff(row rowScanner) (models.Staff, error) {
	var st models.Staff
	if err := row.Scan(&st.ID, &st.ProjectID, &st.Status, &st.IsActive, &st.ServicePaused, &st.Role, &st.Name, &st.Nickname, &st.Description); err != nil {
		return st, fmt.Errorf("scan staff: %w", err)
	}
	return st, nil
}

// ── VisitorAssignmentRule ────────────────────────────────────

const rulesDDL = `
CREATE TABLE IF NOT EXISTS visitor_assignment_rules (
	project_id                  TEXT PRIMARY KEY,
	max_concurrent_chats        INT NOT NULL DEFAULT 0,
	service_weekdays            INT[] NOT NULL DEFAULT '{0,1,2,3,4,5,6}',
	service_start_time          TEXT NOT NULL DEFAULT '',
	service_end_time            TEXT NOT NULL DEFAULT '',
	timezone                    TEXT NOT NULL DEFAULT 'UTC',
	llm_assignment_enabled      BOOLEAN NOT NULL DEFAULT FALSE,
	ai_provider_id              TEXT NOT NULL DEFAULT '',
	model                       TEXT NOT NULL DEFAULT '',
	effective_prompt            TEXT NOT NULL DEFAULT '',
	queue_wait_timeout_minutes  INT NOT NULL DEFAULT 0
);
`

func (s *PostgresStore) GetAssignmentRule(ctx context.Context, projectID string) (*models.VisitorAssignmentRule, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT project_id, max_concurrent_chats, service_weekdays, service_start_time, service_end_time,
		timezone, llm_assignment_enabled, ai_provider_id, model, effective_prompt, queue_wait_timeout_minutes
		FROM visitor_assignment_rules WHERE project_id=$1`, projectID)
	var r models.VisitorAssignmentRule
	err := row.Scan(&r.ProjectID, &r.MaxConcurrentChats, &r.ServiceWeekdays, &r.ServiceStartTime, &r.ServiceEndTime, &r.Timezone,
		&r.LLMAssignmentEnabled, &r.AIProviderID, &r.Model, &r.EffectivePrompt, &r.QueueWaitTimeoutMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "assignment_rule", Key: projectID}
	}
	if err != nil {
		return nil, fmt.Errorf("scan assignment rule: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) UpsertAssignmentRule(ctx context.Context, r *models.VisitorAssignmentRule) error {
	_, err := s.db(ctx).Exec(ctx, `INSERT INTO visitor_assignment_rules (project_id, max_concurrent_chats, service_weekdays,
		service_start_time, service_end_time, timezone, llm_assignment_enabled, ai_provider_id, model, effective_prompt,
		queue_wait_timeout_minutes) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (project_id) DO UPDATE SET max_concurrent_chats=$2, service_weekdays=$3, service_start_time=$4,
		service_end_time=$5, timezone=$6, llm_assignment_enabled=$7, ai_provider_id=$8, model=$9, effective_prompt=$10,
		queue_wait_timeout_minutes=$11`,
		r.ProjectID, r.MaxConcurrentChats, r.ServiceWeekdays, r.ServiceStartTime, r.ServiceEndTime, r.Timezone,
		r.LLMAssignmentEnabled, r.AIProviderID, r.Model, r.EffectivePrompt, r.QueueWaitTimeoutMinutes)
	if err != nil {
		return fmt.Errorf("upsert assignment rule: %w", err)
	}
	return nil
}

// ── VisitorWaitingQueue ──────────────────────────────────────

const waitingQueueDDL = `
CREATE TABLE IF NOT EXISTS visitor_waiting_queue (
	id              TEXT PRIMARY KEY,
	project_id      TEXT NOT NULL,
	visitor_id      TEXT NOT NULL,
	session_id      TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT '',
	position        INT NOT NULL DEFAULT 0,
	priority        INT NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	visitor_message TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	expired_at      TIMESTAMPTZ NOT NULL,
	ai_disabled     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_waiting_queue_visitor ON visitor_waiting_queue (project_id, visitor_id) WHERE status = 'WAITING';
CREATE INDEX IF NOT EXISTS idx_waiting_queue_ordered ON visitor_waiting_queue (project_id, priority DESC, position ASC) WHERE status = 'WAITING';
CREATE INDEX IF NOT EXISTS idx_waiting_queue_expiry ON visitor_waiting_queue (expired_at) WHERE status = 'WAITING';
`

func (s *PostgresStore) GetWaitingEntry(ctx context.Context, projectID, visitorID string) (*models.VisitorWaitingQueue, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, visitor_id, session_id, source, position, priority, status,
		visitor_message, reason, expired_at, ai_disabled, created_at FROM visitor_waiting_queue
		WHERE project_id=$1 AND visitor_id=$2 AND status='WAITING' ORDER BY created_at DESC LIMIT 1`, projectID, visitorID)
	q, err := scanWaitingEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "waiting_entry", Key: visitorID}
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *PostgresStore) CountWaiting(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visitor_waiting_queue WHERE project_id=$1 AND status='WAITING'`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count waiting: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateWaitingEntry(ctx context.Context, q *models.VisitorWaitingQueue) error {
	_, err := s.db(ctx).Exec(ctx, `INSERT INTO visitor_waiting_queue (id, project_id, visitor_id, session_id, source, position,
		priority, status, visitor_message, reason, expired_at, ai_disabled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		q.ID, q.ProjectID, q.VisitorID, q.SessionID, q.Source, q.Position, q.Priority, q.Status, q.VisitorMessage, q.Reason,
		q.ExpiredAt, q.AIDisabled, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("create waiting entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateWaitingEntry(ctx context.Context, q *models.VisitorWaitingQueue) error {
	tag, err := s.db(ctx).Exec(ctx, `UPDATE visitor_waiting_queue SET position=$3, priority=$4, status=$5, reason=$6
		WHERE project_id=$1 AND id=$2`, q.ProjectID, q.ID, q.Position, q.Priority, q.Status, q.Reason)
	if err != nil {
		return fmt.Errorf("update waiting entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "waiting_entry", Key: q.ID}
	}
	return nil
}

func (s *PostgresStore) ListWaitingOrdered(ctx context.Context, projectID string) ([]models.VisitorWaitingQueue, error) {
	rows, err := s.db(ctx).Query(ctx, `SELECT id, project_id, visitor_id, session_id, source, position, priority, status,
		visitor_message, reason, expired_at, ai_disabled, created_at FROM visitor_waiting_queue
		WHERE project_id=$1 AND status='WAITING' ORDER BY priority DESC, position ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list waiting ordered: %w", err)
	}
	defer rows.Close()

	var out []models.VisitorWaitingQueue
	for rows.Next() {
		q, err := scanWaitingEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListExpiredWaiting(ctx context.Context, asOf time.Time) ([]models.VisitorWaitingQueue, error) {
	rows, err := s.db(ctx).Query(ctx, `SELECT id, project_id, visitor_id, session_id, source, position, priority, status,
		visitor_message, reason, expired_at, ai_disabled, created_at FROM visitor_waiting_queue
		WHERE status='WAITING' AND expired_at < $1`, asOf)
	if err != nil {
		return nil, fmt.Errorf("list expired waiting: %w", err)
	}
	defer rows.Close()

	var out []models.VisitorWaitingQueue
	for rows.Next() {
		q, err := scanWaitingEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanWaitingEntry(row rowScanner) (models.VisitorWaitingQueue, error) {
	var q models.VisitorWaitingQueue
	if err := row.Scan(&q.ID, &q.ProjectID, &q.VisitorID, &q.SessionID, &q.Source, &q.Position, &q.Priority, &q.Status,
		&q.VisitorMessage, &q.Reason, &q.ExpiredAt, &q.AIDisabled, &q.CreatedAt); err != nil {
		return q, fmt.Errorf("scan waiting entry: %w", err)
	}
	return q, nil
}

// ── VisitorAssignmentHistory ─────────────────────────────────

const assignmentHistoryDDL = `
CREATE TABLE IF NOT EXISTS visitor_assignment_history (
	id                   TEXT PRIMARY KEY,
	project_id           TEXT NOT NULL,
	visitor_id           TEXT NOT NULL,
	session_id           TEXT NOT NULL DEFAULT '',
	assigned_staff_id    TEXT NOT NULL DEFAULT '',
	previous_staff_id    TEXT NOT NULL DEFAULT '',
	assigned_by_staff_id TEXT NOT NULL DEFAULT '',
	source               TEXT NOT NULL,
	visitor_message      TEXT NOT NULL DEFAULT '',
	notes                TEXT NOT NULL DEFAULT '',
	model_used           TEXT NOT NULL DEFAULT '',
	prompt_used          TEXT NOT NULL DEFAULT '',
	llm_response         TEXT NOT NULL DEFAULT '',
	reasoning            TEXT NOT NULL DEFAULT '',
	candidate_staff_ids  TEXT[] NOT NULL DEFAULT '{}',
	candidate_scores     JSONB NOT NULL DEFAULT '{}',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_assignment_history_visitor ON visitor_assignment_history (project_id, visitor_id, created_at DESC);
`

func (s *PostgresStore) AppendAssignmentHistory(ctx context.Context, h *models.VisitorAssignmentHistory) error {
	scores, err := json.Marshal(h.CandidateScores)
	if err != nil {
		return fmt.Errorf("marshal assignment history candidate_scores: %w", err)
	}
	_, err = s.db(ctx).Exec(ctx, `INSERT INTO visitor_assignment_history (id, project_id, visitor_id, session_id, assigned_staff_id,
		previous_staff_id, assigned_by_staff_id, source, visitor_message, notes, model_used, prompt_used, llm_response,
		reasoning, candidate_staff_ids, candidate_scores, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		h.ID, h.ProjectID, h.VisitorID, h.SessionID, h.AssignedStaffID, h.PreviousStaffID, h.AssignedByStaffID, h.Source,
		h.VisitorMessage, h.Notes, h.ModelUsed, h.PromptUsed, h.LLMResponse, h.Reasoning, h.CandidateStaffIDs, scores, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("append assignment history: %w", err)
	}
	return nil
}

// ── ChannelMember ────────────────────────────────────────────

const channelMembersDDL = `
CREATE TABLE IF NOT EXISTS channel_members (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	channel_id   TEXT NOT NULL,
	channel_type INT NOT NULL,
	member_id    TEXT NOT NULL,
	member_type  TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at   TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_members_unique ON channel_members (channel_id, member_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_channel_members_channel ON channel_members (channel_id) WHERE deleted_at IS NULL;
`

func (s *PostgresStore) ListActiveMembers(ctx context.Context, channelID string) ([]models.ChannelMember, error) {
	rows, err := s.db(ctx).Query(ctx, `SELECT id, project_id, channel_id, channel_type, member_id, member_type, created_at, deleted_at
		FROM channel_members WHERE channel_id=$1 AND deleted_at IS NULL`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()

	var out []models.ChannelMember
	for rows.Next() {
		m, err := scanChannelMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertChannelMember(ctx context.Context, m *models.ChannelMember) error {
	_, err := s.db(ctx).Exec(ctx, `INSERT INTO channel_members (id, project_id, channel_id, channel_type, member_id, member_type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (channel_id, member_id) WHERE deleted_at IS NULL
		DO UPDATE SET channel_type=$4, member_type=$6`,
		m.ID, m.ProjectID, m.ChannelID, m.ChannelType, m.MemberID, m.MemberType, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert channel member: %w", err)
	}
	return nil
}

func (s *PostgresStore) SoftDeleteOtherStaffMembers(ctx context.Context, channelID, keepMemberID string) error {
	_, err := s.db(ctx).Exec(ctx, `UPDATE channel_members SET deleted_at=NOW()
		WHERE channel_id=$1 AND member_type='STAFF' AND member_id <> $2 AND deleted_at IS NULL`, channelID, keepMemberID)
	if err != nil {
		return fmt.Errorf("soft delete other staff members: %w", err)
	}
	return nil
}

func scanChannelMember(row rowScanner) (models.ChannelMember, error) {
	var m models.ChannelMember
	if err := row.Scan(&m.ID, &m.ProjectID, &m.ChannelID, &m.ChannelType, &m.MemberID, &m.MemberType, &m.CreatedAt, &m.DeletedAt); err != nil {
		return m, fmt.Errorf("scan channel member: %w", err)
	}
	return m, nil
}
