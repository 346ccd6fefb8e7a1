package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

// Engine runs the transfer_to_staff policy chain (spec §4.8).
type Engine struct {
	store    store.Store
	notifier ChannelNotifier
	llm      llmResolver
	cfg      config.RoutingConfig
}

func NewEngine(s store.Store, notifier ChannelNotifier, llmCfg config.AssignmentConfig, routingCfg config.RoutingConfig) *Engine {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{store: s, notifier: notifier, llm: newChatCompletionResolver(llmCfg), cfg: routingCfg}
}

// TransferToStaff implements the full policy chain: direct target,
// candidate computation, last-operator affinity, LLM resolution,
// load-balancing, and finally enqueue-or-refuse (spec §4.8 steps 1-7).
func (e *Engine) TransferToStaff(ctx context.Context, projectID, visitorID string, opts TransferOptions) (*TransferResult, error) {
	visitor, err := e.store.GetVisitor(ctx, projectID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("assignment: load visitor: %w", err)
	}

	session, err := e.getOrCreateSession(ctx, projectID, visitor, opts.PlatformID)
	if err != nil {
		return nil, fmt.Errorf("assignment: get or create session: %w", err)
	}
	previousStaffID := session.StaffID

	rule, err := e.store.GetAssignmentRule(ctx, projectID)
	if err != nil {
		if _, ok := err.(*store.ErrNotFound); !ok {
			return nil, fmt.Errorf("assignment: load rule: %w", err)
		}
		rule = nil
	}

	hist := &models.VisitorAssignmentHistory{
		ID:                uuid.NewString(),
		ProjectID:         projectID,
		VisitorID:         visitorID,
		SessionID:         session.ID,
		PreviousStaffID:   previousStaffID,
		AssignedByStaffID: opts.AssignedByStaff,
		Source:            opts.Source,
		VisitorMessage:    opts.VisitorMessage,
		Notes:             opts.Notes,
		CreatedAt:         time.Now(),
	}

	assignedStaffID, candidates, err := e.resolveStaff(ctx, projectID, visitor, session, rule, opts, hist)
	if err != nil {
		return nil, err
	}
	hist.CandidateStaffIDs = candidateIDs(candidates)

	result := &TransferResult{Session: session, CandidateIDs: hist.CandidateStaffIDs}

	switch {
	case assignedStaffID != "":
		session.StaffID = assignedStaffID
		if err := e.store.UpdateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("assignment: update session: %w", err)
		}
		visitor.ServiceStatus = models.ServiceStatusActive
		if err := e.store.UpsertVisitor(ctx, visitor); err != nil {
			return nil, fmt.Errorf("assignment: update visitor: %w", err)
		}
		hist.AssignedStaffID = assignedStaffID
		if err := e.store.AppendAssignmentHistory(ctx, hist); err != nil {
			return nil, fmt.Errorf("assignment: append history: %w", err)
		}

		if err := e.notifier.SeatOperator(ctx, projectID, visitorID, assignedStaffID); err != nil {
			return nil, fmt.Errorf("assignment: seat operator: %w", err)
		}
		if opts.SendNotification {
			_ = e.notifier.EmitStaffAssigned(ctx, projectID, visitorID, assignedStaffID)
		}

		result.Outcome = OutcomeAssigned
		result.AssignedStaff = assignedStaffID
		result.Reason = "assigned"
		return result, nil

	case opts.AllowQueue:
		entry, position, err := e.enqueue(ctx, projectID, visitorID, session, opts, rule)
		if err != nil {
			return nil, err
		}
		visitor.ServiceStatus = models.ServiceStatusQueued
		if err := e.store.UpsertVisitor(ctx, visitor); err != nil {
			return nil, fmt.Errorf("assignment: update visitor: %w", err)
		}
		if err := e.store.AppendAssignmentHistory(ctx, hist); err != nil {
			return nil, fmt.Errorf("assignment: append history: %w", err)
		}
		_ = e.notifier.EmitQueueUpdated(ctx, projectID, position)

		result.Outcome = OutcomeQueued
		result.QueueEntry = entry
		result.QueuePosition = position
		result.Reason = "no available staff, queued"
		return result, nil

	default:
		if err := e.store.AppendAssignmentHistory(ctx, hist); err != nil {
			return nil, fmt.Errorf("assignment: append history: %w", err)
		}
		result.Outcome = OutcomeRefused
		result.Reason = "no available staff, queueing disallowed"
		return result, nil
	}
}

func (e *Engine) getOrCreateSession(ctx context.Context, projectID string, visitor *models.Visitor, platformID string) (*models.VisitorSession, error) {
	session, err := e.store.GetOpenSession(ctx, projectID, visitor.ID)
	if err == nil {
		return session, nil
	}
	if _, ok := err.(*store.ErrNotFound); !ok {
		return nil, err
	}

	if platformID == "" {
		platformID = visitor.PlatformID
	}
	session = &models.VisitorSession{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		VisitorID:  visitor.ID,
		PlatformID: platformID,
		Status:     models.SessionOpen,
		CreatedAt:  time.Now(),
	}
	if err := e.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// resolveStaff runs steps 1-5 of the policy chain and records the LLM
// prompt/response/reasoning onto hist regardless of whether its pick
// was ultimately honored.
func (e *Engine) resolveStaff(ctx context.Context, projectID string, visitor *models.Visitor, session *models.VisitorSession, rule *models.VisitorAssignmentRule, opts TransferOptions, hist *models.VisitorAssignmentHistory) (string, []candidate, error) {
	if opts.TargetStaffID != "" {
		target, err := e.store.GetStaff(ctx, projectID, opts.TargetStaffID)
		if err == nil {
			return target.ID, []candidate{{staff: *target}}, nil
		}
		if _, ok := err.(*store.ErrNotFound); !ok {
			return "", nil, fmt.Errorf("assignment: load target staff: %w", err)
		}
		// Falls through to auto-assignment when the target doesn't exist.
	}

	candidates, err := availableCandidates(ctx, e.store, projectID, rule, time.Now())
	if err != nil {
		return "", nil, fmt.Errorf("assignment: compute candidates: %w", err)
	}
	if len(candidates) == 0 {
		return "", nil, nil
	}
	if len(candidates) == 1 {
		return candidates[0].staff.ID, candidates, nil
	}

	if lastStaff, err := e.store.GetLastStaffForVisitor(ctx, projectID, visitor.ID); err == nil {
		if affinity := lastOperatorAffinity(lastStaff, candidates); affinity != "" {
			return affinity, candidates, nil
		}
	}

	if rule != nil && rule.LLMAssignmentEnabled && rule.AIProviderID != "" {
		selection, err := e.llm.selectCandidate(ctx, rule, opts.VisitorMessage, candidates)
		hist.ModelUsed = selection.ModelUsed
		hist.PromptUsed = selection.PromptUsed
		hist.LLMResponse = selection.RawResponse
		if err == nil && candidateHasID(candidates, selection.SelectedStaffID) {
			hist.Reasoning = selection.Reasoning
			return selection.SelectedStaffID, candidates, nil
		}
		if err != nil {
			hist.Reasoning = fmt.Sprintf("LLM assignment failed, fallback to load balancing: %v", err)
		} else {
			hist.Reasoning = fmt.Sprintf("LLM returned invalid staff id, fallback to load balancing. Original: %s", selection.Reasoning)
		}
	}

	return loadBalance(candidates), candidates, nil
}

func (e *Engine) enqueue(ctx context.Context, projectID, visitorID string, session *models.VisitorSession, opts TransferOptions, rule *models.VisitorAssignmentRule) (*models.VisitorWaitingQueue, int, error) {
	if existing, err := e.store.GetWaitingEntry(ctx, projectID, visitorID); err == nil {
		return existing, existing.Position, nil
	}

	count, err := e.store.CountWaiting(ctx, projectID)
	if err != nil {
		return nil, 0, fmt.Errorf("assignment: count waiting: %w", err)
	}
	position := count + 1

	timeout := e.cfg.QueueDefaultTimeoutMinutes
	if rule != nil && rule.QueueWaitTimeoutMinutes > 0 {
		timeout = rule.QueueWaitTimeoutMinutes
	}

	entry := &models.VisitorWaitingQueue{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		VisitorID:      visitorID,
		SessionID:      session.ID,
		Source:         "no_staff",
		Position:       position,
		Status:         models.QueueWaiting,
		VisitorMessage: opts.VisitorMessage,
		Reason:         "No available staff",
		ExpiredAt:      time.Now().Add(time.Duration(timeout) * time.Minute),
		CreatedAt:      time.Now(),
	}
	if err := e.store.CreateWaitingEntry(ctx, entry); err != nil {
		if _, ok := err.(*store.ErrDuplicateMessage); ok {
			if existing, gerr := e.store.GetWaitingEntry(ctx, projectID, visitorID); gerr == nil {
				return existing, existing.Position, nil
			}
		}
		return nil, 0, fmt.Errorf("assignment: create waiting entry: %w", err)
	}
	return entry, position, nil
}

// CancelVisitorFromQueue flips a visitor's WAITING row to CANCELLED.
func (e *Engine) CancelVisitorFromQueue(ctx context.Context, projectID, visitorID string) error {
	entry, err := e.store.GetWaitingEntry(ctx, projectID, visitorID)
	if err != nil {
		return fmt.Errorf("assignment: load waiting entry: %w", err)
	}
	entry.Status = models.QueueCancelled
	if err := e.store.UpdateWaitingEntry(ctx, entry); err != nil {
		return fmt.Errorf("assignment: cancel waiting entry: %w", err)
	}
	return nil
}

// AssignFromWaitingQueue pops the highest-priority, lowest-position
// WAITING row and runs the same transfer flow with target_staff = staff.
func (e *Engine) AssignFromWaitingQueue(ctx context.Context, projectID, staffID string) (*TransferResult, error) {
	entries, err := e.store.ListWaitingOrdered(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("assignment: list waiting: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	entry := entries[0]

	entry.Status = models.QueueAssigned
	if err := e.store.UpdateWaitingEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("assignment: mark waiting entry assigned: %w", err)
	}

	return e.TransferToStaff(ctx, projectID, entry.VisitorID, TransferOptions{
		Source:           models.AssignmentTransfer,
		TargetStaffID:    staffID,
		AllowQueue:       false,
		SendNotification: true,
	})
}
