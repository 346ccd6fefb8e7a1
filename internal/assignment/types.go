// Package assignment implements the human-routing decision chain that
// turns "transfer this visitor to staff" into a concrete staff_id, a
// queue position, or an outright refusal (spec §4.8).
package assignment

import (
	"context"

	"github.com/deskwise/deskwise/pkg/models"
)

// Outcome is the closed set of results transfer_to_staff can produce.
type Outcome string

const (
	OutcomeAssigned Outcome = "assigned"
	OutcomeQueued   Outcome = "queued"
	OutcomeRefused  Outcome = "refused"
)

// TransferResult reports what happened to a transfer_to_staff call.
type TransferResult struct {
	Outcome        Outcome
	Session        *models.VisitorSession
	AssignedStaff  string
	QueuePosition  int
	QueueEntry     *models.VisitorWaitingQueue
	CandidateIDs   []string
	Reason         string
}

// TransferOptions mirrors the knobs transfer_to_staff accepts beyond the
// visitor/project pair (spec §4.8).
type TransferOptions struct {
	Source           models.AssignmentSource
	VisitorMessage   string
	AssignedByStaff  string
	TargetStaffID    string
	PlatformID       string
	Notes            string
	AllowQueue       bool
	SendNotification bool
}

// ChannelNotifier is the narrow slice of the Channel Fabric Adapter (C9)
// the Assignment Engine needs: seating the assigned operator on the
// visitor's channel and telling them about it. Defined here, at the
// point of use, so this package has no compile-time dependency on the
// messaging substrate; internal/channelfabric.Adapter satisfies it.
type ChannelNotifier interface {
	SeatOperator(ctx context.Context, projectID, visitorID, staffID string) error
	EmitStaffAssigned(ctx context.Context, projectID, visitorID, staffID string) error
	EmitQueueUpdated(ctx context.Context, projectID string, waitingCount int) error
}

// noopNotifier is used when the caller wires no ChannelNotifier — side
// effects on the messaging substrate are skipped but the transfer itself
// still completes (the database state is authoritative).
type noopNotifier struct{}

func (noopNotifier) SeatOperator(ctx context.Context, projectID, visitorID, staffID string) error {
	return nil
}
func (noopNotifier) EmitStaffAssigned(ctx context.Context, projectID, visitorID, staffID string) error {
	return nil
}
func (noopNotifier) EmitQueueUpdated(ctx context.Context, projectID string, waitingCount int) error {
	return nil
}
