package channelfabric

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

// Adapter implements assignment.ChannelNotifier on top of the messaging
// substrate, grounded on
// original_source/repos/tgo-api/app/services/transfer_service.py's
// _add_staff_to_channel (spec §4.9).
type Adapter struct {
	store     store.Store
	substrate *substrateClient
	events    *eventStreamClient
}

// NewAdapter builds the adapter and starts its event-stream listener (a
// no-op if cfg.EventStreamURL is empty).
func NewAdapter(s store.Store, cfg config.ChannelFabricConfig) *Adapter {
	a := &Adapter{store: s, substrate: newSubstrateClient(cfg)}
	a.events = newEventStreamClient(cfg.EventStreamURL, cfg.APIKey, a.handleSubstrateEvent)
	a.events.Connect()
	return a
}

func (a *Adapter) handleSubstrateEvent(evt substrateEvent) {
	log.Debug().Str("type", evt.Type).Str("channel_id", evt.ChannelID).Msg("channelfabric: substrate event received")
}

// SeatOperator removes any other staff member from the visitor's channel,
// ensures the assigned staff has a membership row, and mirrors both
// changes onto the substrate. Tolerates missing/duplicate subscriber ops
// on the substrate side (spec §4.9: membership is DB-authoritative).
func (a *Adapter) SeatOperator(ctx context.Context, projectID, visitorID, staffID string) error {
	channelID := visitorChannelID(visitorID)

	existing, err := a.store.ListActiveMembers(ctx, channelID)
	if err != nil {
		return fmt.Errorf("channelfabric: list active members: %w", err)
	}

	for _, mem := range existing {
		if mem.MemberType != models.MemberStaff || mem.MemberID == staffID {
			continue
		}
		oldUID := staffUID(mem.MemberID)
		if err := a.substrate.removeChannelSubscribers(ctx, channelID, ChannelTypeCustomerService, []string{oldUID}); err != nil {
			log.Warn().Err(err).Str("staff_id", mem.MemberID).Msg("channelfabric: failed to remove old staff subscriber")
		}
	}
	if err := a.store.SoftDeleteOtherStaffMembers(ctx, channelID, staffID); err != nil {
		return fmt.Errorf("channelfabric: soft-delete prior staff members: %w", err)
	}

	alreadyMember := false
	for _, mem := range existing {
		if mem.MemberType == models.MemberStaff && mem.MemberID == staffID {
			alreadyMember = true
			break
		}
	}
	if !alreadyMember {
		member := &models.ChannelMember{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			ChannelID:   channelID,
			ChannelType: ChannelTypeCustomerService,
			MemberID:    staffID,
			MemberType:  models.MemberStaff,
		}
		if err := a.store.UpsertChannelMember(ctx, member); err != nil {
			return fmt.Errorf("channelfabric: upsert channel member: %w", err)
		}
	}

	if err := a.substrate.addChannelSubscribers(ctx, channelID, ChannelTypeCustomerService, []string{staffUID(staffID)}); err != nil {
		log.Warn().Err(err).Str("staff_id", staffID).Msg("channelfabric: failed to add staff subscriber on substrate")
	}
	return nil
}

// EmitStaffAssigned sends the "staff assigned" system message (spec
// §4.9, message type 1000) on the visitor's channel.
func (a *Adapter) EmitStaffAssigned(ctx context.Context, projectID, visitorID, staffID string) error {
	staff, err := a.store.GetStaff(ctx, projectID, staffID)
	displayName := staffID
	if err == nil {
		if staff.Name != "" {
			displayName = staff.Name
		} else if staff.Nickname != "" {
			displayName = staff.Nickname
		}
	}

	channelID := visitorChannelID(visitorID)
	content := fmt.Sprintf("%s has joined the conversation", displayName)
	extra := []map[string]any{{"staff_id": staffID, "staff_name": displayName}}
	_, sendErr := a.substrate.sendSystemMessage(ctx, channelID, ChannelTypeCustomerService, MsgTypeStaffAssigned, content, extra)
	return sendErr
}

// EmitSessionClosed sends the "session closed" system message (message
// type 1001).
func (a *Adapter) EmitSessionClosed(ctx context.Context, visitorID, reason string) error {
	channelID := visitorChannelID(visitorID)
	extra := []map[string]any{{"reason": reason}}
	_, err := a.substrate.sendSystemMessage(ctx, channelID, ChannelTypeCustomerService, MsgTypeSessionClosed, "This conversation has been closed", extra)
	return err
}

// EmitSessionTransferred sends the "session transferred" system message
// (message type 1002).
func (a *Adapter) EmitSessionTransferred(ctx context.Context, visitorID, fromStaffID, toStaffID string) error {
	channelID := visitorChannelID(visitorID)
	extra := []map[string]any{{"from_staff_id": fromStaffID, "to_staff_id": toStaffID}}
	_, err := a.substrate.sendSystemMessage(ctx, channelID, ChannelTypeCustomerService, MsgTypeSessionTransferred, "This conversation has been transferred", extra)
	return err
}

// EmitQueueUpdated pushes a queue.updated event to the project's staff
// channel so connected operator clients can refresh queue counts.
func (a *Adapter) EmitQueueUpdated(ctx context.Context, projectID string, waitingCount int) error {
	channelID := projectStaffChannelID(projectID)
	data := map[string]any{"waiting_count": waitingCount}
	return a.substrate.sendEvent(ctx, channelID, ChannelTypeProjectStaff, EventQueueUpdated, data, uuid.NewString())
}

// EmitVisitorProfileUpdated pushes a visitor.profile.updated event to the
// visitor's own channel.
func (a *Adapter) EmitVisitorProfileUpdated(ctx context.Context, visitorID string, profile map[string]any) error {
	channelID := visitorChannelID(visitorID)
	return a.substrate.sendEvent(ctx, channelID, ChannelTypeCustomerService, EventVisitorProfileUpdated, profile, uuid.NewString())
}

// SearchMessages, SyncConversations, SetUnread, and KickDevice are thin
// pass-throughs to the substrate's own admin API, exposed here so HTTP
// handlers don't need their own substrate client.

func (a *Adapter) SearchMessages(ctx context.Context, uid, query string, limit int) (json.RawMessage, error) {
	return a.substrate.searchMessages(ctx, uid, query, limit)
}

func (a *Adapter) SyncConversations(ctx context.Context, uid string) (json.RawMessage, error) {
	return a.substrate.syncConversations(ctx, uid)
}

func (a *Adapter) SetUnread(ctx context.Context, uid, channelID string, channelType, unread int) error {
	return a.substrate.setConversationUnread(ctx, uid, channelID, channelType, unread)
}

func (a *Adapter) KickDevice(ctx context.Context, uid, deviceFlag string) error {
	return a.substrate.kickDevice(ctx, uid, deviceFlag)
}

// Close shuts down the event-stream connection.
func (a *Adapter) Close() error {
	return a.events.Close()
}
