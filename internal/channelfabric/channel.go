// Package channelfabric owns channel membership and system notifications
// on top of the messaging substrate (spec §4.9).
package channelfabric

// Channel type constants, mirrored from the messaging substrate's own
// numbering (spec §4.9, grounded on
// original_source/repos/tgo-api/app/services/transfer_service.py's
// CHANNEL_TYPE_CUSTOMER_SERVICE / CHANNEL_TYPE_PROJECT_STAFF usage).
const (
	ChannelTypeCustomerService = 1
	ChannelTypeProjectStaff    = 2
)

// System message types (1000-2000 reserved for system notifications,
// spec §4.9).
const (
	MsgTypeStaffAssigned      = 1000
	MsgTypeSessionClosed      = 1001
	MsgTypeSessionTransferred = 1002
)

// Event types for real-time, non-message notifications (spec §4.9).
const (
	EventVisitorProfileUpdated = "visitor.profile.updated"
	EventQueueUpdated          = "queue.updated"
)

const staffUIDSuffix = "-staff"

func visitorChannelID(visitorID string) string {
	return "visitor:" + visitorID
}

func projectStaffChannelID(projectID string) string {
	return "project-staff:" + projectID
}

func staffUID(staffID string) string {
	return staffID + staffUIDSuffix
}
