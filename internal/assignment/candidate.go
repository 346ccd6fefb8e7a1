package assignment

import (
	"context"
	"sort"
	"time"

	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

// candidate pairs a staff row with its current open-chat count so
// load-balancing and the LLM prompt can both read it without a second
// round-trip to the store.
type candidate struct {
	staff     models.Staff
	chatCount int
}

// withinServiceWindow evaluates a rule's weekday/time window in the
// rule's own timezone (spec §4.8: "default to always in service" when
// the rule or window is absent). ServiceWeekdays uses 0=Sunday..6=Saturday
// per models.VisitorAssignmentRule's convention.
func withinServiceWindow(rule *models.VisitorAssignmentRule, now time.Time) bool {
	if rule == nil {
		return true
	}

	loc := time.UTC
	if rule.Timezone != "" {
		if l, err := time.LoadLocation(rule.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)

	if len(rule.ServiceWeekdays) > 0 {
		weekday := int(local.Weekday())
		found := false
		for _, d := range rule.ServiceWeekdays {
			if d == weekday {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if rule.ServiceStartTime == "" || rule.ServiceEndTime == "" {
		return true
	}
	start, ok1 := parseClock(rule.ServiceStartTime)
	end, ok2 := parseClock(rule.ServiceEndTime)
	if !ok1 || !ok2 {
		return true
	}
	cur := local.Hour()*60 + local.Minute()

	if start <= end {
		return cur >= start && cur <= end
	}
	// Overnight window, e.g. 22:00-06:00.
	return cur >= start || cur <= end
}

func parseClock(hhmm string) (minutes int, ok bool) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, false
	}
	h := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	m := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// availableCandidates computes spec §4.8 step 2: active, not paused, not
// deleted, role "user", and under the rule's max_concurrent_chats cap.
// Returns nil (not an error) when the project is outside its service
// window or nobody qualifies.
func availableCandidates(ctx context.Context, s store.Store, projectID string, rule *models.VisitorAssignmentRule, now time.Time) ([]candidate, error) {
	if !withinServiceWindow(rule, now) {
		return nil, nil
	}

	staff, err := s.ListStaff(ctx, projectID)
	if err != nil {
		return nil, err
	}

	maxConcurrent := 0
	if rule != nil {
		maxConcurrent = rule.MaxConcurrentChats
	}

	var out []candidate
	for _, st := range staff {
		if !st.Eligible() {
			continue
		}
		count, err := s.CountOpenSessionsByStaff(ctx, projectID, st.ID)
		if err != nil {
			return nil, err
		}
		if maxConcurrent > 0 && count >= maxConcurrent {
			continue
		}
		out = append(out, candidate{staff: st, chatCount: count})
	}
	return out, nil
}

// loadBalance picks the candidate with the lowest chat count, breaking
// ties deterministically by staff ID (spec §4.8 step 5).
func loadBalance(candidates []candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].chatCount != sorted[j].chatCount {
			return sorted[i].chatCount < sorted[j].chatCount
		}
		return sorted[i].staff.ID < sorted[j].staff.ID
	})
	return sorted[0].staff.ID
}

// lastOperatorAffinity returns the visitor's most recent non-empty
// StaffID among candidates, or "" if none applies (spec §4.8 step 3).
// Callers pass the StaffID of the visitor's most recently created staffed
// session, as returned by Store.GetLastStaffForVisitor.
func lastOperatorAffinity(priorStaffID string, candidates []candidate) string {
	if priorStaffID == "" {
		return ""
	}
	for _, c := range candidates {
		if c.staff.ID == priorStaffID {
			return priorStaffID
		}
	}
	return ""
}

func candidateIDs(candidates []candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.staff.ID
	}
	return ids
}
