package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/pkg/models"
)

func TestParseAssignmentDecisionPlainJSON(t *testing.T) {
	decision, err := parseAssignmentDecision(`{"selected_staff_id": "staff-1", "reasoning": "best fit"}`)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", decision.SelectedStaffID)
	assert.Equal(t, "best fit", decision.Reasoning)
}

func TestParseAssignmentDecisionStripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"selected_staff_id\": \"staff-2\", \"reasoning\": \"load\"}\n```"
	decision, err := parseAssignmentDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, "staff-2", decision.SelectedStaffID)
}

func TestParseAssignmentDecisionRejectsGarbage(t *testing.T) {
	_, err := parseAssignmentDecision("not json at all")
	assert.Error(t, err)
}

func TestCandidateHasID(t *testing.T) {
	candidates := []candidate{{staff: models.Staff{ID: "a"}}, {staff: models.Staff{ID: "b"}}}
	assert.True(t, candidateHasID(candidates, "a"))
	assert.False(t, candidateHasID(candidates, "z"))
}

func TestBuildAssignmentPromptListsCandidatesAndMessage(t *testing.T) {
	candidates := []candidate{
		{staff: models.Staff{ID: "s1", Name: "Alice", Description: "billing"}, chatCount: 3},
	}
	prompt := buildAssignmentPrompt("my order is late", candidates)
	assert.Contains(t, prompt, "Alice")
	assert.Contains(t, prompt, "billing")
	assert.Contains(t, prompt, "my order is late")
	assert.Contains(t, prompt, "selected_staff_id")
}
