package assignment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/pkg/models"
)

// llmSelection is the structured result of the multi-candidate
// resolution step (spec §4.8 step 4). Reasoning/RawResponse are carried
// through to VisitorAssignmentHistory regardless of whether the LLM's
// choice was honored or overridden by a fallback.
type llmSelection struct {
	SelectedStaffID string
	Reasoning       string
	RawResponse     string
	ModelUsed       string
	PromptUsed      string
}

// llmResolver asks a chat-completion backend to choose among candidates.
// Any error, malformed JSON, or an id outside the candidate set is the
// caller's cue to fall back to load-balancing — this type never does
// that itself, it just reports what happened.
type llmResolver interface {
	selectCandidate(ctx context.Context, rule *models.VisitorAssignmentRule, visitorMessage string, candidates []candidate) (llmSelection, error)
}

// chatCompletionResolver is grounded on the embedding package's
// OpenAI-compatible HTTP client shape (internal/embedding/openai.go),
// pointed at a chat-completions endpoint instead of embeddings.
type chatCompletionResolver struct {
	cfg        config.AssignmentConfig
	httpClient *http.Client
}

func newChatCompletionResolver(cfg config.AssignmentConfig) *chatCompletionResolver {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &chatCompletionResolver{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type llmAssignmentDecision struct {
	SelectedStaffID string `json:"selected_staff_id"`
	Reasoning       string `json:"reasoning"`
}

func (r *chatCompletionResolver) selectCandidate(ctx context.Context, rule *models.VisitorAssignmentRule, visitorMessage string, candidates []candidate) (llmSelection, error) {
	if r.cfg.APIKey == "" {
		return llmSelection{}, fmt.Errorf("assignment: no LLM backend configured")
	}

	model := rule.Model
	if model == "" {
		model = r.cfg.DefaultModel
	}
	systemPrompt := rule.EffectivePrompt
	if systemPrompt == "" {
		systemPrompt = "You are dispatching a support conversation to the best available staff member."
	}
	userMessage := buildAssignmentPrompt(visitorMessage, candidates)

	reqBody, err := json.Marshal(chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return llmSelection{}, fmt.Errorf("marshal chat completion request: %w", err)
	}

	baseURL := r.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return llmSelection{}, fmt.Errorf("build chat completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	selection := llmSelection{ModelUsed: model, PromptUsed: "System: " + systemPrompt + "\n\nUser: " + userMessage}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return selection, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return selection, fmt.Errorf("read chat completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return selection, fmt.Errorf("chat completion API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return selection, fmt.Errorf("unmarshal chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return selection, fmt.Errorf("chat completion: empty choices")
	}
	selection.RawResponse = parsed.Choices[0].Message.Content

	decision, err := parseAssignmentDecision(selection.RawResponse)
	if err != nil {
		return selection, err
	}
	selection.SelectedStaffID = decision.SelectedStaffID
	selection.Reasoning = decision.Reasoning
	return selection, nil
}

// parseAssignmentDecision strips a ```json fenced block if present, then
// unmarshals the {selected_staff_id, reasoning} object (spec §4.8 step 4).
func parseAssignmentDecision(content string) (llmAssignmentDecision, error) {
	body := content
	if idx := strings.Index(body, "```"); idx != -1 {
		rest := body[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end != -1 {
			body = rest[:end]
		}
	}
	body = strings.TrimSpace(body)

	var decision llmAssignmentDecision
	if err := json.Unmarshal([]byte(body), &decision); err != nil {
		return llmAssignmentDecision{}, fmt.Errorf("parse LLM assignment decision: %w", err)
	}
	return decision, nil
}

func buildAssignmentPrompt(visitorMessage string, candidates []candidate) string {
	var b strings.Builder
	b.WriteString("Available staff:\n")
	for i, c := range candidates {
		name := c.staff.Name
		if name == "" {
			name = c.staff.Nickname
		}
		if name == "" {
			name = "Staff_" + c.staff.ID
		}
		desc := c.staff.Description
		if desc == "" {
			desc = "No description available"
		}
		fmt.Fprintf(&b, "%d. ID: %s\n   Name: %s\n   Description: %s\n   Current chats: %d\n", i+1, c.staff.ID, name, desc, c.chatCount)
	}
	if visitorMessage != "" {
		b.WriteString("\nVisitor message: ")
		b.WriteString(visitorMessage)
	}
	b.WriteString("\n\nReturn JSON only: {\"selected_staff_id\": \"...\", \"reasoning\": \"...\"}")
	return b.String()
}

// candidateHasID reports whether a selected id is among this round's
// candidates — the validation gate before the LLM's pick is honored.
func candidateHasID(candidates []candidate, id string) bool {
	for _, c := range candidates {
		if c.staff.ID == id {
			return true
		}
	}
	return false
}
