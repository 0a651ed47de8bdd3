// Package assist suggests override mappings for Catalog B rows the
// reconciliation engine could not match. Suggestions are advisory output
// for a human to review and copy into the overrides mapping; they are
// never applied automatically.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"uitf-catalog/internal/models"
)

// LLMClient is the completion surface the suggester needs.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIClient implements LLMClient using the OpenAI API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI LLM client.
func NewOpenAIClient(apiKey string, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CompleteWithSystem sends a prompt with a system message to the LLM.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// Suggestion is one proposed override mapping with the model's reasoning.
type Suggestion struct {
	FundName   string `json:"fund_name"`
	Symbol     string `json:"symbol"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

// Suggester proposes override candidates for unmatched Catalog B rows.
type Suggester struct {
	llm LLMClient
}

// New creates a suggester.
func New(llm LLMClient) *Suggester {
	return &Suggester{llm: llm}
}

const systemPrompt = `You match Philippine investment fund records across two catalogs.
Given unmatched fund names and the available symbols with their fund names,
propose likely pairings. Only propose a pairing when the names plausibly
refer to the same fund. Respond with a JSON array of objects with keys
fund_name, symbol, confidence (high/medium/low) and reason. Respond with
[] when nothing matches.`

// Suggest asks the model for override candidates pairing unmatched Catalog B
// rows with unmatched Catalog A funds.
func (s *Suggester) Suggest(ctx context.Context, unmatchedB []models.FundInfo, unmatchedA []models.Fund) ([]Suggestion, error) {
	if len(unmatchedB) == 0 || len(unmatchedA) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Unmatched fund records:\n")
	for _, info := range unmatchedB {
		fmt.Fprintf(&b, "- %s (%s, %s)\n", info.FundName, info.Bank, info.Currency)
	}
	b.WriteString("\nAvailable symbols:\n")
	for _, f := range unmatchedA {
		fmt.Fprintf(&b, "- %s: %s (%s, %s)\n", f.Symbol, f.Name, f.Bank, f.Currency)
	}

	raw, err := s.llm.CompleteWithSystem(ctx, systemPrompt, b.String())
	if err != nil {
		return nil, err
	}
	return parseSuggestions(raw)
}

// parseSuggestions decodes the model's JSON reply, tolerating a markdown
// code fence around it.
func parseSuggestions(raw string) ([]Suggestion, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return nil, fmt.Errorf("unparseable suggestion reply: %w", err)
	}
	return suggestions, nil
}
