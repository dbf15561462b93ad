package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

const maxTitleWords = 12

// Client rewrites scraped listing titles into short English summaries.
// A nil *Client is valid and leaves titles untouched.
type Client struct {
	generate func(ctx context.Context, prompt string) (string, error)
}

type titleResult struct {
	CleanTitle string `json:"clean_title"`
}

func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"clean_title": {
					Type:        genai.TypeString,
					Description: "A short English title for the rental, e.g. \"2-room flat, Oudegracht, 65 m²\". No prices, no agency names.",
				},
			},
			Required: []string{"clean_title"},
		},
	}

	return &Client{
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, modelID, genai.Text(prompt), genConfig)
			if err != nil {
				return "", fmt.Errorf("gemini generation failed: %w", err)
			}
			return resp.Text(), nil
		},
	}, nil
}

// CleanTitle returns an enriched title for l, or "" when the client is nil.
func (c *Client) CleanTitle(ctx context.Context, l models.Listing) (string, error) {
	if c == nil || c.generate == nil {
		return "", nil
	}
	text, err := c.generate(ctx, buildPrompt(l))
	if err != nil {
		return "", err
	}
	return parseTitle(text)
}

func buildPrompt(l models.Listing) string {
	return fmt.Sprintf(`
Rewrite this rental listing title for a notification:
Title: %q
Location: %q
Price: %q

Task: produce a clean, concise English title (at most %d words) describing the property type, street or neighbourhood and size if known.

Output JSON adhering to the schema.
`, l.Title, l.Location, l.RawPrice, maxTitleWords)
}

func parseTitle(text string) (string, error) {
	jsonStr := strings.TrimSpace(text)
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")

	var result titleResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(jsonStr)), &result); err != nil {
		return "", fmt.Errorf("failed to parse gemini response: %w", err)
	}
	title := strings.Join(strings.Fields(result.CleanTitle), " ")
	if title == "" {
		return "", fmt.Errorf("gemini returned an empty title")
	}
	return title, nil
}
