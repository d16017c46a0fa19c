// Package llm calls the Gemini generateContent endpoint to pull structured
// lab test results out of free-text reports. The call is a single best-effort
// attempt: no retry, no backoff, and malformed responses degrade to an empty
// result set at the caller.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gyeh/paflow/internal/model"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// First JSON array literal in the response text, across newlines. The model
// is asked for a bare array but tends to wrap it in prose or code fences.
var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// Client is a minimal Gemini API client.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Gemini client. The API key is required; model defaults
// to gemini-1.5-flash and timeout to 30s when zero values are passed.
func NewClient(apiKey, modelName string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// ExtractLabTests asks the model for the required test results present in
// the report text and parses the first JSON array in the reply. A reply with
// no parsable array yields an empty slice, not an error; errors are reserved
// for transport and HTTP failures.
func (c *Client) ExtractLabTests(ctx context.Context, reportText string, requiredTests []string) ([]model.LabTestRow, error) {
	prompt := labExtractionPrompt(reportText, requiredTests)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini request failed with status %d", resp.StatusCode)
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		// Truncated or non-JSON body: treat as no extractable data.
		return nil, nil
	}

	var text string
	for _, cand := range envelope.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				text = p.Text
				break
			}
		}
		if text != "" {
			break
		}
	}

	return ParseTestArray(text), nil
}

// ParseTestArray extracts the first JSON array literal from free text and
// unmarshals it into lab test rows. Anything unparsable yields nil.
func ParseTestArray(text string) []model.LabTestRow {
	raw := jsonArrayPattern.FindString(text)
	if raw == "" {
		return nil
	}
	var rows []model.LabTestRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil
	}
	return rows
}
