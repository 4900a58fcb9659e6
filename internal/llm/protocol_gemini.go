package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// Gemini uses a Google-style endpoint instead of the OpenAI-compatible one.
// We keep the request/response contracts local so future Gemini-flavored
// providers can call a single helper without duplicating glue code.
const geminiGenerateEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// Request payload pieces ----------------------------------------------------
type (
	geminiPart struct {
		Text string `json:"text,omitempty"`
	}
	geminiContent struct {
		Role  string       `json:"role,omitempty"`
		Parts []geminiPart `json:"parts"`
	}
	geminiRequest struct {
		Contents []geminiContent `json:"contents"`
	}
)

// Response payload pieces ---------------------------------------------------
type (
	geminiCandidate struct {
		FinishReason string        `json:"finishReason,omitempty"`
		Content      geminiContent `json:"content"`
	}
	geminiError struct {
		Message string `json:"message"`
	}
	geminiResponse struct {
		Candidates []geminiCandidate `json:"candidates"`
		Error      *geminiError      `json:"error,omitempty"`
	}
)

// ComposePoemByGeminiProtocol 调 Gemini generateContent 接口，拼接所有文本分片。
func ComposePoemByGeminiProtocol(ctx context.Context, apiKey, endpoint, model, prompt string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", errors.New("api key missing")
	}
	if strings.TrimSpace(model) == "" {
		return "", errors.New("model is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is empty")
	}

	logrus.WithFields(logrus.Fields{
		"model":         model,
		"prompt_length": len(prompt),
	}).Info("gemini_compose_start")

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: prompt}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini marshal request: %w", err)
	}

	targetURL := resolveGeminiEndpoint(endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("gemini create request: %w", err)
	}
	// Prefer header to avoid logging API key inside URLs; most gateways accept this.
	req.Header.Set("x-goog-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	httpCli := &http.Client{Timeout: 0}
	resp, err := httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   buf.String(),
		}).Error("gemini compose http error")
		return "", fmt.Errorf("gemini http %d: %s", resp.StatusCode, buf.String())
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("gemini decode response: %w", err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return "", fmt.Errorf("gemini error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return "", errors.New("gemini response has no candidates")
	}

	var text string
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Text != "" {
			text = appendLine(text, part.Text)
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini response did not include text")
	}
	return strings.TrimSpace(text), nil
}

// appendLine concatenates messages with newlines, avoiding empty prefixes.
func appendLine(current, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return current
	}
	if strings.TrimSpace(current) == "" {
		return next
	}
	return current + "\n" + next
}

// resolveGeminiEndpoint builds the request URL from a provided endpoint template or base URL.
// - If endpoint contains "%s", it is treated as a fmt template and will be formatted with model.
// - If endpoint is a bare base URL, the default Gemini suffix is appended.
// - If empty, fall back to the public Gemini endpoint.
func resolveGeminiEndpoint(endpoint, model string) string {
	base := strings.TrimSpace(endpoint)
	if base == "" {
		return fmt.Sprintf(geminiGenerateEndpoint, model)
	}

	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, model)
	}

	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, model)
}
