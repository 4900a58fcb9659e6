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

type oaMessage struct {
	Role    string `json:"role"` // "user"
	Content string `json:"content"`
}

type oaRequest struct {
	Model    string      `json:"model"`
	Messages []oaMessage `json:"messages"`
	Stream   bool        `json:"stream"`
}

type oaChoice struct {
	Message      oaMessage `json:"message"`
	FinishReason string    `json:"finish_reason"`
	Index        int       `json:"index"`
}

type oaError struct {
	Message string `json:"message"`
}

type oaResponse struct {
	Choices []oaChoice `json:"choices"`
	Error   *oaError   `json:"error,omitempty"`
}

// ComposePoemByOpenaiProtocol 调 OpenAI 兼容的 chat completions 接口，取第一条回复文本。
func ComposePoemByOpenaiProtocol(ctx context.Context, apiKey, baseURL, model, prompt string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", errors.New("api key missing")
	}

	logrus.WithFields(logrus.Fields{
		"model":         model,
		"prompt_length": len(prompt),
	}).Info("openai_protocol_compose_start")

	reqBody := oaRequest{
		Model:    model,
		Messages: []oaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}

	bs, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(bs))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	// 超时交给上层 ctx 控制
	httpCli := &http.Client{Timeout: 0}
	resp, err := httpCli.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		logrus.WithFields(logrus.Fields{
			"baseURL": baseURL,
			"status":  resp.StatusCode,
			"body":    buf.String(),
		}).Error("openai protocol compose failed")
		return "", fmt.Errorf("chat completions http %d: %s", resp.StatusCode, buf.String())
	}

	var parsed oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return "", fmt.Errorf("chat completions error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion text")
	}
	return text, nil
}
