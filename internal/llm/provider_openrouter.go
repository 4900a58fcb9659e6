package llm

import (
	"context"
	"errors"
	"strings"

	"codeverse/internal/config"

	"github.com/sirupsen/logrus"
)

type OpenRouter struct {
	BaseProvider

	endpoint string
}

func NewOpenRouter(cfg config.Config) (*OpenRouter, error) {
	apiKey := strings.TrimSpace(cfg.OpenRouterAPIKey)
	if apiKey == "" {
		return nil, errors.New("openrouter api key is not configured")
	}

	endpoint := strings.TrimSpace(cfg.OpenRouterBaseURL)
	if endpoint == "" {
		endpoint = "https://openrouter.ai/api/v1/chat/completions"
	}

	return &OpenRouter{
		BaseProvider: BaseProvider{
			ID:           "openrouter",
			APIKey:       apiKey,
			DefaultModel: cfg.PoemModel,
		},
		endpoint: endpoint,
	}, nil
}

func (o *OpenRouter) ComposePoem(ctx context.Context, request PoemRequest) (*PoemResponse, error) {
	model, err := o.ResolveModel(request.Model)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"model":       model,
		"language":    request.Language,
		"style":       NormalizeStyle(request.Style),
		"code_length": len(request.Code),
	}).Info("llm_compose_poem_start")

	prompt := BuildPoemPrompt(request)
	poem, err := ComposePoemByOpenaiProtocol(ctx, o.APIKey, o.endpoint, model, prompt)
	if err != nil {
		return nil, err
	}

	return &PoemResponse{
		Poem:     poem,
		Provider: o.ProviderID(),
		Model:    model,
	}, nil
}
