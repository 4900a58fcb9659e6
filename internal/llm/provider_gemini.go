package llm

import (
	"context"
	"errors"
	"strings"

	"codeverse/internal/config"

	"github.com/sirupsen/logrus"
)

type Gemini struct {
	BaseProvider
}

func NewGemini(cfg config.Config) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	return &Gemini{
		BaseProvider: BaseProvider{
			ID:           "gemini",
			APIKey:       apiKey,
			DefaultModel: cfg.PoemModel,
		},
	}, nil
}

func (g *Gemini) ComposePoem(ctx context.Context, request PoemRequest) (*PoemResponse, error) {
	model, err := g.ResolveModel(request.Model)
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
	poem, err := ComposePoemByGeminiProtocol(ctx, g.APIKey, "", model, prompt)
	if err != nil {
		return nil, err
	}

	return &PoemResponse{
		Poem:     poem,
		Provider: g.ProviderID(),
		Model:    model,
	}, nil
}
