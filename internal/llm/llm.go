package llm

import (
	"context"
	"errors"
	"strings"
)

// PoemRequest 描述一次诗歌生成请求的输入。
type PoemRequest struct {
	Code     string
	Language string
	Style    string
	Model    string
}

// PoemResponse 是服务商返回的生成结果。
type PoemResponse struct {
	Poem     string
	Provider string
	Model    string
}

// PoemService defines the interface for poem generation providers.
type PoemService interface {
	// ComposePoem performs synchronous poem generation.
	ComposePoem(ctx context.Context, request PoemRequest) (*PoemResponse, error)

	// ProviderID returns the stable identifier of the provider.
	ProviderID() string
}

// BaseProvider provides default implementations for common PoemService methods.
// Embed this in your provider implementations to avoid boilerplate.
type BaseProvider struct {
	ID           string
	APIKey       string
	DefaultModel string
}

func (b *BaseProvider) ProviderID() string {
	return b.ID
}

// ResolveModel picks the request model, falling back to the configured default.
func (b *BaseProvider) ResolveModel(requested string) (string, error) {
	model := strings.TrimSpace(requested)
	if model == "" {
		model = strings.TrimSpace(b.DefaultModel)
	}
	if model == "" {
		return "", errors.New("model is required")
	}
	return model, nil
}
