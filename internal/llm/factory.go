package llm

import (
	"fmt"
	"strings"

	"codeverse/internal/config"
)

// NewService instantiates a PoemService implementation for the configured provider.
func NewService(cfg config.Config) (PoemService, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.PoemProvider))

	switch driver {
	case "openrouter":
		return NewOpenRouter(cfg)
	case "gemini":
		return NewGemini(cfg)
	case "volcengine":
		return NewVolcengine(cfg)
	default:
		return nil, fmt.Errorf("unsupported poem provider: %s", cfg.PoemProvider)
	}
}
