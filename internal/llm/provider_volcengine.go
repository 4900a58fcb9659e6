package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeverse/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

//文档:https://www.volcengine.com/docs/82379/1298454

type Volcengine struct {
	BaseProvider

	client *arkruntime.Client
}

func NewVolcengine(cfg config.Config) (*Volcengine, error) {
	apiKey := strings.TrimSpace(cfg.VolcengineAPIKey)
	if apiKey == "" {
		return nil, errors.New("volcengine api key is not configured")
	}

	return &Volcengine{
		BaseProvider: BaseProvider{
			ID:           "volcengine",
			APIKey:       apiKey,
			DefaultModel: cfg.PoemModel,
		},
		client: arkruntime.NewClientWithApiKey(apiKey),
	}, nil
}

func (v *Volcengine) ComposePoem(ctx context.Context, request PoemRequest) (*PoemResponse, error) {
	model, err := v.ResolveModel(request.Model)
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
	chatReq := volcModel.CreateChatCompletionRequest{
		Model: model,
		Messages: []*volcModel.ChatCompletionMessage{
			{
				Role: volcModel.ChatMessageRoleUser,
				Content: &volcModel.ChatCompletionMessageContent{
					StringValue: volcengine.String(prompt),
				},
			},
		},
	}

	resp, err := v.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		logrus.WithError(err).Error("volcengine chat completion failed")
		return nil, fmt.Errorf("volcengine chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return nil, errors.New("volcengine response has no choices")
	}

	poem := strings.TrimSpace(volcengine.StringValue(resp.Choices[0].Message.Content.StringValue))
	if poem == "" {
		return nil, errors.New("volcengine response text is empty")
	}

	return &PoemResponse{
		Poem:     poem,
		Provider: v.ProviderID(),
		Model:    model,
	}, nil
}
