package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/educhain/assistant/backend/internal/config"
	"github.com/educhain/assistant/backend/pkg/log"
)

// ArkCompleter runs prompts through an eino chain backed by an Ark chat model.
type ArkCompleter struct {
	system string
	chain  compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter creates the Ark chat model from cfg and compiles the chain.
func NewArkCompleter(ctx context.Context, cfg config.ArkConfig, system string) (*ArkCompleter, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChainCompleter(ctx, chatModel, system)
}

// NewChainCompleter compiles a system + user prompt chain around chatModel.
func NewChainCompleter(ctx context.Context, chatModel model.BaseChatModel, system string) (*ArkCompleter, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkCompleter{system: system, chain: runnable}, nil
}

// SystemPrompt returns the system message sent ahead of every query.
func (c *ArkCompleter) SystemPrompt() string {
	return c.system
}

// Complete sends prompt as the single user message.
func (c *ArkCompleter) Complete(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := c.chain.Invoke(ctx, map[string]any{
		"system": c.system,
		"query":  query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("%w: empty model message", ErrMalformedResponse)
	}

	l := log.Ctx(ctx)
	l.Debug().Int("length", len(resp.Content)).Msg("ark completion received")
	return resp.Content, nil
}
