package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"unichatclient/internal/config"
	"unichatclient/internal/conversation"
	"unichatclient/internal/models"
)

const defaultClaudeMaxTokens = 3000

var defaultModels = map[string]string{
	"gemini": "gemini-2.5-flash",
	"openai": "gpt-4o-mini",
	"claude": "claude-3-5-haiku-latest",
}

// NewSessionFactory builds the remote model collaborator for the configured
// provider. Plain gemini uses native genai chats; everything else, and gemini
// with web search, goes through eino.
func NewSessionFactory(ctx context.Context, cfg *config.Config) (conversation.SessionFactory, error) {
	name := cfg.BasicConfig.Provider
	prov, err := cfg.Provider(name)
	if err != nil {
		return nil, err
	}
	if name == "gemini" && !prov.WebSearch {
		return NewGeminiChats(ctx, prov)
	}
	return NewEinoChats(ctx, name, prov)
}

func modelName(provider string, prov config.ProviderConfig) string {
	if prov.Model != "" {
		return prov.Model
	}
	return defaultModels[provider]
}

type generateFunc func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// EinoChats opens sessions backed by an eino chat model, optionally wrapped in
// a react agent that can search the web.
type EinoChats struct {
	generate     generateFunc
	systemPrompt string
}

func NewEinoChats(ctx context.Context, provider string, prov config.ProviderConfig) (*EinoChats, error) {
	var chatModel model.ToolCallingChatModel
	var err error
	name := modelName(provider, prov)

	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: prov.BaseURL,
			Model:   name,
			APIKey:  prov.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  prov.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create gemini client")
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  name,
		})
	case "claude":
		var baseURLPtr *string
		if prov.BaseURL != "" {
			baseURLPtr = &prov.BaseURL
		}
		maxTokens := prov.MaxTokens
		if maxTokens <= 0 {
			maxTokens = defaultClaudeMaxTokens
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    prov.APIKey,
			Model:     name,
			BaseURL:   baseURLPtr,
			MaxTokens: maxTokens,
		})
	default:
		return nil, errors.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "init %s chat model", provider)
	}

	var tools []tool.BaseTool
	if prov.WebSearch {
		if ws := InitWebSearch(ctx); ws != nil {
			tools = append(tools, ws)
		}
	}
	return newEinoChats(ctx, chatModel, tools, prov.SystemPrompt)
}

func newEinoChats(ctx context.Context, chatModel model.ToolCallingChatModel, tools []tool.BaseTool, systemPrompt string) (*EinoChats, error) {
	chats := &EinoChats{systemPrompt: systemPrompt}
	if len(tools) == 0 {
		chats.generate = func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
			return chatModel.Generate(ctx, input)
		}
		return chats, nil
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "init react agent")
	}
	log.Info().Int("tools", len(tools)).Msg("ai: chat model wrapped in react agent")
	chats.generate = func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return reactAgent.Generate(ctx, input)
	}
	return chats, nil
}

func (e *EinoChats) NewSession(ctx context.Context, history []models.HistoryEntry) (conversation.RemoteSession, error) {
	return &einoSession{
		generate: e.generate,
		history:  toSchemaMessages(e.systemPrompt, history),
	}, nil
}

type einoSession struct {
	mu       sync.Mutex
	generate generateFunc
	history  []*schema.Message
}

// SendTurn records the exchange in the session history only when it succeeds.
func (s *einoSession) SendTurn(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := make([]*schema.Message, 0, len(s.history)+1)
	input = append(input, s.history...)
	input = append(input, schema.UserMessage(text))

	resp, err := s.generate(ctx, input)
	if err != nil {
		return "", errors.Wrap(err, "generate reply")
	}
	if resp == nil {
		return "", errors.New("model returned no message")
	}
	s.history = append(input, schema.AssistantMessage(resp.Content, nil))
	return resp.Content, nil
}

func toSchemaMessages(systemPrompt string, history []models.HistoryEntry) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	if prompt := strings.TrimSpace(systemPrompt); prompt != "" {
		messages = append(messages, schema.SystemMessage(prompt))
	}
	for _, entry := range history {
		switch entry.Role {
		case models.HistoryModel:
			messages = append(messages, schema.AssistantMessage(entry.Text, nil))
		default:
			messages = append(messages, schema.UserMessage(entry.Text))
		}
	}
	return messages
}
