package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"unichatclient/internal/config"
	"unichatclient/internal/conversation"
	"unichatclient/internal/models"
)

// GeminiChats opens native genai chat sessions. genai keeps the running
// history on the chat itself, so a session is seeded once and then fed one
// message per turn.
type GeminiChats struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiChats(ctx context.Context, prov config.ProviderConfig) (*GeminiChats, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  prov.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if prov.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: prov.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	return &GeminiChats{
		client: client,
		model:  modelName("gemini", prov),
		config: generateConfig(prov),
	}, nil
}

func generateConfig(prov config.ProviderConfig) *genai.GenerateContentConfig {
	var cfg *genai.GenerateContentConfig
	if prompt := strings.TrimSpace(prov.SystemPrompt); prompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(prompt, genai.RoleUser),
		}
	}
	if prov.MaxTokens > 0 {
		if cfg == nil {
			cfg = &genai.GenerateContentConfig{}
		}
		cfg.MaxOutputTokens = int32(prov.MaxTokens)
	}
	return cfg
}

func (g *GeminiChats) NewSession(ctx context.Context, history []models.HistoryEntry) (conversation.RemoteSession, error) {
	chat, err := g.client.Chats.Create(ctx, g.model, g.config, toGenaiHistory(history))
	if err != nil {
		return nil, errors.Wrap(err, "create gemini chat")
	}
	return &geminiSession{chat: chat}, nil
}

type geminiSession struct {
	chat *genai.Chat
}

func (s *geminiSession) SendTurn(ctx context.Context, text string) (string, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", errors.Wrap(err, "gemini send message")
	}
	if resp == nil {
		return "", errors.New("gemini returned no response")
	}
	return resp.Text(), nil
}

func toGenaiHistory(history []models.HistoryEntry) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, entry := range history {
		role := genai.RoleUser
		if entry.Role == models.HistoryModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(entry.Text, role))
	}
	return contents
}
