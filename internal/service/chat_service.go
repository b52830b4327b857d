package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"assistant-service/internal/broker"
	"assistant-service/internal/llm"
	"assistant-service/internal/mcp"
	"assistant-service/internal/models"
	"assistant-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxToolRounds caps the execute-then-recall loop. Reaching it is a
	// safety valve, not an error: whatever text the model produced is
	// returned as final.
	maxToolRounds = 5

	// historyWindow keeps the most recent messages of supplied history
	historyWindow = 10

	defaultChatTimeout = 60 * time.Second
)

// fallbackMessage is the fixed user-safe reply for any failure that
// escapes the orchestration loop. Internal error detail never reaches
// the end user.
const fallbackMessage = "I apologize, but I'm having trouble processing your request right now. Please try again later or contact our support team for assistance."

// ModelClient invokes an OpenAI-compatible chat-completion endpoint
type ModelClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.ChatResponse, error)
}

// ToolExecutor dispatches one model-issued tool call
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, rawArgs json.RawMessage, tc mcp.ToolContext) mcp.Result
}

// StoreDirectory provides the store metadata that seeds the system prompt
type StoreDirectory interface {
	GetStoreByID(ctx context.Context, id string) (*models.Store, error)
	CountActiveProducts(ctx context.Context, storeID string) (int, error)
}

// UsageRecorder persists per-request query and token rows
type UsageRecorder interface {
	CreateAIQuery(ctx context.Context, q *models.AIQuery) error
	CreateTokenUsage(ctx context.Context, u *models.TokenUsage) error
}

// ContextCache caches store metadata between chat requests
type ContextCache interface {
	GetStoreContext(ctx context.Context, storeID string) (*models.Store, error)
	SetStoreContext(ctx context.Context, st *models.Store) error
}

// ChatService orchestrates one chat request: prompt assembly, the
// bounded tool-calling loop against the model, filter extraction, and
// usage logging
type ChatService struct {
	directory   StoreDirectory
	usage       UsageRecorder
	cache       ContextCache
	model       ModelClient
	tools       ToolExecutor
	registry    []llm.Tool
	publisher   *broker.EventPublisher
	chatTimeout time.Duration
	logger      *zap.Logger
}

// NewChatService creates a new chat orchestrator. cache and publisher
// may be nil; both are best-effort.
func NewChatService(
	directory StoreDirectory,
	usage UsageRecorder,
	cache ContextCache,
	model ModelClient,
	tools ToolExecutor,
	publisher *broker.EventPublisher,
	chatTimeout time.Duration,
) *ChatService {
	if chatTimeout <= 0 {
		chatTimeout = defaultChatTimeout
	}
	return &ChatService{
		directory:   directory,
		usage:       usage,
		cache:       cache,
		model:       model,
		tools:       tools,
		registry:    mcp.Registry(),
		publisher:   publisher,
		chatTimeout: chatTimeout,
		logger:      util.GetLogger(),
	}
}

// HistoryEntry is one prior turn supplied by the client
type HistoryEntry struct {
	Role      string    `json:"role" binding:"required,oneof=user assistant"`
	Content   string    `json:"content" binding:"required"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest represents one inbound chat message with its context
type ChatRequest struct {
	StoreID  string         `json:"storeId" binding:"required"`
	UserID   string         `json:"userId" binding:"required"`
	UserRole string         `json:"userRole"`
	Message  string         `json:"message" binding:"required"`
	History  []HistoryEntry `json:"history"`
}

// ChatResponse is the terminal artifact of one orchestration run.
// ProductIDs is nil when no filter tool ran, and an empty (non-nil)
// list when the last filter matched nothing; the UI distinguishes the
// two.
type ChatResponse struct {
	Message       string              `json:"message"`
	ProductIDs    []string            `json:"productIds"`
	FilterApplied *mcp.FilterCriteria `json:"filterApplied,omitempty"`
}

// Chat runs one orchestration cycle. It never returns an error: any
// failure that escapes the loop becomes the fixed fallback message.
func (s *ChatService) Chat(ctx context.Context, req *ChatRequest) *ChatResponse {
	ctx, span := util.StartSpan(ctx, "ChatService.Chat")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()

	util.ChatRequestsTotal.Inc()

	resp, tokens, rounds, err := s.run(ctx, req)
	if err != nil {
		s.logger.Error("Chat orchestration failed, returning fallback",
			zap.String("store_id", req.StoreID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		util.ChatFallbacksTotal.WithLabelValues(failureReason(err)).Inc()

		resp = &ChatResponse{Message: fallbackMessage}
		s.publishChatCompleted(ctx, req, resp.Message, tokens, rounds, true)
		return resp
	}

	util.ToolRoundsPerRequest.Observe(float64(rounds))
	util.LLMTokensUsedTotal.Add(float64(tokens))

	s.recordUsage(ctx, req, resp.Message, tokens)
	s.publishChatCompleted(ctx, req, resp.Message, tokens, rounds, false)

	return resp
}

// run executes the orchestration loop and returns the response, total
// tokens consumed, and the number of tool rounds executed
func (s *ChatService) run(ctx context.Context, req *ChatRequest) (*ChatResponse, int64, int, error) {
	st, err := s.lookupStore(ctx, req.StoreID)
	if err != nil {
		return nil, 0, 0, err
	}

	productCount, err := s.directory.CountActiveProducts(ctx, req.StoreID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to count products: %w", err)
	}

	messages := s.buildConversation(st, productCount, req)
	tc := mcp.ToolContext{StoreID: req.StoreID, UserID: req.UserID, UserRole: req.UserRole}

	var (
		totalTokens int64
		toolRounds  int
		lastFilter  *mcp.Result
		finalText   string
	)

	for round := 0; ; round++ {
		start := time.Now()
		resp, err := s.model.ChatCompletion(ctx, messages, s.registry)
		util.LLMRequestLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, totalTokens, toolRounds, fmt.Errorf("model invocation failed: %w", err)
		}

		totalTokens += resp.Usage.TotalTokens
		reply := resp.Choices[0].Message
		finalText = reply.Content

		if len(reply.ToolCalls) == 0 {
			break
		}
		if round >= maxToolRounds {
			s.logger.Warn("Tool round ceiling reached",
				zap.String("store_id", req.StoreID),
				zap.Int("rounds", toolRounds))
			break
		}

		toolRounds++
		messages = append(messages, reply)

		executed := make(map[string]bool, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			// models occasionally repeat a call id within a reply
			if executed[call.ID] {
				continue
			}
			executed[call.ID] = true

			result := s.tools.ExecuteTool(ctx, call.Function.Name,
				json.RawMessage(call.Function.Arguments), tc)

			if call.Function.Name == mcp.ToolFilterProducts && result.Success {
				r := result
				lastFilter = &r
			}

			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(`{"success":false,"error":"Internal serialization error"}`)
			}

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
			})
		}
	}

	resp := &ChatResponse{Message: finalText}
	if lastFilter != nil {
		resp.ProductIDs = lastFilter.ProductIDs
		resp.FilterApplied = lastFilter.FilterApplied
	}

	return resp, totalTokens, toolRounds, nil
}

// lookupStore fetches store metadata, preferring the cache
func (s *ChatService) lookupStore(ctx context.Context, storeID string) (*models.Store, error) {
	if s.cache != nil {
		st, err := s.cache.GetStoreContext(ctx, storeID)
		if err != nil {
			s.logger.Warn("Store context cache read failed", zap.Error(err))
		}
		if st != nil {
			return st, nil
		}
	}

	st, err := s.directory.GetStoreByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if st.Status != models.StoreStatusActive {
		return nil, fmt.Errorf("store %s is not active", storeID)
	}

	if s.cache != nil {
		if err := s.cache.SetStoreContext(ctx, st); err != nil {
			s.logger.Warn("Store context cache write failed", zap.Error(err))
		}
	}

	return st, nil
}

// buildConversation assembles system prompt, the history tail, and the
// new user message
func (s *ChatService) buildConversation(st *models.Store, productCount int, req *ChatRequest) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: buildSystemPrompt(st, productCount)},
	}

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == "assistant" {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Content})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})
}

// buildSystemPrompt renders store identity plus the behavioral
// contract. The product catalog itself is withheld: only the count is
// exposed, so the model has to call filter_products instead of
// answering from a stale in-prompt list.
func buildSystemPrompt(st *models.Store, productCount int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a friendly AI shopping assistant for %q.\n\n", st.StoreName)
	b.WriteString("Store information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", st.StoreName)
	if st.City != "" {
		fmt.Fprintf(&b, "- City: %s\n", st.City)
	}
	if st.Category != "" {
		fmt.Fprintf(&b, "- Category: %s\n", st.Category)
	}
	if st.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", st.Description)
	}
	if st.BusinessHours != "" {
		fmt.Fprintf(&b, "- Business hours: %s\n", st.BusinessHours)
	}
	fmt.Fprintf(&b, "- Active products in catalog: %d\n\n", productCount)

	b.WriteString("Rules:\n")
	b.WriteString("- You must call the filter_products tool before making any claim about specific products, prices, or availability. Never answer about products from memory.\n")
	b.WriteString("- Never invent or mention products that were not returned by a tool in this conversation.\n")
	b.WriteString("- When listing products, mention the name and price in dollars (e.g. $49.99).\n")
	b.WriteString("- If a search returns no products, say so honestly and suggest broadening the criteria.\n")
	b.WriteString("- Use add_to_cart and remove_from_cart only when the user clearly asks for it, and confirm the action afterwards.\n")
	b.WriteString("- Keep answers short, concrete, and friendly. Only discuss this store and its products.\n")

	return b.String()
}

// recordUsage persists the query/answer pair and token count. Both
// writes are isolated from the response path: a logging failure is
// counted and logged, never surfaced to the user.
func (s *ChatService) recordUsage(ctx context.Context, req *ChatRequest, answer string, tokens int64) {
	if err := s.usage.CreateAIQuery(ctx, &models.AIQuery{
		UserID:   req.UserID,
		Question: req.Message,
		Answer:   answer,
	}); err != nil {
		util.LoggingFailuresTotal.WithLabelValues("ai_query").Inc()
		s.logger.Warn("Failed to record AI query", zap.Error(err))
	}

	if err := s.usage.CreateTokenUsage(ctx, &models.TokenUsage{
		StoreID:    req.StoreID,
		UserID:     req.UserID,
		TokensUsed: tokens,
	}); err != nil {
		util.LoggingFailuresTotal.WithLabelValues("token_usage").Inc()
		s.logger.Warn("Failed to record token usage", zap.Error(err))
	}
}

// publishChatCompleted emits the per-request telemetry event best-effort
func (s *ChatService) publishChatCompleted(ctx context.Context, req *ChatRequest, answer string, tokens int64, rounds int, fallback bool) {
	if s.publisher == nil {
		return
	}

	event := &models.ChatCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeChatCompleted,
			Timestamp: time.Now(),
		},
		StoreID:    req.StoreID,
		UserID:     req.UserID,
		Question:   req.Message,
		Answer:     answer,
		TokensUsed: tokens,
		ToolRounds: rounds,
		Fallback:   fallback,
	}

	if err := s.publisher.PublishChatCompleted(ctx, event); err != nil {
		util.LoggingFailuresTotal.WithLabelValues("chat_completed").Inc()
		s.logger.Warn("Failed to publish ChatCompleted event", zap.Error(err))
	}
}

func failureReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "store not found") || strings.Contains(msg, "is not active"):
		return "store_unavailable"
	case strings.Contains(msg, "model invocation failed"):
		return "model_error"
	default:
		return "internal"
	}
}
