package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"assistant-service/internal/llm"
	"assistant-service/internal/mcp"
	"assistant-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays canned completions and records every request
type scriptedModel struct {
	responses []*llm.ChatResponse
	requests  [][]llm.Message
	err       error
}

func (m *scriptedModel) ChatCompletion(_ context.Context, messages []llm.Message, _ []llm.Tool) (*llm.ChatResponse, error) {
	m.requests = append(m.requests, messages)
	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

type executedCall struct {
	name string
	tc   mcp.ToolContext
	args json.RawMessage
}

// scriptedExecutor returns preset results per tool name and records calls
type scriptedExecutor struct {
	results map[string][]mcp.Result
	calls   []executedCall
}

func (e *scriptedExecutor) ExecuteTool(_ context.Context, name string, rawArgs json.RawMessage, tc mcp.ToolContext) mcp.Result {
	e.calls = append(e.calls, executedCall{name: name, tc: tc, args: rawArgs})
	queue := e.results[name]
	if len(queue) == 0 {
		return mcp.Result{Success: false, Error: fmt.Sprintf("Unknown tool: %s", name)}
	}
	result := queue[0]
	if len(queue) > 1 {
		e.results[name] = queue[1:]
	}
	return result
}

type fakeDirectory struct {
	store    *models.Store
	storeErr error
	count    int
}

func (d *fakeDirectory) GetStoreByID(_ context.Context, id string) (*models.Store, error) {
	if d.storeErr != nil {
		return nil, d.storeErr
	}
	return d.store, nil
}

func (d *fakeDirectory) CountActiveProducts(_ context.Context, _ string) (int, error) {
	return d.count, nil
}

type fakeUsage struct {
	queries []*models.AIQuery
	usages  []*models.TokenUsage
	err     error
}

func (u *fakeUsage) CreateAIQuery(_ context.Context, q *models.AIQuery) error {
	if u.err != nil {
		return u.err
	}
	u.queries = append(u.queries, q)
	return nil
}

func (u *fakeUsage) CreateTokenUsage(_ context.Context, t *models.TokenUsage) error {
	if u.err != nil {
		return u.err
	}
	u.usages = append(u.usages, t)
	return nil
}

func activeStore() *models.Store {
	return &models.Store{
		ID:        "store-1",
		StoreName: "Sneaker Corner",
		City:      "Austin",
		Category:  "Footwear",
		Status:    models.StoreStatusActive,
	}
}

func textReply(content string, tokens int64) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: content}}},
		Usage:   llm.Usage{TotalTokens: tokens},
	}
}

func toolCallReply(content string, tokens int64, calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.Message{
			Role:      llm.RoleAssistant,
			Content:   content,
			ToolCalls: calls,
		}}},
		Usage: llm.Usage{TotalTokens: tokens},
	}
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.FunctionCall{Name: name, Arguments: args}}
}

func newChatService(dir *fakeDirectory, usage *fakeUsage, model ModelClient, exec ToolExecutor) *ChatService {
	return NewChatService(dir, usage, nil, model, exec, nil, time.Minute)
}

func chatReq() *ChatRequest {
	return &ChatRequest{StoreID: "store-1", UserID: "u1", Message: "hi"}
}

func TestChatPlainAnswerNoFilter(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{textReply("Hello! How can I help?", 40)}}
	usage := &fakeUsage{}
	svc := newChatService(&fakeDirectory{store: activeStore(), count: 12}, usage, model, &scriptedExecutor{})

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, "Hello! How can I help?", resp.Message)
	assert.Nil(t, resp.ProductIDs)
	assert.Nil(t, resp.FilterApplied)

	require.Len(t, usage.queries, 1)
	assert.Equal(t, "hi", usage.queries[0].Question)
	require.Len(t, usage.usages, 1)
	assert.Equal(t, int64(40), usage.usages[0].TokensUsed)
}

func TestChatEmptyFilterResultClearsIDs(t *testing.T) {
	// "show me shoes under $50" against a catalog with no matches
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("", 30, call("c1", mcp.ToolFilterProducts, `{"search":"shoes","price_max":50}`)),
		textReply("I couldn't find any shoes under $50.", 25),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolFilterProducts: {{Success: true, Count: 0, ProductIDs: []string{}}},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, "I couldn't find any shoes under $50.", resp.Message)
	require.NotNil(t, resp.ProductIDs)
	assert.Empty(t, resp.ProductIDs)
}

func TestChatCartCallKeepsLastFilter(t *testing.T) {
	filter := &mcp.FilterCriteria{Search: "shoes"}
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("", 30, call("c1", mcp.ToolFilterProducts, `{"search":"shoes"}`)),
		toolCallReply("", 20, call("c2", mcp.ToolAddToCart, `{"product_id":"p1"}`)),
		textReply("Added Trail Runner ($49.99) to your cart.", 15),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolFilterProducts: {{Success: true, Count: 2, ProductIDs: []string{"p1", "p2"}, FilterApplied: filter}},
		mcp.ToolAddToCart:      {{Success: true, Message: "Added 1x Trail Runner to cart"}},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, []string{"p1", "p2"}, resp.ProductIDs)
	assert.Equal(t, filter, resp.FilterApplied)
	assert.Contains(t, resp.Message, "Trail Runner")
}

func TestChatLastSuccessfulFilterWins(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("", 10, call("c1", mcp.ToolFilterProducts, `{"search":"shoes"}`)),
		toolCallReply("", 10, call("c2", mcp.ToolFilterProducts, `{"search":"boots"}`)),
		textReply("Here are some boots.", 10),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolFilterProducts: {
			{Success: true, ProductIDs: []string{"p1"}},
			{Success: true, ProductIDs: []string{"p7", "p8"}},
		},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, []string{"p7", "p8"}, resp.ProductIDs)
}

func TestChatFailedFilterDoesNotOverwrite(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("", 10, call("c1", mcp.ToolFilterProducts, `{"search":"shoes"}`)),
		toolCallReply("", 10, call("c2", mcp.ToolFilterProducts, `{bad json`)),
		textReply("done", 10),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolFilterProducts: {
			{Success: true, ProductIDs: []string{"p1"}},
			{Success: false, Error: "Invalid arguments for filter_products"},
		},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, []string{"p1"}, resp.ProductIDs)
}

func TestChatRoundCeiling(t *testing.T) {
	// model asks for tools on every reply; the loop must stop on its own
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("still searching", 10, call("c1", mcp.ToolGetCartSummary, `{}`)),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolGetCartSummary: {{Success: true, Message: "check the sidebar"}},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, "still searching", resp.Message)
	assert.NotEqual(t, fallbackMessage, resp.Message)
	// ceiling rounds of execution, one extra model call that gets cut off
	assert.Len(t, model.requests, maxToolRounds+1)
}

func TestChatDuplicateCallIDExecutedOnce(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("", 10,
			call("c1", mcp.ToolFilterProducts, `{"search":"shoes"}`),
			call("c1", mcp.ToolFilterProducts, `{"search":"shoes"}`)),
		textReply("done", 10),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolFilterProducts: {{Success: true, ProductIDs: []string{"p1"}}},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	svc.Chat(context.Background(), chatReq())

	assert.Len(t, exec.calls, 1)
}

func TestChatToolContextCarriesTenantScope(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("", 10, call("c1", mcp.ToolFilterProducts, `{"store_id":"other-store"}`)),
		textReply("done", 10),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolFilterProducts: {{Success: true, ProductIDs: []string{}}},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	svc.Chat(context.Background(), &ChatRequest{StoreID: "store-1", UserID: "u1", UserRole: models.RoleEndUser, Message: "hi"})

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "store-1", exec.calls[0].tc.StoreID)
	assert.Equal(t, "u1", exec.calls[0].tc.UserID)
}

func TestChatStoreLookupFailureReturnsFallback(t *testing.T) {
	dir := &fakeDirectory{storeErr: errors.New("store not found: store-1")}
	model := &scriptedModel{responses: []*llm.ChatResponse{textReply("unused", 0)}}
	svc := newChatService(dir, &fakeUsage{}, model, &scriptedExecutor{})

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, fallbackMessage, resp.Message)
	assert.Nil(t, resp.ProductIDs)
	assert.Empty(t, model.requests)
}

func TestChatSuspendedStoreReturnsFallback(t *testing.T) {
	st := activeStore()
	st.Status = models.StoreStatusSuspended
	svc := newChatService(&fakeDirectory{store: st}, &fakeUsage{},
		&scriptedModel{responses: []*llm.ChatResponse{textReply("unused", 0)}}, &scriptedExecutor{})

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, fallbackMessage, resp.Message)
}

func TestChatModelFailureReturnsFallback(t *testing.T) {
	model := &scriptedModel{err: errors.New("connection refused")}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, &scriptedExecutor{})

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, fallbackMessage, resp.Message)
	assert.Nil(t, resp.ProductIDs)
}

func TestChatLoggingFailureDoesNotMaskAnswer(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{textReply("the real answer", 10)}}
	usage := &fakeUsage{err: errors.New("db down")}
	svc := newChatService(&fakeDirectory{store: activeStore()}, usage, model, &scriptedExecutor{})

	resp := svc.Chat(context.Background(), chatReq())

	assert.Equal(t, "the real answer", resp.Message)
}

func TestChatHistoryWindowKeepsTail(t *testing.T) {
	var history []HistoryEntry
	for i := 0; i < 25; i++ {
		history = append(history, HistoryEntry{Role: "user", Content: fmt.Sprintf("msg-%d", i)})
	}

	model := &scriptedModel{responses: []*llm.ChatResponse{textReply("ok", 5)}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, &scriptedExecutor{})

	req := chatReq()
	req.History = history
	svc.Chat(context.Background(), req)

	require.Len(t, model.requests, 1)
	sent := model.requests[0]
	// system + 10 history + user message
	require.Len(t, sent, historyWindow+2)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Equal(t, "msg-15", sent[1].Content)
	assert.Equal(t, "msg-24", sent[historyWindow].Content)
	assert.Equal(t, "hi", sent[historyWindow+1].Content)
}

func TestChatSystemPromptWithholdsCatalog(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{textReply("ok", 5)}}
	svc := newChatService(&fakeDirectory{store: activeStore(), count: 42}, &fakeUsage{}, model, &scriptedExecutor{})

	svc.Chat(context.Background(), chatReq())

	require.NotEmpty(t, model.requests)
	prompt := model.requests[0][0].Content
	assert.Contains(t, prompt, "Sneaker Corner")
	assert.Contains(t, prompt, "42")
	assert.Contains(t, prompt, "filter_products")
}

func TestChatToolResultsCorrelatedByCallID(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCallReply("", 10,
			call("c1", mcp.ToolFilterProducts, `{"search":"shoes"}`),
			call("c2", mcp.ToolGetCartSummary, `{}`)),
		textReply("done", 10),
	}}
	exec := &scriptedExecutor{results: map[string][]mcp.Result{
		mcp.ToolFilterProducts: {{Success: true, ProductIDs: []string{"p1"}}},
		mcp.ToolGetCartSummary: {{Success: true, Message: "check the sidebar"}},
	}}
	svc := newChatService(&fakeDirectory{store: activeStore()}, &fakeUsage{}, model, exec)

	svc.Chat(context.Background(), chatReq())

	require.Len(t, model.requests, 2)
	second := model.requests[1]
	// tail: assistant tool-call message, then one tool result per call
	require.GreaterOrEqual(t, len(second), 3)
	toolMsgs := second[len(second)-2:]
	assert.Equal(t, llm.RoleTool, toolMsgs[0].Role)
	assert.Equal(t, "c1", toolMsgs[0].ToolCallID)
	assert.Equal(t, "c2", toolMsgs[1].ToolCallID)
	assert.Contains(t, toolMsgs[0].Content, "p1")
}
