package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLLMClient is a mock LLM client for testing.
type mockLLMClient struct {
	responses []mockResponse
	callIndex int
}

type mockResponse struct {
	text      string
	toolCalls []mockToolCall
}

type mockToolCall struct {
	id    string
	name  string
	input map[string]any
}

func (m *mockLLMClient) Call(ctx context.Context, messages []Message, tools []Tool) (Response, error) {
	if m.callIndex >= len(m.responses) {
		// Return empty response if we've exhausted responses
		return &mockLLMResponse{}, nil
	}
	resp := m.responses[m.callIndex]
	m.callIndex++
	return &mockLLMResponse{text: resp.text, toolCalls: resp.toolCalls}, nil
}

func (m *mockLLMClient) ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error) {
	var msgs []Message
	for i, tu := range toolUses {
		if results[i].ID != tu.ID {
			return nil, errors.New("tool result ID does not match tool use ID")
		}
		msgs = append(msgs, GenericMessage{Role: "tool", Content: "Tool " + tu.Name + ": " + results[i].Content})
	}
	return msgs, nil
}

func (m *mockLLMClient) CreateUserMessage(content string) Message {
	return GenericMessage{Role: "user", Content: content}
}

// mockLLMResponse is a mock LLM response.
type mockLLMResponse struct {
	text      string
	toolCalls []mockToolCall
}

func (r *mockLLMResponse) Content() []ContentBlock {
	var blocks []ContentBlock
	for _, tc := range r.toolCalls {
		blocks = append(blocks, &mockToolUseBlock{id: tc.id, name: tc.name, input: tc.input})
	}
	if r.text != "" {
		blocks = append(blocks, &mockTextBlock{text: r.text})
	}
	return blocks
}

func (r *mockLLMResponse) ToMessage() Message {
	return GenericMessage{Role: "assistant", Content: r.text}
}

// mockTextBlock is a mock text content block.
type mockTextBlock struct {
	text string
}

func (b *mockTextBlock) AsText() (string, bool) {
	return b.text, true
}

func (b *mockTextBlock) AsToolUse() (string, string, []byte, bool) {
	return "", "", nil, false
}

// mockToolUseBlock is a mock tool use content block.
type mockToolUseBlock struct {
	id    string
	name  string
	input map[string]any
}

func (b *mockToolUseBlock) AsText() (string, bool) {
	return "", false
}

func (b *mockToolUseBlock) AsToolUse() (string, string, []byte, bool) {
	inputBytes, _ := json.Marshal(b.input)
	return b.id, b.name, inputBytes, true
}

// mockToolClient is a mock tool client for testing.
type mockToolClient struct {
	tools    []Tool
	callFunc func(ctx context.Context, name string, args map[string]any) (string, bool, error)
}

func (m *mockToolClient) ListTools(ctx context.Context) ([]Tool, error) {
	return m.tools, nil
}

func (m *mockToolClient) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	if m.callFunc != nil {
		return m.callFunc(ctx, name, args)
	}
	return "no result", false, nil
}

func queryTools() []Tool {
	return []Tool{{Name: "execute_sql_query", Description: "Execute a SELECT query", InputSchema: map[string]any{}}}
}

func TestAgent_Run_FinalAnswerWithoutTools(t *testing.T) {
	llm := &mockLLMClient{
		responses: []mockResponse{
			{text: "There are 5 users in the database."},
		},
	}

	a, err := New(&Config{LLM: llm, Tools: &mockToolClient{tools: queryTools()}})
	require.NoError(t, err)

	var out strings.Builder
	result, err := a.Run(context.Background(), []Message{GenericMessage{Role: "user", Content: "How many users?"}}, &out)
	require.NoError(t, err)

	assert.Equal(t, "There are 5 users in the database.", result.FinalText)
	assert.Contains(t, out.String(), "5 users")
	assert.Equal(t, 1, result.Rounds)
	assert.Empty(t, result.ToolsUsed)
	assert.Equal(t, 1, llm.callIndex)
}

func TestAgent_Run_ToolRound(t *testing.T) {
	llm := &mockLLMClient{
		responses: []mockResponse{
			// Round 1: model requests two tools in one response.
			{
				text: "Let me look at the schema first.",
				toolCalls: []mockToolCall{
					{id: "tu_1", name: "get_table_names", input: map[string]any{}},
					{id: "tu_2", name: "get_table_schema", input: map[string]any{"table_name": "users"}},
				},
			},
			// Round 2: final response.
			{text: "The users table has 3 columns."},
		},
	}

	var calledTools []string
	toolClient := &mockToolClient{
		tools: queryTools(),
		callFunc: func(ctx context.Context, name string, args map[string]any) (string, bool, error) {
			calledTools = append(calledTools, name)
			return `{"success": true}`, false, nil
		},
	}

	a, err := New(&Config{LLM: llm, Tools: toolClient})
	require.NoError(t, err)

	result, err := a.Run(context.Background(), []Message{GenericMessage{Role: "user", Content: "Describe users"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "The users table has 3 columns.", result.FinalText)
	assert.Equal(t, 2, result.Rounds)
	assert.ElementsMatch(t, []string{"get_table_names", "get_table_schema"}, calledTools)
	assert.Equal(t, []string{"get_table_names", "get_table_schema"}, result.ToolsUsed)

	// The conversation carries the question, both assistant turns, and the
	// tool result messages.
	assert.Len(t, result.FullConversation, 5)
}

func TestAgent_Run_ErrorResultsKeepLoopAlive(t *testing.T) {
	llm := &mockLLMClient{
		responses: []mockResponse{
			{
				text:      "I'll query that table.",
				toolCalls: []mockToolCall{{id: "tu_1", name: "execute_sql_query", input: map[string]any{"sql_query": "SELECT * FROM nonexistent"}}},
			},
			{text: "That table does not exist."},
		},
	}

	toolClient := &mockToolClient{
		tools: queryTools(),
		callFunc: func(ctx context.Context, name string, args map[string]any) (string, bool, error) {
			return `{"success": false, "error": "table_not_found"}`, true, nil
		},
	}

	a, err := New(&Config{LLM: llm, Tools: toolClient})
	require.NoError(t, err)

	// An isError tool result is fed back to the model, not escalated.
	result, err := a.Run(context.Background(), []Message{GenericMessage{Role: "user", Content: "Query missing"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "That table does not exist.", result.FinalText)
	assert.Equal(t, 2, llm.callIndex)
}

func TestAgent_Run_MaxRounds(t *testing.T) {
	// The model requests a tool on every round and never answers.
	responses := make([]mockResponse, 10)
	for i := range responses {
		responses[i] = mockResponse{
			text:      "Still looking.",
			toolCalls: []mockToolCall{{id: "tu", name: "get_table_names", input: map[string]any{}}},
		}
	}
	llm := &mockLLMClient{responses: responses}

	a, err := New(&Config{LLM: llm, Tools: &mockToolClient{tools: queryTools()}, MaxRounds: 3})
	require.NoError(t, err)

	result, err := a.Run(context.Background(), []Message{GenericMessage{Role: "user", Content: "Loop forever"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxRounds))
	assert.Nil(t, result)
	assert.Equal(t, 3, llm.callIndex)
}

func TestAgent_Run_TransportErrorAborts(t *testing.T) {
	llm := &mockLLMClient{
		responses: []mockResponse{
			{
				text:      "Querying.",
				toolCalls: []mockToolCall{{id: "tu_1", name: "execute_sql_query", input: map[string]any{"sql_query": "SELECT 1"}}},
			},
			{text: "unreachable"},
		},
	}

	toolClient := &mockToolClient{
		tools: queryTools(),
		callFunc: func(ctx context.Context, name string, args map[string]any) (string, bool, error) {
			return "", true, errors.New("connection refused")
		},
	}

	a, err := New(&Config{LLM: llm, Tools: toolClient})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), []Message{GenericMessage{Role: "user", Content: "Query"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, llm.callIndex, "run should abort before another LLM call")
}

func TestAgent_Run_ContextCancelled(t *testing.T) {
	llm := &mockLLMClient{
		responses: []mockResponse{
			{
				text:      "Querying.",
				toolCalls: []mockToolCall{{id: "tu_1", name: "get_table_names", input: map[string]any{}}},
			},
			{text: "done"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	toolClient := &mockToolClient{
		tools: queryTools(),
		callFunc: func(ctx context.Context, name string, args map[string]any) (string, bool, error) {
			cancel()
			return "ok", false, nil
		},
	}

	a, err := New(&Config{LLM: llm, Tools: toolClient})
	require.NoError(t, err)

	_, err = a.Run(ctx, []Message{GenericMessage{Role: "user", Content: "Query"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAgent_Run_Hooks(t *testing.T) {
	llm := &mockLLMClient{
		responses: []mockResponse{
			{
				text:      "Checking.",
				toolCalls: []mockToolCall{{id: "tu_1", name: "get_table_names", input: map[string]any{}}},
			},
			{text: "done"},
		},
	}

	var started, finished []string
	a, err := New(&Config{
		LLM:   llm,
		Tools: &mockToolClient{tools: queryTools()},
		Hooks: &Hooks{
			OnToolStart: func(name string, args map[string]any) { started = append(started, name) },
			OnToolDone:  func(name, result string, isError bool) { finished = append(finished, name) },
		},
	})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), []Message{GenericMessage{Role: "user", Content: "Query"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_table_names"}, started)
	assert.Equal(t, []string{"get_table_names"}, finished)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults max rounds", func(t *testing.T) {
		cfg := &Config{LLM: &mockLLMClient{}, Tools: &mockToolClient{}}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, defaultMaxRounds, cfg.MaxRounds)
	})

	t.Run("missing LLM", func(t *testing.T) {
		cfg := &Config{Tools: &mockToolClient{}}
		require.Error(t, cfg.Validate())
	})

	t.Run("missing tool client", func(t *testing.T) {
		cfg := &Config{LLM: &mockLLMClient{}}
		require.Error(t, cfg.Validate())
	})

	t.Run("negative max rounds", func(t *testing.T) {
		cfg := &Config{LLM: &mockLLMClient{}, Tools: &mockToolClient{}, MaxRounds: -1}
		require.Error(t, cfg.Validate())
	})
}
