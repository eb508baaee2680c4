// Package agent implements the tool-calling loop that turns a natural
// language question into tool dispatches and, eventually, a final answer.
package agent

import (
	"context"
)

// Message represents a message in the conversation.
type Message interface {
	// ToParam converts the message to a provider-specific parameter type.
	ToParam() any
}

// Response represents a response from the LLM.
type Response interface {
	// Content returns the content blocks from the response.
	Content() []ContentBlock
	// ToMessage converts the response to a Message for the conversation history.
	ToMessage() Message
}

// ContentBlock represents a content block in a response.
type ContentBlock interface {
	// AsText returns text content if this is a text block.
	AsText() (text string, ok bool)
	// AsToolUse returns tool use information if this is a tool use block.
	AsToolUse() (id, name string, input []byte, ok bool)
}

// ToolUse represents a tool use request from the LLM.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// Tool represents an available tool.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolResult represents the result of executing a tool. Exactly one result
// is produced per ToolUse, correlated by ID.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// ToolClient is an interface for declaring and calling tools.
//
// CallToolText reports recoverable failures (bad SQL, unknown table, unknown
// tool) through isError with a structured result string; the returned error
// is reserved for transport-level failures that make further rounds
// pointless, and aborts the run.
type ToolClient interface {
	// ListTools returns the available tools.
	ListTools(ctx context.Context) ([]Tool, error)
	// CallToolText calls a tool and returns the result as text.
	CallToolText(ctx context.Context, name string, args map[string]any) (result string, isError bool, err error)
}

// LLMClient is an interface for interacting with an LLM.
type LLMClient interface {
	// Call sends messages to the LLM and returns a response.
	Call(ctx context.Context, messages []Message, tools []Tool) (Response, error)
	// ConvertToolResults converts tool results to messages for the LLM.
	ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error)
	// CreateUserMessage creates a user message in the provider's format.
	CreateUserMessage(content string) Message
}

// RunResult contains the result of running the agent for one question.
type RunResult struct {
	// FinalText is the final text response from the agent.
	FinalText string
	// FullConversation is the complete conversation history including tool
	// calls and results. Discarded by callers that do not carry context
	// across questions.
	FullConversation []Message
	// ToolsUsed lists the unique tool names dispatched during the run.
	ToolsUsed []string
	// Rounds is the number of LLM rounds it took to reach the final answer.
	Rounds int
}

// GenericMessage is a provider-agnostic message, used by tests and
// non-chat-native providers.
type GenericMessage struct {
	Role    string
	Content string
}

func (m GenericMessage) ToParam() any {
	return m
}
