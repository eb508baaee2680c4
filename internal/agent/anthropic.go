package agent

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// AnthropicConfig is the configuration for the Anthropic LLM client.
type AnthropicConfig struct {
	Client          anthropic.Client
	Model           anthropic.Model
	MaxOutputTokens int64
	System          string
	// Stream enables incremental consumption of the response. Text deltas
	// are forwarded to OnTextDelta as they arrive; tool dispatch still only
	// happens once the complete message has been accumulated.
	Stream      bool
	OnTextDelta func(text string)
}

// AnthropicClient implements LLMClient for Anthropic's Claude models.
type AnthropicClient struct {
	cfg AnthropicConfig
}

func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	return &AnthropicClient{cfg: cfg}
}

// Call sends messages to Anthropic and returns the complete response.
func (a *AnthropicClient) Call(ctx context.Context, messages []Message, tools []Tool) (Response, error) {
	anthropicMsgs := make([]anthropic.MessageParam, len(messages))
	for i, msg := range messages {
		param, ok := msg.ToParam().(anthropic.MessageParam)
		if !ok {
			return nil, fmt.Errorf("expected anthropic.MessageParam, got %T", msg.ToParam())
		}
		anthropicMsgs[i] = param
	}

	params := anthropic.MessageNewParams{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxOutputTokens,
		Messages:  anthropicMsgs,
		Tools:     toAnthropicTools(tools),
	}
	if a.cfg.System != "" {
		// Cache the static system prompt; it is resent on every round of
		// every question.
		params.System = []anthropic.TextBlockParam{
			{
				Text:         a.cfg.System,
				CacheControl: anthropic.NewCacheControlEphemeralParam(),
			},
		}
	}

	if a.cfg.Stream {
		return a.callStreaming(ctx, params)
	}

	resp, err := a.cfg.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return anthropicResponse{resp: resp}, nil
}

// callStreaming consumes the SSE stream, forwarding text deltas to the
// configured callback while accumulating the full message. The accumulated
// message is what the loop acts on, so a tool call is never dispatched from
// a partially received intent.
func (a *AnthropicClient) callStreaming(ctx context.Context, params anthropic.MessageNewParams) (Response, error) {
	stream := a.cfg.Client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream event: %w", err)
		}

		if a.cfg.OnTextDelta == nil {
			continue
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				a.cfg.OnTextDelta(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("failed to stream response: %w", err)
	}

	return anthropicResponse{resp: &acc}, nil
}

// ConvertToolResults converts a round's tool results into the single user
// message Anthropic expects, one result block per originating tool use.
func (a *AnthropicClient) ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error) {
	if len(toolUses) != len(results) {
		return nil, fmt.Errorf("got %d results for %d tool uses", len(results), len(toolUses))
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, anthropic.NewToolResultBlock(result.ID, result.Content, result.IsError))
	}

	return []Message{AnthropicMessage{Msg: anthropic.NewUserMessage(blocks...)}}, nil
}

// CreateUserMessage creates a user message in Anthropic format.
func (a *AnthropicClient) CreateUserMessage(content string) Message {
	return AnthropicMessage{Msg: anthropic.NewUserMessage(anthropic.NewTextBlock(content))}
}

// AnthropicMessage wraps Anthropic's MessageParam to implement Message.
type AnthropicMessage struct {
	Msg anthropic.MessageParam
}

func (m AnthropicMessage) ToParam() any {
	return m.Msg
}

// anthropicResponse wraps Anthropic's response to implement Response.
type anthropicResponse struct {
	resp *anthropic.Message
}

func (r anthropicResponse) Content() []ContentBlock {
	blocks := make([]ContentBlock, len(r.resp.Content))
	for i, blk := range r.resp.Content {
		blocks[i] = anthropicContentBlock{blk}
	}
	return blocks
}

func (r anthropicResponse) ToMessage() Message {
	return AnthropicMessage{Msg: r.resp.ToParam()}
}

// anthropicContentBlock wraps Anthropic's ContentBlockUnion to implement
// ContentBlock.
type anthropicContentBlock struct {
	blk anthropic.ContentBlockUnion
}

func (b anthropicContentBlock) AsText() (string, bool) {
	text := b.blk.AsText()
	if text.Text == "" {
		return "", false
	}
	return text.Text, true
}

func (b anthropicContentBlock) AsToolUse() (string, string, []byte, bool) {
	tu := b.blk.AsToolUse()
	if tu.ID == "" || tu.Name == "" {
		return "", "", nil, false
	}
	return tu.ID, tu.Name, tu.Input, true
}

// toAnthropicTools converts tool declarations to Anthropic tool parameters.
func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, _ := t.InputSchema["properties"].(map[string]any)
		required, _ := t.InputSchema["required"].([]string)
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.Opt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}
