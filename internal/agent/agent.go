package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

const defaultMaxRounds = 10

// ErrMaxRounds is returned when the model keeps requesting tools past the
// configured round cap without producing a final answer. It is terminal for
// the question, not the process.
var ErrMaxRounds = errors.New("agent did not converge to a final answer")

// Hooks are optional observer callbacks for presentation (progress display
// in a shell). They never affect the loop's behavior.
type Hooks struct {
	// OnToolStart is called before a tool is dispatched.
	OnToolStart func(name string, args map[string]any)
	// OnToolDone is called with the tool's result text after it completes.
	OnToolDone func(name string, result string, isError bool)
}

// Config is the configuration for the Agent.
type Config struct {
	Logger    *slog.Logger
	LLM       LLMClient
	Tools     ToolClient
	MaxRounds int
	Hooks     *Hooks
}

func (cfg *Config) Validate() error {
	if cfg.LLM == nil {
		return errors.New("LLM is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool client is required")
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.MaxRounds < 0 {
		return errors.New("max rounds must be greater than 0")
	}
	return nil
}

// Agent runs the tool-calling loop: it sends the conversation to the LLM,
// dispatches any requested tools, appends the results, and repeats until the
// model answers in plain text or the round cap is hit.
type Agent struct {
	log *slog.Logger
	cfg *Config
}

func New(cfg *Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Agent{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Run executes the tool-calling loop for one question. The conversation
// grows monotonically for the duration of the run and is returned in the
// RunResult; the loop itself keeps no state across runs.
//
// Within a round every requested tool is dispatched and yields exactly one
// ToolResult, failures included, before the next LLM call; the model will
// not proceed coherently with an unanswered tool call. Transport failures
// (LLM endpoint or database unreachable) abort the run. Final answer text
// is written to output when it is non-nil.
func (a *Agent) Run(ctx context.Context, initialMessages []Message, output io.Writer) (*RunResult, error) {
	msgs := make([]Message, len(initialMessages))
	copy(msgs, initialMessages)

	fullConversation := make([]Message, len(initialMessages))
	copy(fullConversation, initialMessages)

	toolsUsedSet := make(map[string]struct{})

	tools, err := a.cfg.Tools.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	for round := 0; round < a.cfg.MaxRounds; round++ {
		roundNum := round + 1
		if a.log != nil {
			a.log.Info("agent: starting round", "round", roundNum, "max_rounds", a.cfg.MaxRounds)
		}

		response, err := a.cfg.LLM.Call(ctx, msgs, tools)
		if err != nil {
			return nil, fmt.Errorf("failed to get response: %w", err)
		}

		if a.log != nil {
			a.log.Debug("agent: received response", "round", roundNum, "contentBlocks", len(response.Content()))
		}

		assistantMsg := response.ToMessage()
		msgs = append(msgs, assistantMsg)
		fullConversation = append(fullConversation, assistantMsg)

		toolUses := extractToolUses(response.Content())
		if len(toolUses) == 0 {
			if a.log != nil {
				a.log.Info("agent: no tool calls, returning final response", "round", roundNum)
			}

			var finalText strings.Builder
			for _, blk := range response.Content() {
				if text, ok := blk.AsText(); ok && text != "" {
					finalText.WriteString(text)
					if output != nil {
						fmt.Fprint(output, text)
					}
				}
			}
			if output != nil {
				fmt.Fprintln(output)
			}

			return &RunResult{
				FinalText:        strings.TrimSpace(finalText.String()),
				FullConversation: fullConversation,
				ToolsUsed:        setToSlice(toolsUsedSet),
				Rounds:           roundNum,
			}, nil
		}

		if a.log != nil {
			a.log.Info("agent: dispatching tool calls", "round", roundNum, "count", len(toolUses))
		}
		for _, tu := range toolUses {
			toolsUsedSet[tu.Name] = struct{}{}
		}

		toolResults, err := a.executeTools(ctx, toolUses)
		if err != nil {
			return nil, fmt.Errorf("failed to execute tools: %w", err)
		}

		toolResultMsgs, err := a.cfg.LLM.ConvertToolResults(toolUses, toolResults)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tool results: %w", err)
		}

		msgs = append(msgs, toolResultMsgs...)
		fullConversation = append(fullConversation, toolResultMsgs...)
	}

	return nil, fmt.Errorf("%w after %d rounds", ErrMaxRounds, a.cfg.MaxRounds)
}

// extractToolUses extracts tool use requests from response content blocks,
// preserving the order they were received in.
func extractToolUses(content []ContentBlock) []ToolUse {
	var toolUses []ToolUse
	for _, blk := range content {
		id, name, inputBytes, ok := blk.AsToolUse()
		if !ok || id == "" || name == "" {
			continue
		}
		var input map[string]any
		if err := json.Unmarshal(inputBytes, &input); err != nil {
			continue
		}
		toolUses = append(toolUses, ToolUse{
			ID:    id,
			Name:  name,
			Input: input,
		})
	}
	return toolUses
}

// executeTools dispatches a round's tool calls in parallel and returns one
// result per call, in the order the calls were received. If the round is
// cancelled or any call fails at the transport level, no partial batch is
// returned: the whole round is abandoned so the conversation never carries
// an unanswered tool call.
func (a *Agent) executeTools(ctx context.Context, toolUses []ToolUse) ([]ToolResult, error) {
	if len(toolUses) == 0 {
		return nil, nil
	}

	type slot struct {
		out   string
		isErr bool
		err   error
	}

	results := make([]slot, len(toolUses))
	var wg sync.WaitGroup

	for i, tu := range toolUses {
		if a.cfg.Hooks != nil && a.cfg.Hooks.OnToolStart != nil {
			a.cfg.Hooks.OnToolStart(tu.Name, tu.Input)
		}
		wg.Add(1)
		go func(idx int, toolUse ToolUse) {
			defer wg.Done()
			out, isErr, callErr := a.cfg.Tools.CallToolText(ctx, toolUse.Name, toolUse.Input)
			results[idx] = slot{out: out, isErr: isErr, err: callErr}
		}(i, tu)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	toolResults := make([]ToolResult, 0, len(toolUses))
	for i, res := range results {
		if res.err != nil {
			if a.log != nil {
				a.log.Error("agent: tool transport failure", "tool", toolUses[i].Name, "error", res.err)
			}
			return nil, fmt.Errorf("tool %s: %w", toolUses[i].Name, res.err)
		}
		if a.cfg.Hooks != nil && a.cfg.Hooks.OnToolDone != nil {
			a.cfg.Hooks.OnToolDone(toolUses[i].Name, res.out, res.isErr)
		}
		toolResults = append(toolResults, ToolResult{
			ID:      toolUses[i].ID,
			Content: res.out,
			IsError: res.isErr,
		})
	}
	return toolResults, nil
}

// setToSlice converts a set of tool names to a sorted slice.
func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	result := make([]string, 0, len(set))
	for k := range set {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
