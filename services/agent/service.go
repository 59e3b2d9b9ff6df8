package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"
	"github.com/gaspardhassenforder/elearning-sub000/services/prompt"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"
)

// loopState tracks where a turn is in its model/tool exchange.
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateAwaitingToolResults
	stateDone
)

const (
	// maxToolRounds caps consecutive model responses that request tools.
	// When the model asks for tools a fifth time the turn ends with
	// whatever text is already in hand and those requests are not executed.
	maxToolRounds = 5

	defaultMaxTokens = 4096
)

type Service struct {
	model     ModelClient
	threads   db.ThreadRepository
	assembler *prompt.Assembler
	deps      ToolDeps
	modelName anthropic.Model
}

func NewService(model ModelClient, threads db.ThreadRepository, assembler *prompt.Assembler, deps ToolDeps, modelName string) *Service {
	name := anthropic.Model(modelName)
	if modelName == "" {
		name = anthropic.ModelClaude4Sonnet20250514
	}

	return &Service{
		model:     model,
		threads:   threads,
		assembler: assembler,
		deps:      deps,
		modelName: name,
	}
}

// TurnOptions carries the caller identity and the material the system prompt
// is assembled from.
type TurnOptions struct {
	Caller        CallerContext
	PromptContext prompt.Context
}

// ProcessTurn runs one synchronous conversation turn and returns the final
// reply once all tool rounds have settled.
func (s *Service) ProcessTurn(ctx context.Context, opts TurnOptions, userMessage string) (*models.ChatResponse, error) {
	return s.processTurn(ctx, opts, userMessage, nil)
}

// ProcessTurnStream runs one conversation turn, forwarding text deltas and
// tool notices through onEvent as they happen. The returned response is
// identical to what ProcessTurn would produce for the same input.
func (s *Service) ProcessTurnStream(ctx context.Context, opts TurnOptions, userMessage string, onEvent func(models.TurnEvent)) (*models.ChatResponse, error) {
	if onEvent == nil {
		onEvent = func(models.TurnEvent) {}
	}
	return s.processTurn(ctx, opts, userMessage, onEvent)
}

func (s *Service) processTurn(ctx context.Context, opts TurnOptions, userMessage string, onEvent func(models.TurnEvent)) (*models.ChatResponse, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, fmt.Errorf("message is required")
	}

	systemPrompt, err := s.assembler.Assemble(opts.Caller.ModuleID, opts.PromptContext)
	if err != nil {
		return nil, err
	}

	key := opts.Caller.ThreadKey().String()
	history, err := s.loadHistory(key)
	if err != nil {
		return nil, err
	}

	history = append(history, models.ChatMessage{Role: "user", Content: userMessage})

	tools := BuildTools(s.deps, opts.Caller)
	toolSpecs := s.buildAnthropicToolSpecs(tools)

	zap.S().Infof("starting %s turn for thread %s with %d prior messages", opts.Caller.Kind, key, len(history)-1)

	var (
		state        = stateAwaitingModel
		toolRounds   = 0
		lastText     = ""
		pendingCalls []models.ToolCall
	)

	for state != stateDone {
		switch state {
		case stateAwaitingModel:
			params := anthropic.MessageNewParams{
				Model:     s.modelName,
				MaxTokens: defaultMaxTokens,
				System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
				Messages:  s.convertToAnthropicMessages(history),
				Tools:     toolSpecs,
			}

			response, err := s.callModel(ctx, params, onEvent)
			if err != nil {
				return nil, fmt.Errorf("model call failed: %w", err)
			}

			text, calls := extractAssistantContent(response)
			if text != "" {
				lastText = text
			}

			assistantMsg := models.ChatMessage{
				Role:      "assistant",
				Content:   text,
				ToolCalls: calls,
			}

			if len(calls) == 0 {
				history = append(history, assistantMsg)
				state = stateDone
				break
			}

			toolRounds++
			if toolRounds >= maxToolRounds {
				// Drop the unexecuted requests so the saved history never
				// contains a tool call without its result.
				zap.S().Warnf("thread %s hit the tool round limit (%d), returning response in hand", key, maxToolRounds)
				assistantMsg.ToolCalls = nil
				history = append(history, assistantMsg)
				state = stateDone
				break
			}

			history = append(history, assistantMsg)
			pendingCalls = calls
			state = stateAwaitingToolResults

		case stateAwaitingToolResults:
			var results []models.ToolResult
			for _, call := range pendingCalls {
				if onEvent != nil {
					onEvent(models.TurnEvent{Type: models.TurnEventTool, Tool: call.Name})
				}

				argsJSON, _ := json.Marshal(call.Arguments)
				zap.S().Infof("executing tool %s for thread %s", call.Name, key)

				result, err := s.executeTool(ctx, tools, call.Name, string(argsJSON))
				if err != nil {
					zap.S().Errorf("tool %s failed for thread %s: %v", call.Name, key, err)
					result = toolFailure(call.Name, "request", err)
				}

				results = append(results, models.ToolResult{ToolCallID: call.ID, Content: result})
			}

			history = append(history, models.ChatMessage{Role: "tool", ToolResults: results})
			pendingCalls = nil
			state = stateAwaitingModel
		}
	}

	if err := s.threads.SaveThread(key, history); err != nil {
		return nil, fmt.Errorf("failed to save conversation thread: %w", err)
	}

	zap.S().Infof("turn complete for thread %s after %d tool rounds", key, toolRounds)

	return &models.ChatResponse{
		Reply:    lastText,
		Messages: history,
	}, nil
}

func (s *Service) loadHistory(key string) ([]models.ChatMessage, error) {
	thread, err := s.threads.GetThreadByKey(key)
	if err != nil {
		if errors.Is(err, db.ErrThreadNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load conversation thread: %w", err)
	}
	return thread.Messages, nil
}

func (s *Service) callModel(ctx context.Context, params anthropic.MessageNewParams, onEvent func(models.TurnEvent)) (*anthropic.Message, error) {
	if onEvent == nil {
		return s.model.CreateMessage(ctx, params)
	}

	return s.model.StreamMessage(ctx, params, func(text string) {
		onEvent(models.TurnEvent{Type: models.TurnEventDelta, Text: text})
	})
}

// extractAssistantContent pulls the visible text and any tool requests out of
// a model response. Text is sanitized so hidden-reasoning sections never
// reach callers or the saved history.
func extractAssistantContent(response *anthropic.Message) (string, []models.ToolCall) {
	var text string
	var calls []models.ToolCall

	for _, block := range response.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += block.Text
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(block.Input)
			var inputMap map[string]interface{}
			json.Unmarshal(inputJSON, &inputMap)

			calls = append(calls, models.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: inputMap,
			})
		}
	}

	return sanitizeText(text), calls
}

func (s *Service) convertToAnthropicMessages(messages []models.ChatMessage) []anthropic.MessageParam {
	var anthropicMessages []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			contentBlocks := []anthropic.ContentBlockParamUnion{}

			if msg.Content != "" {
				contentBlocks = append(contentBlocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				})
			}

			for _, toolCall := range msg.ToolCalls {
				contentBlocks = append(contentBlocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    toolCall.ID,
						Name:  toolCall.Name,
						Input: toolCall.Arguments,
					},
				})
			}

			if len(contentBlocks) == 0 {
				continue
			}

			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(contentBlocks...))
		case "tool":
			toolResultBlocks := []anthropic.ContentBlockParamUnion{}
			for _, result := range msg.ToolResults {
				toolResultBlocks = append(toolResultBlocks, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: result.ToolCallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{
							{OfText: &anthropic.TextBlockParam{Text: result.Content}},
						},
					},
				})
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	return anthropicMessages
}

func (s *Service) buildAnthropicToolSpecs(tools []AgentTool) []anthropic.ToolUnionParam {
	var toolSpecs []anthropic.ToolUnionParam

	for _, tool := range tools {
		toolSpecs = append(toolSpecs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name(),
				Description: anthropic.String(tool.Description()),
				InputSchema: tool.GetAnthropicToolSpec(),
			},
		})
	}

	return toolSpecs
}

func (s *Service) executeTool(ctx context.Context, tools []AgentTool, toolName, arguments string) (string, error) {
	for _, tool := range tools {
		if tool.Name() == toolName {
			return tool.Call(ctx, arguments)
		}
	}
	return "", fmt.Errorf("tool %s not found", toolName)
}
