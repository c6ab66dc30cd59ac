// Package reconstruct implements the two-pass ancestor-walk algorithm
// that turns an ordered event chain into the message list an LLM
// would see at that point in history. It is pure: no I/O, no
// database handle, just a function over a slice of events, so it is
// exercised directly by tests without a store.
package reconstruct

import (
	"encoding/json"
	"fmt"

	"github.com/untoldecay/eventgraph/internal/types"
)

const (
	compactionPrefix   = "[Context from earlier in this conversation]\n\n"
	compactionAckText  = "I understand the previous context. Let me continue helping you."
	promptUpdatePrefix = "[Updated prompt - hash: "
)

// Result is the output of Build: the reconstructed message list plus
// the cross-cutting session state as of the walked chain's leaf.
type Result struct {
	Messages         []types.Message
	MessageEventIDs  []*string
	TokenUsage       types.TokenUsage
	TurnCount        int
	ReasoningLevel   *types.ReasoningLevel
	SystemPrompt     string
	WorkingDirectory string
	Model            string
}

// pendingToolResult is one tool.result awaiting injection into a
// synthetic user message.
type pendingToolResult struct {
	ToolCallID string
	Content    json.RawMessage
	IsError    bool
}

// Build runs both passes of the reconstruction algorithm over chain,
// which must be ordered root-to-leaf (the shape sqlite.GetAncestors
// returns).
func Build(chain []*types.Event) Result {
	state := collectState(chain)

	b := &builder{
		toolCallArgs:   state.toolCallArgs,
		reasoningLevel: state.reasoningLevel,
		systemPrompt:   state.systemPrompt,
	}
	for _, e := range chain {
		if e.ParentID == nil {
			b.observeRoot(e)
		}
		if state.deletedIDs[e.ID] {
			continue
		}
		b.step(e)
	}
	b.flushEndOfWalk()

	return Result{
		Messages:         b.messages,
		MessageEventIDs:  b.messageEventIDs,
		TokenUsage:       b.tokenUsage,
		TurnCount:        b.turnCount,
		ReasoningLevel:   b.reasoningLevel,
		SystemPrompt:     b.systemPrompt,
		WorkingDirectory: b.workingDirectory,
		Model:            b.model,
	}
}

// crossCuttingState is pass 1's output.
type crossCuttingState struct {
	deletedIDs     map[string]bool
	toolCallArgs   map[string]json.RawMessage
	reasoningLevel *types.ReasoningLevel
	systemPrompt   string
}

func collectState(chain []*types.Event) crossCuttingState {
	state := crossCuttingState{
		deletedIDs:   map[string]bool{},
		toolCallArgs: map[string]json.RawMessage{},
	}

	for _, e := range chain {
		switch e.Type {
		case types.EventMessageDeleted:
			var p types.MessageDeletedPayload
			if err := json.Unmarshal(e.Payload, &p); err == nil {
				state.deletedIDs[p.TargetEventID] = true
			}
		case types.EventToolCall:
			var p types.ToolCallPayload
			if err := json.Unmarshal(e.Payload, &p); err == nil {
				state.toolCallArgs[p.ToolCallID] = p.Arguments
			}
		case types.EventConfigReasoningLvl:
			var p types.ConfigReasoningLevelPayload
			if err := json.Unmarshal(e.Payload, &p); err == nil {
				lvl := p.NewLevel
				state.reasoningLevel = &lvl
			}
		case types.EventSessionStart:
			var p types.SessionStartPayload
			if err := json.Unmarshal(e.Payload, &p); err == nil {
				state.systemPrompt = p.SystemPrompt
			}
		case types.EventConfigPromptUpdate:
			var p types.ConfigPromptUpdatePayload
			if err := json.Unmarshal(e.Payload, &p); err == nil {
				state.systemPrompt = fmt.Sprintf("%s%s]", promptUpdatePrefix, p.NewHash)
			}
		}
	}
	return state
}

// builder holds pass 2's running state.
type builder struct {
	toolCallArgs   map[string]json.RawMessage
	reasoningLevel *types.ReasoningLevel
	systemPrompt   string

	messages        []types.Message
	messageEventIDs []*string
	pending         []pendingToolResult
	tokenUsage      types.TokenUsage
	turnCount       int

	workingDirectory string
	model            string
}

func (b *builder) observeRoot(e *types.Event) {
	if e.Type == types.EventSessionStart {
		var p types.SessionStartPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			b.workingDirectory = p.WorkingDirectory
			b.model = p.Model
		}
	}
}

func (b *builder) lastMessage() *types.Message {
	if len(b.messages) == 0 {
		return nil
	}
	return &b.messages[len(b.messages)-1]
}

func (b *builder) step(e *types.Event) {
	switch e.Type {
	case types.EventMessageDeleted:
		// handled in pass 1; never itself produces a message.
		return

	case types.EventCompactSummary:
		b.handleCompaction(e)

	case types.EventContextCleared:
		b.messages = nil
		b.messageEventIDs = nil
		b.pending = nil

	case types.EventToolResult:
		b.handleToolResult(e)

	case types.EventMessageUser:
		b.handleUserMessage(e)

	case types.EventMessageAssistant:
		b.handleAssistantMessage(e)

	case types.EventConfigModelSwitch:
		var p types.ConfigModelSwitchPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			b.model = p.NewModel
		}
	}
}

func (b *builder) handleCompaction(e *types.Event) {
	var p types.CompactSummaryPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return
	}
	b.messages = []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{{Type: "text", Text: compactionPrefix + p.Summary}}},
		{Role: types.RoleAssistant, Content: []types.ContentBlock{{Type: "text", Text: compactionAckText}}},
	}
	b.messageEventIDs = []*string{nil, nil}
	b.pending = nil
}

func (b *builder) handleToolResult(e *types.Event) {
	var p types.ToolResultPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return
	}
	b.pending = append(b.pending, pendingToolResult{
		ToolCallID: p.ToolCallID,
		Content:    p.Content,
		IsError:    p.IsError,
	})
}

func (b *builder) handleUserMessage(e *types.Event) {
	var p types.MessageUserPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return
	}
	b.pending = nil

	blocks := p.Blocks()
	id := e.ID

	if last := b.lastMessage(); last != nil && last.Role == types.RoleUser {
		last.Content = append(last.Content, blocks...)
		b.messageEventIDs = append(b.messageEventIDs, &id)
	} else {
		b.messages = append(b.messages, types.Message{Role: types.RoleUser, Content: blocks})
		b.messageEventIDs = append(b.messageEventIDs, &id)
	}

	b.tokenUsage.Add(p.TokenUsage)
}

func (b *builder) flushPending() {
	if len(b.pending) == 0 {
		return
	}
	blocks := make([]types.ContentBlock, 0, len(b.pending))
	for _, pr := range b.pending {
		blocks = append(blocks, types.ContentBlock{
			Type:      "tool_result",
			ToolUseID: pr.ToolCallID,
			Content:   pr.Content,
			IsError:   pr.IsError,
		})
	}
	b.messages = append(b.messages, types.Message{Role: types.RoleUser, Content: blocks})
	b.messageEventIDs = append(b.messageEventIDs, nil)
	b.pending = nil
}

func (b *builder) handleAssistantMessage(e *types.Event) {
	var p types.MessageAssistantPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return
	}

	blocks := restoreTruncatedInputs(p.Content, b.toolCallArgs)
	hasToolUse := false
	for _, blk := range blocks {
		if blk.Type == "tool_use" {
			hasToolUse = true
			break
		}
	}

	// Case A: a prior assistant turn left tool results pending; a new
	// assistant message can only follow them once they are flushed as
	// the intervening user turn.
	if last := b.lastMessage(); last != nil && last.Role == types.RoleAssistant && len(b.pending) > 0 {
		b.flushPending()
	}

	id := e.ID
	if last := b.lastMessage(); last != nil && last.Role == types.RoleAssistant {
		last.Content = append(last.Content, blocks...)
	} else {
		b.messages = append(b.messages, types.Message{Role: types.RoleAssistant, Content: blocks})
	}
	b.messageEventIDs = append(b.messageEventIDs, &id)

	// Case B: this assistant turn itself requested tools and results
	// for an earlier call are still pending (resumed mid-loop).
	if hasToolUse && len(b.pending) > 0 {
		b.flushPending()
	}

	b.tokenUsage.Add(p.TokenUsage)
	if p.Turn > b.turnCount {
		b.turnCount = p.Turn
	}
}

func restoreTruncatedInputs(blocks []types.ContentBlock, toolCallArgs map[string]json.RawMessage) []types.ContentBlock {
	out := make([]types.ContentBlock, len(blocks))
	copy(out, blocks)
	for i := range out {
		if out[i].Type != "tool_use" {
			continue
		}
		if !out[i].IsTruncatedToolUse() {
			continue
		}
		if args, ok := toolCallArgs[out[i].ID]; ok {
			out[i].Input = args
		}
	}
	return out
}

func (b *builder) flushEndOfWalk() {
	if len(b.pending) == 0 {
		return
	}
	last := b.lastMessage()
	if last != nil && last.Role == types.RoleAssistant {
		for _, blk := range last.Content {
			if blk.Type == "tool_use" {
				b.flushPending()
				return
			}
		}
	}
	// No assistant tool_use to anchor these results; a trailing tool
	// result with nothing to attach to is simply dropped.
	b.pending = nil
}
