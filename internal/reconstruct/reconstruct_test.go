package reconstruct

import (
	"encoding/json"
	"testing"

	"github.com/untoldecay/eventgraph/internal/types"
)

func ev(id string, parent *string, typ types.EventType, payload any) *types.Event {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return &types.Event{ID: id, ParentID: parent, Type: typ, Payload: data}
}

func sp(s string) *string { return &s }

func textBlocks(text string) []types.ContentBlock {
	return []types.ContentBlock{{Type: "text", Text: text}}
}

func TestBuildSingleTurn(t *testing.T) {
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{WorkingDirectory: "/repo", Model: "claude-sonnet-4"}),
		ev("e2", sp("e1"), types.EventMessageUser, map[string]any{"content": "hello"}),
		ev("e3", sp("e2"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: textBlocks("hi there"), Turn: 1}),
	}

	res := Build(chain)

	if len(res.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(res.Messages))
	}
	if res.Messages[0].Role != types.RoleUser || res.Messages[0].Content[0].Text != "hello" {
		t.Fatalf("unexpected first message: %+v", res.Messages[0])
	}
	if res.Messages[1].Role != types.RoleAssistant || res.Messages[1].Content[0].Text != "hi there" {
		t.Fatalf("unexpected second message: %+v", res.Messages[1])
	}
	if res.WorkingDirectory != "/repo" || res.Model != "claude-sonnet-4" {
		t.Fatalf("root event state not captured: %+v", res)
	}
	if res.TurnCount != 1 {
		t.Fatalf("expected turn count 1, got %d", res.TurnCount)
	}
}

func TestBuildToolLoopFlushesOnNextAssistantTurn(t *testing.T) {
	toolUseBlock := types.ContentBlock{Type: "tool_use", ID: "call_1", Name: "read_file", Input: json.RawMessage(`{"path":"a.go"}`)}
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventMessageUser, map[string]any{"content": "read a.go"}),
		ev("e3", sp("e2"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: []types.ContentBlock{toolUseBlock}, Turn: 1}),
		ev("e4", sp("e3"), types.EventToolResult, types.ToolResultPayload{ToolCallID: "call_1", Content: json.RawMessage(`"file contents"`)}),
		ev("e5", sp("e4"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: textBlocks("done"), Turn: 2}),
	}

	res := Build(chain)

	// user, assistant(tool_use), user(tool_result), assistant(done)
	if len(res.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(res.Messages), res.Messages)
	}
	if res.Messages[2].Role != types.RoleUser || res.Messages[2].Content[0].Type != "tool_result" {
		t.Fatalf("expected synthetic tool_result user message, got %+v", res.Messages[2])
	}
	if res.Messages[3].Content[0].Text != "done" {
		t.Fatalf("expected final assistant text, got %+v", res.Messages[3])
	}
}

func TestBuildMidLoopResumeFlushesAtEndOfWalk(t *testing.T) {
	toolUseBlock := types.ContentBlock{Type: "tool_use", ID: "call_1", Name: "read_file", Input: json.RawMessage(`{"path":"a.go"}`)}
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventMessageUser, map[string]any{"content": "read a.go"}),
		ev("e3", sp("e2"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: []types.ContentBlock{toolUseBlock}, Turn: 1}),
		ev("e4", sp("e3"), types.EventToolResult, types.ToolResultPayload{ToolCallID: "call_1", Content: json.RawMessage(`"file contents"`)}),
	}

	res := Build(chain)

	if len(res.Messages) != 3 {
		t.Fatalf("expected 3 messages (trailing tool result flushed at end of walk), got %d: %+v", len(res.Messages), res.Messages)
	}
	last := res.Messages[2]
	if last.Role != types.RoleUser || last.Content[0].Type != "tool_result" {
		t.Fatalf("expected trailing tool_result message, got %+v", last)
	}
}

func TestBuildTruncatedToolUseInputRestoredFromToolCallEvent(t *testing.T) {
	fullArgs := json.RawMessage(`{"path":"a.go","content":"a very long file body"}`)
	truncated := types.ContentBlock{Type: "tool_use", ID: "call_1", Name: "write_file", Input: json.RawMessage(`{"_truncated":true}`)}
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventToolCall, types.ToolCallPayload{ToolCallID: "call_1", Name: "write_file", Arguments: fullArgs}),
		ev("e3", sp("e2"), types.EventMessageUser, map[string]any{"content": "go"}),
		ev("e4", sp("e3"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: []types.ContentBlock{truncated}, Turn: 1}),
	}

	res := Build(chain)

	last := res.Messages[len(res.Messages)-1]
	if string(last.Content[0].Input) != string(fullArgs) {
		t.Fatalf("expected restored input %s, got %s", fullArgs, last.Content[0].Input)
	}
}

func TestBuildCompactionInjectsSyntheticPairAndDropsPriorMessages(t *testing.T) {
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventMessageUser, map[string]any{"content": "old turn"}),
		ev("e3", sp("e2"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: textBlocks("old reply"), Turn: 1}),
		ev("e4", sp("e3"), types.EventCompactBoundary, types.CompactBoundaryPayload{BoundaryEventID: "e3"}),
		ev("e5", sp("e4"), types.EventCompactSummary, types.CompactSummaryPayload{Summary: "summarized the earlier work", BoundaryEventID: "e3"}),
		ev("e6", sp("e5"), types.EventMessageUser, map[string]any{"content": "continue"}),
	}

	res := Build(chain)

	if len(res.Messages) != 3 {
		t.Fatalf("expected 3 messages after compaction, got %d: %+v", len(res.Messages), res.Messages)
	}
	if res.Messages[0].Content[0].Text != compactionPrefix+"summarized the earlier work" {
		t.Fatalf("unexpected compaction summary message: %+v", res.Messages[0])
	}
	if res.Messages[1].Content[0].Text != compactionAckText {
		t.Fatalf("unexpected compaction ack message: %+v", res.Messages[1])
	}
	if res.Messages[2].Content[0].Text != "continue" {
		t.Fatalf("expected post-compaction user turn to survive, got %+v", res.Messages[2])
	}
}

func TestBuildContextClearedDropsAllPriorMessages(t *testing.T) {
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventMessageUser, map[string]any{"content": "first"}),
		ev("e3", sp("e2"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: textBlocks("reply"), Turn: 1}),
		ev("e4", sp("e3"), types.EventContextCleared, struct{}{}),
		ev("e5", sp("e4"), types.EventMessageUser, map[string]any{"content": "fresh start"}),
	}

	res := Build(chain)

	if len(res.Messages) != 1 {
		t.Fatalf("expected only the post-clear message, got %d: %+v", len(res.Messages), res.Messages)
	}
	if res.Messages[0].Content[0].Text != "fresh start" {
		t.Fatalf("unexpected surviving message: %+v", res.Messages[0])
	}
}

func TestBuildDeletedMessageIsExcludedEntirely(t *testing.T) {
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventMessageUser, map[string]any{"content": "to be deleted"}),
		ev("e3", sp("e2"), types.EventMessageAssistant, types.MessageAssistantPayload{Content: textBlocks("reply"), Turn: 1}),
		ev("e4", sp("e3"), types.EventMessageDeleted, types.MessageDeletedPayload{TargetEventID: "e2", TargetType: types.EventMessageUser, Reason: types.DeleteUserRequest}),
	}

	res := Build(chain)

	for _, m := range res.Messages {
		for _, blk := range m.Content {
			if blk.Text == "to be deleted" {
				t.Fatalf("deleted message content leaked into reconstruction: %+v", res.Messages)
			}
		}
	}
}

func TestBuildConsecutiveUserMessagesMerge(t *testing.T) {
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventMessageUser, map[string]any{"content": "part one"}),
		ev("e3", sp("e2"), types.EventMessageUser, map[string]any{"content": "part two"}),
	}

	res := Build(chain)

	if len(res.Messages) != 1 {
		t.Fatalf("expected consecutive user messages to merge into one, got %d", len(res.Messages))
	}
	if len(res.Messages[0].Content) != 2 {
		t.Fatalf("expected merged message to carry both blocks, got %+v", res.Messages[0].Content)
	}
}

func TestBuildReasoningLevelIsCapturedFromMostRecentChange(t *testing.T) {
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "m"}),
		ev("e2", sp("e1"), types.EventConfigReasoningLvl, types.ConfigReasoningLevelPayload{NewLevel: types.ReasoningMedium}),
		ev("e3", sp("e2"), types.EventConfigReasoningLvl, types.ConfigReasoningLevelPayload{NewLevel: types.ReasoningHigh}),
	}

	res := Build(chain)

	if res.ReasoningLevel == nil || *res.ReasoningLevel != types.ReasoningHigh {
		t.Fatalf("expected final reasoning level high, got %v", res.ReasoningLevel)
	}
}
