package types

import "encoding/json"

// ContentBlock is one block of a message's content array. Fields are a
// union over text / tool_use / thinking / tool_result blocks; callers
// only read the fields relevant to Type. This mirrors the provider
// wire shape without interpreting it further than reconstruction
// requires.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

const blockTypeToolUse = "tool_use"

// truncatedInput is the shape a tool_use block's input takes when the
// original arguments were too large to persist inline.
type truncatedInput struct {
	Truncated bool `json:"_truncated"`
}

// IsTruncatedToolUse reports whether this is a tool_use block whose
// input was replaced with a truncation marker.
func (b *ContentBlock) IsTruncatedToolUse() bool {
	if b.Type != blockTypeToolUse || len(b.Input) == 0 {
		return false
	}
	var t truncatedInput
	if err := json.Unmarshal(b.Input, &t); err != nil {
		return false
	}
	return t.Truncated
}

// Role is a reconstructed message's role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the reconstructed messages view.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// contentOrBlocks accepts either a bare JSON string or a block array
// and normalizes both into a block slice.
type contentOrBlocks struct {
	Blocks []ContentBlock
}

func (c *contentOrBlocks) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Blocks = []ContentBlock{{Type: "text", Text: s}}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Blocks = blocks
	return nil
}

// TokenUsage is the per-event token accounting payload.
type TokenUsage struct {
	InputTokens         int64 `json:"inputTokens,omitempty"`
	OutputTokens        int64 `json:"outputTokens,omitempty"`
	CacheReadTokens     int64 `json:"cacheReadTokens,omitempty"`
	CacheCreationTokens int64 `json:"cacheCreationTokens,omitempty"`
}

// Add accumulates o into t in place, treating a nil o as all zeros.
func (t *TokenUsage) Add(o *TokenUsage) {
	if o == nil {
		return
	}
	t.InputTokens += o.InputTokens
	t.OutputTokens += o.OutputTokens
	t.CacheReadTokens += o.CacheReadTokens
	t.CacheCreationTokens += o.CacheCreationTokens
}

// NormalizedUsage carries the provider-normalized context window size
// used as the session's authoritative "current context size".
type NormalizedUsage struct {
	ContextWindowTokens int64 `json:"contextWindowTokens,omitempty"`
}

// SessionStartPayload is the payload of a session.start event.
type SessionStartPayload struct {
	WorkingDirectory string         `json:"workingDirectory"`
	Model            string         `json:"model"`
	Provider         string         `json:"provider,omitempty"`
	Title            string         `json:"title,omitempty"`
	SystemPrompt     string         `json:"systemPrompt,omitempty"`
	ClientType       string         `json:"clientType,omitempty"`
	Version          string         `json:"version,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// SessionForkPayload is the payload of a session.fork event.
type SessionForkPayload struct {
	SourceSessionID string `json:"sourceSessionId"`
	SourceEventID   string `json:"sourceEventId"`
	Name            string `json:"name,omitempty"`
}

// MessageUserPayload is the payload of a message.user event.
type MessageUserPayload struct {
	Content    contentOrBlocks `json:"content"`
	TokenUsage *TokenUsage     `json:"tokenUsage,omitempty"`
	Turn       int             `json:"turn,omitempty"`
}

// Blocks returns the normalized content blocks.
func (p *MessageUserPayload) Blocks() []ContentBlock { return p.Content.Blocks }

// MessageAssistantPayload is the payload of a message.assistant event.
type MessageAssistantPayload struct {
	Content         []ContentBlock   `json:"content"`
	Turn            int              `json:"turn"`
	TokenUsage      *TokenUsage      `json:"tokenUsage,omitempty"`
	NormalizedUsage *NormalizedUsage `json:"normalizedUsage,omitempty"`
	StopReason      string           `json:"stopReason,omitempty"`
	Model           string           `json:"model,omitempty"`
	Cost            *float64         `json:"cost,omitempty"`
}

// MessageDeletedPayload is the payload of a message.deleted tombstone.
type MessageDeletedPayload struct {
	TargetEventID string       `json:"targetEventId"`
	TargetType    EventType    `json:"targetType"`
	TargetTurn    *int         `json:"targetTurn,omitempty"`
	Reason        DeleteReason `json:"reason"`
}

// ToolCallPayload is the payload of a tool.call event.
type ToolCallPayload struct {
	ToolCallID string          `json:"toolCallId"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Turn       int             `json:"turn,omitempty"`
}

// ToolResultPayload is the payload of a tool.result event.
type ToolResultPayload struct {
	ToolCallID string          `json:"toolCallId"`
	Content    json.RawMessage `json:"content"`
	IsError    bool            `json:"isError,omitempty"`
	Duration   *int64          `json:"duration,omitempty"`
	BlobID     *string         `json:"blobId,omitempty"`
}

// CompactBoundaryPayload is the payload of a compact.boundary event.
type CompactBoundaryPayload struct {
	BoundaryEventID string `json:"boundaryEventId"`
}

// CompactSummaryPayload is the payload of a compact.summary event.
type CompactSummaryPayload struct {
	Summary         string `json:"summary"`
	BoundaryEventID string `json:"boundaryEventId,omitempty"`
}

// ConfigModelSwitchPayload is the payload of a config.model_switch event.
type ConfigModelSwitchPayload struct {
	PreviousModel string `json:"previousModel"`
	NewModel      string `json:"newModel"`
}

// ConfigReasoningLevelPayload is the payload of a
// config.reasoning_level event.
type ConfigReasoningLevelPayload struct {
	PreviousLevel *ReasoningLevel `json:"previousLevel,omitempty"`
	NewLevel      ReasoningLevel  `json:"newLevel"`
}

// ConfigPromptUpdatePayload is the payload of a config.prompt_update
// event.
type ConfigPromptUpdatePayload struct {
	NewHash       string  `json:"newHash"`
	ContentBlobID *string `json:"contentBlobId,omitempty"`
}

// SkillAddedPayload is the payload of a skill.added event.
type SkillAddedPayload struct {
	SkillName string `json:"skillName"`
	Source    string `json:"source,omitempty"`
	AddedVia  string `json:"addedVia,omitempty"`
}

// SkillRemovedPayload is the payload of a skill.removed event.
type SkillRemovedPayload struct {
	SkillName string `json:"skillName"`
}

// MemoryLedgerPayload is the payload of a memory.ledger event.
type MemoryLedgerPayload struct {
	Title     string   `json:"title"`
	EntryType string   `json:"entryType,omitempty"`
	Status    string   `json:"status,omitempty"`
	Input     string   `json:"input,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	Files     []string `json:"files,omitempty"`
	Lessons   []string `json:"lessons,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// PlanModeEnteredPayload is the payload of a plan.mode_entered event.
type PlanModeEnteredPayload struct {
	SkillName    string   `json:"skillName,omitempty"`
	BlockedTools []string `json:"blockedTools,omitempty"`
}

// PlanExitReason is the closed set of reasons plan mode was exited.
type PlanExitReason string

const (
	PlanApproved  PlanExitReason = "approved"
	PlanCancelled PlanExitReason = "cancelled"
	PlanTimeout   PlanExitReason = "timeout"
)

// PlanModeExitedPayload is the payload of a plan.mode_exited event.
type PlanModeExitedPayload struct {
	Reason   PlanExitReason `json:"reason"`
	PlanPath string         `json:"planPath,omitempty"`
}

// PlanCreatedPayload is the payload of a plan.created event.
type PlanCreatedPayload struct {
	PlanPath    string `json:"planPath"`
	Title       string `json:"title"`
	ContentHash string `json:"contentHash"`
	Tokens      *int64 `json:"tokens,omitempty"`
}

// StreamTurnPayload is the payload of stream.turn_start/stream.turn_end
// events.
type StreamTurnPayload struct {
	Turn int `json:"turn"`
}
