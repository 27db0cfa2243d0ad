// Package packet implements the CognitionPacket: the single record
// that flows between every GAIA service for one turn (or sub-turn) of
// cognition. It is constructed once near the edge, enriched in place
// by each pipeline stage, and hashed at every service boundary so a
// receiver can detect a packet that was mutated in flight.
//
// The type is a literal Go struct tree rather than a generic
// map-of-maps, matching the framework's habit of modelling wire
// payloads as typed structs (see core/component.go's ServiceInfo) and
// carrying json tags for direct (de)serialization.
package packet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
)

// CurrentVersion is the packet schema version this build emits.
const CurrentVersion = "0.3"

// PersonaRole enumerates which voice is speaking.
type PersonaRole string

const (
	RoleDefault  PersonaRole = "default"
	RolePrime    PersonaRole = "prime"
	RoleLite     PersonaRole = "lite"
	RoleObserver PersonaRole = "observer"
)

// Origin enumerates who initiated the turn.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginSystem    Origin = "system"
	OriginHeartbeat Origin = "heartbeat"
)

// TargetEngine selects which inference backend should serve the turn.
type TargetEngine string

const (
	EngineDefault TargetEngine = "default"
	EngineLite    TargetEngine = "lite"
	EngineReason  TargetEngine = "reasoning"
)

// SystemTask enumerates non-conversational turn kinds.
type SystemTask string

const (
	TaskNone          SystemTask = ""
	TaskGenerateDraft SystemTask = "generate_draft"
	TaskReflect       SystemTask = "reflect"
	TaskSummarize     SystemTask = "summarize"
)

// OutputDestination enumerates where a Response is ultimately delivered.
type OutputDestination string

const (
	DestinationWeb     OutputDestination = "web"
	DestinationDiscord OutputDestination = "discord"
	DestinationLog     OutputDestination = "log"
	DestinationAudio   OutputDestination = "audio"
)

// PacketState is the turn's lifecycle state. Transitions are validated
// by CanTransition below; it is a strict DAG, never a cycle.
type PacketState string

const (
	StateInitialized PacketState = "initialized"
	StateDispatched  PacketState = "dispatched"
	StateGenerating  PacketState = "generating"
	StateAborted     PacketState = "aborted"
	StateFinalized   PacketState = "finalized"
	StateFailed      PacketState = "failed"
)

// allowedTransitions encodes the state graph from spec: initialized ->
// dispatched -> generating -> {aborted|finalized|failed}.
var allowedTransitions = map[PacketState][]PacketState{
	StateInitialized: {StateDispatched},
	StateDispatched:  {StateGenerating, StateFailed},
	StateGenerating:  {StateAborted, StateFinalized, StateFailed},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to PacketState) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Persona describes which identity is speaking for this turn.
type Persona struct {
	IdentityID string      `json:"identity_id"`
	PersonaID  string      `json:"persona_id"`
	Role       PersonaRole `json:"role"`
	ToneHint   string      `json:"tone_hint,omitempty"`
	Traits     []string    `json:"traits,omitempty"`
}

// Routing carries engine/priority selection made before dispatch.
type Routing struct {
	TargetEngine TargetEngine `json:"target_engine"`
	Priority     int          `json:"priority"`
}

// DestinationTarget identifies a specific recipient on a channel.
type DestinationTarget struct {
	ChannelID string `json:"channel_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// OutputRouting says where the final Response should be delivered.
type OutputRouting struct {
	Primary OutputDestination `json:"primary"`
	Target  DestinationTarget  `json:"target"`
}

// Model identifies the inference backend handling the turn.
type Model struct {
	Name                string `json:"name"`
	Provider            string `json:"provider"`
	ContextWindowTokens int    `json:"context_window_tokens"`
}

// Header is the packet's routing and identity envelope.
type Header struct {
	Timestamp     time.Time     `json:"timestamp"`
	SessionID     string        `json:"session_id"`
	PacketID      string        `json:"packet_id"`
	SubID         string        `json:"sub_id,omitempty"`
	Persona       Persona       `json:"persona"`
	Origin        Origin        `json:"origin"`
	Routing       Routing       `json:"routing"`
	Model         Model         `json:"model"`
	OutputRouting OutputRouting `json:"output_routing"`
}

// Intent is the classifier's verdict for this turn.
type Intent struct {
	UserIntent string     `json:"user_intent"`
	SystemTask SystemTask `json:"system_task,omitempty"`
	Confidence float64    `json:"confidence"`
}

// SessionHistoryRef points at where prior turns for this session live.
type SessionHistoryRef struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RelevantHistorySnippet is one retrieved slice of prior conversation.
type RelevantHistorySnippet struct {
	Role    string `json:"role"`
	Summary string `json:"summary"`
}

// Cheatsheet points at a piece of procedural guidance to inject.
type Cheatsheet struct {
	Title         string   `json:"title"`
	Pointer       string   `json:"pointer"`
	ProtocolRules []string `json:"protocol_rules,omitempty"`
}

// Constraints bound how the turn may be generated.
type Constraints struct {
	MaxTokens     int    `json:"max_tokens,omitempty"`
	TimeBudgetMs  int    `json:"time_budget_ms,omitempty"`
	SafetyMode    string `json:"safety_mode"` // strict | standard
}

// Context carries retrieved and constraining material for the turn.
type Context struct {
	SessionHistoryRef SessionHistoryRef        `json:"session_history_ref"`
	RelevantHistory   []RelevantHistorySnippet `json:"relevant_history,omitempty"`
	Cheatsheets       []Cheatsheet             `json:"cheatsheets,omitempty"`
	Constraints       Constraints              `json:"constraints"`
}

// DataField is the packet's extensibility point: probe results,
// identity excerpts, world-state snapshots, retrieved documents,
// knowledge-base hints, read-only flags and tool-selection hints all
// live here as typed, keyed entries instead of growing Content's
// fixed fields. Value holds the already-serialized-friendly payload;
// Type documents what shape the caller should expect there.
type DataField struct {
	Key   string      `json:"key"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Attachment references an out-of-band blob (an image, a file) the
// turn carries without inlining its bytes into the packet.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	URI         string `json:"uri"`
}

// Content is the turn's subject matter.
type Content struct {
	OriginalPrompt string       `json:"original_prompt"`
	DataFields     []DataField  `json:"data_fields,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// ReflectionEntry is one step of the packet's self-narrated reasoning
// trail. This is the single canonical shape every AppendReflection
// call writes; see DESIGN.md Open Question #2.
type ReflectionEntry struct {
	Step    string `json:"step"`
	Summary string `json:"summary"`
}

// ResponseFragment is one piece of a segmented long generation.
type ResponseFragment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Evaluation is a post-hoc quality judgment of the draft response.
type Evaluation struct {
	Score  float64 `json:"score,omitempty"`
	Notes  string  `json:"notes,omitempty"`
}

// Reasoning carries the packet's working memory and scratch state.
type Reasoning struct {
	ReflectionLog    []ReflectionEntry  `json:"reflection_log,omitempty"`
	Sketchpad        string             `json:"sketchpad,omitempty"`
	ResponseFragments []ResponseFragment `json:"response_fragments,omitempty"`
	Evaluation       Evaluation         `json:"evaluation,omitempty"`
}

// SelectedTool is one tool the routing stage chose to invoke, with why.
type SelectedTool struct {
	Name      string  `json:"name"`
	Rationale string  `json:"rationale"`
	Score     float64 `json:"score,omitempty"`
}

// ToolExecutionStatus enumerates a tool call's outcome.
type ToolExecutionStatus string

const (
	ToolStatusPending   ToolExecutionStatus = "pending"
	ToolStatusSucceeded ToolExecutionStatus = "succeeded"
	ToolStatusFailed    ToolExecutionStatus = "failed"
)

// ToolExecutionResult is the recorded outcome of one selected tool call.
type ToolExecutionResult struct {
	Tool     string              `json:"tool"`
	Status   ToolExecutionStatus `json:"status"`
	Output   string              `json:"output,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// ToolRoutingState tracks which tools were considered and invoked.
type ToolRoutingState struct {
	Selected []SelectedTool        `json:"selected,omitempty"`
	Results  []ToolExecutionResult `json:"results,omitempty"`
}

// ToolCall is a tool invocation requested by the model's draft output.
type ToolCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// SidecarAction is a non-textual side effect the response should trigger.
type SidecarAction struct {
	ActionType string                 `json:"action_type"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// Response is the turn's generated output.
type Response struct {
	Candidate      string          `json:"candidate"`
	Confidence     float64         `json:"confidence,omitempty"`
	StreamProposal bool            `json:"stream_proposal"`
	ToolCalls      []ToolCall      `json:"tool_calls,omitempty"`
	SidecarActions []SidecarAction `json:"sidecar_actions,omitempty"`
}

// Safety carries execution-gating flags for tool/sidecar actions.
type Safety struct {
	ExecutionAllowed bool `json:"execution_allowed"`
	DryRun           bool `json:"dry_run"`
}

// Signatures holds any cryptographic attestations attached to the turn.
type Signatures struct {
	Values map[string]string `json:"values,omitempty"`
}

// Audit is the post-hash trail of what happened to the packet.
type Audit struct {
	Entries []string `json:"entries,omitempty"`
}

// Privacy carries redaction/retention flags.
type Privacy struct {
	Redacted      bool `json:"redacted"`
	RetentionDays int  `json:"retention_days,omitempty"`
}

// Governance bundles the turn's safety/audit/privacy posture.
type Governance struct {
	Safety     Safety     `json:"safety"`
	Signatures Signatures `json:"signatures,omitempty"`
	Audit      Audit      `json:"audit,omitempty"`
	Privacy    Privacy    `json:"privacy,omitempty"`
}

// TokenUsage tallies the turn's token accounting.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// SystemResources snapshots host load at the time of the turn.
type SystemResources struct {
	CPUPercent float64 `json:"cpu_percent,omitempty"`
	MemoryMB   float64 `json:"memory_mb,omitempty"`
	GPUMemoryMB float64 `json:"gpu_memory_mb,omitempty"`
}

// Metrics carries the turn's performance accounting.
type Metrics struct {
	TokenUsage      TokenUsage      `json:"token_usage"`
	LatencyMs       int64           `json:"latency_ms"`
	SystemResources SystemResources `json:"system_resources,omitempty"`
}

// Status is the packet's lifecycle bookkeeping.
type Status struct {
	State        PacketState `json:"state"`
	Finalized    bool        `json:"finalized"`
	NextSteps    []string    `json:"next_steps,omitempty"`
	ObserverTrace []string   `json:"observer_trace,omitempty"`
}

// Hashes are computed at every service boundary; Content covers every
// field except Audit and ObserverTrace (the post-hash fields), so a
// receiver can detect any other in-flight mutation.
type Hashes struct {
	Content string `json:"content"`
}

// CognitionPacket is the unit of work passed between every GAIA service.
type CognitionPacket struct {
	Version   string           `json:"version"`
	Header    Header           `json:"header"`
	Intent    Intent           `json:"intent"`
	Context   Context          `json:"context"`
	Content   Content          `json:"content"`
	Reasoning Reasoning        `json:"reasoning"`
	Response  Response         `json:"response"`
	ToolState ToolRoutingState `json:"tool_routing_state"`
	Governance Governance      `json:"governance"`
	Metrics   Metrics          `json:"metrics"`
	Status    Status           `json:"status"`
	Hashes    Hashes           `json:"hashes,omitempty"`
}

// New constructs a fresh packet for a new turn.
func New(sessionID string, origin Origin, prompt string) *CognitionPacket {
	return &CognitionPacket{
		Version: CurrentVersion,
		Header: Header{
			Timestamp: time.Now().UTC(),
			SessionID: sessionID,
			PacketID:  uuid.NewString(),
			Origin:    origin,
			Persona:   Persona{Role: RoleDefault},
			Routing:   Routing{TargetEngine: EngineDefault},
		},
		Content: Content{OriginalPrompt: prompt},
		Status:  Status{State: StateInitialized},
	}
}

// NewSubPacket derives a nested sub-turn packet from parent, sharing
// its session and persona but carrying its own packet/sub id pair so
// state transitions on the sub-turn never collide with the parent's.
func NewSubPacket(parent *CognitionPacket, subID string) *CognitionPacket {
	sub := *parent
	sub.Header.PacketID = uuid.NewString()
	sub.Header.SubID = subID
	sub.Status = Status{State: StateInitialized}
	sub.Hashes = Hashes{}
	return &sub
}

// AppendReflection adds one reflection-log entry. This is the only
// write path into Reasoning.ReflectionLog; every call site uses this
// method instead of appending the slice directly so the log shape
// never drifts (DESIGN.md Open Question #2).
func (p *CognitionPacket) AppendReflection(step, summary string) {
	p.Reasoning.ReflectionLog = append(p.Reasoning.ReflectionLog, ReflectionEntry{Step: step, Summary: summary})
}

// Transition moves the packet to `to`, returning an error if the move
// isn't in the allowed transition graph.
func (p *CognitionPacket) Transition(to PacketState) error {
	if !CanTransition(p.Status.State, to) {
		return gaiaerr.New("CognitionPacket.Transition", "packet",
			fmt.Errorf("%w: %s -> %s", gaiaerr.ErrPacketMalformed, p.Status.State, to)).WithID(p.Header.PacketID)
	}
	p.Status.State = to
	if to == StateFinalized {
		p.Status.Finalized = true
	}
	return nil
}

// Validate checks the packet's required identity fields. It is the
// narrow structural check; semantic checks (does this intent exist,
// is this tool known) live in the packages that own those concepts.
func (p *CognitionPacket) Validate() error {
	if p.Header.PacketID == "" {
		return gaiaerr.New("CognitionPacket.Validate", "packet",
			fmt.Errorf("%w: missing packet_id", gaiaerr.ErrPacketMalformed))
	}
	if p.Header.SessionID == "" {
		return gaiaerr.New("CognitionPacket.Validate", "packet",
			fmt.Errorf("%w: missing session_id", gaiaerr.ErrPacketMalformed)).WithID(p.Header.PacketID)
	}
	return nil
}

// canonical returns a map of every hash-covered field, suitable for
// deterministic JSON encoding. Audit and ObserverTrace are excluded:
// they are the post-hash trail of what services did to the packet,
// not part of its content.
func (p *CognitionPacket) canonical() map[string]interface{} {
	clone := *p
	clone.Governance.Audit = Audit{}
	clone.Status.ObserverTrace = nil
	clone.Hashes = Hashes{}

	data, _ := json.Marshal(clone)
	var m map[string]interface{}
	_ = json.Unmarshal(data, &m)
	return m
}

// ComputeHashes fills p.Hashes.Content with a sha256 digest of the
// packet's canonical JSON encoding. encoding/json already sorts map
// keys and preserves slice order, so two packets with identical field
// values always hash identically regardless of construction order.
func (p *CognitionPacket) ComputeHashes() error {
	canon := p.canonical()
	stable, err := stableMarshal(canon)
	if err != nil {
		return gaiaerr.New("CognitionPacket.ComputeHashes", "packet", err).WithID(p.Header.PacketID)
	}
	sum := sha256.Sum256(stable)
	p.Hashes.Content = hex.EncodeToString(sum[:])
	return nil
}

// stableMarshal re-encodes v with map keys sorted at every level.
// encoding/json already sorts top-level map[string]interface{} keys,
// but nested maps produced by round-tripping through interface{}
// values need the same guarantee, so this walks recursively.
func stableMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(sortValue(v))
}

func sortValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, kv{k, sortValue(t[k])})
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortValue(e)
		}
		return out
	default:
		return t
	}
}

type kv struct {
	Key   string
	Value interface{}
}

// orderedMap marshals as a JSON object with keys in insertion order,
// which sortValue has already sorted lexicographically.
type orderedMap []kv

func (o orderedMap) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	for i, pair := range o {
		if i > 0 {
			b = append(b, ',')
		}
		key, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(pair.Value)
		if err != nil {
			return nil, err
		}
		b = append(b, key...)
		b = append(b, ':')
		b = append(b, val...)
	}
	b = append(b, '}')
	return b, nil
}

// VerifyHashes recomputes the content hash and compares it against
// p.Hashes.Content, returning ErrPacketHashMismatch if they differ.
func (p *CognitionPacket) VerifyHashes() error {
	want := p.Hashes.Content
	if err := p.ComputeHashes(); err != nil {
		return err
	}
	got := p.Hashes.Content
	p.Hashes.Content = want
	if want != got {
		return gaiaerr.New("CognitionPacket.VerifyHashes", "packet", gaiaerr.ErrPacketHashMismatch).WithID(p.Header.PacketID)
	}
	return nil
}

// ToJSON serializes the packet to its stable wire form.
func (p *CognitionPacket) ToJSON() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, gaiaerr.New("CognitionPacket.ToJSON", "packet", err).WithID(p.Header.PacketID)
	}
	return data, nil
}

// FromJSON deserializes and upgrades a packet from its wire form,
// applying version migration if the received version is older than
// CurrentVersion.
func FromJSON(data []byte) (*CognitionPacket, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, gaiaerr.New("packet.FromJSON", "packet", fmt.Errorf("%w: %v", gaiaerr.ErrPacketMalformed, err))
	}

	version, _ := raw["version"].(string)
	upgraded, err := Upgrade(raw, version)
	if err != nil {
		return nil, err
	}

	normalized, err := json.Marshal(upgraded)
	if err != nil {
		return nil, gaiaerr.New("packet.FromJSON", "packet", err)
	}

	var p CognitionPacket
	if err := json.Unmarshal(normalized, &p); err != nil {
		return nil, gaiaerr.New("packet.FromJSON", "packet", fmt.Errorf("%w: %v", gaiaerr.ErrPacketMalformed, err))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
