package tool

import (
	"context"
	"sync"

	"github.com/sidedotdev/jp/convo"
)

// ToolSource identifies where a tool's implementation lives.
type ToolSource string

const (
	SourceBuiltin ToolSource = "builtin"
	SourceLocal   ToolSource = "local"
	SourceMCP     ToolSource = "mcp"
)

// PermissionInfo carries what a Prompter needs to show a permission prompt
// for one tool call. It is nil from Executor.PermissionInfo when the tool's
// RunMode never prompts (RunUnattended, RunSkip).
type PermissionInfo struct {
	ToolID     string
	ToolName   string
	ToolSource ToolSource
	RunMode    RunMode
	Arguments  map[string]any
}

// Executor runs a single tool call. The Coordinator is the only caller;
// it owns every decision about question targets, accumulated answers, and
// how NeedsInput is handled, so an Executor only ever needs to execute with
// whatever answers it's given and report back.
type Executor interface {
	ToolID() string
	ToolName() string

	// Arguments returns the tool call's arguments. Unlike PermissionInfo,
	// this is always available.
	Arguments() map[string]any

	// PermissionInfo returns prompt data, or nil if this tool's RunMode
	// never requires a prompt.
	PermissionInfo() *PermissionInfo

	// SetArguments replaces the arguments used for execution, called after
	// permission prompting if the user edited them (RunEdit).
	SetArguments(args map[string]any)

	// Execute runs one attempt. If the tool needs more input it returns an
	// ExecutorResult with NeedsInput set; the Coordinator prompts for it
	// (or asks the model) and retries with accumulated answers.
	Execute(ctx context.Context, answers map[string]any, cancel <-chan struct{}) ExecutorResult
}

// ExecutorSource creates Executors for tool call requests. Production code
// resolves a request against the configured builtin/local/MCP tools; tests
// inject a TestExecutorSource instead.
type ExecutorSource interface {
	Create(ctx context.Context, request convo.ToolCallRequest) (Executor, error)
}

// ExecutorResult is the outcome of one Execute call: either the tool
// finished (successfully or with an error) or it needs more input before it
// can continue.
type ExecutorResult struct {
	Completed *convo.ToolCallResponse
	NeedsInput *NeedsInput
}

// QuestionTarget says who should answer a NeedsInput question: the person
// at the keyboard, or the model in its next turn.
type QuestionTarget string

const (
	TargetUser      QuestionTarget = "user"
	TargetAssistant QuestionTarget = "assistant"
)

// NeedsInput reports that a tool call requires an answer before it can
// finish. The Coordinator inspects Target to decide whether to prompt the
// user interactively and restart execution, or emit an InquiryRequest event
// for the model to answer in its next turn.
type NeedsInput struct {
	ToolID             string
	ToolName           string
	Question           convo.Question
	Target             QuestionTarget
	AccumulatedAnswers map[string]any
}

func completedResult(response convo.ToolCallResponse) ExecutorResult {
	return ExecutorResult{Completed: &response}
}

func needsInputResult(n NeedsInput) ExecutorResult {
	return ExecutorResult{NeedsInput: &n}
}

// MockExecutor returns a pre-configured result without running anything,
// for testing tool coordination without side effects.
type MockExecutor struct {
	toolID         string
	toolName       string
	arguments      map[string]any
	permissionInfo *PermissionInfo

	mu       sync.Mutex
	result   *ExecutorResult
	consumed bool
}

// NewCompletedMock returns a MockExecutor whose Execute reports a
// successful completion with the given output.
func NewCompletedMock(toolID, toolName, output string) *MockExecutor {
	r := completedResult(convo.ToolCallResponse{ID: toolID, Result: convo.OkResult(output)})
	return &MockExecutor{toolID: toolID, toolName: toolName, arguments: map[string]any{}, result: &r}
}

// NewErrorMock returns a MockExecutor whose Execute reports a failed
// completion with the given error text.
func NewErrorMock(toolID, toolName, errText string) *MockExecutor {
	r := completedResult(convo.ToolCallResponse{ID: toolID, Result: convo.ErrResult(errText)})
	return &MockExecutor{toolID: toolID, toolName: toolName, arguments: map[string]any{}, result: &r}
}

func (m *MockExecutor) WithArguments(args map[string]any) *MockExecutor {
	m.arguments = args
	return m
}

func (m *MockExecutor) WithPermissionInfo(info PermissionInfo) *MockExecutor {
	m.permissionInfo = &info
	return m
}

func (m *MockExecutor) WithResult(result ExecutorResult) *MockExecutor {
	m.result = &result
	return m
}

func (m *MockExecutor) ToolID() string              { return m.toolID }
func (m *MockExecutor) ToolName() string             { return m.toolName }
func (m *MockExecutor) Arguments() map[string]any    { return m.arguments }
func (m *MockExecutor) PermissionInfo() *PermissionInfo { return m.permissionInfo }
func (m *MockExecutor) SetArguments(args map[string]any) {
	// no-op: the pre-configured result doesn't depend on arguments.
}

func (m *MockExecutor) Execute(ctx context.Context, answers map[string]any, cancel <-chan struct{}) ExecutorResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumed || m.result == nil {
		return completedResult(convo.ToolCallResponse{
			ID:     m.toolID,
			Result: convo.ErrResult("MockExecutor: result already consumed"),
		})
	}
	m.consumed = true
	return *m.result
}

// TestExecutorSource resolves tool names to pre-registered factory
// functions, letting tests inject MockExecutors without a real tool
// registry, MCP client, or shell.
type TestExecutorSource struct {
	factories map[string]func(convo.ToolCallRequest) Executor
}

func NewTestExecutorSource() *TestExecutorSource {
	return &TestExecutorSource{factories: map[string]func(convo.ToolCallRequest) Executor{}}
}

func (s *TestExecutorSource) WithExecutor(toolName string, factory func(convo.ToolCallRequest) Executor) *TestExecutorSource {
	s.factories[toolName] = factory
	return s
}

func (s *TestExecutorSource) Create(ctx context.Context, request convo.ToolCallRequest) (Executor, error) {
	factory, ok := s.factories[request.Name]
	if !ok {
		return nil, notFoundErr(request.Name)
	}
	return factory(request), nil
}
