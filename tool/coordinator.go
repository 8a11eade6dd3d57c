package tool

import (
	"context"
	"fmt"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/jplog"
	"github.com/sidedotdev/jp/tool/permission"
)

// Prompter shows interactive prompts during the permission and inquiry
// stages. This module has no implementation of it outside tests, which
// supply a canned fake.
type Prompter interface {
	// Confirm asks whether to run the tool described by info. The returned
	// message, if non-empty, is shown alongside the prompt (e.g. a deny
	// reason or a require-approval pattern message).
	Confirm(info PermissionInfo, message string) (bool, error)

	// EditArguments opens info.Arguments for editing and returns the
	// (possibly unchanged) result.
	EditArguments(info PermissionInfo) (map[string]any, error)

	// Ask prompts the user to answer a NeedsInput question directly.
	Ask(question convo.Question) (any, error)
}

// Coordinator drives the four-stage tool-call pipeline (validation,
// permission, execution, inquiry loop) described in spec §4.6.
type Coordinator struct {
	tools    map[string]Tool
	source   ExecutorSource
	prompter Prompter

	permissionConfig permission.Config
	permissionOpts   permission.Options
}

// NewCoordinator builds a Coordinator. tools is the registry of callable
// tool definitions (schema + RunMode) keyed by name; prompter may be nil if
// no tool in the registry uses RunAsk or RunEdit.
func NewCoordinator(tools map[string]Tool, source ExecutorSource, prompter Prompter) *Coordinator {
	return &Coordinator{tools: tools, source: source, prompter: prompter}
}

// WithPermissionConfig attaches the shell-command permission patterns
// that EvaluateCommandPermission checks a command against. Run does not
// consult them and does not inspect tool arguments for commands.
func (c *Coordinator) WithPermissionConfig(config permission.Config, opts permission.Options) *Coordinator {
	c.permissionConfig = config
	c.permissionOpts = opts
	return c
}

// Outcome is the result of running one tool call: either it produced a
// ToolCallResponse to append to the stream, or it's paused awaiting an
// InquiryRequest answer and produced that event instead.
type Outcome struct {
	Response *convo.ToolCallResponse
	Inquiry  *convo.InquiryRequest
}

func respond(id string, result convo.ToolCallResult) Outcome {
	return Outcome{Response: &convo.ToolCallResponse{ID: id, Result: result}}
}

func errResponse(id string, err error) Outcome {
	return respond(id, convo.ErrResult(err.Error()))
}

// Run executes request through validation, permission, execution, and (if
// needed) one round of the inquiry loop. cancel may be nil.
func (c *Coordinator) Run(ctx context.Context, request convo.ToolCallRequest, cancel <-chan struct{}) Outcome {
	outcome := c.run(ctx, request, cancel)
	jplog.LogToolCall(request.Name, request.ID, outcomeKind(outcome))
	return outcome
}

// outcomeKind classifies an Outcome for logging: "needs_input" when the
// inquiry loop paused, "error" when the response was an error (whatever
// its Error.Kind), "ok" otherwise.
func outcomeKind(o Outcome) string {
	switch {
	case o.Inquiry != nil:
		return "needs_input"
	case o.Response != nil && o.Response.Result.Err != nil:
		return "error"
	default:
		return "ok"
	}
}

func (c *Coordinator) run(ctx context.Context, request convo.ToolCallRequest, cancel <-chan struct{}) Outcome {
	def, ok := c.tools[request.Name]
	if !ok {
		return errResponse(request.ID, notFoundErr(request.Name))
	}

	validated, verr := ValidateArguments(def.Parameters, request.Arguments)
	if verr != nil {
		return errResponse(request.ID, verr)
	}
	request.Arguments = validated

	executor, err := c.source.Create(ctx, request)
	if err != nil {
		return errResponse(request.ID, err)
	}
	executor.SetArguments(validated)

	if def.RunMode == RunSkip {
		return errResponse(request.ID, skippedErr(""))
	}

	if granted, outcome := c.evaluatePermission(executor, def); !granted {
		return outcome
	}

	return c.execute(ctx, executor, map[string]any{}, cancel)
}

// evaluatePermission runs the RunAsk/RunEdit prompt stages. It returns
// granted=true when execution should proceed (possibly after SetArguments
// was called with edited values); otherwise outcome holds the terminal
// response.
func (c *Coordinator) evaluatePermission(executor Executor, def Tool) (bool, Outcome) {
	info := executor.PermissionInfo()

	switch def.RunMode {
	case RunAlways, RunUnattended:
		return true, Outcome{}
	case RunSkip:
		return false, errResponse(executor.ToolID(), skippedErr(""))
	}

	if info == nil || c.prompter == nil {
		return true, Outcome{}
	}

	switch def.RunMode {
	case RunAsk:
		ok, err := c.prompter.Confirm(*info, "")
		if err != nil {
			return false, errResponse(executor.ToolID(), &Error{Kind: "cancelled", Message: err.Error()})
		}
		if !ok {
			return false, errResponse(executor.ToolID(), cancelledErr())
		}
		return true, Outcome{}
	case RunEdit:
		edited, err := c.prompter.EditArguments(*info)
		if err != nil {
			return false, errResponse(executor.ToolID(), &Error{Kind: "open_editor", Message: err.Error()})
		}
		executor.SetArguments(edited)
		return true, Outcome{}
	}
	return true, Outcome{}
}

// EvaluateCommandPermission checks a shell command an about-to-run tool
// would execute against the configured permission patterns, for tools
// (like a shell-exec builtin) whose RunMode alone isn't the whole story.
func (c *Coordinator) EvaluateCommandPermission(command string) (permission.Result, string) {
	return permission.EvaluateCommand(c.permissionConfig, command, c.permissionOpts)
}

func (c *Coordinator) execute(ctx context.Context, executor Executor, answers map[string]any, cancel <-chan struct{}) Outcome {
	result := executor.Execute(ctx, answers, cancel)

	if result.Completed != nil {
		return Outcome{Response: result.Completed}
	}

	needs := result.NeedsInput
	if needs == nil {
		return errResponse(executor.ToolID(), &Error{Kind: "serde", Message: "executor returned neither Completed nor NeedsInput"})
	}

	switch needs.Target {
	case TargetAssistant:
		return Outcome{Inquiry: &convo.InquiryRequest{
			ID:       fmt.Sprintf("%s:%s", needs.ToolID, needs.ToolName),
			Source:   convo.InquirySource{Role: convo.RoleTool, Name: needs.ToolName},
			Question: needs.Question,
		}}
	case TargetUser:
		if c.prompter == nil {
			return errResponse(executor.ToolID(), &Error{Kind: "skipped", Message: "question targets the user but no prompter is configured"})
		}
		answer, err := c.prompter.Ask(needs.Question)
		if err != nil {
			return errResponse(executor.ToolID(), &Error{Kind: "cancelled", Message: err.Error()})
		}
		next := make(map[string]any, len(needs.AccumulatedAnswers)+1)
		for k, v := range needs.AccumulatedAnswers {
			next[k] = v
		}
		next[needs.Question.Prompt] = answer
		return c.execute(ctx, executor, next, cancel)
	default:
		return errResponse(executor.ToolID(), &Error{Kind: "serde", Message: "NeedsInput with unset question target"})
	}
}
