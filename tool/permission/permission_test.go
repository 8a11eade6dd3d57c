package permission_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/tool/permission"
)

func baseConfig() permission.Config {
	return permission.Config{
		AutoApprove: []permission.Pattern{
			{Pattern: "ls"}, {Pattern: "git status"},
		},
		RequireApproval: []permission.Pattern{
			{Pattern: "curl"},
		},
		Deny: []permission.Pattern{
			{Pattern: "rm -rf /", Message: "dangerous"},
		},
	}
}

func TestEvaluateCommandAutoApprove(t *testing.T) {
	result, _ := permission.EvaluateCommand(baseConfig(), "ls -la", permission.Options{})
	require.Equal(t, permission.AutoApprove, result)
}

func TestEvaluateCommandRequireApprovalDefault(t *testing.T) {
	result, _ := permission.EvaluateCommand(baseConfig(), "echo hi", permission.Options{})
	require.Equal(t, permission.RequireApproval, result)
}

func TestEvaluateCommandDeny(t *testing.T) {
	result, msg := permission.EvaluateCommand(baseConfig(), "rm -rf /", permission.Options{})
	require.Equal(t, permission.Deny, result)
	require.Equal(t, "dangerous", msg)
}

func TestEvaluateCommandAbsolutePathOverridesAutoApprove(t *testing.T) {
	result, _ := permission.EvaluateCommand(baseConfig(), "ls /etc/passwd", permission.Options{})
	require.Equal(t, permission.RequireApproval, result)
}

func TestEvaluateScriptDenyWins(t *testing.T) {
	result, _ := permission.EvaluateScript(baseConfig(), "ls; rm -rf /", permission.Options{})
	require.Equal(t, permission.Deny, result)
}

func TestEvaluateScriptAllAutoApprove(t *testing.T) {
	result, _ := permission.EvaluateScript(baseConfig(), "ls && git status", permission.Options{})
	require.Equal(t, permission.AutoApprove, result)
}

func TestExtractCommandsFromShDashC(t *testing.T) {
	cmds := permission.ExtractCommands(`sh -c "ls -la"`)
	require.Contains(t, cmds, "ls -la")
}

func TestExtractCommandsFromSubshell(t *testing.T) {
	cmds := permission.ExtractCommands("(cd /tmp && ls)")
	found := false
	for _, c := range cmds {
		if c == "ls" {
			found = true
		}
	}
	require.True(t, found)
}
