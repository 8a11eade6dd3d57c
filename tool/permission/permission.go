// Package permission evaluates whether a shell command a tool is about to
// run should be auto-approved, require interactive approval, or be denied
// outright, and extracts the individual commands out of a shell script so
// each one can be evaluated independently.
package permission

import (
	"regexp"
	"strconv"
	"strings"
)

// Result is the outcome of evaluating a command or script against a
// Config.
type Result string

const (
	AutoApprove     Result = "auto_approve"
	RequireApproval Result = "require_approval"
	Deny            Result = "deny"
)

// Pattern matches a command, either as a literal prefix or, if it
// contains regex metacharacters, as an anchored regular expression.
type Pattern struct {
	Pattern string `toml:"pattern" json:"pattern" koanf:"pattern"`
	Message string `toml:"message,omitempty" json:"message,omitempty" koanf:"message,omitempty"`
}

// Config holds the three pattern lists consulted in order: Deny,
// RequireApproval, AutoApprove.
type Config struct {
	AutoApprove     []Pattern `toml:"auto_approve" json:"autoApprove" koanf:"auto_approve"`
	RequireApproval []Pattern `toml:"require_approval" json:"requireApproval" koanf:"require_approval"`
	Deny            []Pattern `toml:"deny" json:"deny" koanf:"deny"`
}

// Options tweaks command matching behavior.
type Options struct {
	// StripEnvVarPrefix removes leading "VAR=value" assignments from the
	// command before matching against patterns that don't themselves
	// reference environment variables.
	StripEnvVarPrefix bool
}

const regexMetaChars = `\.*+?[](){}|^$`

var envVarPrefixRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*=[^\s]*\s+)+`)

func stripEnvVarPrefix(command string) string {
	return envVarPrefixRegex.ReplaceAllString(command, "")
}

var envVarRefRegex = regexp.MustCompile(`\\?\$[A-Za-z_]|\\?\$\\?\{`)
var envVarAssignRegex = regexp.MustCompile(`^(\^|\\^)?[A-Za-z_][A-Za-z0-9_]*=`)

func patternContainsEnvVar(pattern string) bool {
	return envVarRefRegex.MatchString(pattern) || envVarAssignRegex.MatchString(pattern)
}

// matchPattern tries an exact prefix match first; if that fails and the
// pattern looks like a regex, it compiles it anchored at the start.
func matchPattern(pattern, command string) (bool, []string) {
	if strings.HasPrefix(command, pattern) {
		return true, []string{pattern}
	}
	if !strings.ContainsAny(pattern, regexMetaChars) {
		return false, nil
	}

	regexPattern := pattern
	if !strings.HasPrefix(regexPattern, "^") {
		regexPattern = "^" + regexPattern
	}
	re, err := regexp.Compile(regexPattern)
	if err != nil {
		return false, nil
	}
	matches := re.FindStringSubmatch(command)
	if matches == nil {
		return false, nil
	}
	return true, matches
}

func interpolateMessage(message string, matches []string) string {
	if len(matches) == 0 {
		return message
	}
	result := message
	for i := len(matches) - 1; i >= 0; i-- {
		result = strings.ReplaceAll(result, "$"+strconv.Itoa(i), matches[i])
	}
	return result
}

// EvaluateCommand checks command against deny, then require-approval,
// then auto-approve patterns in that order, and returns the first match.
// Commands matching no pattern default to RequireApproval.
func EvaluateCommand(config Config, command string, opts Options) (Result, string) {
	stripped := command
	if opts.StripEnvVarPrefix {
		stripped = stripEnvVarPrefix(command)
	}

	target := func(pattern string) string {
		if patternContainsEnvVar(pattern) {
			return command
		}
		return stripped
	}

	for _, p := range config.Deny {
		if matched, matches := matchPattern(p.Pattern, target(p.Pattern)); matched {
			msg := p.Message
			if msg != "" && len(matches) > 0 {
				msg = interpolateMessage(msg, matches)
			}
			return Deny, msg
		}
	}

	for _, p := range config.RequireApproval {
		if matched, _ := matchPattern(p.Pattern, target(p.Pattern)); matched {
			return RequireApproval, ""
		}
	}

	for _, p := range config.AutoApprove {
		if matched, matches := matchPattern(p.Pattern, target(p.Pattern)); matched {
			// Auto-approval never applies to a command referencing an
			// absolute path; those always require a look before running.
			if containsAbsolutePath(command) {
				return RequireApproval, ""
			}
			msg := p.Message
			if msg != "" && len(matches) > 0 {
				msg = interpolateMessage(msg, matches)
			}
			return AutoApprove, msg
		}
	}

	return RequireApproval, ""
}

var safeAbsolutePaths = []string{"/dev/null", "/dev/stdin", "/dev/stdout", "/dev/stderr"}

// containsAbsolutePath reports whether command references a filesystem
// path starting with "/" that isn't one of a small safe allowlist. It is
// intentionally conservative: it only looks at whitespace-delimited
// tokens, so code-like constructs (pipes, redirects, substitutions) are
// not mistaken for paths.
func containsAbsolutePath(command string) bool {
	for _, tok := range strings.Fields(command) {
		tok = strings.TrimFunc(tok, func(r rune) bool { return r == '\'' || r == '"' })
		idx := strings.IndexByte(tok, '/')
		if idx < 0 {
			continue
		}
		// Accept "/path", "--flag=/path", "VAR=/path".
		if idx != 0 && tok[idx-1] != '=' {
			continue
		}
		path := tok[idx:]
		if containsCodeChars(path) {
			continue
		}
		safe := false
		for _, sp := range safeAbsolutePaths {
			if path == sp || strings.HasPrefix(path, sp+"/") {
				safe = true
				break
			}
		}
		if !safe {
			return true
		}
	}
	return false
}

func containsCodeChars(s string) bool {
	return strings.ContainsAny(s, "`'\"|&<>;#")
}

// EvaluateScript splits script into its constituent commands and
// evaluates each against config. The most restrictive result wins: any
// Deny makes the whole script Deny; otherwise any RequireApproval makes
// the whole script RequireApproval; only if every command auto-approves
// does the script as a whole.
func EvaluateScript(config Config, script string, opts Options) (Result, string) {
	commands := ExtractCommands(script)
	if len(commands) == 0 {
		return RequireApproval, ""
	}

	sawRequireApproval := false
	for _, cmd := range commands {
		result, msg := EvaluateCommand(config, cmd, opts)
		switch result {
		case Deny:
			return Deny, msg
		case RequireApproval:
			sawRequireApproval = true
		}
	}

	if sawRequireApproval {
		return RequireApproval, ""
	}
	return AutoApprove, ""
}
