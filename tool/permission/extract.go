package permission

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
)

// ExtractCommands parses script as bash and returns every executable
// command found within it, including ones nested inside command
// substitutions, subshells, brace groups, and common wrapper commands
// (sh -c, eval, exec, xargs, sudo, env, ssh, find -exec, ...).
func ExtractCommands(script string) []string {
	parser := sitter.NewParser()
	parser.SetLanguage(bash.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(script))
	if err != nil {
		return nil
	}

	src := []byte(script)
	var commands []string
	walk(tree.RootNode(), src, &commands)
	return commands
}

func walk(node *sitter.Node, src []byte, commands *[]string) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "command":
		if text := fullCommandText(node, src); text != "" {
			*commands = append(*commands, text)
			expandWrapper(text, commands)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			findSubstitutions(node.Child(i), src, commands)
		}
		return

	case "redirected_statement":
		text := appendBackground(node, src, strings.TrimSpace(node.Content(src)))
		if text != "" {
			*commands = append(*commands, text)
			expandWrapper(text, commands)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			findSubstitutions(node.Child(i), src, commands)
		}
		return

	case "subshell", "compound_statement", "command_substitution":
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i), src, commands)
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), src, commands)
	}
}

func findSubstitutions(node *sitter.Node, src []byte, commands *[]string) {
	if node == nil {
		return
	}
	if node.Type() == "command_substitution" {
		walk(node, src, commands)
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		findSubstitutions(node.Child(i), src, commands)
	}
}

func fullCommandText(node *sitter.Node, src []byte) string {
	return appendBackground(node, src, strings.TrimSpace(node.Content(src)))
}

func appendBackground(node *sitter.Node, src []byte, text string) string {
	parent := node.Parent()
	if parent == nil {
		return text
	}
	for i := 0; i < int(parent.ChildCount()); i++ {
		if parent.Child(i).Type() == "&" {
			return text + " &"
		}
	}
	return text
}

// expandWrapper recognizes commands that execute other commands (a shell
// invoked with -c, eval, exec, xargs, sudo, env, ssh, find -exec, ...) and
// recursively extracts the inner command(s) too.
func expandWrapper(text string, commands *[]string) {
	parts := splitRespectingQuotes(text)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "sh", "bash", "zsh":
		if inner, ok := flagArg(parts, "-c"); ok {
			*commands = append(*commands, ExtractCommands(unquote(inner))...)
		}
	case "eval":
		if len(parts) > 1 {
			*commands = append(*commands, ExtractCommands(unquote(strings.Join(parts[1:], " ")))...)
		}
	case "exec":
		if len(parts) > 1 {
			*commands = append(*commands, strings.Join(parts[1:], " "))
		}
	case "xargs":
		if cmd := afterFlags(parts, map[string]bool{"-I": true, "-n": true, "-P": true, "-L": true, "-s": true, "-a": true, "-E": true, "-d": true}); cmd != "" {
			*commands = append(*commands, cmd)
		}
	case "sudo", "env":
		if cmd := afterEnvAssignmentsAndFlags(parts); cmd != "" {
			*commands = append(*commands, cmd)
			expandWrapper(cmd, commands)
		}
	case "su":
		if inner, ok := flagArg(parts, "-c"); ok {
			*commands = append(*commands, ExtractCommands(unquote(inner))...)
		}
	case "nohup", "command", "builtin", "time":
		if len(parts) > 1 {
			*commands = append(*commands, strings.Join(parts[1:], " "))
		}
	case "ssh":
		if cmd := afterFlags(parts[1:], map[string]bool{
			"-p": true, "-i": true, "-l": true, "-o": true, "-F": true,
		}); cmd != "" {
			*commands = append(*commands, unquote(cmd))
		}
	case "find":
		for i, p := range parts {
			if p == "-exec" || p == "-execdir" || p == "-ok" || p == "-okdir" {
				var inner []string
				for j := i + 1; j < len(parts); j++ {
					if parts[j] == ";" || parts[j] == `\;` || parts[j] == "+" {
						break
					}
					inner = append(inner, parts[j])
				}
				if len(inner) > 0 {
					*commands = append(*commands, strings.Join(inner, " "))
				}
			}
		}
	}
}

func flagArg(parts []string, flag string) (string, bool) {
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == flag {
			return parts[i+1], true
		}
	}
	return "", false
}

func afterFlags(parts []string, flagsWithArgs map[string]bool) string {
	i := 0
	for i < len(parts) {
		p := parts[i]
		if strings.HasPrefix(p, "-") {
			if flagsWithArgs[p] && i+1 < len(parts) {
				i += 2
			} else {
				i++
			}
			continue
		}
		break
	}
	if i < len(parts) {
		return strings.Join(parts[i:], " ")
	}
	return ""
}

func afterEnvAssignmentsAndFlags(parts []string) string {
	i := 1
	for i < len(parts) {
		p := parts[i]
		if strings.Contains(p, "=") && !strings.HasPrefix(p, "-") {
			i++
			continue
		}
		if strings.HasPrefix(p, "-") {
			i++
			continue
		}
		break
	}
	if i < len(parts) {
		return strings.Join(parts[i:], " ")
	}
	return ""
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func splitRespectingQuotes(cmd string) []string {
	var parts []string
	var cur strings.Builder
	inSingle, inDouble, escaped := false, false, false

	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\' && !inSingle:
			escaped = true
			cur.WriteByte(c)
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteByte(c)
		case c == ' ' && !inSingle && !inDouble:
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
