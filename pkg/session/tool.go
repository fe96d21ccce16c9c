package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// toolDescription is the one-line summary surfaced to callers that
// present the session as a tool to a language model.
const toolDescription = "Executes bash scripts in a sandboxed environment with a virtual filesystem."

const toolHelp = `# Shellbox Tool

Executes bash scripts in a sandboxed environment with a virtual filesystem.

## Capabilities

- Full bash syntax: variables, pipelines, redirects, loops, functions, arrays
- 30+ built-in commands: echo, cat, grep, sed, awk, jq, curl, etc.
- Virtual filesystem (all file operations are sandboxed)
- Resource limits (max commands, loop iterations, function depth)
- Custom identity (username, hostname)
- Extensible with host-registered commands

## Input Parameters

- ` + "`script`" + ` (required): The bash script to execute
- ` + "`timeout_ms`" + ` (optional): Maximum execution time in milliseconds

## Output Fields

- ` + "`stdout`" + `: Standard output from the script
- ` + "`stderr`" + `: Standard error from the script
- ` + "`exit_code`" + `: Exit code (0 = success)

## Examples

### Simple echo
` + "```json" + `
{"script": "echo 'Hello, World!'"}
` + "```" + `
Output: ` + "`" + `{"stdout": "Hello, World!\n", "stderr": "", "exit_code": 0}` + "`" + `

### Pipeline with grep
` + "```json" + `
{"script": "echo -e 'apple\\nbanana\\ncherry' | grep a"}
` + "```" + `
Output: ` + "`" + `{"stdout": "apple\nbanana\n", "stderr": "", "exit_code": 0}` + "`" + `

### Variables and arithmetic
` + "```json" + `
{"script": "x=5; y=3; echo $((x + y))"}
` + "```" + `
Output: ` + "`" + `{"stdout": "8\n", "stderr": "", "exit_code": 0}` + "`" + `

### File operations (virtual filesystem)
` + "```json" + `
{"script": "echo 'data' > /tmp/file.txt && cat /tmp/file.txt"}
` + "```" + `
Output: ` + "`" + `{"stdout": "data\n", "stderr": "", "exit_code": 0}` + "`" + `

## Error Handling

- Syntax errors return exit code 2 with the message in stderr
- Resource limit violations report through the error field
- Command not found returns exit code 127
`

// Description returns the tool summary, extended with the names of any
// host-registered commands.
func (s *Session) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tools) == 0 {
		return toolDescription
	}
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.name
	}
	return fmt.Sprintf("%s Custom commands: %s.", toolDescription, strings.Join(names, ", "))
}

// SystemPrompt renders a prompt describing the execute contract and
// every registered command, built from the live registry.
func (s *Session) SystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p strings.Builder
	p.WriteString("# Shellbox\n\n")
	p.WriteString(toolDescription)
	p.WriteString("\n\n")
	p.WriteString("Input: {\"script\": \"<bash script>\"}\n")
	p.WriteString("Output: {stdout, stderr, exit_code}\n\n")

	if len(s.tools) > 0 {
		p.WriteString("## Available tool commands\n\n")
		for _, t := range s.tools {
			fmt.Fprintf(&p, "- `%s`: %s\n", t.name, t.desc)
			if usage := schemaUsage(t.schema); usage != "" {
				fmt.Fprintf(&p, "  Usage: `%s %s`\n", t.name, usage)
			}
		}
		p.WriteByte('\n')
	}

	p.WriteString("## Built-in commands\n\n")
	p.WriteString(wrapNames(s.builtinNames(), 72))
	p.WriteString("\n## Tips\n\n")
	p.WriteString("- Pass tool arguments as `--key value` or `--key=value` flags\n")
	p.WriteString("- Pipe tool output through `jq` for JSON processing\n")
	p.WriteString("- Use variables to pass data between tool calls\n")
	p.WriteString("- Use `set -e` to stop on first error\n")
	return p.String()
}

// builtinNames returns registry names minus host-registered tools.
func (s *Session) builtinNames() []string {
	custom := make(map[string]bool, len(s.tools))
	for _, t := range s.tools {
		custom[t.name] = true
	}
	var names []string
	for _, n := range s.in.Registry().Names() {
		if !custom[n] {
			names = append(names, n)
		}
	}
	return names
}

func wrapNames(names []string, width int) string {
	var b strings.Builder
	line := 0
	for i, n := range names {
		if line > 0 && line+len(n)+2 > width {
			b.WriteString(",\n")
			line = 0
		} else if i > 0 {
			b.WriteString(", ")
			line += 2
		}
		b.WriteString(n)
		line += len(n)
	}
	b.WriteByte('\n')
	return b.String()
}

// Help returns the full markdown documentation, including the current
// configuration when it differs from the defaults.
func (s *Session) Help() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc strings.Builder
	doc.WriteString(toolHelp)

	identity := s.cfg.username != "" || s.cfg.hostname != ""
	if len(s.tools) == 0 && !identity && !s.cfg.limitSet && len(s.cfg.env) == 0 {
		return doc.String()
	}

	doc.WriteString("\n## Current Configuration\n\n")
	if len(s.tools) > 0 {
		doc.WriteString("### Custom Commands\n\n")
		doc.WriteString("The following custom commands are available in addition to built-in commands:\n\n")
		for _, t := range s.tools {
			fmt.Fprintf(&doc, "- `%s`", t.name)
			if t.desc != "" {
				fmt.Fprintf(&doc, ": %s", t.desc)
			}
			doc.WriteByte('\n')
		}
		doc.WriteByte('\n')
	}
	if identity {
		doc.WriteString("### Sandbox Identity\n\n")
		if s.cfg.username != "" {
			fmt.Fprintf(&doc, "- Username: `%s` (returned by `whoami`)\n", s.cfg.username)
		}
		if s.cfg.hostname != "" {
			fmt.Fprintf(&doc, "- Hostname: `%s` (returned by `hostname`)\n", s.cfg.hostname)
		}
		doc.WriteByte('\n')
	}
	if s.cfg.limitSet {
		doc.WriteString("### Resource Limits\n\n")
		fmt.Fprintf(&doc, "- Max commands: %d\n", s.cfg.limits.MaxCommands)
		fmt.Fprintf(&doc, "- Max loop iterations: %d\n", s.cfg.limits.MaxLoopIterations)
		fmt.Fprintf(&doc, "- Max function depth: %d\n", s.cfg.limits.MaxFunctionDepth)
		doc.WriteByte('\n')
	}
	if len(s.cfg.env) > 0 {
		doc.WriteString("### Environment Variables\n\n")
		doc.WriteString("The following environment variables are pre-set:\n\n")
		for _, v := range s.cfg.env {
			fmt.Fprintf(&doc, "- `%s`\n", v.key)
		}
		doc.WriteByte('\n')
	}
	return doc.String()
}

// InputSchema describes the execute request as a JSON schema document.
func (s *Session) InputSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "string",
				"description": "The bash script to execute",
			},
			"timeout_ms": map[string]any{
				"type":        "integer",
				"description": "Maximum execution time in milliseconds",
			},
		},
		"required": []any{"script"},
	}
}

// OutputSchema describes ExecResult as a JSON schema document.
func (s *Session) OutputSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"stdout": map[string]any{
				"type":        "string",
				"description": "Standard output from the script",
			},
			"stderr": map[string]any{
				"type":        "string",
				"description": "Standard error from the script",
			},
			"exit_code": map[string]any{
				"type":        "integer",
				"description": "Exit code (0 = success)",
			},
			"error": map[string]any{
				"type":        "string",
				"description": "Error message if execution failed before completing",
			},
		},
		"required": []any{"stdout", "stderr", "exit_code"},
	}
}

// parseToolFlags turns `--key value` and `--key=value` arguments into a
// parameter map, coercing values per the schema's property types. A
// bare `--flag` becomes true when the schema calls it boolean, or when
// no value follows.
func parseToolFlags(args []string, schema map[string]any) (map[string]any, error) {
	props := schemaProps(schema)
	params := make(map[string]any)
	for i := 0; i < len(args); {
		arg := args[i]
		flag, ok := strings.CutPrefix(arg, "--")
		if !ok || flag == "" {
			return nil, fmt.Errorf("expected --flag, got: %s", arg)
		}
		if key, raw, found := strings.Cut(flag, "="); found {
			v, err := coerceValue(raw, props[key])
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", key, err)
			}
			params[key] = v
			i++
			continue
		}
		if propType(props[flag]) == "boolean" {
			params[flag] = true
			i++
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			v, err := coerceValue(args[i+1], props[flag])
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", flag, err)
			}
			params[flag] = v
			i += 2
			continue
		}
		params[flag] = true
		i++
	}
	return params, nil
}

func schemaProps(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	props, _ := schema["properties"].(map[string]any)
	return props
}

func propType(prop any) string {
	m, ok := prop.(map[string]any)
	if !ok {
		return ""
	}
	t, _ := m["type"].(string)
	return t
}

// coerceValue converts a raw flag value to the schema's declared type.
// A value that fails to parse as its declared type is a dispatch error,
// so the callback never sees a mistyped parameter.
func coerceValue(raw string, prop any) (any, error) {
	switch propType(prop) {
	case "integer":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %q", raw)
		}
		return n, nil
	case "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %q", raw)
		}
		return f, nil
	case "boolean":
		switch raw {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean: %q", raw)
	}
	return raw, nil
}

// schemaUsage renders a usage hint like `--id <integer> --name <string>`.
func schemaUsage(schema map[string]any) string {
	props := schemaProps(schema)
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	flags := make([]string, len(keys))
	for i, k := range keys {
		ty := propType(props[k])
		if ty == "" {
			ty = "value"
		}
		flags[i] = fmt.Sprintf("--%s <%s>", k, ty)
	}
	return strings.Join(flags, " ")
}
