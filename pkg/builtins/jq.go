package builtins

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
)

// jqCmd filters JSON from stdin or VFS files through a gojq query.
func jqCmd(env *interp.Env, args []string) int {
	raw := false
	compact := false
	var query string
	var files []string
	haveQuery := false
	for _, arg := range args {
		switch {
		case arg == "-r" || arg == "--raw-output":
			raw = true
		case arg == "-c" || arg == "--compact-output":
			compact = true
		case len(arg) > 1 && arg[0] == '-':
			return core.UsageError(env.Stdio, "jq", "invalid option -- '"+arg+"'")
		default:
			if !haveQuery {
				query = arg
				haveQuery = true
			} else {
				files = append(files, arg)
			}
		}
	}
	if !haveQuery {
		query = "."
	}

	q, err := gojq.Parse(query)
	if err != nil {
		env.Stdio.Errorf("jq: error: %v\n", err)
		return core.ExitUsage
	}
	code, err := gojq.Compile(q)
	if err != nil {
		env.Stdio.Errorf("jq: error: %v\n", err)
		return core.ExitUsage
	}

	input, status := readInput(env, "jq", files)
	dec := json.NewDecoder(strings.NewReader(input))
	for {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			env.Stdio.Errorf("jq: error: invalid JSON input: %v\n", err)
			return core.ExitUsage
		}
		iter := code.Run(doc)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if rerr, isErr := v.(error); isErr {
				env.Stdio.Errorf("jq: error: %v\n", rerr)
				status = core.ExitFailure
				continue
			}
			if s, isStr := v.(string); isStr && raw {
				env.Stdio.Println(s)
				continue
			}
			var out []byte
			var merr error
			if compact {
				out, merr = json.Marshal(v)
			} else {
				out, merr = json.MarshalIndent(v, "", "  ")
			}
			if merr != nil {
				env.Stdio.Errorf("jq: error: %v\n", merr)
				status = core.ExitFailure
				continue
			}
			env.Stdio.Println(string(out))
		}
	}
	return status
}
