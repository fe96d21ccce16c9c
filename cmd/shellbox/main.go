// Command shellbox runs sandboxed bash scripts against an in-memory
// filesystem. It executes a script given with -c or as a file argument,
// or starts an interactive prompt when stdin is a terminal.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/shellbox/shellbox/pkg/limits"
	"github.com/shellbox/shellbox/pkg/session"
)

type fileConfig struct {
	Username string            `yaml:"username"`
	Hostname string            `yaml:"hostname"`
	Cwd      string            `yaml:"cwd"`
	Env      map[string]string `yaml:"env"`
	Limits   struct {
		MaxCommands       int `yaml:"max_commands"`
		MaxLoopIterations int `yaml:"max_loop_iterations"`
		MaxFunctionDepth  int `yaml:"max_function_depth"`
	} `yaml:"limits"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		script     string
		configPath string
		username   string
		hostname   string
		maxCmds    int
		maxLoops   int
		jsonOut    bool
	)
	pflag.StringVarP(&script, "command", "c", "", "script to execute")
	pflag.StringVar(&configPath, "config", "", "session config file (YAML)")
	pflag.StringVar(&username, "username", "", "sandbox username")
	pflag.StringVar(&hostname, "hostname", "", "sandbox hostname")
	pflag.IntVar(&maxCmds, "max-commands", 0, "command execution ceiling")
	pflag.IntVar(&maxLoops, "max-loop-iterations", 0, "loop iteration ceiling")
	pflag.BoolVar(&jsonOut, "json", false, "emit the result as JSON")
	pflag.Parse()

	b := session.NewBuilder()
	lim := limits.Default()

	if configPath != "" {
		var cfg fileConfig
		data, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shellbox: %v\n", err)
			return 2
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "shellbox: %s: %v\n", configPath, err)
			return 2
		}
		if cfg.Username != "" {
			b.Username(cfg.Username)
		}
		if cfg.Hostname != "" {
			b.Hostname(cfg.Hostname)
		}
		if cfg.Cwd != "" {
			b.Cwd(cfg.Cwd)
		}
		for k, v := range cfg.Env {
			b.Env(k, v)
		}
		if cfg.Limits.MaxCommands > 0 {
			lim = lim.WithMaxCommands(cfg.Limits.MaxCommands)
		}
		if cfg.Limits.MaxLoopIterations > 0 {
			lim = lim.WithMaxLoopIterations(cfg.Limits.MaxLoopIterations)
		}
		if cfg.Limits.MaxFunctionDepth > 0 {
			lim = lim.WithMaxFunctionDepth(cfg.Limits.MaxFunctionDepth)
		}
	}

	// Flags override the config file.
	if username != "" {
		b.Username(username)
	}
	if hostname != "" {
		b.Hostname(hostname)
	}
	if maxCmds > 0 {
		lim = lim.WithMaxCommands(maxCmds)
	}
	if maxLoops > 0 {
		lim = lim.WithMaxLoopIterations(maxLoops)
	}
	b.Limits(lim)
	sess := b.Build()

	switch {
	case script != "":
		return report(sess.Execute(script), jsonOut)
	case pflag.NArg() > 0:
		data, err := os.ReadFile(pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "shellbox: %v\n", err)
			return 127
		}
		return report(sess.Execute(string(data)), jsonOut)
	case term.IsTerminal(int(os.Stdin.Fd())):
		identity := sess.Execute("echo $USER@$HOSTNAME")
		return repl(sess, strings.TrimSuffix(identity.Stdout, "\n"), jsonOut)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shellbox: %v\n", err)
			return 1
		}
		return report(sess.Execute(string(data)), jsonOut)
	}
}

// report prints an ExecResult and returns the process exit status.
func report(res session.ExecResult, jsonOut bool) int {
	if jsonOut {
		out, err := json.Marshal(res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shellbox: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
		return res.ExitCode
	}
	fmt.Print(res.Stdout)
	fmt.Fprint(os.Stderr, res.Stderr)
	if res.Error != "" {
		fmt.Fprintf(os.Stderr, "shellbox: %s\n", res.Error)
	}
	return res.ExitCode
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".shellbox_history")
	}
	return filepath.Join(home, ".shellbox_history")
}

func repl(sess *session.Session, identity string, jsonOut bool) int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histFile := historyPath()
	if f, err := os.Open(histFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(histFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	status := 0
	for {
		prompt := fmt.Sprintf("%s:%s$ ", identity, sess.Cwd())
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			break
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		line.AppendHistory(input)
		if trimmed == "exit" || strings.HasPrefix(trimmed, "exit ") {
			res := sess.Execute(trimmed)
			fmt.Fprint(os.Stderr, res.Stderr)
			return res.ExitCode
		}
		status = report(sess.Execute(input), jsonOut)
	}
	return status
}
