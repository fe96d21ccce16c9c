package builtins

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
)

func trueCmd(*interp.Env, []string) int  { return core.ExitSuccess }
func falseCmd(*interp.Env, []string) int { return core.ExitFailure }

// sleepCmd validates its argument but does not actually sleep: scripts
// must not be able to hold the session hostage on wall-clock time.
func sleepCmd(env *interp.Env, args []string) int {
	if len(args) == 0 {
		return core.UsageError(env.Stdio, "sleep", "missing operand")
	}
	if _, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(args[0], "s"), "m"), 64); err != nil {
		return core.UsageError(env.Stdio, "sleep", "invalid time interval '"+args[0]+"'")
	}
	return core.ExitSuccess
}

func seqCmd(env *interp.Env, args []string) int {
	first, step, last := 1, 1, 1
	var err error
	parse := func(s string) (int, error) { return strconv.Atoi(s) }
	switch len(args) {
	case 1:
		last, err = parse(args[0])
	case 2:
		if first, err = parse(args[0]); err == nil {
			last, err = parse(args[1])
		}
	case 3:
		if first, err = parse(args[0]); err == nil {
			if step, err = parse(args[1]); err == nil {
				last, err = parse(args[2])
			}
		}
	default:
		return core.UsageError(env.Stdio, "seq", "missing operand")
	}
	if err != nil {
		return core.UsageError(env.Stdio, "seq", "invalid argument")
	}
	if step == 0 {
		return core.UsageError(env.Stdio, "seq", "step must not be zero")
	}
	if step > 0 {
		for i := first; i <= last; i += step {
			env.Stdio.Println(i)
		}
	} else {
		for i := first; i >= last; i += step {
			env.Stdio.Println(i)
		}
	}
	return core.ExitSuccess
}

func dateCmd(env *interp.Env, args []string) int {
	now := time.Now().UTC()
	format := "Mon Jan _2 15:04:05 UTC 2006"
	for _, arg := range args {
		if strings.HasPrefix(arg, "+") {
			format = convertDateFormat(arg[1:])
		} else if arg == "-u" {
			// Always UTC.
		} else {
			return core.UsageError(env.Stdio, "date", "invalid option -- '"+arg+"'")
		}
	}
	env.Stdio.Println(now.Format(format))
	return core.ExitSuccess
}

// convertDateFormat maps the common strftime verbs onto a Go layout.
func convertDateFormat(f string) string {
	r := strings.NewReplacer(
		"%Y", "2006", "%m", "01", "%d", "02",
		"%H", "15", "%M", "04", "%S", "05",
		"%y", "06", "%b", "Jan", "%a", "Mon",
		"%e", "_2", "%j", "002", "%Z", "MST",
		"%s", "", "%%", "%",
	)
	return r.Replace(f)
}

func whoamiCmd(env *interp.Env, _ []string) int {
	user := env.Var("USER")
	if user == "" {
		user = "user"
	}
	env.Stdio.Println(user)
	return core.ExitSuccess
}

func hostnameCmd(env *interp.Env, _ []string) int {
	host := env.Var("HOSTNAME")
	if host == "" {
		host = "sandbox"
	}
	env.Stdio.Println(host)
	return core.ExitSuccess
}

func unameCmd(env *interp.Env, args []string) int {
	all := false
	for _, arg := range args {
		switch arg {
		case "-a":
			all = true
		case "-s", "-o":
		default:
			return core.UsageError(env.Stdio, "uname", "invalid option -- '"+arg+"'")
		}
	}
	if all {
		host := env.Var("HOSTNAME")
		if host == "" {
			host = "sandbox"
		}
		env.Stdio.Printf("Linux %s 6.1.0 #1 SMP x86_64 GNU/Linux\n", host)
	} else {
		env.Stdio.Println("Linux")
	}
	return core.ExitSuccess
}

func idCmd(env *interp.Env, _ []string) int {
	user := env.Var("USER")
	if user == "" {
		user = "user"
	}
	env.Stdio.Printf("uid=1000(%s) gid=1000(%s) groups=1000(%s)\n", user, user, user)
	return core.ExitSuccess
}

func envCmd(env *interp.Env, _ []string) int {
	for _, kv := range env.In.ExportedVars() {
		env.Stdio.Println(kv)
	}
	return core.ExitSuccess
}

func whichCmd(env *interp.Env, args []string) int {
	if len(args) == 0 {
		return core.ExitFailure
	}
	status := 0
	for _, name := range args {
		if _, ok := env.In.Registry().Lookup(name); ok {
			env.Stdio.Printf("/usr/bin/%s\n", name)
		} else {
			status = core.ExitFailure
		}
	}
	return status
}

func helpCmd(env *interp.Env, _ []string) int {
	env.Stdio.Println("Available commands:")
	reg := env.In.Registry()
	for _, name := range reg.Names() {
		if desc := reg.Description(name); desc != "" {
			env.Stdio.Printf("  %-10s %s\n", name, desc)
		} else {
			env.Stdio.Printf("  %s\n", name)
		}
	}
	return core.ExitSuccess
}

// wgetCmd and curlCmd have no real network behind them. A response for
// a host can be mounted as /etc/netstub/<host>; without one they fail
// the way the real tools do when a host is unreachable.
func wgetCmd(env *interp.Env, args []string) int {
	var url, outFile string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-O" || arg == "-o" {
			if i+1 < len(args) {
				i++
				outFile = args[i]
			}
			continue
		}
		if arg == "-q" {
			continue
		}
		url = arg
	}
	if url == "" {
		return core.UsageError(env.Stdio, "wget", "missing URL")
	}
	host := hostOf(url)
	body, ok := netStub(env, host)
	if !ok {
		env.Stdio.Errorf("wget: unable to resolve host address '%s': network is disabled\n", host)
		return core.ExitFailure
	}
	if outFile == "" {
		outFile = path.Base(strings.TrimSuffix(url, "/"))
		if outFile == "" || outFile == "." || outFile == host {
			outFile = "index.html"
		}
	}
	if err := env.FS.WriteFile(env.Path(outFile), body); err != nil {
		env.Stdio.Errorf("wget: %s: %v\n", outFile, err)
		return core.ExitFailure
	}
	return core.ExitSuccess
}

func curlCmd(env *interp.Env, args []string) int {
	var url, outFile string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-o" {
			if i+1 < len(args) {
				i++
				outFile = args[i]
			}
			continue
		}
		if arg == "-H" || arg == "-X" || arg == "-d" {
			i++
			continue
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		url = arg
	}
	if url == "" {
		return core.UsageError(env.Stdio, "curl", "no URL specified")
	}
	host := hostOf(url)
	body, ok := netStub(env, host)
	if !ok {
		env.Stdio.Errorf("curl: (6) Could not resolve host: %s\n", host)
		return 6
	}
	if outFile != "" {
		if err := env.FS.WriteFile(env.Path(outFile), body); err != nil {
			env.Stdio.Errorf("curl: %s: %v\n", outFile, err)
			return core.ExitFailure
		}
		return core.ExitSuccess
	}
	env.Stdio.Print(string(body))
	return core.ExitSuccess
}

// netStub looks up a mounted response body for host.
func netStub(env *interp.Env, host string) ([]byte, bool) {
	data, err := env.FS.ReadFile("/etc/netstub/" + host)
	if err != nil {
		return nil, false
	}
	return data, true
}

func hostOf(url string) string {
	s := url
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/:?"); i >= 0 {
		s = s[:i]
	}
	return s
}
