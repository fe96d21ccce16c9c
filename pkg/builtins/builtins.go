// Package builtins implements the sandboxed command set. Every command
// operates on the session's virtual filesystem and streams; none touch
// the host.
package builtins

import (
	"github.com/shellbox/shellbox/pkg/interp"
)

// Install registers the full command set into r.
func Install(r *interp.Registry) {
	r.Register("echo", "write arguments to standard output", echoCmd)
	r.Register("printf", "format and print arguments", printfCmd)
	r.Register("cat", "concatenate files to standard output", catCmd)
	r.Register("head", "output the first part of files", headCmd)
	r.Register("tail", "output the last part of files", tailCmd)
	r.Register("wc", "count lines, words, and bytes", wcCmd)
	r.Register("sort", "sort lines of text", sortCmd)
	r.Register("uniq", "filter adjacent repeated lines", uniqCmd)
	r.Register("cut", "select fields or characters from lines", cutCmd)
	r.Register("tr", "translate or delete characters", trCmd)
	r.Register("rev", "reverse characters of each line", revCmd)
	r.Register("base64", "encode or decode base64", base64Cmd)
	r.Register("grep", "search lines matching a pattern", grepCmd)
	r.Register("sed", "stream editor for text transforms", sedCmd)
	r.Register("awk", "pattern scanning and processing", awkCmd)
	r.Register("jq", "JSON query and transform", jqCmd)
	r.Register("xargs", "build command lines from standard input", xargsCmd)

	r.Register("ls", "list directory contents", lsCmd)
	r.Register("find", "search for files in a directory tree", findCmd)
	r.Register("mkdir", "create directories", mkdirCmd)
	r.Register("rmdir", "remove empty directories", rmdirCmd)
	r.Register("rm", "remove files and directories", rmCmd)
	r.Register("cp", "copy files", cpCmd)
	r.Register("mv", "move or rename files", mvCmd)
	r.Register("touch", "create files or update timestamps", touchCmd)
	r.Register("ln", "link files (copies; no shared nodes)", lnCmd)
	r.Register("chmod", "change file mode", chmodCmd)
	r.Register("pwd", "print the working directory", pwdCmd)
	r.Register("basename", "strip directory from a path", basenameCmd)
	r.Register("dirname", "strip the last path component", dirnameCmd)
	r.Register("stat", "display file status", statCmd)
	r.Register("du", "estimate file space usage", duCmd)

	r.Register("test", "evaluate a conditional expression", testCmd)
	r.Register("[", "evaluate a conditional expression", bracketCmd)
	r.Register("true", "return success", trueCmd)
	r.Register("false", "return failure", falseCmd)
	r.Register("seq", "print a sequence of numbers", seqCmd)
	r.Register("sleep", "delay (a no-op in the sandbox)", sleepCmd)
	r.Register("date", "print the current date and time", dateCmd)
	r.Register("whoami", "print the session user", whoamiCmd)
	r.Register("hostname", "print the session hostname", hostnameCmd)
	r.Register("uname", "print system information", unameCmd)
	r.Register("id", "print user identity", idCmd)
	r.Register("env", "print exported variables", envCmd)
	r.Register("which", "locate a command", whichCmd)
	r.Register("help", "list available commands", helpCmd)

	r.Register("wget", "download a URL (stubbed offline)", wgetCmd)
	r.Register("curl", "transfer a URL (stubbed offline)", curlCmd)
}
