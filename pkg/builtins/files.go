package builtins

import (
	"path"
	"strconv"
	"strings"

	"github.com/shellbox/shellbox/pkg/core"
	"github.com/shellbox/shellbox/pkg/interp"
	"github.com/shellbox/shellbox/pkg/vfs"
)

func pwdCmd(env *interp.Env, _ []string) int {
	env.Stdio.Println(env.Cwd())
	return core.ExitSuccess
}

func lsCmd(env *interp.Env, args []string) int {
	long := false
	all := false
	flags, paths := splitFlags(args)
	for _, f := range flags {
		for _, c := range f[1:] {
			switch c {
			case 'l':
				long = true
			case 'a':
				all = true
			case '1':
				// One entry per line is already the default.
			default:
				return core.UsageError(env.Stdio, "ls", "invalid option -- '"+string(c)+"'")
			}
		}
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}
	status := 0
	showHeader := len(paths) > 1
	for i, p := range paths {
		target := env.Path(p)
		meta, err := env.FS.Stat(target)
		if err != nil {
			env.Stdio.Errorf("ls: %s: No such file or directory\n", p)
			status = core.ExitFailure
			continue
		}
		if !meta.IsDir() {
			printEntry(env, long, p, meta)
			continue
		}
		if showHeader {
			if i > 0 {
				env.Stdio.Println()
			}
			env.Stdio.Printf("%s:\n", p)
		}
		entries, err := env.FS.ReadDir(target)
		if err != nil {
			status = core.FileError(env.Stdio, "ls", p, err)
			continue
		}
		if all {
			printEntry(env, long, ".", meta)
			printEntry(env, long, "..", meta)
		}
		for _, e := range entries {
			if !all && strings.HasPrefix(e.Name, ".") {
				continue
			}
			printEntry(env, long, e.Name, e.Meta)
		}
	}
	return status
}

func printEntry(env *interp.Env, long bool, name string, meta vfs.Metadata) {
	if !long {
		env.Stdio.Println(name)
		return
	}
	env.Stdio.Printf("%s 1 user user %8d %s %s\n",
		modeString(meta), meta.Size, meta.Modified.Format("Jan _2 15:04"), name)
}

func modeString(meta vfs.Metadata) string {
	var b strings.Builder
	if meta.IsDir() {
		b.WriteByte('d')
	} else {
		b.WriteByte('-')
	}
	bits := meta.Mode
	for shift := 6; shift >= 0; shift -= 3 {
		triplet := (bits >> uint(shift)) & 7
		flags := "rwx"
		for i, c := range flags {
			if triplet&(4>>uint(i)) != 0 {
				b.WriteRune(c)
			} else {
				b.WriteByte('-')
			}
		}
	}
	return b.String()
}

func findCmd(env *interp.Env, args []string) int {
	root := "."
	namePat := ""
	typeFilter := ""
	i := 0
	if i < len(args) && !strings.HasPrefix(args[i], "-") {
		root = args[i]
		i++
	}
	for ; i < len(args); i++ {
		switch args[i] {
		case "-name":
			if i+1 >= len(args) {
				return core.UsageError(env.Stdio, "find", "missing argument to '-name'")
			}
			i++
			namePat = args[i]
		case "-type":
			if i+1 >= len(args) {
				return core.UsageError(env.Stdio, "find", "missing argument to '-type'")
			}
			i++
			typeFilter = args[i]
			if typeFilter != "f" && typeFilter != "d" {
				return core.UsageError(env.Stdio, "find", "invalid argument to '-type'")
			}
		default:
			return core.UsageError(env.Stdio, "find", "unknown predicate '"+args[i]+"'")
		}
	}
	start := env.Path(root)
	meta, err := env.FS.Stat(start)
	if err != nil {
		env.Stdio.Errorf("find: %s: No such file or directory\n", root)
		return core.ExitFailure
	}
	var walk func(display, full string, meta vfs.Metadata)
	walk = func(display, full string, meta vfs.Metadata) {
		match := true
		if namePat != "" && !vfs.Match(namePat, path.Base(full)) {
			match = false
		}
		if typeFilter == "f" && meta.IsDir() {
			match = false
		}
		if typeFilter == "d" && !meta.IsDir() {
			match = false
		}
		if match {
			env.Stdio.Println(display)
		}
		if !meta.IsDir() {
			return
		}
		entries, err := env.FS.ReadDir(full)
		if err != nil {
			return
		}
		for _, e := range entries {
			walk(display+"/"+e.Name, full+"/"+e.Name, e.Meta)
		}
	}
	walk(strings.TrimSuffix(root, "/"), start, meta)
	return core.ExitSuccess
}

func mkdirCmd(env *interp.Env, args []string) int {
	parents := false
	flags, dirs := splitFlags(args)
	for _, f := range flags {
		switch f {
		case "-p":
			parents = true
		default:
			return core.UsageError(env.Stdio, "mkdir", "invalid option -- '"+f+"'")
		}
	}
	if len(dirs) == 0 {
		return core.UsageError(env.Stdio, "mkdir", "missing operand")
	}
	status := 0
	for _, d := range dirs {
		if err := env.FS.Mkdir(env.Path(d), parents); err != nil {
			env.Stdio.Errorf("mkdir: cannot create directory '%s': %v\n", d, err)
			status = core.ExitFailure
		}
	}
	return status
}

func rmdirCmd(env *interp.Env, args []string) int {
	if len(args) == 0 {
		return core.UsageError(env.Stdio, "rmdir", "missing operand")
	}
	status := 0
	for _, d := range args {
		p := env.Path(d)
		meta, err := env.FS.Stat(p)
		if err != nil {
			env.Stdio.Errorf("rmdir: failed to remove '%s': No such file or directory\n", d)
			status = core.ExitFailure
			continue
		}
		if !meta.IsDir() {
			env.Stdio.Errorf("rmdir: failed to remove '%s': Not a directory\n", d)
			status = core.ExitFailure
			continue
		}
		if err := env.FS.Remove(p, false); err != nil {
			env.Stdio.Errorf("rmdir: failed to remove '%s': Directory not empty\n", d)
			status = core.ExitFailure
		}
	}
	return status
}

func rmCmd(env *interp.Env, args []string) int {
	recursive := false
	force := false
	flags, files := splitFlags(args)
	for _, f := range flags {
		for _, c := range f[1:] {
			switch c {
			case 'r', 'R':
				recursive = true
			case 'f':
				force = true
			default:
				return core.UsageError(env.Stdio, "rm", "invalid option -- '"+string(c)+"'")
			}
		}
	}
	if len(files) == 0 {
		if force {
			return core.ExitSuccess
		}
		return core.UsageError(env.Stdio, "rm", "missing operand")
	}
	status := 0
	for _, f := range files {
		p := env.Path(f)
		meta, err := env.FS.Stat(p)
		if err != nil {
			if !force {
				env.Stdio.Errorf("rm: cannot remove '%s': No such file or directory\n", f)
				status = core.ExitFailure
			}
			continue
		}
		if meta.IsDir() && !recursive {
			env.Stdio.Errorf("rm: cannot remove '%s': Is a directory\n", f)
			status = core.ExitFailure
			continue
		}
		if err := env.FS.Remove(p, recursive); err != nil {
			env.Stdio.Errorf("rm: cannot remove '%s': %v\n", f, err)
			status = core.ExitFailure
		}
	}
	return status
}

func cpCmd(env *interp.Env, args []string) int {
	recursive := false
	flags, files := splitFlags(args)
	for _, f := range flags {
		for _, c := range f[1:] {
			switch c {
			case 'r', 'R', 'a':
				recursive = true
			case 'f':
				// Overwrite is already the default.
			default:
				return core.UsageError(env.Stdio, "cp", "invalid option -- '"+string(c)+"'")
			}
		}
	}
	if len(files) < 2 {
		return core.UsageError(env.Stdio, "cp", "missing destination file operand")
	}
	dst := env.Path(files[len(files)-1])
	srcs := files[:len(files)-1]
	dstMeta, dstErr := env.FS.Stat(dst)
	dstIsDir := dstErr == nil && dstMeta.IsDir()
	if len(srcs) > 1 && !dstIsDir {
		env.Stdio.Errorf("cp: target '%s' is not a directory\n", files[len(files)-1])
		return core.ExitFailure
	}
	status := 0
	for _, s := range srcs {
		srcPath := env.Path(s)
		meta, err := env.FS.Stat(srcPath)
		if err != nil {
			env.Stdio.Errorf("cp: cannot stat '%s': No such file or directory\n", s)
			status = core.ExitFailure
			continue
		}
		if meta.IsDir() && !recursive {
			env.Stdio.Errorf("cp: -r not specified; omitting directory '%s'\n", s)
			status = core.ExitFailure
			continue
		}
		target := dst
		if dstIsDir {
			target = dst + "/" + path.Base(srcPath)
		}
		if err := copyTree(env.FS, srcPath, vfs.Normalize("/", target)); err != nil {
			env.Stdio.Errorf("cp: cannot copy '%s': %v\n", s, err)
			status = core.ExitFailure
		}
	}
	return status
}

func copyTree(fs *vfs.FS, src, dst string) error {
	meta, err := fs.Stat(src)
	if err != nil {
		return err
	}
	if !meta.IsDir() {
		return fs.Copy(src, dst)
	}
	if !fs.Exists(dst) {
		if err := fs.Mkdir(dst, true); err != nil {
			return err
		}
	}
	entries, err := fs.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := copyTree(fs, src+"/"+e.Name, dst+"/"+e.Name); err != nil {
			return err
		}
	}
	return nil
}

func mvCmd(env *interp.Env, args []string) int {
	_, files := splitFlags(args)
	if len(files) < 2 {
		return core.UsageError(env.Stdio, "mv", "missing destination file operand")
	}
	dst := env.Path(files[len(files)-1])
	srcs := files[:len(files)-1]
	dstMeta, dstErr := env.FS.Stat(dst)
	dstIsDir := dstErr == nil && dstMeta.IsDir()
	if len(srcs) > 1 && !dstIsDir {
		env.Stdio.Errorf("mv: target '%s' is not a directory\n", files[len(files)-1])
		return core.ExitFailure
	}
	status := 0
	for _, s := range srcs {
		srcPath := env.Path(s)
		target := dst
		if dstIsDir {
			target = dst + "/" + path.Base(srcPath)
		}
		if err := env.FS.Rename(srcPath, vfs.Normalize("/", target)); err != nil {
			env.Stdio.Errorf("mv: cannot move '%s': %v\n", s, err)
			status = core.ExitFailure
		}
	}
	return status
}

func touchCmd(env *interp.Env, args []string) int {
	_, files := splitFlags(args)
	if len(files) == 0 {
		return core.UsageError(env.Stdio, "touch", "missing file operand")
	}
	status := 0
	for _, f := range files {
		if err := env.FS.Touch(env.Path(f)); err != nil {
			env.Stdio.Errorf("touch: cannot touch '%s': %v\n", f, err)
			status = core.ExitFailure
		}
	}
	return status
}

func chmodCmd(env *interp.Env, args []string) int {
	_, rest := splitFlags(args)
	if len(rest) < 2 {
		return core.UsageError(env.Stdio, "chmod", "missing operand")
	}
	mode, err := strconv.ParseUint(rest[0], 8, 32)
	if err != nil {
		return core.UsageError(env.Stdio, "chmod", "invalid mode: '"+rest[0]+"'")
	}
	status := 0
	for _, f := range rest[1:] {
		if err := env.FS.Chmod(env.Path(f), uint32(mode)); err != nil {
			env.Stdio.Errorf("chmod: cannot access '%s': No such file or directory\n", f)
			status = core.ExitFailure
		}
	}
	return status
}

// lnCmd copies the source node. Nodes have exactly one parent, so a
// true hard link cannot exist, and symlinks are not supported at all.
func lnCmd(env *interp.Env, args []string) int {
	flags, rest := splitFlags(args)
	for _, f := range flags {
		if f == "-s" {
			env.Stdio.Errorf("ln: symbolic links are not supported\n")
			return core.ExitFailure
		}
		return core.UsageError(env.Stdio, "ln", "invalid option -- '"+f+"'")
	}
	if len(rest) != 2 {
		return core.UsageError(env.Stdio, "ln", "missing file operand")
	}
	if err := env.FS.Copy(env.Path(rest[0]), env.Path(rest[1])); err != nil {
		env.Stdio.Errorf("ln: %s: %v\n", rest[0], err)
		return core.ExitFailure
	}
	return core.ExitSuccess
}

func basenameCmd(env *interp.Env, args []string) int {
	if len(args) == 0 {
		return core.UsageError(env.Stdio, "basename", "missing operand")
	}
	base := path.Base(args[0])
	if len(args) > 1 {
		base = strings.TrimSuffix(base, args[1])
	}
	env.Stdio.Println(base)
	return core.ExitSuccess
}

func dirnameCmd(env *interp.Env, args []string) int {
	if len(args) == 0 {
		return core.UsageError(env.Stdio, "dirname", "missing operand")
	}
	env.Stdio.Println(path.Dir(args[0]))
	return core.ExitSuccess
}

func statCmd(env *interp.Env, args []string) int {
	if len(args) == 0 {
		return core.UsageError(env.Stdio, "stat", "missing operand")
	}
	status := 0
	for _, f := range args {
		p := env.Path(f)
		meta, err := env.FS.Stat(p)
		if err != nil {
			env.Stdio.Errorf("stat: cannot stat '%s': No such file or directory\n", f)
			status = core.ExitFailure
			continue
		}
		kind := "regular file"
		if meta.IsDir() {
			kind = "directory"
		}
		env.Stdio.Printf("  File: %s\n  Size: %d\t%s\nAccess: (%04o)\nModify: %s\n",
			f, meta.Size, kind, meta.Mode, meta.Modified.Format("2006-01-02 15:04:05"))
	}
	return status
}

func duCmd(env *interp.Env, args []string) int {
	summarize := false
	flags, paths := splitFlags(args)
	for _, f := range flags {
		switch f {
		case "-s":
			summarize = true
		default:
			return core.UsageError(env.Stdio, "du", "invalid option -- '"+f+"'")
		}
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}
	status := 0
	for _, p := range paths {
		full := env.Path(p)
		if !env.FS.Exists(full) {
			env.Stdio.Errorf("du: cannot access '%s': No such file or directory\n", p)
			status = core.ExitFailure
			continue
		}
		total := duWalk(env, full, strings.TrimSuffix(p, "/"), summarize)
		env.Stdio.Printf("%d\t%s\n", blocks(total), p)
	}
	return status
}

// duWalk returns the byte total under full, printing per-directory
// totals unless summarizing.
func duWalk(env *interp.Env, full, display string, summarize bool) int64 {
	meta, err := env.FS.Stat(full)
	if err != nil {
		return 0
	}
	if !meta.IsDir() {
		return meta.Size
	}
	var total int64
	entries, _ := env.FS.ReadDir(full)
	for _, e := range entries {
		sub := duWalk(env, full+"/"+e.Name, display+"/"+e.Name, summarize)
		if e.Meta.IsDir() && !summarize {
			env.Stdio.Printf("%d\t%s\n", blocks(sub), display+"/"+e.Name)
		}
		total += sub
	}
	return total
}

// blocks converts bytes to 1K blocks, rounding up, minimum one block
// for directories.
func blocks(n int64) int64 {
	b := (n + 1023) / 1024
	if b == 0 {
		b = 1
	}
	return b
}
