package tracer

import (
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"codeintel/internal/paths"
)

// Frame identifies one function activation.
type Frame struct {
	// Function is the qualified name inside its module, e.g. "Type.Method".
	Function string `json:"function"`
	// File is repo-relative with forward slashes.
	File string `json:"file,omitempty"`
	// Module defaults to the directory of File.
	Module string `json:"module,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// ID returns "module::function".
func (f Frame) ID() string {
	module := f.Module
	if module == "" {
		if f.File != "" {
			module = paths.ModuleOf(f.File)
		} else {
			module = "."
		}
	}
	return module + "::" + f.Function
}

var (
	closureSuffix = regexp.MustCompile(`(\.func\d+|\.gowrap\d+|-range\d+|\.\d+)+$`)
	typeParams    = regexp.MustCompile(`\[[^\]]*\]`)
)

// NormalizeFuncName turns a Go runtime function name into the
// "Type.Method" or "Func" form used by tags. Closures are attributed to
// their enclosing function.
//
//	codeintel/internal/store.(*DB).Get -> DB.Get
//	main.main                          -> main
//	pkg.Run.func1                      -> Run
func NormalizeFuncName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = typeParams.ReplaceAllString(name, "")
	name = strings.TrimSuffix(name, "-fm")
	name = closureSuffix.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")
	return name
}

// FrameFromRuntime builds a Frame from a runtime function name and an
// absolute file path. ok is false when file lies outside root.
func FrameFromRuntime(funcName, file string, line int, root string) (Frame, bool) {
	rel := filepath.ToSlash(file)
	if root != "" {
		r, err := filepath.Rel(root, file)
		if err != nil {
			return Frame{}, false
		}
		rel = filepath.ToSlash(r)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return Frame{}, false
		}
	}
	return Frame{Function: NormalizeFuncName(funcName), File: rel, Line: line}, true
}

func noop() {}

// Enter reports a call of the function that invokes it to the active
// tracer and returns the matching return hook:
//
//	defer tracer.Enter()()
//
// Without an active tracer both are no-ops.
func Enter() func() {
	t := Active()
	if t == nil {
		return noop
	}
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		return noop
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return noop
	}
	frame, ok := FrameFromRuntime(fn.Name(), file, line, t.opts.Root)
	if !ok {
		return noop
	}
	t.Call(frame)
	return t.Return
}
