//go:build cgo

package symbols

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codeintel/internal/paths"
	"codeintel/internal/slogutil"
	"codeintel/internal/tags"
)

// grammar maps the node types of one language to tag kinds.
type grammar struct {
	language  func() *sitter.Language
	classes   map[string]string
	functions map[string]string
}

var grammars = map[Language]grammar{
	LangGo: {
		language:  golang.GetLanguage,
		classes:   map[string]string{"type_spec": "type"},
		functions: map[string]string{"function_declaration": "function", "method_declaration": "method"},
	},
	LangPython: {
		language:  python.GetLanguage,
		classes:   map[string]string{"class_definition": "class"},
		functions: map[string]string{"function_definition": "function"},
	},
	LangJava: {
		language: java.GetLanguage,
		classes: map[string]string{
			"class_declaration":     "class",
			"interface_declaration": "interface",
			"enum_declaration":      "enum",
			"record_declaration":    "record",
		},
		functions: map[string]string{"method_declaration": "method", "constructor_declaration": "constructor"},
	},
	LangJavaScript: {
		language:  javascript.GetLanguage,
		classes:   map[string]string{"class_declaration": "class"},
		functions: map[string]string{"function_declaration": "function", "method_definition": "method"},
	},
	LangTypeScript: {
		language: typescript.GetLanguage,
		classes: map[string]string{
			"class_declaration":          "class",
			"abstract_class_declaration": "class",
			"interface_declaration":      "interface",
			"enum_declaration":           "enum",
		},
		functions: map[string]string{"function_declaration": "function", "method_definition": "method"},
	},
	LangCSharp: {
		language: csharp.GetLanguage,
		classes: map[string]string{
			"class_declaration":     "class",
			"struct_declaration":    "struct",
			"interface_declaration": "interface",
			"record_declaration":    "record",
			"enum_declaration":      "enum",
		},
		functions: map[string]string{"method_declaration": "method", "constructor_declaration": "constructor"},
	},
}

func init() {
	tsxGrammar := grammars[LangTypeScript]
	tsxGrammar.language = tsx.GetLanguage
	grammars[LangTSX] = tsxGrammar
}

// Extractor turns source files into tags. It is not safe for concurrent use.
type Extractor struct {
	parser *sitter.Parser
	logger *slog.Logger
}

// NewExtractor creates a new tree-sitter extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Extractor{parser: sitter.NewParser(), logger: logger}
}

// IsAvailable returns whether tree-sitter extraction is compiled in.
func IsAvailable() bool {
	return true
}

// ExtractFile extracts tags from root/rel. Unsupported languages yield nothing.
func (e *Extractor) ExtractFile(ctx context.Context, root, rel string) ([]tags.Tag, error) {
	lang, ok := LanguageFromPath(rel)
	if !ok {
		return nil, nil
	}
	source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	return e.ExtractSource(ctx, rel, source, lang)
}

// ExtractDirectory extracts every file in files (repo-relative slash paths).
// Unreadable or unparseable files are logged and skipped.
func (e *Extractor) ExtractDirectory(ctx context.Context, root string, files []string) ([]tags.Tag, error) {
	var all []tags.Tag
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		found, err := e.ExtractFile(ctx, root, rel)
		if err != nil {
			e.logger.Warn("Skipping file", "path", rel, "error", err.Error())
			continue
		}
		all = append(all, found...)
	}
	return all, nil
}

// ExtractSource extracts tags from source bytes. Methods carry their
// container (or Go receiver type) as Scope.
func (e *Extractor) ExtractSource(ctx context.Context, path string, source []byte, lang Language) ([]tags.Tag, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	e.parser.SetLanguage(g.language())
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	w := &walker{
		g:      g,
		source: source,
		path:   paths.NormalizePath(path),
		lang:   lang,
	}
	w.walk(tree.RootNode(), nil)
	return w.out, nil
}

type walker struct {
	g      grammar
	source []byte
	path   string
	lang   Language
	out    []tags.Tag
}

func (w *walker) walk(node *sitter.Node, scope []string) {
	if node == nil {
		return
	}
	if kind, ok := w.g.classes[node.Type()]; ok {
		name := w.nameOf(node)
		if name != "" {
			if w.lang == LangGo {
				kind = goTypeKind(node)
			}
			w.emit(node, name, kind, scope)
			if w.lang != LangGo {
				scope = append(append([]string{}, scope...), name)
			}
		}
	} else if kind, ok := w.g.functions[node.Type()]; ok {
		name := w.nameOf(node)
		if name == "" {
			return
		}
		fnScope := scope
		if node.Type() == "method_declaration" && w.lang == LangGo {
			if recv := firstOfType(node.ChildByFieldName("receiver"), "type_identifier"); recv != nil {
				fnScope = []string{w.text(recv)}
			}
		}
		if len(fnScope) > 0 && kind == "function" {
			kind = "method"
		}
		w.emit(node, name, kind, fnScope)
		// nested functions and local classes are not indexed
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.walk(node.NamedChild(i), scope)
	}
}

func (w *walker) emit(node *sitter.Node, name, kind string, scope []string) {
	tag := tags.Tag{
		Name:      name,
		Path:      w.path,
		Kind:      kind,
		Language:  w.lang.DisplayName(),
		LineStart: int(node.StartPoint().Row) + 1,
		LineEnd:   int(node.EndPoint().Row) + 1,
		Pattern:   firstLine(w.text(node)),
	}
	if len(scope) > 0 {
		tag.Scope = strings.Join(scope, ".")
		tag.ScopeKind = "class"
	}
	w.out = append(w.out, tag)
}

func (w *walker) nameOf(node *sitter.Node) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return w.text(n)
	}
	return ""
}

func (w *walker) text(node *sitter.Node) string {
	return string(w.source[node.StartByte():node.EndByte()])
}

// goTypeKind reads the kind of a Go type_spec from its type node.
func goTypeKind(spec *sitter.Node) string {
	t := spec.ChildByFieldName("type")
	if t == nil {
		return "type"
	}
	switch t.Type() {
	case "struct_type":
		return "struct"
	case "interface_type":
		return "interface"
	default:
		return "type"
	}
}

func firstOfType(node *sitter.Node, typ string) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() == typ {
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := firstOfType(node.NamedChild(i), typ); found != nil {
			return found
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\n{"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
