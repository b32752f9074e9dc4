package scip

import (
	"log/slog"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"

	"codeintel/internal/paths"
	"codeintel/internal/slogutil"
	"codeintel/internal/tags"
)

// ToTags converts every non-local definition occurrence into a Tag. Scope
// is the chain of enclosing type descriptors; lines come from the enclosing
// range when the indexer recorded one.
func ToTags(index *scippb.Index, logger *slog.Logger) []tags.Tag {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}

	var out []tags.Tag
	for _, doc := range index.Documents {
		infos := make(map[string]*scippb.SymbolInformation, len(doc.Symbols))
		for _, info := range doc.Symbols {
			infos[info.Symbol] = info
		}

		seen := make(map[string]bool)
		for _, occ := range doc.Occurrences {
			if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) == 0 {
				continue
			}
			if occ.Symbol == "" || scippb.IsLocalSymbol(occ.Symbol) || seen[occ.Symbol] {
				continue
			}
			seen[occ.Symbol] = true

			tag, ok := occurrenceTag(doc, occ, infos[occ.Symbol])
			if !ok {
				logger.Debug("Skipping SCIP symbol", "symbol", occ.Symbol)
				continue
			}
			out = append(out, tag)
		}
	}
	return out
}

func occurrenceTag(doc *scippb.Document, occ *scippb.Occurrence, info *scippb.SymbolInformation) (tags.Tag, bool) {
	sym, err := scippb.ParseSymbol(occ.Symbol)
	if err != nil || len(sym.Descriptors) == 0 {
		return tags.Tag{}, false
	}

	last := sym.Descriptors[len(sym.Descriptors)-1]
	var scope []string
	for _, d := range sym.Descriptors[:len(sym.Descriptors)-1] {
		if d.Suffix == scippb.Descriptor_Type {
			scope = append(scope, d.Name)
		}
	}

	kind := kindFromInfo(info)
	if kind == "" {
		kind = kindFromSuffix(last.Suffix, len(scope) > 0)
	}
	if kind == "" {
		return tags.Tag{}, false
	}

	start, end := lines(occ)
	tag := tags.Tag{
		Name:      last.Name,
		Path:      paths.NormalizePath(doc.RelativePath),
		Kind:      kind,
		Language:  displayLanguage(doc.Language),
		LineStart: start,
		LineEnd:   end,
	}
	if len(scope) > 0 {
		tag.Scope = strings.Join(scope, ".")
		tag.ScopeKind = "class"
	}
	return tag, true
}

func kindFromInfo(info *scippb.SymbolInformation) string {
	if info == nil {
		return ""
	}
	switch info.Kind {
	case scippb.SymbolInformation_Class:
		return "class"
	case scippb.SymbolInformation_Struct:
		return "struct"
	case scippb.SymbolInformation_Interface:
		return "interface"
	case scippb.SymbolInformation_Enum:
		return "enum"
	case scippb.SymbolInformation_Trait:
		return "trait"
	case scippb.SymbolInformation_TypeAlias:
		return "type"
	case scippb.SymbolInformation_Function:
		return "function"
	case scippb.SymbolInformation_Method:
		return "method"
	case scippb.SymbolInformation_Constructor:
		return "constructor"
	case scippb.SymbolInformation_Field:
		return "field"
	case scippb.SymbolInformation_Property:
		return "property"
	case scippb.SymbolInformation_Variable:
		return "variable"
	case scippb.SymbolInformation_Constant:
		return "constant"
	default:
		return ""
	}
}

// kindFromSuffix infers a kind from the descriptor suffix: '#' types,
// '().' methods, '.' terms.
func kindFromSuffix(suffix scippb.Descriptor_Suffix, scoped bool) string {
	switch suffix {
	case scippb.Descriptor_Type:
		return "type"
	case scippb.Descriptor_Method:
		if scoped {
			return "method"
		}
		return "function"
	case scippb.Descriptor_Term:
		if scoped {
			return "field"
		}
		return "variable"
	default:
		return ""
	}
}

// lines converts SCIP's 0-based ranges to 1-based tag lines.
func lines(occ *scippb.Occurrence) (int, int) {
	r := occ.EnclosingRange
	if len(r) < 3 {
		r = occ.Range
	}
	if len(r) < 3 {
		return 0, 0
	}
	start := int(r[0]) + 1
	if len(r) >= 4 {
		return start, int(r[2]) + 1
	}
	return start, start
}

func displayLanguage(lang string) string {
	switch strings.ToLower(lang) {
	case "go":
		return "Go"
	case "python":
		return "Python"
	case "java":
		return "Java"
	case "typescript", "typescriptreact":
		return "TypeScript"
	case "javascript", "javascriptreact":
		return "JavaScript"
	case "csharp", "c#":
		return "C#"
	default:
		return lang
	}
}
