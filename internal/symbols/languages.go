// Package symbols produces tag records with tree-sitter when no indexer
// output is available.
package symbols

import (
	"path"
	"strings"
)

// Language identifies a grammar the extractor can parse.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangCSharp     Language = "csharp"
)

var extLanguages = map[string]Language{
	".go":   LangGo,
	".py":   LangPython,
	".pyi":  LangPython,
	".java": LangJava,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTSX,
	".cs":   LangCSharp,
}

// LanguageFromPath picks a grammar from the file extension.
func LanguageFromPath(p string) (Language, bool) {
	lang, ok := extLanguages[strings.ToLower(path.Ext(p))]
	return lang, ok
}

// DisplayName returns the language name the way ctags reports it.
func (l Language) DisplayName() string {
	switch l {
	case LangGo:
		return "Go"
	case LangPython:
		return "Python"
	case LangJava:
		return "Java"
	case LangJavaScript:
		return "JavaScript"
	case LangTypeScript, LangTSX:
		return "TypeScript"
	case LangCSharp:
		return "C#"
	default:
		return string(l)
	}
}
