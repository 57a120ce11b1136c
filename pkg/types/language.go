package types

import (
	"path/filepath"
	"strings"
)

// LanguageText is the generic tag for files with no recognized extension.
const LanguageText = "text"

// extLanguages maps file extensions to language tags.
var extLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".go":    "go",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sql":   "sql",
	".sh":    "bash",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".xml":   "xml",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".md":    "markdown",
}

// structuralScanLanguages is the set of language tags the function extractor
// can scan structurally. Other tags fall back to a single whole-text span.
var structuralScanLanguages = map[string]bool{
	"python":     true,
	"javascript": true,
	"typescript": true,
	"java":       true,
	"c":          true,
	"cpp":        true,
	"go":         true,
}

// DetectLanguage maps a file path to a language tag by extension.
// Unknown or missing extensions map to LanguageText.
func DetectLanguage(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return LanguageText
}

// SupportsStructuralScan reports whether the function extractor has a
// structural scanner for the given language tag.
func SupportsStructuralScan(language string) bool {
	return structuralScanLanguages[language]
}

// StructuralScanLanguages returns the supported language tags in no
// particular order.
func StructuralScanLanguages() []string {
	langs := make([]string, 0, len(structuralScanLanguages))
	for lang := range structuralScanLanguages {
		langs = append(langs, lang)
	}
	return langs
}
