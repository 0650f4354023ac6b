// Package language maps file paths to language tags and decides which files
// are eligible for ingestion.
package language

import (
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest file considered for ingestion (10 MiB)
const MaxFileSize = 10 * 1024 * 1024

// Text is the generic tag used when a language cannot be detected
const Text = "text"

var extensions = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".jsx":  "javascript",
	".tsx":  "typescript",
	".java": "java",
	".cpp":  "cpp",
	".c":    "c",
	".go":   "go",
	".rs":   "rust",
	".rb":   "ruby",
	".php":  "php",
	".cs":   "csharp",
	".html": "html",
	".css":  "css",
	".md":   "markdown",
	".txt":  "text",
}

// excludedDirs are version-control metadata, dependency, build output and
// virtual environment directories.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
}

var binaryExtensions = map[string]bool{
	".pyc": true,
	".so":  true,
	".dll": true,
	".exe": true,
	".jpg": true,
	".png": true,
}

// Detect returns the language tag for path based on its extension.
// The second return value is false for unknown extensions.
func Detect(path string) (string, bool) {
	lang, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// DetectOrText returns the detected language or Text
func DetectOrText(path string) string {
	if lang, ok := Detect(path); ok {
		return lang
	}
	return Text
}

// IsExcludedDir reports whether a directory name is never descended into
func IsExcludedDir(name string) bool {
	return excludedDirs[name]
}

// IsEligible reports whether the file at path is a candidate for parsing.
// A failing size check (missing file, permissions) makes the file ineligible.
func IsEligible(path string) bool {
	if !IsEligiblePath(path) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() <= MaxFileSize
}

// IsEligiblePath applies every rule of IsEligible that does not touch the filesystem
func IsEligiblePath(path string) bool {
	if _, ok := Detect(path); !ok {
		return false
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	for _, segment := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if excludedDirs[segment] {
			return false
		}
	}
	return true
}

// Supported returns a copy of the extension to language table
func Supported() map[string]string {
	out := make(map[string]string, len(extensions))
	for ext, lang := range extensions {
		out[ext] = lang
	}
	return out
}
