package parser

import "regexp"

// patternFamily holds the declaration and import expressions for one language.
// Every expression captures the name or import target in group 1.
type patternFamily struct {
	functions *regexp.Regexp
	classes   *regexp.Regexp
	imports   []*regexp.Regexp
}

var (
	jsImport = regexp.MustCompile(`(?m)^import\s+.*?['"]([^'"]+)['"]`)

	goBlockImport = regexp.MustCompile(`(?ms)^import\s*\((.*?)\)`)
	goQuoted      = regexp.MustCompile(`"([^"]+)"`)
)

var families = map[string]patternFamily{
	"python": {
		functions: regexp.MustCompile(`def\s+(\w+)\s*\([^)]*\)\s*(?:->[^:]+)?:`),
		classes:   regexp.MustCompile(`class\s+(\w+)\s*(?:\([^)]*\))?\s*:`),
		imports: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^import\s+([\w., \t]+)`),
			regexp.MustCompile(`(?m)^from\s+([\w.]+)\s+import`),
		},
	},
	"javascript": {
		functions: regexp.MustCompile(`function\s+(\w+)\s*\([^)]*\)\s*\{`),
		classes:   regexp.MustCompile(`class\s+(\w+)\s*(?:extends\s+\w+)?\s*\{`),
		imports:   []*regexp.Regexp{jsImport},
	},
	"typescript": {
		functions: regexp.MustCompile(`function\s+(\w+)\s*\([^)]*\)\s*(?::[^{]*)?\{`),
		classes:   regexp.MustCompile(`class\s+(\w+)\s*(?:extends\s+\w+)?\s*\{`),
		imports:   []*regexp.Regexp{jsImport},
	},
	"java": {
		functions: regexp.MustCompile(`(?:public|private|protected)\s+(?:\w+\s+)*(\w+)\s*\([^)]*\)\s*\{`),
		classes:   regexp.MustCompile(`class\s+(\w+)\s*(?:extends\s+\w+)?\s*(?:implements[^{]*)?\{`),
		imports: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`),
		},
	},
	"go": {
		functions: regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s*)?(\w+)\s*[\[(]`),
		classes:   regexp.MustCompile(`(?m)^type\s+(\w+)(?:\[[^\]]*\])?\s+(?:struct|interface)\b`),
		imports: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^import\s+(?:[\w.]+\s+)?"([^"]+)"`),
		},
	},
	"rust": {
		functions: regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+(\w+)`),
		classes:   regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait)\s+(\w+)`),
	},
}
