package discovery

import (
	"path"
	"strings"

	"github.com/mdresch/requirements-gathering-agent/internal/library"
)

// FileTypeInfo describes a well-known file name.
type FileTypeInfo struct {
	Type       string // entry_point, config, build, documentation, ci
	Importance int    // 1-10
}

// ImportantFilePatterns are file names that carry more weight than their
// extension alone suggests
var ImportantFilePatterns = map[string]FileTypeInfo{
	// Entry points
	"main.go":  {Type: "entry_point", Importance: 10},
	"main.py":  {Type: "entry_point", Importance: 10},
	"main.rs":  {Type: "entry_point", Importance: 10},
	"main.js":  {Type: "entry_point", Importance: 10},
	"main.ts":  {Type: "entry_point", Importance: 10},
	"index.js": {Type: "entry_point", Importance: 9},
	"index.ts": {Type: "entry_point", Importance: 9},
	"app.py":   {Type: "entry_point", Importance: 9},
	"app.js":   {Type: "entry_point", Importance: 9},
	"app.ts":   {Type: "entry_point", Importance: 9},
	"lib.rs":   {Type: "entry_point", Importance: 9},

	// Configuration
	"go.mod":           {Type: "config", Importance: 9},
	"package.json":     {Type: "config", Importance: 9},
	"Cargo.toml":       {Type: "config", Importance: 9},
	"pyproject.toml":   {Type: "config", Importance: 9},
	"setup.py":         {Type: "config", Importance: 8},
	"requirements.txt": {Type: "config", Importance: 8},
	"tsconfig.json":    {Type: "config", Importance: 8},
	".env.example":     {Type: "config", Importance: 6},

	// Build
	"Makefile":            {Type: "build", Importance: 8},
	"CMakeLists.txt":      {Type: "build", Importance: 8},
	"Dockerfile":          {Type: "build", Importance: 7},
	"docker-compose.yml":  {Type: "build", Importance: 7},
	"docker-compose.yaml": {Type: "build", Importance: 7},

	// Documentation
	"README.md":       {Type: "documentation", Importance: 10},
	"README":          {Type: "documentation", Importance: 9},
	"OVERVIEW.md":     {Type: "documentation", Importance: 9},
	"ARCHITECTURE.md": {Type: "documentation", Importance: 8},
	"CONTRIBUTING.md": {Type: "documentation", Importance: 6},
	"CHANGELOG.md":    {Type: "documentation", Importance: 5},
	"LICENSE":         {Type: "documentation", Importance: 4},

	// CI/CD
	".gitlab-ci.yml": {Type: "ci", Importance: 6},
	"Jenkinsfile":    {Type: "ci", Importance: 6},
}

// ImportantDirPatterns score top-level directories
var ImportantDirPatterns = map[string]int{
	"docs":         9,
	"doc":          9,
	"requirements": 9,
	"cmd":          8,
	"internal":     8,
	"pkg":          8,
	"src":          8,
	"lib":          8,
	"api":          8,
	"models":       7,
	"services":     7,
	"handlers":     7,
	"controllers":  7,
	"components":   7,
	"config":       6,
	"configs":      6,
	"templates":    6,
	"tests":        6,
	"test":         6,
	"scripts":      5,
	"migrations":   5,
	"examples":     4,
	"assets":       4,
}

// Boost amounts. Boosts are additive and never negative.
const (
	boostReadme     = 0.2
	boostEntryPoint = 0.1
	boostRootLevel  = 0.1
	boostImportant  = 0.05
	boostDir        = 0.05
)

// Boost returns the filename and location bonus for a relative path.
func Boost(rel string) float64 {
	base := path.Base(rel)
	boost := 0.0

	if strings.HasPrefix(strings.ToUpper(base), "README") {
		boost += boostReadme
	}
	if info, ok := ImportantFilePatterns[base]; ok {
		if info.Type == "entry_point" {
			boost += boostEntryPoint
		} else if info.Importance >= 8 {
			boost += boostImportant
		}
	}
	if !strings.Contains(rel, "/") {
		boost += boostRootLevel
	} else if GetDirImportance(strings.SplitN(rel, "/", 2)[0]) >= 7 {
		boost += boostDir
	}
	return boost
}

// GetDirImportance returns the importance score for a directory name
func GetDirImportance(dirName string) int {
	if importance, ok := ImportantDirPatterns[strings.ToLower(dirName)]; ok {
		return importance
	}
	return 0
}

var (
	testDirs     = map[string]bool{"test": true, "tests": true, "__tests__": true, "spec": true, "testdata": true}
	exampleDirs  = map[string]bool{"example": true, "examples": true, "samples": true, "demo": true}
	templateDirs = map[string]bool{"template": true, "templates": true}
	scriptDirs   = map[string]bool{"scripts": true, "script": true, "bin": true}
	docDirs      = map[string]bool{"docs": true, "doc": true, "documentation": true, "requirements": true}

	docExts      = map[string]bool{".md": true, ".markdown": true, ".rst": true, ".txt": true, ".adoc": true}
	configExts   = map[string]bool{".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true, ".conf": true, ".env": true, ".properties": true}
	templateExts = map[string]bool{".tmpl": true, ".tpl": true, ".hbs": true, ".j2": true, ".mustache": true, ".ejs": true}
	scriptExts   = map[string]bool{".sh": true, ".bash": true, ".zsh": true, ".ps1": true, ".bat": true, ".cmd": true}
	dataExts     = map[string]bool{".json": true, ".csv": true, ".tsv": true, ".xml": true, ".sql": true, ".jsonl": true}
)

// Categorize assigns a library category to a relative path.
func Categorize(rel string) library.Category {
	base := path.Base(rel)
	lower := strings.ToLower(base)
	ext := path.Ext(lower)

	if isTestName(lower) {
		return library.CategoryTests
	}

	if info, ok := ImportantFilePatterns[base]; ok {
		switch info.Type {
		case "documentation":
			return library.CategoryDocumentation
		case "config", "build", "ci":
			return library.CategoryConfiguration
		}
	}

	dirs := strings.Split(path.Dir(rel), "/")
	for _, d := range dirs {
		d = strings.ToLower(d)
		switch {
		case testDirs[d]:
			return library.CategoryTests
		case exampleDirs[d]:
			return library.CategoryExamples
		case templateDirs[d]:
			return library.CategoryTemplates
		case scriptDirs[d]:
			return library.CategoryScripts
		case docDirs[d] && docExts[ext]:
			return library.CategoryDocumentation
		}
	}

	switch {
	case docExts[ext]:
		return library.CategoryDocumentation
	case configExts[ext], strings.Contains(lower, ".config."), strings.HasSuffix(lower, "rc.json"):
		return library.CategoryConfiguration
	case templateExts[ext]:
		return library.CategoryTemplates
	case scriptExts[ext]:
		return library.CategoryScripts
	case dataExts[ext]:
		return library.CategoryData
	}

	if isSourceLanguage(DetectFileType(base)) {
		return library.CategorySourceCode
	}
	return library.CategoryOther
}

func isTestName(lower string) bool {
	return strings.Contains(lower, "_test.") ||
		strings.Contains(lower, ".test.") ||
		strings.Contains(lower, ".spec.") ||
		strings.HasPrefix(lower, "test_")
}

var sourceLanguages = map[string]bool{
	"go": true, "javascript": true, "typescript": true, "python": true, "rust": true,
	"ruby": true, "java": true, "kotlin": true, "scala": true, "c": true, "cpp": true,
	"header": true, "csharp": true, "swift": true, "objc": true, "php": true, "lua": true,
	"perl": true, "r": true, "vue": true, "svelte": true, "protobuf": true, "graphql": true,
	"terraform": true, "hcl": true, "zig": true, "elixir": true, "erlang": true,
	"clojure": true, "haskell": true, "ocaml": true, "fsharp": true, "html": true, "css": true,
	"makefile": true, "dockerfile": true,
}

func isSourceLanguage(lang string) bool {
	return sourceLanguages[lang]
}

// DetectFileType returns a language/type identifier based on file extension
func DetectFileType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))

	switch strings.ToLower(path.Base(filename)) {
	case "makefile", "gnumakefile":
		return "makefile"
	case "dockerfile":
		return "dockerfile"
	case "rakefile", "gemfile":
		return "ruby"
	}

	switch ext {
	case ".go":
		return "go"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	case ".py", ".pyi":
		return "python"
	case ".rs":
		return "rust"
	case ".rb":
		return "ruby"
	case ".java":
		return "java"
	case ".kt", ".kts":
		return "kotlin"
	case ".scala":
		return "scala"
	case ".c":
		return "c"
	case ".cpp", ".cc", ".cxx":
		return "cpp"
	case ".h", ".hpp":
		return "header"
	case ".cs":
		return "csharp"
	case ".swift":
		return "swift"
	case ".m", ".mm":
		return "objc"
	case ".php":
		return "php"
	case ".lua":
		return "lua"
	case ".pl", ".pm":
		return "perl"
	case ".r":
		return "r"
	case ".vue":
		return "vue"
	case ".svelte":
		return "svelte"
	case ".proto":
		return "protobuf"
	case ".graphql", ".gql":
		return "graphql"
	case ".tf":
		return "terraform"
	case ".hcl":
		return "hcl"
	case ".zig":
		return "zig"
	case ".ex", ".exs":
		return "elixir"
	case ".erl":
		return "erlang"
	case ".clj", ".cljs":
		return "clojure"
	case ".hs":
		return "haskell"
	case ".ml", ".mli":
		return "ocaml"
	case ".fs", ".fsx":
		return "fsharp"
	case ".html", ".htm":
		return "html"
	case ".css", ".scss", ".less":
		return "css"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}
