package discovery

import (
	"path"
	"regexp"
	"strings"
)

const maxDependencies = 20

var (
	goQuotedRe  = regexp.MustCompile(`"([^"]+)"`)
	jsModuleRe  = regexp.MustCompile(`(?:from\s+|require\(\s*|import\s*\(\s*|^import\s+)['"]([^'"]+)['"]`)
	pyImportRe  = regexp.MustCompile(`^import\s+([\w.]+)`)
	pyFromRe    = regexp.MustCompile(`^from\s+(\S+)\s+import`)
	rustUseRe   = regexp.MustCompile(`^(?:pub\s+)?use\s+(\w+)`)
	rustCrateRe = regexp.MustCompile(`^extern\s+crate\s+(\w+)`)
)

var pythonStdlib = map[string]bool{
	"os": true, "sys": true, "re": true, "json": true, "typing": true, "time": true,
	"datetime": true, "collections": true, "itertools": true, "functools": true,
	"pathlib": true, "logging": true, "subprocess": true, "math": true, "random": true,
	"unittest": true, "dataclasses": true, "abc": true, "enum": true, "io": true,
	"asyncio": true, "argparse": true, "copy": true, "shutil": true, "tempfile": true,
}

var rustInternal = map[string]bool{"std": true, "core": true, "alloc": true, "crate": true, "self": true, "super": true}

// ExtractDependencies returns the external modules a source file imports,
// in first-seen order. Relative imports and standard libraries are left
// out. Unsupported languages yield nil.
func ExtractDependencies(rel, content string) []string {
	var deps []string
	switch DetectFileType(path.Base(rel)) {
	case "go":
		deps = extractGoImports(content)
	case "javascript", "typescript", "vue", "svelte":
		deps = extractJSImports(content)
	case "python":
		deps = extractPythonImports(content)
	case "rust":
		deps = extractRustImports(content)
	default:
		return nil
	}
	return deduplicateStrings(deps, maxDependencies)
}

func extractGoImports(content string) []string {
	var deps []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "import ("):
			inBlock = true
			continue
		case inBlock && line == ")":
			inBlock = false
			continue
		case !inBlock && !strings.HasPrefix(line, "import "):
			continue
		}
		if m := goQuotedRe.FindStringSubmatch(line); len(m) > 1 {
			// Standard library paths have no dot in the first element.
			first := strings.SplitN(m[1], "/", 2)[0]
			if strings.Contains(first, ".") {
				deps = append(deps, m[1])
			}
		}
	}
	return deps
}

func extractJSImports(content string) []string {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "import") && !strings.Contains(line, "require(") && !strings.HasPrefix(line, "export ") {
			continue
		}
		for _, m := range jsModuleRe.FindAllStringSubmatch(line, -1) {
			spec := m[1]
			if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "node:") {
				continue
			}
			deps = append(deps, packageName(spec))
		}
	}
	return deps
}

// packageName trims a module specifier to its package: "lodash/fp" is
// "lodash", "@scope/pkg/sub" is "@scope/pkg".
func packageName(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) > 1 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func extractPythonImports(content string) []string {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		var mod string
		if m := pyFromRe.FindStringSubmatch(line); len(m) > 1 {
			mod = m[1]
		} else if m := pyImportRe.FindStringSubmatch(line); len(m) > 1 {
			mod = m[1]
		}
		if mod == "" || strings.HasPrefix(mod, ".") {
			continue
		}
		top := strings.Split(mod, ".")[0]
		if !pythonStdlib[top] {
			deps = append(deps, top)
		}
	}
	return deps
}

func extractRustImports(content string) []string {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		m := rustUseRe.FindStringSubmatch(line)
		if m == nil {
			m = rustCrateRe.FindStringSubmatch(line)
		}
		if len(m) > 1 && !rustInternal[m[1]] {
			deps = append(deps, m[1])
		}
	}
	return deps
}

func deduplicateStrings(items []string, maxItems int) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
			if len(result) >= maxItems {
				break
			}
		}
	}

	return result
}
