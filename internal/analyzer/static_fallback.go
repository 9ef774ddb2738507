package analyzer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// staticFallback runs the deterministic heuristics used whenever LLM
// classification could not be completed (spec §4.6 step 5, grounded on the
// original CodeAnalyzerAgent._fallback_analysis).
func staticFallback(root string, wr walkResult, reason string) Result {
	res := Result{
		Language:        languageUnknown,
		Port:            8080,
		Recommendations: []string{"Unable to fully analyze project - manual configuration may be needed"},
		Warnings:        []string{"automated analysis failed, using static fallback: " + reason},
	}

	hasConfig := func(name string) bool {
		for _, c := range wr.configs {
			if c.Path == name {
				return true
			}
		}
		return false
	}
	hasFile := func(name string) bool {
		for _, f := range wr.files {
			if f == name {
				return true
			}
		}
		return false
	}

	switch {
	case hasConfig("package.json"):
		res.Language = "nodejs"
		res.BuildTool = "npm"
		res.Framework = detectNodeFramework(root)
	case hasConfig("requirements.txt") || hasConfig("pyproject.toml"):
		res.Language = "python"
		res.BuildTool = "pip"
		for _, candidate := range []string{"app.py", "main.py", "manage.py"} {
			if hasFile(candidate) {
				res.EntryPoint = candidate
				break
			}
		}
	case hasConfig("go.mod"):
		res.Language = "golang"
		res.BuildTool = "go"
		res.EntryPoint = "main.go"
	case hasConfig("pom.xml") || hasConfig("build.gradle"):
		res.Language = "java"
		res.BuildTool = "maven"
		if hasConfig("build.gradle") {
			res.BuildTool = "gradle"
		}
	case hasConfig("Gemfile"):
		res.Language = "ruby"
		res.BuildTool = "bundle"
	case hasConfig("composer.json"):
		res.Language = "php"
		res.BuildTool = "composer"
	}

	res.EnvVarNames = extractEnvVarNames(root)
	res.RecipeExists = hasConfig("Dockerfile")
	return res
}

func detectNodeFramework(root string) string {
	raw, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if json.Unmarshal(raw, &pkg) != nil {
		return ""
	}
	switch {
	case has(pkg.Dependencies, "next"):
		return "nextjs"
	case has(pkg.Dependencies, "express"):
		return "express"
	}
	return ""
}

func has(m map[string]string, key string) bool {
	_, ok := m[key]
	return ok
}

var envFileNames = []string{".env", ".env.example", ".env.sample"}

// extractEnvVarNames reads known dotenv variants and returns the
// deduplicated set of variable names (never values — names only).
func extractEnvVarNames(root string) []string {
	seen := map[string]bool{}
	var names []string

	for _, name := range envFileNames {
		content, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
				continue
			}
			key := strings.TrimSpace(strings.SplitN(line, "=", 2)[0])
			if key != "" && !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
	}
	return names
}
