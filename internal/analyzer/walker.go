package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// noiseDirs are skipped entirely during the walk (spec §4.6 step 1,
// grounded on the original CodeAnalyzerAgent's exclude_dirs).
var noiseDirs = map[string]bool{
	".git": true, "node_modules": true, "venv": true, ".venv": true,
	"__pycache__": true, "dist": true, "build": true, "target": true, "vendor": true,
}

// noiseGlobs catches noise files noiseDirs can't, since they live alongside
// real source rather than inside a whole throwaway directory (spec §4.6
// step 1).
var noiseGlobs = []string{"**/*.pyc", "**/*.class", "**/*.o", "**/.DS_Store"}

// manifestNames is the known set of lockfiles/manifests collected verbatim
// when present, one per supported ecosystem plus dotenv/container/cloud
// manifests (spec §4.6 step 2).
var manifestNames = map[string]bool{
	"package.json": true, "package-lock.json": true,
	"requirements.txt": true, "pyproject.toml": true, "Pipfile": true,
	"go.mod": true, "go.sum": true,
	"pom.xml": true, "build.gradle": true,
	"Gemfile": true, "Gemfile.lock": true,
	"composer.json": true,
	".env": true, ".env.example": true, ".env.sample": true,
	"Dockerfile": true, "docker-compose.yml": true,
	"app.yaml": true, "cloudbuild.yaml": true,
}

type walkResult struct {
	files   []string // relative paths, all files seen (depth-bounded)
	configs []configFile
}

// walk scans root to maxWalkDepth, skipping noiseDirs, and reads any file
// whose basename is in manifestNames and whose size is under
// maxConfigFileBytes.
func walk(root string) (walkResult, error) {
	var result walkResult

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if noiseDirs[d.Name()] {
				return filepath.SkipDir
			}
			if depthOf(rel) >= maxWalkDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if matchAny(noiseGlobs, rel) {
			return nil
		}
		result.files = append(result.files, rel)

		if manifestNames[d.Name()] {
			info, statErr := d.Info()
			if statErr != nil || info.Size() >= maxConfigFileBytes {
				return nil
			}
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil
			}
			result.configs = append(result.configs, configFile{Path: rel, Content: string(content)})
		}
		return nil
	})

	return result, err
}

func depthOf(rel string) int {
	return strings.Count(filepath.ToSlash(rel), "/")
}

// matchAny reports whether rel matches any of the given doublestar globs,
// used by the walk's noise-file check for file patterns that the fixed
// noiseDirs set cannot express (e.g. "**/*.pyc").
func matchAny(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
