// Package analyzer scans a cloned repository and produces a structured
// classification, asking the Model Broker first and falling back to static
// heuristics on any failure (spec §4.6).
package analyzer

// Result is the analyzer's output. The zero value with Language ==
// languageUnknown and a non-empty Warnings list represents the fallback
// path; it is always a well-formed record, never an error.
type Result struct {
	Language        string
	Framework       string
	EntryPoint      string
	Port            int
	Dependencies    []string
	DatabaseHint    string
	BuildTool       string
	StartCommand    string
	EnvVarNames     []string
	RecipeExists    bool
	Recommendations []string
	Warnings        []string
}

// languageUnknown is the sentinel Language value required whenever
// classification could not be completed (spec §4.6 invariant).
const languageUnknown = "unknown"

// configFile is one manifest or lockfile collected from the working copy
// and handed to the classifier prompt verbatim.
type configFile struct {
	Path    string
	Content string
}

const maxConfigFileBytes = 50 * 1024

// maxWalkDepth bounds the directory walk (spec §4.6 step 1).
const maxWalkDepth = 3
