package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/launchdeck/launchdeck/internal/broker"
)

// classifier is the subset of broker.Broker the Analyzer needs, narrowed to
// keep this package testable without a live Broker.
type classifier interface {
	Send(ctx context.Context, userMessage string) (*broker.Response, error)
}

// Analyzer scans a working copy and classifies it, falling back to static
// heuristics on any failure.
type Analyzer struct {
	broker classifier
}

// New builds an Analyzer bound to the given Broker.
func New(b classifier) *Analyzer {
	return &Analyzer{broker: b}
}

// Analyze implements the algorithm in spec §4.6. It never returns an error;
// any failure degrades to staticFallback.
func (a *Analyzer) Analyze(ctx context.Context, workingCopyPath string) Result {
	wr, err := walk(workingCopyPath)
	if err != nil {
		return staticFallback(workingCopyPath, wr, fmt.Sprintf("directory walk failed: %v", err))
	}

	if a.broker == nil {
		return staticFallback(workingCopyPath, wr, "no classifier configured")
	}

	raw, err := a.broker.Send(ctx, buildClassificationPrompt(wr))
	if err != nil {
		return staticFallback(workingCopyPath, wr, fmt.Sprintf("classification request failed: %v", err))
	}

	parsed, err := parseClassification(raw.Text)
	if err != nil {
		return staticFallback(workingCopyPath, wr, fmt.Sprintf("classification response unparseable: %v", err))
	}

	parsed.EnvVarNames = extractEnvVarNames(workingCopyPath)
	parsed.RecipeExists = containsPath(wr, "Dockerfile")
	if parsed.Language == "" {
		parsed.Language = languageUnknown
	}
	return parsed
}

func containsPath(wr walkResult, name string) bool {
	for _, f := range wr.files {
		if f == name {
			return true
		}
	}
	return false
}

func buildClassificationPrompt(wr walkResult) string {
	var sb strings.Builder
	sb.WriteString("Analyze this software project and return a JSON object with deployment information.\n\n")
	sb.WriteString("Files:\n")
	for _, f := range wr.files {
		sb.WriteString("- " + f + "\n")
	}
	sb.WriteString("\nConfiguration files:\n")
	for _, c := range wr.configs {
		sb.WriteString(fmt.Sprintf("--- %s ---\n%s\n", c.Path, c.Content))
	}
	sb.WriteString(`
Return JSON in this exact format:
{
  "language": "python|nodejs|golang|java|ruby|php",
  "framework": "express|flask|django|fastapi|nextjs|gin|springboot|rails",
  "entry_point": "main file",
  "port": 8080,
  "dependencies": ["package-name"],
  "database": "postgresql|mysql|mongodb|redis|none",
  "build_tool": "npm|pip|go|maven|gradle|bundle",
  "start_command": "command to start the application",
  "recommendations": ["..."],
  "warnings": ["..."]
}
Return ONLY valid JSON, no markdown or explanations.
`)
	return sb.String()
}

// classificationJSON mirrors the wire shape the prompt asks the model for.
type classificationJSON struct {
	Language        string   `json:"language"`
	Framework       string   `json:"framework"`
	EntryPoint      string   `json:"entry_point"`
	Port            int      `json:"port"`
	Dependencies    []string `json:"dependencies"`
	Database        string   `json:"database"`
	BuildTool       string   `json:"build_tool"`
	StartCommand    string   `json:"start_command"`
	Recommendations []string `json:"recommendations"`
	Warnings        []string `json:"warnings"`
}

// parseClassification strips an optional ```json fenced wrapper and decodes
// the model's response (spec §4.6 step 3).
func parseClassification(text string) (Result, error) {
	stripped := stripCodeFence(text)

	var c classificationJSON
	if err := json.Unmarshal([]byte(stripped), &c); err != nil {
		return Result{}, fmt.Errorf("decode classification json: %w", err)
	}
	if c.Language == "" {
		return Result{}, fmt.Errorf("classification response missing language")
	}

	dbHint := c.Database
	if dbHint == "none" {
		dbHint = ""
	}
	port := c.Port
	if port == 0 {
		port = 8080
	}

	return Result{
		Language:        c.Language,
		Framework:       c.Framework,
		EntryPoint:      c.EntryPoint,
		Port:            port,
		Dependencies:    c.Dependencies,
		DatabaseHint:    dbHint,
		BuildTool:       c.BuildTool,
		StartCommand:    c.StartCommand,
		Recommendations: c.Recommendations,
		Warnings:        c.Warnings,
	}, nil
}

// stripCodeFence removes a leading/trailing ``` or ```json fence, shared in
// spirit with the Recipe Synthesizer's equivalent (spec §4.6, §4.7).
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	lines := strings.Split(t, "\n")
	if len(lines) < 2 {
		return t
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
