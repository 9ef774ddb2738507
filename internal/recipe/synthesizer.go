package recipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/launchdeck/launchdeck/internal/analyzer"
	"github.com/launchdeck/launchdeck/internal/broker"
	"github.com/launchdeck/launchdeck/internal/masking"
)

// classifier is the subset of broker.Broker the Synthesizer needs for its
// LLM-fallback path, mirroring analyzer.classifier.
type classifier interface {
	Send(ctx context.Context, userMessage string) (*broker.Response, error)
}

// Synthesizer produces a Recipe from an analyzer.Result.
type Synthesizer struct {
	broker classifier
}

// New builds a Synthesizer bound to the given Broker.
func New(b classifier) *Synthesizer {
	return &Synthesizer{broker: b}
}

// Synthesize implements the policy in spec §4.7. It never returns an error;
// any failure degrades to a minimal generic recipe.
func (s *Synthesizer) Synthesize(ctx context.Context, result analyzer.Result) Recipe {
	entryPoint := sanitizeEntryPoint(result.EntryPoint, result.Language)

	if entry, ok := lookupTemplate(result.Language, result.Framework); ok {
		text := strings.ReplaceAll(entry.Template, "{{entry_point}}", entryPoint)
		rec := Recipe{
			Text:          text,
			Optimizations: entry.Optimizations,
			SizeEstimate:  entry.SizeEstimate,
			FromTemplate:  true,
			TemplateKey:   catalogKey(result.Language, result.Framework),
		}
		rec.SecurityNotes = scanRecipe(rec.Text)
		return rec
	}

	if s.broker != nil {
		if text, err := s.generateWithLLM(ctx, result, entryPoint); err == nil {
			rec := Recipe{
				Text:          text,
				Optimizations: []string{"AI-generated, multi-stage, non-root, PORT-env-var compatible"},
				SizeEstimate:  "~200MB",
			}
			rec.SecurityNotes = scanRecipe(rec.Text)
			return rec
		}
	}

	rec := genericFallback(result.Language, entryPoint)
	rec.SecurityNotes = scanRecipe(rec.Text)
	return rec
}

func (s *Synthesizer) generateWithLLM(ctx context.Context, result analyzer.Result, entryPoint string) (string, error) {
	prompt := fmt.Sprintf(`Generate a production-optimized Dockerfile for a managed serverless container platform with these requirements:

Language: %s
Framework: %s
Entry point: %s
Port: %d
Build tool: %s

Requirements:
1. Multi-stage build to minimize image size
2. Non-root user for security
3. Use the PORT environment variable, defaulting to 8080
4. Layer-caching-friendly ordering
5. Production-ready configuration

Return ONLY the Dockerfile content, no markdown formatting.`,
		result.Language, result.Framework, entryPoint, result.Port, result.BuildTool)

	resp, err := s.broker.Send(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := stripCodeFence(resp.Text)
	if text == "" {
		return "", fmt.Errorf("recipe: empty response from model")
	}
	return text, nil
}

// sanitizeEntryPoint strips extensions and restricts to alphanumerics plus
// "_-." (spec §4.7), mirroring DockerExpertAgent._customize_template.
func sanitizeEntryPoint(entryPoint, language string) string {
	e := strings.TrimSpace(entryPoint)
	if e == "" || e == "unknown" {
		switch strings.ToLower(language) {
		case "python":
			e = "app"
		case "nodejs":
			e = "server.js"
		default:
			e = "main"
		}
	}
	for _, ext := range []string{".py", ".js", ".ts"} {
		e = strings.TrimSuffix(e, ext)
	}

	var sb strings.Builder
	for _, r := range e {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '.' {
			sb.WriteRune(r)
		}
	}
	clean := sb.String()
	if clean == "" {
		return "app"
	}
	return clean
}

func genericFallback(language, entryPoint string) Recipe {
	var text string
	switch strings.ToLower(language) {
	case "python":
		text = fmt.Sprintf(`FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
ENV PORT=8080
EXPOSE 8080
CMD ["python", "%s.py"]
`, entryPoint)
	case "nodejs":
		text = fmt.Sprintf(`FROM node:18-alpine
WORKDIR /app
COPY package*.json ./
RUN npm ci --only=production
COPY . .
ENV PORT=8080
EXPOSE 8080
CMD ["node", "%s"]
`, entryPoint)
	case "golang":
		text = `FROM golang:1.21-alpine AS builder
WORKDIR /app
COPY . .
RUN CGO_ENABLED=0 go build -o main .

FROM alpine:latest
COPY --from=builder /app/main .
ENV PORT=8080
EXPOSE 8080
CMD ["./main"]
`
	default:
		text = `FROM alpine:latest
WORKDIR /app
COPY . .
ENV PORT=8080
EXPOSE 8080
CMD ["./start.sh"]
`
	}
	return Recipe{
		Text:          text,
		Optimizations: []string{"minimal generic recipe, manual tuning recommended"},
		SizeEstimate:  "~200MB",
	}
}

// stripCodeFence mirrors analyzer.stripCodeFence; duplicated rather than
// exported across packages to keep each package's parsing self-contained.
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

// scanRecipe inspects recipe text for known red flags (spec §4.4 "Security
// scan", §9 supplemented catalog). Findings are informational only.
func scanRecipe(text string) []string {
	var notes []string

	lower := strings.ToLower(text)
	if strings.Contains(lower, "user root") || !strings.Contains(lower, "user ") {
		notes = append(notes, "recipe may run as root: no non-root USER directive found")
	}
	if strings.Contains(lower, "--privileged") {
		notes = append(notes, "recipe requests a privileged flag")
	}
	if strings.Contains(lower, "--cap-add") {
		notes = append(notes, "recipe requests an added capability")
	}
	for _, literal := range masking.FindSecretLiterals(text) {
		notes = append(notes, "recipe contains a hardcoded secret-shaped literal: "+literal)
	}
	return notes
}
