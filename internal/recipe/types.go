// Package recipe synthesizes a container build recipe from an analyzer
// result, preferring a fixed template catalog and falling back to the
// Model Broker for frameworks the catalog doesn't cover (spec §4.7).
package recipe

// Recipe is the Synthesizer's output: the recipe text itself plus metadata
// the Pipeline Engine surfaces to the client.
type Recipe struct {
	Text           string
	Optimizations  []string
	SizeEstimate   string
	SecurityNotes  []string // informational red flags found by the scan, never fatal
	FromTemplate   bool
	TemplateKey    string
}
