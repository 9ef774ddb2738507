package recipe

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type templateEntry struct {
	Template      string   `yaml:"template"`
	SizeEstimate  string   `yaml:"size_estimate"`
	Optimizations []string `yaml:"optimizations"`
}

var catalog map[string]templateEntry

func init() {
	if err := yaml.Unmarshal(catalogYAML, &catalog); err != nil {
		panic(fmt.Sprintf("recipe: embedded catalog.yaml is malformed: %v", err))
	}
}

func catalogKey(language, framework string) string {
	return strings.ToLower(language) + "_" + strings.ToLower(framework)
}

func lookupTemplate(language, framework string) (templateEntry, bool) {
	entry, ok := catalog[catalogKey(language, framework)]
	return entry, ok
}
