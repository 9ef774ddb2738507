package orchestrator

import "github.com/launchdeck/launchdeck/internal/broker"

// Tools returns the four function definitions the Model Broker advertises
// to both providers' tool schemas (spec §4.2, §6).
func Tools() []broker.ToolDefinition {
	return []broker.ToolDefinition{
		{
			Name:        FuncCloneAndAnalyze,
			Description: "Clone a Git repository and analyze its language, framework, and dependencies.",
			ParametersSchema: `{
				"type": "object",
				"properties": {
					"repo_url": {"type": "string", "description": "HTTPS URL of the repository to clone"},
					"branch":   {"type": "string", "description": "Branch to clone, defaults to main"}
				},
				"required": ["repo_url"]
			}`,
		},
		{
			Name:        FuncDeploy,
			Description: "Build and deploy the already-analyzed project to the managed serverless platform.",
			ParametersSchema: `{
				"type": "object",
				"properties": {
					"env_vars": {
						"type": "object",
						"additionalProperties": {"type": "string"},
						"description": "Additional environment variable assignments to apply at deploy time"
					}
				}
			}`,
		},
		{
			Name:        FuncListRepositories,
			Description: "List the repositories available under the configured Git credential.",
			ParametersSchema: `{"type": "object", "properties": {}}`,
		},
		{
			Name:        FuncGetLogs,
			Description: "Fetch recent build or service logs for the most recent deployment in this session.",
			ParametersSchema: `{
				"type": "object",
				"properties": {
					"source": {"type": "string", "enum": ["build", "service"], "description": "Which log stream to fetch, defaults to service"},
					"limit":  {"type": "integer", "description": "Maximum number of log lines to return"}
				}
			}`,
		},
	}
}
