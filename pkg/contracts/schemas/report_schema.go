package schemas

// ReportSchema is the JSON Schema for model.Report's wire shape. Field
// names mirror Report's json tags; optional fields are omitted from
// "required" rather than typed nullable.
const ReportSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"$id": "https://dissonance-oracle/schemas/report.json",
	"type": "object",
	"required": ["decision", "reasons", "findings", "summary", "filesAnalyzed", "mode", "requestId", "timestamp"],
	"properties": {
		"decision": {"type": "string", "enum": ["pass", "warn", "block"]},
		"reasons": {"type": ["array", "null"], "items": {"type": "string"}},
		"findings": {"type": ["array", "null"], "items": {"$ref": "#/$defs/finding"}},
		"summary": {
			"type": "object",
			"required": ["rulesChecked", "violationsFound", "criticalIssues"],
			"properties": {
				"rulesChecked": {"type": "integer", "minimum": 0},
				"violationsFound": {"type": "integer", "minimum": 0},
				"criticalIssues": {"type": "integer", "minimum": 0}
			}
		},
		"filesAnalyzed": {"type": "integer", "minimum": 0},
		"mode": {"type": "string", "enum": ["pull_request", "merge_group", "drift", "local", "issue"]},
		"degradedMode": {"type": "boolean"},
		"degradedReason": {"type": "string"},
		"driftMagnitude": {"type": "number"},
		"baselineId": {"type": "string"},
		"requestId": {"type": "string", "minLength": 1},
		"timestamp": {"type": "string", "format": "date-time"}
	},
	"$defs": {
		"finding": {
			"type": "object",
			"required": ["id", "ruleId", "ruleName", "severity", "title"],
			"properties": {
				"id": {"type": "string"},
				"ruleId": {"type": "string"},
				"ruleName": {"type": "string"},
				"severity": {"type": "string", "enum": ["pass", "warn", "high", "block"]},
				"title": {"type": "string"},
				"description": {"type": "string"},
				"remediation": {"type": "string"}
			}
		}
	}
}`
