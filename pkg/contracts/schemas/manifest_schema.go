package schemas

// PolicyManifestSchema is the JSON Schema for model.PolicyManifest's wire
// shape, validated before OrgContext.Manifest is handed to any cross-repo
// rule.
const PolicyManifestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"$id": "https://dissonance-oracle/schemas/policy-manifest.json",
	"type": "object",
	"required": ["schemaVersion", "orgId"],
	"properties": {
		"schemaVersion": {"type": "string", "minLength": 1},
		"orgId": {"type": "string", "minLength": 1},
		"defaults": {"type": "array", "items": {"$ref": "#/$defs/expectation"}},
		"classifications": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["match", "expectations"],
				"properties": {
					"match": {"type": "string", "minLength": 1},
					"expectations": {"type": "array", "items": {"$ref": "#/$defs/expectation"}}
				}
			}
		},
		"exemptions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["repo", "expectationIds", "reason", "expiresAt"],
				"properties": {
					"repo": {"type": "string", "minLength": 1},
					"expectationIds": {"type": "array", "items": {"type": "string"}},
					"reason": {"type": "string"},
					"expiresAt": {"type": "string", "format": "date-time"}
				}
			}
		}
	},
	"$defs": {
		"expectation": {
			"type": "object",
			"required": ["id", "description"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"description": {"type": "string"}
			}
		}
	}
}`
