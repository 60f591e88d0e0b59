package validation

// VerdictSchemaJSON is the JSON Schema for gatekeeper classification verdicts.
const VerdictSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Gatekeeper Verdict",
  "type": "object",
  "required": ["classification", "reasoning"],
  "properties": {
    "classification": {
      "type": "string",
      "enum": ["homework", "production", "malicious"]
    },
    "confidence": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    },
    "reasoning": {
      "type": "string",
      "minLength": 1
    },
    "refusal_message": {
      "type": "string"
    }
  },
  "additionalProperties": false
}`

// BlueprintSchemaJSON is the JSON Schema for architect blueprints.
const BlueprintSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Project Blueprint",
  "type": "object",
  "required": ["project_features", "design_specs"],
  "properties": {
    "project_features": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "description"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string", "minLength": 1},
          "priority": {"type": "string", "enum": ["core", "enhancement"]},
          "benefit": {"type": "string"}
        },
        "additionalProperties": false
      }
    },
    "design_specs": {
      "type": "object",
      "required": ["layout", "color_scheme", "typography"],
      "properties": {
        "layout": {"type": "string", "minLength": 1},
        "color_scheme": {"type": "string", "minLength": 1},
        "typography": {"type": "string", "minLength": 1},
        "animations": {"type": "string"}
      },
      "additionalProperties": true
    }
  },
  "additionalProperties": true
}`

// StructureSchemaJSON is the JSON Schema for file-structure proposals, used
// both by the structurer stage and by on-demand structure regeneration.
const StructureSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "File Structure Proposal",
  "type": "object",
  "required": ["tech_stack", "file_structure"],
  "properties": {
    "tech_stack": {
      "type": "string",
      "minLength": 1
    },
    "file_structure": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "purpose", "type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "purpose": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1}
        },
        "additionalProperties": false
      }
    },
    "asset_manifest": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "url"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "url": {"type": "string", "minLength": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": true
}`

// ReportSchemaJSON is the JSON Schema for validator issue reports emitted by
// the syntax and semantic review stages.
const ReportSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Validation Report",
  "type": "object",
  "required": ["passed", "issues"],
  "properties": {
    "passed": {
      "type": "boolean"
    },
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["file", "issue"],
        "properties": {
          "file": {"type": "string", "minLength": 1},
          "issue": {"type": "string", "minLength": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`
