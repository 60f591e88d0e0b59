// Package validation holds the compiled JSON Schemas that guard every
// structured model output before the pipeline trusts it. A completion that
// fails its schema is an upstream fault, not a content-quality finding.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// verdictSchema is the compiled JSON Schema for gatekeeper verdicts.
var verdictSchema *jsonschema.Schema

// blueprintSchema is the compiled JSON Schema for architect blueprints.
var blueprintSchema *jsonschema.Schema

// structureSchema is the compiled JSON Schema for file-structure proposals.
var structureSchema *jsonschema.Schema

// reportSchema is the compiled JSON Schema for validator issue reports.
var reportSchema *jsonschema.Schema

func init() {
	verdictSchema = mustCompileSchema(VerdictSchemaJSON, "verdict.schema.json")
	blueprintSchema = mustCompileSchema(BlueprintSchemaJSON, "blueprint.schema.json")
	structureSchema = mustCompileSchema(StructureSchemaJSON, "structure.schema.json")
	reportSchema = mustCompileSchema(ReportSchemaJSON, "report.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateVerdictBytes validates raw JSON bytes against the verdict schema.
func ValidateVerdictBytes(data []byte) []string {
	return validateJSONBytes(verdictSchema, data)
}

// ValidateBlueprintBytes validates raw JSON bytes against the blueprint schema.
func ValidateBlueprintBytes(data []byte) []string {
	return validateJSONBytes(blueprintSchema, data)
}

// ValidateStructureBytes validates raw JSON bytes against the file-structure schema.
func ValidateStructureBytes(data []byte) []string {
	return validateJSONBytes(structureSchema, data)
}

// ValidateReportBytes validates raw JSON bytes against the issue-report schema.
func ValidateReportBytes(data []byte) []string {
	return validateJSONBytes(reportSchema, data)
}

func validateJSONBytes(schema *jsonschema.Schema, data []byte) []string {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return validateAgainstSchema(schema, doc)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
