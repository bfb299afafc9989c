package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaName identifies ResponseSchema in structured-output requests.
const SchemaName = "vehicle_recommendation_turn"

// ResponseSchema is the JSON schema of a gateway response. It is shared by the
// LLM transports (structured output) and by Decode (boundary validation), so
// every property is required and optional values are nullable.
var ResponseSchema = json.RawMessage(`{
	"type":"object",
	"additionalProperties":false,
	"properties":{
		"status":{"type":"string","enum":["ASKING_QUESTION","RECOMMENDATION_MADE","NO_MATCH_FOUND"]},
		"next_question":{"type":["string","null"]},
		"next_question_options":{"type":["array","null"],"items":{"type":"string"}},
		"updated_candidate_ids":{"type":"array","items":{"type":"string"}},
		"final_recommendation":{
			"anyOf":[
				{"type":"null"},
				{
					"type":"object",
					"additionalProperties":false,
					"properties":{
						"id":{"type":"string"},
						"details":{
							"type":"object",
							"additionalProperties":false,
							"properties":{
								"name":{"type":"string"},
								"brand":{"type":["string","null"]}
							},
							"required":["name","brand"]
						},
						"summary":{"type":"string"}
					},
					"required":["id","details","summary"]
				}
			]
		},
		"error_message":{"type":["string","null"]}
	},
	"required":["status","next_question","next_question_options","updated_candidate_ids","final_recommendation","error_message"]
}`)

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func responseSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(ResponseSchema))
	})
	return compiledSchema, schemaErr
}

// validateShape checks raw against ResponseSchema.
func validateShape(raw []byte) error {
	schema, err := responseSchema()
	if err != nil {
		return fmt.Errorf("compile response schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
