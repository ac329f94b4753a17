package handlers

import "github.com/xeipuuv/gojsonschema"

// Request body shape checks. Cross-field rules (background exclusivity, logo
// bounds) live in pipeline.RenderConfig.Validate, which runs after these.

const SubmitRenderRequestSchemaDefinition = `{
	"type": "object",
	"properties": {
		"source_audio": {
			"type": "array",
			"items": { "type": "string", "minLength": 1 },
			"minItems": 2
		},
		"image_bg": { "type": "string" },
		"video_bg": { "type": "string" },
		"crossfade": { "type": "integer", "minimum": 0 },
		"target_minutes": { "type": "integer", "minimum": 5 },
		"resolution": { "type": "string", "pattern": "^[0-9]{2,5}x[0-9]{2,5}$" },
		"abitrate": { "type": "string", "minLength": 1 },
		"preset": { "type": "string", "minLength": 1 },
		"basename": { "type": "string", "minLength": 1 },
		"logo_png": { "type": "string" },
		"logo_pos": { "type": "string", "enum": ["top-left", "top-right", "bottom-left", "bottom-right"] },
		"logo_scale": { "type": "integer", "minimum": 5, "maximum": 60 },
		"logo_opacity": { "type": "integer", "minimum": 10, "maximum": 100 }
	},
	"required": ["source_audio", "target_minutes", "resolution", "abitrate", "preset", "basename"],
	"additionalProperties": false
}`

const RegisterVideoRequestSchemaDefinition = `{
	"type": "object",
	"properties": {
		"path": { "type": "string", "minLength": 1 },
		"name": { "type": "string" }
	},
	"required": ["path"],
	"additionalProperties": false
}`

const StartStreamRequestSchemaDefinition = `{
	"type": "object",
	"properties": {
		"ingest_url": { "type": "string" },
		"ingest_key": { "type": "string" },
		"watch_url": { "type": "string" },
		"broadcast_id": { "type": "string" }
	},
	"additionalProperties": false
}`

var inputSchemas map[string]string = map[string]string{
	"SubmitRender":  SubmitRenderRequestSchemaDefinition,
	"RegisterVideo": RegisterVideoRequestSchemaDefinition,
	"StartStream":   StartStreamRequestSchemaDefinition,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, 0)
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			// raise panic on program start
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

// Run compile step on program start:
var inputSchemasCompiled map[string]*gojsonschema.Schema = compileJsonSchemas()
