package extractor

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// replySchema is the hard requirement on a parsed reply: it must be an object.
var replySchema = jsonschema.MustCompileString("mem://contextbridge/reply.json", `{"type": "object"}`)

// shapeSchema describes the shape the prompt asks for. Deviations are logged,
// not rejected; normalization coerces them.
var shapeSchema = jsonschema.MustCompileString("mem://contextbridge/shape.json", `{
  "type": "object",
  "$defs": {
    "field": {
      "anyOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    }
  },
  "properties": {
    "goals": {"$ref": "#/$defs/field"},
    "commitments": {"$ref": "#/$defs/field"},
    "risks": {"$ref": "#/$defs/field"},
    "tech_stack": {"$ref": "#/$defs/field"}
  },
  "required": ["goals", "commitments", "risks", "tech_stack"]
}`)
