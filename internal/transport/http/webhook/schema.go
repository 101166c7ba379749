package webhookhttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// orderSchema accepts TradingView alert payloads, where numeric fields often
// arrive as strings or "NaN".
const orderSchema = `{
  "type": "object",
  "required": ["exchange", "base", "quote", "side", "password"],
  "properties": {
    "exchange":     {"type": "string", "minLength": 1},
    "base":         {"type": "string", "minLength": 1},
    "quote":        {"type": "string", "minLength": 1},
    "side":         {"type": "string", "pattern": "(?i)^\\s*((entry|close)/)?(buy|sell)\\s*$"},
    "type":         {"type": ["string", "null"]},
    "amount":       {"$ref": "#/definitions/num"},
    "cost":         {"$ref": "#/definitions/num"},
    "percent":      {"$ref": "#/definitions/num"},
    "price":        {"$ref": "#/definitions/num"},
    "leverage":     {"$ref": "#/definitions/num"},
    "stop_price":   {"$ref": "#/definitions/num"},
    "profit_price": {"$ref": "#/definitions/num"},
    "kis_number":   {"$ref": "#/definitions/num"},
    "order_name":   {"type": ["string", "null"]},
    "password":     {"type": "string"}
  },
  "definitions": {
    "num": {"type": ["number", "string", "null"]}
  }
}`

const priceSchema = `{
  "type": "object",
  "required": ["exchange", "base", "quote"],
  "properties": {
    "exchange":   {"type": "string", "minLength": 1},
    "base":       {"type": "string", "minLength": 1},
    "quote":      {"type": "string", "minLength": 1},
    "kis_number": {"type": ["number", "string", "null"]},
    "password":   {"type": "string"}
  }
}`

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

// validateJSON checks body against s and returns the first violation.
func validateJSON(s *jsonschema.Schema, body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%s", leafMessage(ve))
		}
		return err
	}
	return nil
}

// leafMessage descends to the deepest cause, which names the field.
func leafMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
