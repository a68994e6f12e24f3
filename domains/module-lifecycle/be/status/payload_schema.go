package status

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const payloadSchemaURL = "mem://module-lifecycle/transition-payload.json"

// payloadSchema constrains the envelope and, per kind, the shape of data.
const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind", "data"],
  "additionalProperties": false,
  "properties": {
    "kind": {
      "enum": ["provisioning_started", "activated", "provisioning_failed", "approval_denied", "request_withdrawn", "suspension", "deactivation"]
    },
    "data": {"type": "object"}
  },
  "allOf": [
    {
      "if": {"properties": {"kind": {"const": "provisioning_started"}}},
      "then": {"properties": {"data": {
        "required": ["trigger"],
        "additionalProperties": false,
        "properties": {
          "trigger": {"enum": ["auto_approve", "approval", "retry", "reprovision"]},
          "approved_by": {"type": "string"},
          "external_ref": {"type": "string"}
        }
      }}}
    },
    {
      "if": {"properties": {"kind": {"const": "activated"}}},
      "then": {"properties": {"data": {
        "additionalProperties": false,
        "properties": {
          "version": {"type": "string"},
          "endpoint": {"type": "string"}
        }
      }}}
    },
    {
      "if": {"properties": {"kind": {"const": "provisioning_failed"}}},
      "then": {"properties": {"data": {
        "required": ["code"],
        "additionalProperties": false,
        "properties": {
          "code": {"type": "string", "minLength": 1},
          "message": {"type": "string"},
          "retryable": {"type": "boolean"},
          "details": {"type": "object"}
        }
      }}}
    },
    {
      "if": {"properties": {"kind": {"const": "approval_denied"}}},
      "then": {"properties": {"data": {
        "required": ["denial_reason"],
        "additionalProperties": false,
        "properties": {
          "denial_reason": {"type": "string", "minLength": 1},
          "reviewed_by": {"type": "string"}
        }
      }}}
    },
    {
      "if": {"properties": {"kind": {"const": "request_withdrawn"}}},
      "then": {"properties": {"data": {
        "additionalProperties": false,
        "properties": {
          "reason": {"type": "string"},
          "withdrawn_by": {"type": "string"}
        }
      }}}
    },
    {
      "if": {"properties": {"kind": {"const": "suspension"}}},
      "then": {"properties": {"data": {
        "required": ["reason"],
        "additionalProperties": false,
        "properties": {
          "reason": {"type": "string", "minLength": 1},
          "until": {"type": "string", "format": "date-time"}
        }
      }}}
    },
    {
      "if": {"properties": {"kind": {"const": "deactivation"}}},
      "then": {"properties": {"data": {
        "additionalProperties": false,
        "properties": {
          "reason": {"type": "string"}
        }
      }}}
    }
  ]
}`

var (
	compiledPayloadOnce   sync.Once
	compiledPayloadSchema *jsonschema.Schema
	compiledPayloadErr    error
)

func payloadValidator() (*jsonschema.Schema, error) {
	compiledPayloadOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if err := compiler.AddResource(payloadSchemaURL, strings.NewReader(payloadSchema)); err != nil {
			compiledPayloadErr = fmt.Errorf("register payload schema: %w", err)
			return
		}
		compiledPayloadSchema, compiledPayloadErr = compiler.Compile(payloadSchemaURL)
		if compiledPayloadErr != nil {
			compiledPayloadErr = fmt.Errorf("compile payload schema: %w", compiledPayloadErr)
		}
	})
	return compiledPayloadSchema, compiledPayloadErr
}

func validateEnvelope(raw []byte) error {
	schema, err := payloadValidator()
	if err != nil {
		return err
	}

	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("payload validation: %w", err)
	}
	return nil
}
