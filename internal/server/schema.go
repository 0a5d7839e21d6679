// internal/server/schema.go
package server

import "app-deployer/internal/common/validation"

// buildRequestSchema describes the inbound round request.
const buildRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["email", "secret", "task", "round", "nonce", "brief", "evaluation_url"],
  "properties": {
    "email":          {"type": "string", "minLength": 3, "pattern": "^[^@\\s]+@[^@\\s]+$"},
    "secret":         {"type": "string"},
    "task":           {"type": "string", "minLength": 1, "maxLength": 200},
    "round":          {"type": "integer", "enum": [1, 2]},
    "nonce":          {"type": "string", "minLength": 1},
    "brief":          {"type": "string", "minLength": 1},
    "evaluation_url": {"type": "string", "pattern": "^https?://"},
    "attachments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "url"],
        "properties": {
          "name": {"type": "string"},
          "url":  {"type": "string"}
        }
      }
    }
  }
}`

var requestSchema = validation.MustCompile(buildRequestSchema)
