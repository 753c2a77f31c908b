package snapshot

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The schema only pins down structure. Every property is optional; numbers
// may arrive quoted because some host builds format them as strings.
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "timestamp":      {"type": ["string", "number"]},
    "server_time":    {"type": ["string", "number"]},
    "active_symbol":  {"type": "string"},
    "account":        {"$ref": "#/definitions/account"},
    "current_symbol": {"$ref": "#/definitions/symbol"},
    "symbol_info":    {"$ref": "#/definitions/symbol"},
    "positions":      {"type": "array", "items": {"$ref": "#/definitions/position"}},
    "pending_orders": {"type": "array", "items": {"$ref": "#/definitions/order"}}
  },
  "definitions": {
    "num": {
      "type": ["number", "string"],
      "pattern": "^\\s*[-+]?[0-9]*\\.?[0-9]+([eE][-+]?[0-9]+)?\\s*$"
    },
    "account": {
      "type": "object",
      "properties": {
        "balance":      {"$ref": "#/definitions/num"},
        "equity":       {"$ref": "#/definitions/num"},
        "margin":       {"$ref": "#/definitions/num"},
        "free_margin":  {"$ref": "#/definitions/num"},
        "margin_level": {"$ref": "#/definitions/num"},
        "profit":       {"$ref": "#/definitions/num"}
      }
    },
    "symbol": {
      "type": "object",
      "properties": {
        "name":          {"type": "string"},
        "bid":           {"$ref": "#/definitions/num"},
        "ask":           {"$ref": "#/definitions/num"},
        "spread":        {"$ref": "#/definitions/num"},
        "spread_points": {"$ref": "#/definitions/num"}
      }
    },
    "position": {
      "type": "object",
      "properties": {
        "ticket":     {"$ref": "#/definitions/num"},
        "type":       {"type": "string"},
        "volume":     {"$ref": "#/definitions/num"},
        "symbol":     {"type": "string"},
        "open_price": {"$ref": "#/definitions/num"},
        "price_open": {"$ref": "#/definitions/num"},
        "sl":         {"$ref": "#/definitions/num"},
        "tp":         {"$ref": "#/definitions/num"},
        "profit":     {"$ref": "#/definitions/num"}
      }
    },
    "order": {
      "type": "object",
      "properties": {
        "ticket": {"$ref": "#/definitions/num"},
        "type":   {"type": "string"},
        "volume": {"$ref": "#/definitions/num"},
        "symbol": {"type": "string"},
        "price":  {"$ref": "#/definitions/num"},
        "sl":     {"$ref": "#/definitions/num"},
        "tp":     {"$ref": "#/definitions/num"}
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("snapshot.schema.json", schemaJSON)
