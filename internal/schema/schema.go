// Package schema holds the JSON Schema contracts for every model-backed feed.
// A Contract is sent to the completion model as its response schema and then
// used to validate the reply before anything is decoded into Go types.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/kjstillabower/glancecast/internal/models"
)

var (
	// ErrEmpty is returned when the reply carries no JSON value at all.
	ErrEmpty = errors.New("empty reply")
	// ErrMalformed is returned when the reply is not JSON or violates the contract.
	ErrMalformed = errors.New("reply does not match contract")
)

// Contract pairs a schema with its resolved validator.
type Contract struct {
	name     string
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// Name identifies the contract in logs and metric labels.
func (c *Contract) Name() string { return c.name }

// Schema returns the schema sent to the model. Callers must not modify it.
func (c *Contract) Schema() *jsonschema.Schema { return c.schema }

// JSON returns the schema document, used by providers that take the schema as prompt text.
func (c *Contract) JSON() string {
	raw, err := json.MarshalIndent(c.schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// Validate checks raw JSON against the contract.
func (c *Contract) Validate(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrEmpty
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: %s: parse: %v", ErrMalformed, c.name, err)
	}
	if err := c.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, c.name, err)
	}
	return nil
}

// Decode validates raw against c and unmarshals it into T.
func Decode[T any](c *Contract, raw []byte) (T, error) {
	var out T
	if err := c.Validate(raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &out); err != nil {
		return out, fmt.Errorf("%w: %s: decode: %v", ErrMalformed, c.name, err)
	}
	return out, nil
}

func newContract(name string, s *jsonschema.Schema) *Contract {
	resolved, err := s.Resolve(nil)
	if err != nil {
		// Contracts are static; a resolve failure is a programming error.
		panic(fmt.Sprintf("schema: resolve %s: %v", name, err))
	}
	return &Contract{name: name, schema: s, resolved: resolved}
}

var (
	weatherContract = newContract("weather", weatherSchema())
	stocksContract  = newContract("stocks", stocksSchema())
	newsContract    = newContract("news", newsSchema())
	briefContract   = newContract("brief", briefSchema())
)

// Weather is the contract for a WeatherReading reply.
func Weather() *Contract { return weatherContract }

// Stocks is the contract for a StocksReport reply.
func Stocks() *Contract { return stocksContract }

// News is the contract for a mapped headline list.
func News() *Contract { return newsContract }

// Brief is the contract for a composed brief.
func Brief() *Contract { return briefContract }

func str(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func num(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: desc}
}

func object(props map[string]*jsonschema.Schema, order ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:          "object",
		Properties:    props,
		Required:      order,
		PropertyOrder: order,
	}
}

func weatherSchema() *jsonschema.Schema {
	hour := object(map[string]*jsonschema.Schema{
		"time":        str("Local time of the forecast hour, e.g. 3 PM."),
		"temperature": num(""),
		"condition":   str(""),
	}, "time", "temperature", "condition")

	return object(map[string]*jsonschema.Schema{
		"location":    str(""),
		"temperature": num(""),
		"unit":        {Type: "string", Enum: []any{"C", "F"}},
		"condition":   str(""),
		"hourly": {
			Type:        "array",
			Description: "The hourly forecast for the next 5 hours.",
			Items:       hour,
			MinItems:    jsonschema.Ptr(models.HourlyPoints),
			MaxItems:    jsonschema.Ptr(models.HourlyPoints),
		},
	}, "location", "temperature", "unit", "condition", "hourly")
}

func stocksSchema() *jsonschema.Schema {
	quote := object(map[string]*jsonschema.Schema{
		"symbol":      str(""),
		"price":       num(""),
		"currency":    str("The currency of the stock price, e.g., USD, EUR, JPY."),
		"change":      str("Signed change as display text, e.g. +1.2%."),
		"changeValue": num(""),
		"trend": {
			Type:        "array",
			Description: "A series of recent price points to draw a small chart.",
			Items:       num(""),
			MinItems:    jsonschema.Ptr(models.TrendPoints),
			MaxItems:    jsonschema.Ptr(models.TrendPoints),
		},
	}, "symbol", "price", "currency", "change", "changeValue", "trend")

	category := object(map[string]*jsonschema.Schema{
		"category": str("The name of the stock category, e.g., 'My Stocks'."),
		"stocks":   {Type: "array", Items: quote},
	}, "category", "stocks")

	// stockData stays optional: an empty object is a valid, if useless, reply.
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"stockData": {Type: "array", Items: category},
		},
	}
}

func newsSchema() *jsonschema.Schema {
	item := object(map[string]*jsonschema.Schema{
		"title":  str(""),
		"source": str(""),
		"time":   str(""),
		"link":   str(""),
	}, "title", "source", "time", "link")

	return &jsonschema.Schema{
		Type:     "array",
		Items:    item,
		MaxItems: jsonschema.Ptr(models.MaxNewsItems),
	}
}

func briefSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"brief": {
			Type:        "string",
			Description: "A personalized daily brief summarizing key information.",
			MinLength:   jsonschema.Ptr(1),
		},
	}, "brief")
}
