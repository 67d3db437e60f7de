package openapi

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-formengine/pkg/schema"
)

const extensionKey = "x-formengine"

// fieldExtension is the x-formengine object of a property.
type fieldExtension struct {
	Label        string             `json:"label"`
	Placeholder  string             `json:"placeholder"`
	Order        *int               `json:"order"`
	Section      string             `json:"section"`
	Type         string             `json:"type"`
	Lookup       string             `json:"lookup"`
	LookupParams map[string]any     `json:"lookupParams"`
	Logic        schema.FieldLogic  `json:"logic"`
	Custom       *schema.CustomRule `json:"custom"`
	ErrorMessage string             `json:"errorMessage"`
}

// operationExtension is the x-formengine object of an operation.
type operationExtension struct {
	Lookups    map[string]schema.LookupDefinition `json:"lookups"`
	Logic      *schema.LogicBlock                 `json:"logic"`
	CrossField []schema.CrossFieldRule            `json:"crossFieldValidation"`
}

func decodeFieldExtension(raw map[string]any) (fieldExtension, error) {
	var ext fieldExtension
	err := decodeExtension(raw, &ext)
	return ext, err
}

func decodeOperationExtension(raw map[string]any) (operationExtension, error) {
	var ext operationExtension
	err := decodeExtension(raw, &ext)
	return ext, err
}

// decodeExtension round-trips the loosely typed extension value through JSON
// into dst so condition and lookup shapes match the schema document format.
func decodeExtension(raw map[string]any, dst any) error {
	value, ok := raw[extensionKey]
	if !ok || value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("openapi: encode %s: %w", extensionKey, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("openapi: decode %s: %w", extensionKey, err)
	}
	return nil
}
