package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
)

// SchemaValidator performs structural validation of a candidate value
// against a resolved schema fragment. Descriptive keywords (title, hidden,
// deprecated, editable) never affect the outcome.
type SchemaValidator struct{}

// NewSchemaValidator creates a validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate checks data against schema and returns every violated
// constraint. An empty slice means the value is valid.
func (v *SchemaValidator) Validate(data interface{}, schema *domain.SchemaNode) []domain.ValidationError {
	if schema == nil {
		return nil
	}
	return v.validate(data, schema, "")
}

func (v *SchemaValidator) validate(data interface{}, schema *domain.SchemaNode, path string) []domain.ValidationError {
	var errs []domain.ValidationError

	if schema.Type != "" {
		if err := checkType(data, schema.Type, path); err != nil {
			// A type mismatch makes the remaining checks meaningless.
			return []domain.ValidationError{*err}
		}
	}

	if len(schema.Enum) > 0 {
		if !enumContains(schema.Enum, data) {
			errs = append(errs, domain.ValidationError{
				Path:    path,
				Keyword: "enum",
				Message: fmt.Sprintf("value %v is not one of the allowed values", data),
			})
		}
	}

	switch value := data.(type) {
	case string:
		errs = append(errs, validateString(value, schema, path)...)
	case float64:
		errs = append(errs, validateNumber(value, schema, path)...)
	case map[string]interface{}:
		errs = append(errs, v.validateObject(value, schema, path)...)
	case []interface{}:
		errs = append(errs, v.validateArray(value, schema, path)...)
	}

	for _, sub := range schema.AllOf {
		errs = append(errs, v.validate(data, sub, path)...)
	}

	if schema.If != nil {
		if len(v.validate(data, schema.If, path)) == 0 {
			if schema.Then != nil {
				errs = append(errs, v.validate(data, schema.Then, path)...)
			}
		} else if schema.Else != nil {
			errs = append(errs, v.validate(data, schema.Else, path)...)
		}
	}

	return errs
}

func validateString(value string, schema *domain.SchemaNode, path string) []domain.ValidationError {
	var errs []domain.ValidationError

	// Length bounds are UTF-8 byte lengths, not rune counts.
	byteLen := len(value)
	if schema.MinLength != nil && byteLen < *schema.MinLength {
		errs = append(errs, domain.ValidationError{
			Path:    path,
			Keyword: "minLength",
			Message: fmt.Sprintf("string is %d bytes, minimum is %d", byteLen, *schema.MinLength),
		})
	}
	if schema.MaxLength != nil && byteLen > *schema.MaxLength {
		errs = append(errs, domain.ValidationError{
			Path:    path,
			Keyword: "maxLength",
			Message: fmt.Sprintf("string is %d bytes, maximum is %d", byteLen, *schema.MaxLength),
		})
	}
	if schema.Pattern != "" {
		re, err := regexp.Compile(schema.Pattern)
		if err == nil && !re.MatchString(value) {
			errs = append(errs, domain.ValidationError{
				Path:    path,
				Keyword: "pattern",
				Message: fmt.Sprintf("string does not match pattern %q", schema.Pattern),
			})
		}
	}
	return errs
}

func validateNumber(value float64, schema *domain.SchemaNode, path string) []domain.ValidationError {
	var errs []domain.ValidationError
	if schema.Minimum != nil && value < *schema.Minimum {
		errs = append(errs, domain.ValidationError{
			Path:    path,
			Keyword: "minimum",
			Message: fmt.Sprintf("%v is below minimum %v", value, *schema.Minimum),
		})
	}
	if schema.Maximum != nil && value > *schema.Maximum {
		errs = append(errs, domain.ValidationError{
			Path:    path,
			Keyword: "maximum",
			Message: fmt.Sprintf("%v is above maximum %v", value, *schema.Maximum),
		})
	}
	return errs
}

func (v *SchemaValidator) validateObject(value map[string]interface{}, schema *domain.SchemaNode, path string) []domain.ValidationError {
	var errs []domain.ValidationError
	for _, name := range schema.Required {
		if _, ok := value[name]; !ok {
			errs = append(errs, domain.ValidationError{
				Path:    joinPath(path, name),
				Keyword: "required",
				Message: fmt.Sprintf("missing required property %q", name),
			})
		}
	}
	for name, sub := range schema.Properties {
		if sub == nil {
			continue
		}
		if child, ok := value[name]; ok {
			errs = append(errs, v.validate(child, sub, joinPath(path, name))...)
		}
	}
	return errs
}

func (v *SchemaValidator) validateArray(value []interface{}, schema *domain.SchemaNode, path string) []domain.ValidationError {
	var errs []domain.ValidationError
	if schema.MinItems != nil && len(value) < *schema.MinItems {
		errs = append(errs, domain.ValidationError{
			Path:    path,
			Keyword: "minItems",
			Message: fmt.Sprintf("array has %d items, minimum is %d", len(value), *schema.MinItems),
		})
	}
	if schema.MaxItems != nil && len(value) > *schema.MaxItems {
		errs = append(errs, domain.ValidationError{
			Path:    path,
			Keyword: "maxItems",
			Message: fmt.Sprintf("array has %d items, maximum is %d", len(value), *schema.MaxItems),
		})
	}
	if schema.MinUniqueItems != nil || schema.MaxUniqueItems != nil {
		distinct := countDistinct(value)
		if schema.MinUniqueItems != nil && distinct < *schema.MinUniqueItems {
			errs = append(errs, domain.ValidationError{
				Path:    path,
				Keyword: "minUniqueItems",
				Message: fmt.Sprintf("array has %d distinct items, minimum is %d", distinct, *schema.MinUniqueItems),
			})
		}
		if schema.MaxUniqueItems != nil && distinct > *schema.MaxUniqueItems {
			errs = append(errs, domain.ValidationError{
				Path:    path,
				Keyword: "maxUniqueItems",
				Message: fmt.Sprintf("array has %d distinct items, maximum is %d", distinct, *schema.MaxUniqueItems),
			})
		}
	}
	if schema.Items != nil {
		for i, item := range value {
			errs = append(errs, v.validate(item, schema.Items, fmt.Sprintf("%s[%d]", path, i))...)
		}
	}
	return errs
}

// countDistinct counts distinct array items by value equality after
// serialization.
func countDistinct(items []interface{}) int {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			b = []byte(fmt.Sprintf("%v", item))
		}
		seen[string(b)] = true
	}
	return len(seen)
}

// RequiredProperties extracts the full required-field set of a schema by
// validating an empty object and collecting every missing-required report.
// Conditionally required fields surface when their prerequisites are absent.
func (v *SchemaValidator) RequiredProperties(schema *domain.SchemaNode) map[string]bool {
	required := make(map[string]bool)
	for _, err := range v.Validate(map[string]interface{}{}, schema) {
		if err.Keyword != "required" {
			continue
		}
		name := err.Path
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if name != "" {
			required[name] = true
		}
	}
	return required
}

func checkType(data interface{}, want, path string) *domain.ValidationError {
	ok := false
	switch want {
	case "string":
		_, ok = data.(string)
	case "number":
		_, ok = data.(float64)
	case "integer":
		f, isNum := data.(float64)
		ok = isNum && f == float64(int64(f))
	case "boolean":
		_, ok = data.(bool)
	case "object":
		_, ok = data.(map[string]interface{})
	case "array":
		_, ok = data.([]interface{})
	case "null":
		ok = data == nil
	default:
		// Unknown type keyword is treated as descriptive.
		ok = true
	}
	if ok {
		return nil
	}
	return &domain.ValidationError{
		Path:    path,
		Keyword: "type",
		Message: fmt.Sprintf("expected %s, got %T", want, data),
	}
}

func enumContains(enum []interface{}, data interface{}) bool {
	db, err := json.Marshal(data)
	if err != nil {
		return false
	}
	for _, e := range enum {
		eb, err := json.Marshal(e)
		if err == nil && string(eb) == string(db) {
			return true
		}
	}
	return false
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
