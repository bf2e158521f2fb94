package domain

// SchemaDocument is a schema file fetched for one (site, productType) pair:
// a properties map plus a shared definitions tree that $ref pointers
// resolve against. Raw keeps the undecoded document for pointer traversal.
type SchemaDocument struct {
	Properties map[string]*SchemaNode
	Raw        map[string]interface{}
	// Default locale/market tags carried by the document, used to tag
	// generated results.
	Marketplace string
	LanguageTag string
}

// SchemaNode is one node of the schema tree describing an attribute's
// allowed shape. Unknown descriptive keywords (titles, UI hints,
// deprecation markers) are parsed but never affect validation.
type SchemaNode struct {
	Type       string
	Ref        string
	Properties map[string]*SchemaNode
	Items      *SchemaNode
	Required   []string
	Enum       []interface{}

	// String constraints. Lengths are UTF-8 byte lengths, not rune counts.
	MinLength *int
	MaxLength *int
	Pattern   string

	// Numeric bounds.
	Minimum *float64
	Maximum *float64

	// Array constraints. The unique variants bound the number of distinct
	// items, computed by value equality after serialization.
	MinItems       *int
	MaxItems       *int
	MinUniqueItems *int
	MaxUniqueItems *int

	// Conditional composition.
	AllOf []*SchemaNode
	If    *SchemaNode
	Then  *SchemaNode
	Else  *SchemaNode

	// Descriptive keywords, carried for display only.
	Title       string
	Description string
	Editable    *bool
	Hidden      *bool
	Deprecated  *bool
}

// ConditionalRule is one flattened if-then-else rule derived for a property:
// the condition under which the "then" constraint applies, and the
// constraint applying otherwise.
type ConditionalRule struct {
	Property       string      `json:"property"`
	WhenCondition  *SchemaNode `json:"-"`
	ThenConstraint *SchemaNode `json:"-"`
	ElseConstraint *SchemaNode `json:"-"`
	// Description is a human-readable rendering of the rule, used for
	// reporting which fields become required under which conditions.
	Description string `json:"description"`
}

// ParseSchemaNode decodes a raw schema fragment into a SchemaNode.
// Unrecognized keywords are ignored.
func ParseSchemaNode(raw map[string]interface{}) *SchemaNode {
	if raw == nil {
		return nil
	}
	n := &SchemaNode{}
	if v, ok := raw["type"].(string); ok {
		n.Type = v
	}
	if v, ok := raw["$ref"].(string); ok {
		n.Ref = v
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		n.Properties = make(map[string]*SchemaNode, len(props))
		for name, sub := range props {
			if m, ok := sub.(map[string]interface{}); ok {
				n.Properties[name] = ParseSchemaNode(m)
			}
		}
	}
	if items, ok := raw["items"].(map[string]interface{}); ok {
		n.Items = ParseSchemaNode(items)
	}
	if req, ok := raw["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				n.Required = append(n.Required, s)
			}
		}
	}
	if enum, ok := raw["enum"].([]interface{}); ok {
		n.Enum = enum
	}
	n.MinLength = intKeyword(raw, "minLength")
	n.MaxLength = intKeyword(raw, "maxLength")
	if v, ok := raw["pattern"].(string); ok {
		n.Pattern = v
	}
	n.Minimum = floatKeyword(raw, "minimum")
	n.Maximum = floatKeyword(raw, "maximum")
	n.MinItems = intKeyword(raw, "minItems")
	n.MaxItems = intKeyword(raw, "maxItems")
	n.MinUniqueItems = intKeyword(raw, "minUniqueItems")
	n.MaxUniqueItems = intKeyword(raw, "maxUniqueItems")
	if allOf, ok := raw["allOf"].([]interface{}); ok {
		for _, sub := range allOf {
			if m, ok := sub.(map[string]interface{}); ok {
				n.AllOf = append(n.AllOf, ParseSchemaNode(m))
			}
		}
	}
	if m, ok := raw["if"].(map[string]interface{}); ok {
		n.If = ParseSchemaNode(m)
	}
	if m, ok := raw["then"].(map[string]interface{}); ok {
		n.Then = ParseSchemaNode(m)
	}
	if m, ok := raw["else"].(map[string]interface{}); ok {
		n.Else = ParseSchemaNode(m)
	}
	if v, ok := raw["title"].(string); ok {
		n.Title = v
	}
	if v, ok := raw["description"].(string); ok {
		n.Description = v
	}
	n.Editable = boolKeyword(raw, "editable")
	n.Hidden = boolKeyword(raw, "hidden")
	n.Deprecated = boolKeyword(raw, "deprecated")
	return n
}

func intKeyword(raw map[string]interface{}, key string) *int {
	if v, ok := raw[key].(float64); ok {
		i := int(v)
		return &i
	}
	return nil
}

func floatKeyword(raw map[string]interface{}, key string) *float64 {
	if v, ok := raw[key].(float64); ok {
		f := v
		return &f
	}
	return nil
}

func boolKeyword(raw map[string]interface{}, key string) *bool {
	if v, ok := raw[key].(bool); ok {
		b := v
		return &b
	}
	return nil
}
