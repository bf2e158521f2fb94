package usecase

import (
	"fmt"
	"strings"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
)

// SchemaResolver resolves $ref pointers inside a schema document and
// flattens its conditional requirement rules.
type SchemaResolver struct {
	doc *domain.SchemaDocument
}

// NewSchemaResolver creates a resolver bound to one schema document; refs
// of the form "#/path/to/def" are traversed against the document's raw tree.
func NewSchemaResolver(doc *domain.SchemaDocument) *SchemaResolver {
	return &SchemaResolver{doc: doc}
}

// ResolveRefs recursively replaces $ref pointers with their referenced
// definitions, depth-first, covering nested object properties and
// array-of-object item schemas. The input is never mutated: schema
// documents are shared across concurrent subtasks through the cache, so
// resolution builds a copy. An unresolvable pointer yields a
// ReferenceError.
func (r *SchemaResolver) ResolveRefs(node *domain.SchemaNode) (*domain.SchemaNode, error) {
	return r.resolve(node, 0)
}

// maxRefDepth guards against reference cycles in malformed documents.
const maxRefDepth = 32

func (r *SchemaResolver) resolve(node *domain.SchemaNode, depth int) (*domain.SchemaNode, error) {
	if node == nil {
		return nil, nil
	}
	if depth > maxRefDepth {
		return nil, &domain.ReferenceError{Ref: node.Ref}
	}

	if node.Ref != "" {
		target, err := r.lookup(node.Ref)
		if err != nil {
			return nil, err
		}
		resolved := domain.ParseSchemaNode(target)
		return r.resolve(resolved, depth+1)
	}

	out := *node
	if node.Properties != nil {
		out.Properties = make(map[string]*domain.SchemaNode, len(node.Properties))
		for name, prop := range node.Properties {
			resolved, err := r.resolve(prop, depth+1)
			if err != nil {
				return nil, err
			}
			out.Properties[name] = resolved
		}
	}
	if node.Items != nil {
		resolved, err := r.resolve(node.Items, depth+1)
		if err != nil {
			return nil, err
		}
		out.Items = resolved
	}
	if len(node.AllOf) > 0 {
		out.AllOf = make([]*domain.SchemaNode, len(node.AllOf))
		for i, sub := range node.AllOf {
			resolved, err := r.resolve(sub, depth+1)
			if err != nil {
				return nil, err
			}
			out.AllOf[i] = resolved
		}
	}
	var err error
	if out.If, err = r.resolve(node.If, depth+1); err != nil {
		return nil, err
	}
	if out.Then, err = r.resolve(node.Then, depth+1); err != nil {
		return nil, err
	}
	if out.Else, err = r.resolve(node.Else, depth+1); err != nil {
		return nil, err
	}
	return &out, nil
}

// lookup traverses a "#/path/to/def" pointer against the raw document.
func (r *SchemaResolver) lookup(ref string) (map[string]interface{}, error) {
	if r.doc == nil || r.doc.Raw == nil || !strings.HasPrefix(ref, "#/") {
		return nil, &domain.ReferenceError{Ref: ref}
	}
	current := interface{}(r.doc.Raw)
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, &domain.ReferenceError{Ref: ref}
		}
		current, ok = m[part]
		if !ok {
			return nil, &domain.ReferenceError{Ref: ref}
		}
	}
	target, ok := current.(map[string]interface{})
	if !ok {
		return nil, &domain.ReferenceError{Ref: ref}
	}
	return target, nil
}

// DeriveConditionalRequirements flattens allOf/if-then-else sub-schemas
// into one rule per affected property, reporting which fields become
// required under which conditions.
func (r *SchemaResolver) DeriveConditionalRequirements(node *domain.SchemaNode) map[string]domain.ConditionalRule {
	rules := make(map[string]domain.ConditionalRule)
	if node == nil {
		return rules
	}

	collect := func(sub *domain.SchemaNode) {
		if sub == nil || sub.If == nil {
			return
		}
		affected := affectedProperties(sub.Then, sub.Else)
		for _, prop := range affected {
			rules[prop] = domain.ConditionalRule{
				Property:       prop,
				WhenCondition:  sub.If,
				ThenConstraint: sub.Then,
				ElseConstraint: sub.Else,
				Description:    describeRule(prop, sub),
			}
		}
	}

	collect(node)
	for _, sub := range node.AllOf {
		collect(sub)
		// allOf entries may themselves nest another allOf level.
		for _, inner := range sub.AllOf {
			collect(inner)
		}
	}
	return rules
}

// affectedProperties lists every property a then/else branch constrains,
// via required lists or per-property sub-schemas.
func affectedProperties(branches ...*domain.SchemaNode) []string {
	seen := make(map[string]bool)
	var props []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			props = append(props, name)
		}
	}
	for _, b := range branches {
		if b == nil {
			continue
		}
		for _, name := range b.Required {
			add(name)
		}
		for name := range b.Properties {
			add(name)
		}
	}
	return props
}

func describeRule(prop string, sub *domain.SchemaNode) string {
	var cond string
	if sub.If != nil && len(sub.If.Properties) > 0 {
		var parts []string
		for name, p := range sub.If.Properties {
			if len(p.Enum) > 0 {
				parts = append(parts, fmt.Sprintf("%s in %v", name, p.Enum))
			} else {
				parts = append(parts, name)
			}
		}
		cond = strings.Join(parts, ", ")
	}
	required := sub.Then != nil && contains(sub.Then.Required, prop)
	switch {
	case required && cond != "":
		return fmt.Sprintf("%s is required when %s", prop, cond)
	case required:
		return fmt.Sprintf("%s is conditionally required", prop)
	case cond != "":
		return fmt.Sprintf("%s is constrained when %s", prop, cond)
	default:
		return fmt.Sprintf("%s is conditionally constrained", prop)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
