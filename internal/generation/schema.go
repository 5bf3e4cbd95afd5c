package generation

// Schema is a small declarative description of the JSON shape a provider
// response must have. It renders to a raw JSON-schema object for providers
// that enforce responses server-side, and stays testable without any HTTP
// client attached.
type Schema struct {
	Type       string
	Properties []Prop // ordered, for stable rendering
	Items      *Schema
	Enum       []string
	Required   []string
	MinItems   int
	MaxItems   int
}

// Prop is a named property of an object schema.
type Prop struct {
	Name   string
	Schema Schema
}

// Object builds an object schema from ordered properties.
func Object(props ...Prop) Schema {
	return Schema{Type: "object", Properties: props}
}

// WithRequired marks property names as required.
func (s Schema) WithRequired(names ...string) Schema {
	s.Required = names
	return s
}

// String is a plain string schema.
func String() Schema { return Schema{Type: "string"} }

// StringEnum restricts a string to the given values.
func StringEnum(values ...string) Schema {
	return Schema{Type: "string", Enum: values}
}

// Integer is a plain integer schema.
func Integer() Schema { return Schema{Type: "integer"} }

// Array wraps an item schema with bounds. Zero bounds are omitted.
func Array(items Schema, minItems, maxItems int) Schema {
	return Schema{Type: "array", Items: &items, MinItems: minItems, MaxItems: maxItems}
}

// Raw renders the schema to the map form JSON-schema consumers expect.
// Object schemas always forbid additional properties: the response contract
// is strict in both directions.
func (s Schema) Raw() map[string]interface{} {
	out := map[string]interface{}{"type": s.Type}
	if len(s.Enum) > 0 {
		enum := make([]interface{}, len(s.Enum))
		for i, v := range s.Enum {
			enum[i] = v
		}
		out["enum"] = enum
	}
	if s.Type == "object" {
		props := map[string]interface{}{}
		for _, p := range s.Properties {
			props[p.Name] = p.Schema.Raw()
		}
		out["properties"] = props
		out["additionalProperties"] = false
		if len(s.Required) > 0 {
			req := make([]interface{}, len(s.Required))
			for i, v := range s.Required {
				req[i] = v
			}
			out["required"] = req
		}
	}
	if s.Items != nil {
		out["items"] = s.Items.Raw()
		if s.MinItems > 0 {
			out["minItems"] = s.MinItems
		}
		if s.MaxItems > 0 {
			out["maxItems"] = s.MaxItems
		}
	}
	return out
}

// RecommendationSchema describes the lightweight recommend response.
func RecommendationSchema() Schema {
	return Object(
		Prop{"verseRef", String()},
		Prop{"rationale", String()},
	).WithRequired("verseRef", "rationale")
}

// ExplanationSchema describes the full generate response.
func ExplanationSchema() Schema {
	return Object(
		Prop{"verseRef", String()},
		Prop{"verseText", String()},
		Prop{"verseTextEN", String()},
		Prop{"rationale", String()},
		Prop{"tags", Array(String(), 1, 5)},
		Prop{"safety", Object(
			Prop{"status", StringEnum("ok", "blocked")},
			Prop{"code", Integer()},
			Prop{"reason", String()},
		).WithRequired("status", "code", "reason")},
	).WithRequired("verseRef", "verseText", "rationale", "tags", "safety")
}
