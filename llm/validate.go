package llm

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// OutputType describes the structured-output contract createObject validates
// a candidate against (§4.3 step 4): a JSON Schema document and a decode
// target constructor.
type OutputType struct {
	// Name identifies the type for logging and the validation-prompt
	// generator.
	Name string
	// Schema is a JSON Schema document (as produced by json.Marshal of a
	// map[string]any, or unmarshalled from one) constraining the candidate's
	// shape. A nil Schema disables constraint validation for this type even
	// when the interaction requests it.
	Schema map[string]any
	// New returns a fresh pointer to decode the candidate JSON into.
	New func() any
}

// violations compiles t's schema and validates raw against it, returning one
// human-readable string per constraint violation. A nil slice with a nil
// error means raw satisfied the schema, or t has no Schema.
func violations(t OutputType, raw []byte) ([]string, error) {
	if t.Schema == nil {
		return nil, nil
	}

	schemaBytes, err := json.Marshal(t.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %q: %w", t.Name, err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %q: %w", t.Name, err)
	}

	c := jsonschema.NewCompiler()
	resource := t.Name + ".json"
	if resource == ".json" {
		resource = "schema.json"
	}
	if err := c.AddResource(resource, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name, err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name, err)
	}

	var candidateDoc any
	if err := json.Unmarshal(raw, &candidateDoc); err != nil {
		return []string{fmt.Sprintf("candidate is not valid JSON: %s", err.Error())}, nil
	}

	if err := schema.Validate(candidateDoc); err != nil {
		return flattenValidationError(err), nil
	}
	return nil, nil
}

// flattenValidationError unpacks a *jsonschema.ValidationError tree (or any
// other validation failure) into one message per leaf cause, so the
// violations-report prompt (§4.3 step 4) can list them individually.
func flattenValidationError(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			out = append(out, v.Error())
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	if len(out) == 0 {
		out = []string{ve.Error()}
	}
	return out
}
