package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptGenerator produces the extra message appended to a createObject call
// when validation is enabled (§4.3 step 2: "a system/user message generated
// by a validation-prompt generator that tells the model exactly what shape
// is required"), and the violations-report message for the single retry
// attempt after a constraint failure (§4.3 step 4).
type PromptGenerator interface {
	RequiredShape(t OutputType) string
	ViolationsReport(t OutputType, violations []string) string
}

// DefaultPromptGenerator renders the output type's JSON Schema directly and
// lists violations as a bullet list, matching the shape the teacher's
// structured-output system prompts already favor (plain JSON + prose, no
// templating engine).
type DefaultPromptGenerator struct{}

// RequiredShape implements PromptGenerator.
func (DefaultPromptGenerator) RequiredShape(t OutputType) string {
	if t.Schema == nil {
		return fmt.Sprintf("Respond with a single JSON object representing a %s. Do not include any prose outside the JSON.", t.Name)
	}
	schemaJSON, err := json.MarshalIndent(t.Schema, "", "  ")
	if err != nil {
		return fmt.Sprintf("Respond with a single JSON object representing a %s.", t.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Respond with a single JSON object representing a %s, matching exactly this JSON Schema:\n", t.Name)
	b.Write(schemaJSON)
	b.WriteString("\nDo not include any prose outside the JSON.")
	return b.String()
}

// ViolationsReport implements PromptGenerator.
func (DefaultPromptGenerator) ViolationsReport(t OutputType, violations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your previous %s response violated the required schema:\n", t.Name)
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	b.WriteString("Produce a corrected JSON object that fixes every violation above.")
	return b.String()
}
