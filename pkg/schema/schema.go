// Package schema implements the structured output validator: every router
// and specialist payload is validated against a named, versioned schema
// before it is accepted into workflow state.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"devteam/pkg/proto"
)

// ID names a versioned structural contract. Versioning the IDs lets the
// validator grow new schema revisions without breaking older persisted
// records.
type ID string

const (
	// RouteDecisionV1 is the manager's routing decision schema.
	RouteDecisionV1 ID = "route_decision.v1"

	// BAResponseV1 is the business analyst output schema.
	BAResponseV1 ID = "ba_response.v1"

	// ImplementationResultV1 is the developer output schema.
	ImplementationResultV1 ID = "implementation_result.v1"

	// TestPlanV1 is the tester output schema.
	TestPlanV1 ID = "test_plan.v1"
)

// DefaultMaxRetries is the default re-prompt budget owned by callers: on a
// ValidationError the producer is re-invoked with the error detail, at most
// this many times, before the failure becomes terminal.
const DefaultMaxRetries = 3

// ForActor returns the schema ID for a specialist role.
func ForActor(actor proto.Actor) (ID, error) {
	switch actor {
	case proto.ActorBA:
		return BAResponseV1, nil
	case proto.ActorDev:
		return ImplementationResultV1, nil
	case proto.ActorTester:
		return TestPlanV1, nil
	default:
		return "", fmt.Errorf("no schema for actor: %s", actor)
	}
}

// FieldError describes one field that failed validation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports which fields of a payload failed validation and
// why. It is recoverable: callers re-prompt the producer with this detail.
type ValidationError struct {
	Schema ID           `json:"schema"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return fmt.Sprintf("payload does not satisfy %s: %s", e.Schema, strings.Join(parts, "; "))
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Detail renders the field errors as correction instructions for a re-prompt.
func (e *ValidationError) Detail() string {
	var b strings.Builder
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f.Field, f.Reason)
	}
	return b.String()
}

// ExtractJSON pulls the JSON object out of raw model output: it strips
// markdown code fences and any prose surrounding the outermost braces.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}

// Validate validates raw model output against the named schema and returns
// the payload coerced into its strongly-typed shape. Pure function of its
// inputs; the retry loop belongs to the caller.
func Validate(id ID, raw string) (any, error) {
	switch id {
	case RouteDecisionV1:
		return ValidateRouteDecision(raw)
	case BAResponseV1:
		return ValidateBAResponse(raw)
	case ImplementationResultV1:
		return ValidateImplementationResult(raw)
	case TestPlanV1:
		return ValidateTestPlan(raw)
	default:
		return nil, fmt.Errorf("unknown schema: %s", id)
	}
}

// decode extracts and unmarshals raw output into a generic map, reporting a
// single root-level field error when the payload is not a JSON object.
func decode(id ID, raw string) (map[string]any, *ValidationError) {
	extracted := ExtractJSON(raw)

	var m map[string]any
	if err := json.Unmarshal([]byte(extracted), &m); err != nil {
		verr := &ValidationError{Schema: id}
		verr.add("$", fmt.Sprintf("not a JSON object: %v", err))
		return nil, verr
	}
	return m, nil
}

// ValidateRouteDecision validates raw output against route_decision.v1.
func ValidateRouteDecision(raw string) (*proto.RouteDecision, error) {
	m, verr := decode(RouteDecisionV1, raw)
	if verr != nil {
		return nil, verr
	}

	verr = &ValidationError{Schema: RouteDecisionV1}

	actorStr := requireString(m, "next_actor", verr)
	var actor proto.Actor
	if actorStr != "" {
		parsed, err := proto.ParseActor(actorStr)
		if err != nil {
			verr.add("next_actor", fmt.Sprintf("must be one of ba, dev, tester, finish; got %q", actorStr))
		} else {
			actor = parsed
		}
	}
	reasoning := requireString(m, "reasoning", verr)

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return &proto.RouteDecision{NextActor: actor, Reasoning: reasoning}, nil
}

// ValidateBAResponse validates raw output against ba_response.v1.
func ValidateBAResponse(raw string) (*proto.BAResponse, error) {
	m, verr := decode(BAResponseV1, raw)
	if verr != nil {
		return nil, verr
	}

	verr = &ValidationError{Schema: BAResponseV1}

	requireString(m, "title", verr)
	requireString(m, "description", verr)
	checkObjectList(m, "user_stories", []string{"title", "description"}, verr)
	checkStringList(m, "questions", verr)

	if p, ok := m["priority"]; ok && p != nil {
		if s, isStr := p.(string); !isStr {
			verr.add("priority", "must be a string")
		} else if s != "" && s != "high" && s != "medium" && s != "low" {
			verr.add("priority", fmt.Sprintf("must be one of high, medium, low; got %q", s))
		}
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var resp proto.BAResponse
	if err := remarshal(m, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateImplementationResult validates raw output against implementation_result.v1.
func ValidateImplementationResult(raw string) (*proto.ImplementationResult, error) {
	m, verr := decode(ImplementationResultV1, raw)
	if verr != nil {
		return nil, verr
	}

	verr = &ValidationError{Schema: ImplementationResultV1}

	if v, ok := m["success"]; !ok {
		verr.add("success", "required field is missing")
	} else if _, isBool := v.(bool); !isBool {
		verr.add("success", "must be a boolean")
	}
	checkObjectList(m, "plan", []string{"path", "summary"}, verr)
	checkObjectList(m, "files", []string{"path", "content"}, verr)
	checkStringMap(m, "explanations", verr)
	checkStringList(m, "created_files", verr)

	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var result proto.ImplementationResult
	if err := remarshal(m, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateTestPlan validates raw output against test_plan.v1.
func ValidateTestPlan(raw string) (*proto.TestPlan, error) {
	m, verr := decode(TestPlanV1, raw)
	if verr != nil {
		return nil, verr
	}

	verr = &ValidationError{Schema: TestPlanV1}

	requireString(m, "title", verr)
	checkObjectList(m, "tests", []string{"path", "content"}, verr)

	ra, ok := m["risk_assessment"]
	if !ok || ra == nil {
		verr.add("risk_assessment", "required field is missing")
	} else if raMap, isMap := ra.(map[string]any); !isMap {
		verr.add("risk_assessment", "must be an object")
	} else {
		level, hasLevel := raMap["level"].(string)
		if !hasLevel || level == "" {
			verr.add("risk_assessment.level", "required field is missing")
		} else if level != proto.RiskLow && level != proto.RiskMedium &&
			level != proto.RiskHigh && level != proto.RiskCritical {
			verr.add("risk_assessment.level", fmt.Sprintf("must be one of low, medium, high, critical; got %q", level))
		}
		checkStringList(raMap, "concerns", verr)
		checkStringList(raMap, "recommendations", verr)
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var plan proto.TestPlan
	if err := remarshal(m, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// requireString checks for a non-empty string field and returns its value.
func requireString(m map[string]any, field string, verr *ValidationError) string {
	v, ok := m[field]
	if !ok || v == nil {
		verr.add(field, "required field is missing")
		return ""
	}
	s, isStr := v.(string)
	if !isStr {
		verr.add(field, "must be a string")
		return ""
	}
	if strings.TrimSpace(s) == "" {
		verr.add(field, "must not be empty")
		return ""
	}
	return s
}

// checkStringList verifies an optional field is an array of strings.
func checkStringList(m map[string]any, field string, verr *ValidationError) {
	v, ok := m[field]
	if !ok || v == nil {
		return
	}
	list, isList := v.([]any)
	if !isList {
		verr.add(field, "must be an array of strings")
		return
	}
	for i, item := range list {
		if _, isStr := item.(string); !isStr {
			verr.add(fmt.Sprintf("%s[%d]", field, i), "must be a string")
		}
	}
}

// checkStringMap verifies an optional field is an object with string values.
func checkStringMap(m map[string]any, field string, verr *ValidationError) {
	v, ok := m[field]
	if !ok || v == nil {
		return
	}
	obj, isMap := v.(map[string]any)
	if !isMap {
		verr.add(field, "must be an object mapping strings to strings")
		return
	}
	for key, val := range obj {
		if _, isStr := val.(string); !isStr {
			verr.add(fmt.Sprintf("%s.%s", field, key), "must be a string")
		}
	}
}

// checkObjectList verifies an optional field is an array of objects each
// carrying the required string keys.
func checkObjectList(m map[string]any, field string, required []string, verr *ValidationError) {
	v, ok := m[field]
	if !ok || v == nil {
		return
	}
	list, isList := v.([]any)
	if !isList {
		verr.add(field, "must be an array of objects")
		return
	}
	for i, item := range list {
		obj, isMap := item.(map[string]any)
		if !isMap {
			verr.add(fmt.Sprintf("%s[%d]", field, i), "must be an object")
			continue
		}
		for _, key := range required {
			if s, isStr := obj[key].(string); !isStr || s == "" {
				verr.add(fmt.Sprintf("%s[%d].%s", field, i, key), "required field is missing")
			}
		}
	}
}

// remarshal coerces the validated generic map into its typed shape.
func remarshal(m map[string]any, dest any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("re-encode validated payload: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode validated payload: %w", err)
	}
	return nil
}
