// Package automation holds helpers around model-generated Home Assistant
// automations: YAML validation, JSON extraction from replies and
// notification templates for common household events.
package automation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Result is the outcome of validating an automation document.
type Result struct {
	Valid    bool           `json:"valid"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
	Config   map[string]any `json:"config"`
}

// ValidateYAML checks that text is a single automation mapping with trigger
// and action sections. Style problems are reported as warnings.
func ValidateYAML(text string) *Result {
	result := &Result{Errors: []string{}, Warnings: []string{}}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		result.Errors = append(result.Errors, errors.Wrap(err, "invalid YAML").Error())
		return result
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		result.Errors = append(result.Errors, "Automation YAML must be a single mapping (not a list).")
		return result
	}

	config := map[string]any{}
	if err := doc.Content[0].Decode(&config); err != nil {
		result.Errors = append(result.Errors, errors.Wrap(err, "invalid automation mapping").Error())
		return result
	}
	result.Config = config

	for _, required := range []string{"trigger", "action"} {
		if _, ok := config[required]; !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Missing required '%s' section.", required))
		}
	}
	if trigger, ok := config["trigger"]; ok && !isListOrMapping(trigger) {
		result.Errors = append(result.Errors, "Trigger must be a list or mapping.")
	}
	action, hasAction := config["action"]
	if hasAction && !isListOrMapping(action) {
		result.Errors = append(result.Errors, "Action must be a list or mapping.")
	}

	if _, ok := config["mode"]; !ok {
		result.Warnings = append(result.Warnings, "Consider adding 'mode' to control automation behavior.")
	}
	if callsAutomationService(action) {
		result.Warnings = append(result.Warnings, "Action references automation services; verify this won't loop.")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func isListOrMapping(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	default:
		return false
	}
}

// callsAutomationService reports whether a top-level action step calls an
// automation.* service, which may retrigger the automation.
func callsAutomationService(action any) bool {
	var steps []map[string]any
	switch a := action.(type) {
	case map[string]any:
		steps = append(steps, a)
	case []any:
		for _, item := range a {
			if step, ok := item.(map[string]any); ok {
				steps = append(steps, step)
			}
		}
	}

	for _, step := range steps {
		for _, key := range []string{"service", "action"} {
			if service, ok := step[key].(string); ok && strings.HasPrefix(service, "automation.") {
				return true
			}
		}
	}
	return false
}
