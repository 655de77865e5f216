// internal/models/interpolate.go
package models

import (
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Placeholder returns the "${name}" token substituted by Interpolate.
func Placeholder(name string) string {
	return "${" + name + "}"
}

// Interpolate replaces every occurrence of ${name} for each declared variable
// that has a bound value. Unbound placeholders are left untouched. When either
// the declared names or the values are nil the text is returned unchanged.
func Interpolate(variables []string, values map[string]string, text string) string {
	if variables == nil || values == nil {
		return text
	}

	interpolated := text
	for _, variable := range variables {
		if value, ok := values[variable]; ok {
			interpolated = strings.ReplaceAll(interpolated, Placeholder(variable), value)
		}
	}
	return interpolated
}

// InterpolateLines applies Interpolate to each line.
func InterpolateLines(variables []string, values map[string]string, lines []string) []string {
	if lines == nil {
		return nil
	}
	interpolated := make([]string, len(lines))
	for i, line := range lines {
		interpolated[i] = Interpolate(variables, values, line)
	}
	return interpolated
}

// ReferencedVariables returns the unique names used as ${name} in the lines, sorted.
func ReferencedVariables(lines []string) []string {
	found := make(map[string]struct{})
	for _, line := range lines {
		for _, match := range placeholderPattern.FindAllStringSubmatch(line, -1) {
			found[match[1]] = struct{}{}
		}
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MissingVariables lists the placeholders used by the entry's parameters that
// are not declared in its variables.
func MissingVariables(entry *Entry) []string {
	declared := make(map[string]struct{}, len(entry.Variables))
	for _, name := range entry.Variables {
		declared[name] = struct{}{}
	}

	var missing []string
	for _, name := range ReferencedVariables(entry.Parameters) {
		if _, ok := declared[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// DoAllVariablesHaveValues reports whether every declared variable is bound
// to a non empty value. An entry without variables is always complete.
func DoAllVariablesHaveValues(entry *Entry) bool {
	if len(entry.Variables) == 0 {
		return true
	}
	if entry.Values == nil {
		return false
	}

	for _, variable := range entry.Variables {
		if entry.Values[variable] == "" {
			return false
		}
	}
	return true
}

// SetValue binds a variable on the entry. Names the entry does not declare
// are ignored so stale bindings never reach Values.
func SetValue(entry *Entry, binding VariableBinding) bool {
	if !entry.DeclaresVariable(binding.Name) {
		return false
	}
	if entry.Values == nil {
		entry.Values = make(map[string]string)
	}
	entry.Values[binding.Name] = binding.Value
	return true
}

// UpdateValue rebinds a variable on the entry with the same guard as SetValue.
// It reports false when the name is not declared or the value is already bound.
func UpdateValue(entry *Entry, binding VariableBinding) bool {
	if current, ok := entry.Values[binding.Name]; ok && current == binding.Value {
		return false
	}
	return SetValue(entry, binding)
}
