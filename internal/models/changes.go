// internal/models/changes.go
package models

import "strings"

// ComparisonField names one field inspected by HasChanged.
type ComparisonField string

const (
	CompareName                 ComparisonField = "name"
	CompareWorkingDirectory     ComparisonField = "workingDirectory"
	CompareParameters           ComparisonField = "parameters"
	CompareVariables            ComparisonField = "variables"
	CompareEnvironmentVariables ComparisonField = "environmentVariables"
	CompareIgnoreErrors         ComparisonField = "ignoreErrors"
	ComparePushChanges          ComparisonField = "pushChanges"
	CompareDryRun               ComparisonField = "dryRun"
	CompareSensitive            ComparisonField = "sensitive"
	CompareExpectedExitValue    ComparisonField = "expectedExitValue"
	CompareCommandTimeout       ComparisonField = "commandTimeout"
)

// DefaultComparison is used for command-like entries.
var DefaultComparison = []ComparisonField{
	CompareWorkingDirectory,
	CompareParameters,
	CompareVariables,
	CompareEnvironmentVariables,
	CompareIgnoreErrors,
	CompareDryRun,
	CompareExpectedExitValue,
	CompareCommandTimeout,
}

var comparisonByType = map[string][]ComparisonField{
	EntryTypeChapter:    {CompareParameters},
	EntryTypeSection:    {CompareParameters},
	EntryTypeSubsection: {CompareParameters},
	EntryTypeQuestion:   {CompareParameters},
	EntryTypeMarkdown:   {CompareParameters, CompareVariables},
	EntryTypeVariable:   {CompareName, CompareParameters, CompareSensitive},
}

// ComparisonFor returns the fields HasChanged inspects for the entry type.
// git-* entries also care about pushChanges.
func ComparisonFor(entryType string) []ComparisonField {
	if fields, ok := comparisonByType[entryType]; ok {
		return fields
	}
	if strings.HasPrefix(entryType, "git-") {
		return append(append([]ComparisonField{}, DefaultComparison...), ComparePushChanges)
	}
	return DefaultComparison
}

// HasChanged reports whether the candidate differs from the original in any
// of the given fields. Sequences are compared joined, so nil and empty match.
func HasChanged(original *Entry, candidate *SaveEntry, fields []ComparisonField) bool {
	for _, field := range fields {
		if fieldChanged(field, original, candidate) {
			return true
		}
	}
	return false
}

func fieldChanged(field ComparisonField, original *Entry, candidate *SaveEntry) bool {
	switch field {
	case CompareName:
		return original.Name != candidate.Name
	case CompareWorkingDirectory:
		return original.WorkingDirectory != candidate.WorkingDirectory
	case CompareParameters:
		return Join(original.Parameters) != Join(candidate.Parameters)
	case CompareVariables:
		return Join(original.Variables) != Join(candidate.Variables)
	case CompareEnvironmentVariables:
		return Join(original.EnvironmentVariables) != Join(candidate.EnvironmentVariables)
	case CompareIgnoreErrors:
		return original.IgnoreErrors != candidate.IgnoreErrors
	case ComparePushChanges:
		return original.PushChanges != candidate.PushChanges
	case CompareDryRun:
		return original.DryRun != candidate.DryRun
	case CompareSensitive:
		return original.Sensitive != candidate.Sensitive
	case CompareExpectedExitValue:
		return original.ExpectedExitValue != candidate.ExpectedExitValue
	case CompareCommandTimeout:
		return original.CommandTimeout != candidate.CommandTimeout
	default:
		return false
	}
}
