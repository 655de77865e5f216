// internal/models/multipart.go
package models

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Well-known part names used by composite entry types.
const (
	PartTitle       = "Title"
	PartDescription = "Description"
	PartQuestion    = "Question"
	PartAnswer      = "Answer"
)

// partNotFound is returned as both index and length when a part is absent.
const partNotFound = -1

// PartHeader builds the "<name>:<length>" marker that precedes a part's content.
func PartHeader(name string, length int) string {
	return name + ":" + strconv.Itoa(length)
}

// ParsePartHeader splits a header into its name and declared length.
// ok is false when the string is not a well formed header.
func ParsePartHeader(header string) (name string, length int, ok bool) {
	idx := strings.LastIndexByte(header, ':')
	if idx < 0 {
		return "", 0, false
	}

	length, err := strconv.Atoi(header[idx+1:])
	if err != nil || length < 0 {
		return "", 0, false
	}
	return header[:idx], length, true
}

// FindPart locates the header of the named part. Only headers are visited:
// after a non matching header the scan jumps over its content, so content
// lines that look like headers are never mistaken for one.
// Returns (-1, -1) when the part does not exist or a malformed header stops the scan.
func FindPart(name string, parameters []string) (index, length int) {
	for i := 0; i < len(parameters); {
		partName, partLength, ok := ParsePartHeader(parameters[i])
		if !ok {
			break
		}
		if partName == name {
			return i, partLength
		}
		i = nextHeader(i, partLength, len(parameters))
	}
	return partNotFound, partNotFound
}

// GetPart returns a copy of the content of the named part, or an empty
// slice when the part is absent. A declared length running past the end of
// the sequence is clamped to what is available.
func GetPart(name string, parameters []string) []string {
	index, length := FindPart(name, parameters)
	if index == partNotFound {
		return []string{}
	}

	start, end := partBounds(index, length, len(parameters))
	content := make([]string, end-start)
	copy(content, parameters[start:end])
	return content
}

// SetPart writes the named part and returns the updated sequence.
// An absent part is appended to the end. An existing part has its header and
// its content replaced in place, which may grow or shrink the sequence while
// the parts before and after it keep their order.
func SetPart(name string, content []string, parameters []string) []string {
	index, length := FindPart(name, parameters)
	if index == partNotFound {
		updated := make([]string, 0, len(parameters)+len(content)+1)
		updated = append(updated, parameters...)
		updated = append(updated, PartHeader(name, len(content)))
		return append(updated, content...)
	}

	_, end := partBounds(index, length, len(parameters))
	updated := make([]string, 0, len(parameters)-(end-index)+len(content)+1)
	updated = append(updated, parameters[:index]...)
	updated = append(updated, PartHeader(name, len(content)))
	updated = append(updated, content...)
	return append(updated, parameters[end:]...)
}

// HasPart reports whether the named part is present.
func HasPart(name string, parameters []string) bool {
	index, _ := FindPart(name, parameters)
	return index != partNotFound
}

// PartNames lists the names of all parts in order of appearance.
func PartNames(parameters []string) []string {
	var names []string
	for i := 0; i < len(parameters); {
		name, length, ok := ParsePartHeader(parameters[i])
		if !ok {
			break
		}
		names = append(names, name)
		i = nextHeader(i, length, len(parameters))
	}
	return names
}

// CheckParts walks the header chain and reports every structural problem
// found: malformed headers, content running past the end of the sequence and
// duplicated part names.
func CheckParts(parameters []string) error {
	var (
		err  error
		seen = make(map[string]int)
	)
	for i := 0; i < len(parameters); {
		name, length, ok := ParsePartHeader(parameters[i])
		if !ok {
			// nothing after a broken header can be located
			return multierr.Append(err, fmt.Errorf("malformed part header %q at index %d", parameters[i], i))
		}
		if previous, exists := seen[name]; exists {
			err = multierr.Append(err, fmt.Errorf("part %q at index %d duplicates the one at index %d", name, i, previous))
		} else {
			seen[name] = i
		}
		if available := len(parameters) - i - 1; length > available {
			err = multierr.Append(err, fmt.Errorf("part %q at index %d declares %d lines but only %d follow", name, i, length, available))
		}
		i = nextHeader(i, length, len(parameters))
	}
	return err
}

// nextHeader returns the index following the part whose header sits at i.
// A length running past the end of the sequence ends the walk.
func nextHeader(i, length, size int) int {
	if length > size-i-1 {
		return size
	}
	return i + length + 1
}

// partBounds returns the content span of the part whose header is at index,
// clamped to the sequence size.
func partBounds(index, length, size int) (start, end int) {
	start = index + 1
	if length > size-start {
		return start, size
	}
	return start, start + length
}
