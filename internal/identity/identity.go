// Package identity derives a normalized patient identity from an opaque
// clinical document body. Strategies are declarative data (a wrapper key
// plus field paths) stored per collection, never executable code.
package identity

import (
	"fmt"
	"strconv"
	"strings"
)

// Unknown is the sentinel for a field that could not be resolved.
const Unknown = "?"

// BuiltinFHIRPatient selects the built-in strategy for the canonical
// FHIR-like patient shape.
const BuiltinFHIRPatient = "fhir-patient"

// Identity is the normalized patient description returned by a strategy.
type Identity struct {
	MRN      string `json:"mrn"`
	FullName string `json:"fullName"`
	Gender   string `json:"gender"`
}

// Spec describes how to extract an Identity from a document body.
//
// Either Builtin names one of the built-in strategies, or Wrapper plus the
// per-field path lists define the extraction explicitly. Wrapper is the
// top-level key that marks a patient record; a body without it is treated
// as unidentifiable, not as an error. Each field is an ordered list of
// path expressions evaluated relative to the wrapper value; resolved
// values are joined with a single space (given + family for the full
// name). Paths are dot-separated segments, numeric segments index arrays.
type Spec struct {
	Builtin  string   `json:"builtin,omitempty"`
	Wrapper  string   `json:"wrapper,omitempty"`
	MRN      []string `json:"mrn,omitempty"`
	FullName []string `json:"fullName,omitempty"`
	Gender   []string `json:"gender,omitempty"`
}

// Default returns the built-in strategy for the canonical FHIR-like
// patient shape: MRN from the first identifier's key, full name from the
// first name entry, gender from the first coding entry.
func Default() Spec {
	return Spec{
		Wrapper:  "Patient",
		MRN:      []string{"identifier.0.key.value"},
		FullName: []string{"name.0.given.0.value", "name.0.family.0.value"},
		Gender:   []string{"gender.coding.0.code.value"},
	}
}

// Resolve expands a builtin tag into its concrete spec. Specs without a
// tag are returned unchanged.
func Resolve(s Spec) (Spec, error) {
	switch s.Builtin {
	case "":
		if s.Wrapper == "" && len(s.MRN) == 0 && len(s.FullName) == 0 && len(s.Gender) == 0 {
			return Spec{}, fmt.Errorf("identity spec is empty")
		}
		return s, nil
	case BuiltinFHIRPatient:
		return Default(), nil
	default:
		return Spec{}, fmt.Errorf("unknown builtin identity strategy %q", s.Builtin)
	}
}

// Apply evaluates the spec against a document body. It never fails: a
// missing wrapper key yields all-Unknown, and each field degrades to
// Unknown independently, so a malformed name does not prevent resolving
// the MRN.
func Apply(s Spec, body interface{}) Identity {
	res := Identity{MRN: Unknown, FullName: Unknown, Gender: Unknown}

	root := body
	if s.Wrapper != "" {
		m, ok := body.(map[string]interface{})
		if !ok {
			return res
		}
		root, ok = m[s.Wrapper]
		if !ok {
			return res
		}
	}

	if v, ok := resolveField(root, s.MRN); ok {
		res.MRN = v
	}
	if v, ok := resolveField(root, s.FullName); ok {
		res.FullName = v
	}
	if v, ok := resolveField(root, s.Gender); ok {
		res.Gender = v
	}
	return res
}

// resolveField resolves every path of one field and joins the values with
// a space. A single unresolvable path fails the whole field.
func resolveField(root interface{}, paths []string) (string, bool) {
	if len(paths) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		v, ok := walk(root, path)
		if !ok {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " "), true
}

// walk follows one dot-separated path through decoded JSON and returns
// the terminal value as a string.
func walk(root interface{}, path string) (string, bool) {
	cur := root
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return "", false
			}
			cur = v
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return "", false
			}
			cur = node[i]
		default:
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
