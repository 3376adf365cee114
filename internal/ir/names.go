package ir

import (
	"fmt"
	"strings"
)

// ExternalName identifies a symbol defined outside the function being emitted.
//
// A user name is a (namespace, index) pair whose meaning is up to the embedder, while a test case
// name is a plain identifier used by textual function descriptions.
type ExternalName struct {
	testCase  string
	namespace uint32
	index     uint32
}

// UserName returns an ExternalName for the user-defined symbol (namespace, index).
func UserName(namespace, index uint32) ExternalName {
	return ExternalName{namespace: namespace, index: index}
}

// TestCaseName returns an ExternalName for a named test symbol.
func TestCaseName(name string) ExternalName {
	if name == "" {
		panic("BUG: test case name must not be empty")
	}
	return ExternalName{testCase: name}
}

// IsTestCase returns true if this name was created by TestCaseName.
func (n ExternalName) IsTestCase() bool { return n.testCase != "" }

// User returns the namespace and index of a user name.
func (n ExternalName) User() (namespace, index uint32) { return n.namespace, n.index }

// String implements fmt.Stringer.
func (n ExternalName) String() string {
	if n.testCase != "" {
		return "%" + n.testCase
	}
	return fmt.Sprintf("u%d:%d", n.namespace, n.index)
}

// ParseExternalName is the inverse of ExternalName.String.
func ParseExternalName(s string) (ExternalName, error) {
	if strings.HasPrefix(s, "%") {
		if len(s) == 1 {
			return ExternalName{}, fmt.Errorf("empty test case name")
		}
		return TestCaseName(s[1:]), nil
	}
	var ns, idx uint32
	if _, err := fmt.Sscanf(s, "u%d:%d", &ns, &idx); err != nil {
		return ExternalName{}, fmt.Errorf("invalid external name %q: %w", s, err)
	}
	return UserName(ns, idx), nil
}

// Equal returns true if n and o name the same symbol.
func (n ExternalName) Equal(o ExternalName) bool { return n == o }
