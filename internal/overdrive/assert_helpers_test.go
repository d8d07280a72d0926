// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/circulation/internal/circulation"
)

// checkNoError fails the test if err is not nil
func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// checkError fails the test if err is nil
func checkError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// checkKind checks that err is a circulation error of kind and returns it
func checkKind(t *testing.T, err error, kind circulation.Kind) *circulation.Error {
	t.Helper()
	var ce *circulation.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *circulation.Error of kind %s, got %T: %v", kind, err, err)
	}
	if ce.Kind != kind {
		t.Fatalf("expected kind %s, got %s: %v", kind, ce.Kind, err)
	}
	return ce
}

// checkStringEqual checks that got equals want
func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

// checkContains checks that s contains substr
func checkContains(t *testing.T, fieldName, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: expected %q to contain %q", fieldName, s, substr)
	}
}

// checkIntEqual checks that got equals want
func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

// checkBool checks that got equals want
func checkBool(t *testing.T, fieldName string, got, want bool) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %v, got %v", fieldName, want, got)
	}
}

// checkStrings checks that two string slices are equal
func checkStrings(t *testing.T, fieldName string, got, want []string) {
	t.Helper()
	if strings.Join(got, "|") != strings.Join(want, "|") || len(got) != len(want) {
		t.Errorf("%s: expected %v, got %v", fieldName, want, got)
	}
}
