package validator

import (
	"errors"
	"testing"
)

type sample struct {
	Name   string `json:"name" validate:"required,max=5"`
	Months int    `json:"months" validate:"min=1"`
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	err := New().Struct(sample{Name: "too long", Months: 0})
	fields := FieldErrors(err)
	if fields["name"] != "max=5" || fields["months"] != "min=1" {
		t.Fatalf("FieldErrors = %v", fields)
	}
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	if FieldErrors(errors.New("boom")) != nil {
		t.Fatal("non-validation errors should yield nil")
	}
	if err := New().Struct(sample{Name: "ok", Months: 6}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
