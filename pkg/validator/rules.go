package validator

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{
			Field:          field,
			Message:        "field is required",
			TranslationKey: "validation.required",
		},
	}
}

func MaxLenString(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be at most %d characters long", max),
			TranslationKey: "validation.max_length",
		},
	}
}

func RequiredTime(field string, value time.Time) Rule {
	return Rule{
		Check: func() bool { return !value.IsZero() },
		Error: ValidationError{
			Field:          field,
			Message:        "field is required",
			TranslationKey: "validation.required",
		},
	}
}

func RequiredUUID(field string, value uuid.UUID) Rule {
	return Rule{
		Check: func() bool { return value != uuid.Nil },
		Error: ValidationError{
			Field:          field,
			Message:        "UUID is required",
			TranslationKey: "validation.required",
		},
	}
}

// InList passes when value is one of allowed. An empty optional value must be
// guarded by the caller with When.
func InList[T comparable](field string, value T, allowed []T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(allowed, value) },
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be one of: %v", allowed),
			TranslationKey: "validation.in_list",
		},
	}
}

func RequiredSlice[T any](field string, value []T) Rule {
	return Rule{
		Check: func() bool { return len(value) > 0 },
		Error: ValidationError{
			Field:          field,
			Message:        "at least one item is required",
			TranslationKey: "validation.required",
		},
	}
}

func MaxLenSlice[T any](field string, value []T, max int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= max },
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must contain at most %d items", max),
			TranslationKey: "validation.max_items",
		},
	}
}

func NonNegative(field string, value int64) Rule {
	return Rule{
		Check: func() bool { return value >= 0 },
		Error: ValidationError{
			Field:          field,
			Message:        "must not be negative",
			TranslationKey: "validation.non_negative",
		},
	}
}

// When applies rule only if cond holds.
func When(cond bool, rule Rule) Rule {
	if cond {
		return rule
	}
	return Rule{Check: func() bool { return true }}
}
