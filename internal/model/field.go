package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownField is returned when a field name does not resolve to a known Event field.
	ErrUnknownField = errors.New("unknown event field")
	// ErrFieldType is returned when an operation is used on a field of the wrong type.
	ErrFieldType = errors.New("wrong event field type")
)

// Kind is the static value type of a Field.
type Kind int

const (
	KindString Kind = iota + 1
	KindTime
	KindBool
	KindColor
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	case KindColor:
		return "color"
	default:
		return "unknown"
	}
}

// Field identifies one logical Event field. The zero value is not a valid field.
type Field int

const (
	FieldID Field = iota + 1
	FieldTitle
	FieldDescription
	FieldLocation
	FieldHTMLLink
	FieldAllDay
	FieldCreated
	FieldUpdated
	FieldStart
	FieldEnd
	FieldColor
)

var fieldNames = map[Field]string{
	FieldID:          "id",
	FieldTitle:       "title",
	FieldDescription: "description",
	FieldLocation:    "location",
	FieldHTMLLink:    "html_link",
	FieldAllDay:      "is_all_day",
	FieldCreated:     "created",
	FieldUpdated:     "updated",
	FieldStart:       "start",
	FieldEnd:         "end",
	FieldColor:       "color",
}

// fieldAliases maps alternative names (as found in ICS and Google payloads) to fields.
var fieldAliases = map[string]Field{
	"summary": FieldTitle,
	"begin":   FieldStart,
	"url":     FieldHTMLLink,
}

// ParseField resolves a field name, case-insensitively, honoring the
// summary/begin/url aliases.
func ParseField(name string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	for f, n := range fieldNames {
		if n == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Valid reports whether f is one of the declared fields.
func (f Field) Valid() bool {
	_, ok := fieldNames[f]
	return ok
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Kind returns the value type carried by the field.
func (f Field) Kind() Kind {
	switch f {
	case FieldID, FieldTitle, FieldDescription, FieldLocation, FieldHTMLLink:
		return KindString
	case FieldCreated, FieldUpdated, FieldStart, FieldEnd:
		return KindTime
	case FieldAllDay:
		return KindBool
	case FieldColor:
		return KindColor
	default:
		return 0
	}
}

// IsText reports whether f holds a string value.
func (f Field) IsText() bool {
	return f.Kind() == KindString
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownField, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(b []byte) error {
	parsed, err := ParseField(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
