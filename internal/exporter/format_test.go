package exporter

import (
	"database/sql/driver"
	"testing"
	"time"
)

type numericValuer string

func (n numericValuer) Value() (driver.Value, error) { return string(n), nil }

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"bytes", []byte("raw"), "raw"},
		{"bool", true, "true"},
		{"int64", int64(-42), "-42"},
		{"int32", int32(7), "7"},
		{"float", 0.25, "0.25"},
		{"float no exponent", 1e21, "1000000000000000000000"},
		{"date", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "2024-03-05"},
		{"timestamp", time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC), "2024-03-05 14:07:09"},
		{"timestamp micros", time.Date(2024, 3, 5, 14, 7, 9, 123000000, time.UTC), "2024-03-05 14:07:09.123"},
		{"uuid", [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}, "12345678-9abc-def0-1234-56789abcdef0"},
		{"valuer", numericValuer("12.50"), "12.50"},
		{"json object", map[string]any{"a": 1, "b": "x y"}, `{"a":1,"b":"x y"}`},
		{"json nested", map[string]any{"tags": []any{"<b>", "&"}}, `{"tags":["<b>","&"]}`},
		{"int array", []any{int32(1), int32(2)}, "[1,2]"},
		{"text array", []any{"a,b", nil}, `["a,b",null]`},
		{"typed slice", []int{1, 2}, "[1,2]"},
		{"fallback", struct{ N int }{3}, "{3}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Fatalf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
