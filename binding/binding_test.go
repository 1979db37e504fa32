package binding

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/lvillar/pdfmerge/placeholder"
)

func TestResolve(t *testing.T) {
	headers := []string{"Name", "Amount", "Note"}
	row := []any{"Ada", 42, nil}
	mapping := Mapping{"name": "Name", "amount": "Amount", "note": "Note", "stale": "Removed"}

	tests := []struct {
		field string
		want  string
	}{
		{"name", "Ada"},
		{"amount", "42"},
		{"note", ""},
		{"stale", ""},
		{"unmapped", ""},
	}
	for _, tt := range tests {
		if got := Resolve(tt.field, mapping, row, headers); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.field, got, tt.want)
		}
		if got := ForRecord(mapping, headers, row).Resolve(tt.field); got != tt.want {
			t.Errorf("Record.Resolve(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestResolveShortRow(t *testing.T) {
	headers := []string{"A", "B"}
	mapping := Mapping{"b": "B"}
	if got := Resolve("b", mapping, []any{"x"}, headers); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if got := ForRecord(mapping, headers, []any{"x"}).Resolve("b"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{3.5, "3.5"},
		{float64(42), "42"},
		{true, "true"},
		{json.Number("0012"), "0012"},
		{[]byte("raw"), "raw"},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestForValues(t *testing.T) {
	b := ForValues(Mapping{"name": "Name", "amount": "Amount"}, map[string]any{"Name": "Ada", "Amount": nil})
	out := placeholder.Render("Hello {{name}}, total: {{amount}}{{missing}}", b)
	if out != "Hello Ada, total: " {
		t.Fatalf("got %q", out)
	}
}

func TestRowValuesAndIdentity(t *testing.T) {
	headers := []string{"Name", "Amount"}
	got := RowValues(headers, []any{"Ada"})
	if !reflect.DeepEqual(got, map[string]any{"Name": "Ada"}) {
		t.Fatalf("RowValues = %v", got)
	}
	id := Identity(headers)
	if id["Amount"] != "Amount" || len(id) != 2 {
		t.Fatalf("Identity = %v", id)
	}
}

func TestDecodeHeaders(t *testing.T) {
	want := []string{"Name", "Amount"}
	encoded, _ := json.Marshal(want)
	doubly, _ := json.Marshal(string(encoded))

	inputs := []any{
		want,
		[]any{"Name", "Amount"},
		string(encoded),
		encoded,
		json.RawMessage(encoded),
		string(doubly),
	}
	for _, in := range inputs {
		got, err := DecodeHeaders(in)
		if err != nil {
			t.Fatalf("DecodeHeaders(%#v): %v", in, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("DecodeHeaders(%#v) = %q", in, got)
		}
	}
}

func TestDecodeHeadersErrors(t *testing.T) {
	for _, in := range []any{42, "", `{"a":1}`, []any{"ok", 1}} {
		if _, err := DecodeHeaders(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeHeaders(%#v) error = %v, want ErrMalformed", in, err)
		}
	}
}

func TestDecodeRows(t *testing.T) {
	text := `[["Ada","42"],["Bob",7]]`
	doubly, _ := json.Marshal(text)

	for _, in := range []any{text, []byte(text), string(doubly)} {
		rows, err := DecodeRows(in)
		if err != nil {
			t.Fatalf("DecodeRows(%#v): %v", in, err)
		}
		if len(rows) != 2 || rows[0][0] != "Ada" {
			t.Fatalf("DecodeRows(%#v) = %v", in, rows)
		}
		if Stringify(rows[1][1]) != "7" {
			t.Fatalf("number cell = %#v", rows[1][1])
		}
	}

	structured := [][]string{{"a", "b"}}
	rows, err := DecodeRows(structured)
	if err != nil || len(rows) != 1 || rows[0][1] != "b" {
		t.Fatalf("DecodeRows([][]string) = %v, %v", rows, err)
	}

	mixed := []any{[]any{"x"}, []string{"y"}}
	rows, err = DecodeRows(mixed)
	if err != nil || rows[1][0] != "y" {
		t.Fatalf("DecodeRows(mixed) = %v, %v", rows, err)
	}

	if _, err := DecodeRows([]any{"not a row"}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
