package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysAstral(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FFFD
	// in UTF-16 but after it in UTF-8.
	obj := IRObject{"\U0001F600": IRInt(1), "\uFFFD": IRInt(2)}
	assert.Equal(t, []string{"\U0001F600", "\uFFFD"}, obj.SortedKeys())
}

func TestUnmarshalIRValueRejectsFloats(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`{"a": 1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are not allowed")

	_, err = UnmarshalIRValue([]byte(`1e3`))
	require.Error(t, err)
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"title": "Higgs", "pages": 12, "open": true, "tags": ["a", null]}`))
	require.NoError(t, err)

	obj, ok := v.(IRObject)
	require.True(t, ok)
	assert.Equal(t, IRString("Higgs"), obj["title"])
	assert.Equal(t, IRInt(12), obj["pages"])
	assert.Equal(t, IRBool(true), obj["open"])
	assert.Equal(t, IRArray{IRString("a"), IRNull{}}, obj["tags"])
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"b": IRArray{IRInt(1), IRObject{"x": IRString("y")}},
		"a": IRBool(false),
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":false,"b":[1,{"x":"y"}]}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(obj, back))
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    IRValue
		wantErr bool
	}{
		{"nil", nil, IRNull{}, false},
		{"string", "x", IRString("x"), false},
		{"int", 7, IRInt(7), false},
		{"integral float", float64(3), IRInt(3), false},
		{"fractional float", 3.25, nil, true},
		{"json number", json.Number("42"), IRInt(42), false},
		{"json float", json.Number("4.2"), nil, true},
		{"string slice", []string{"a", "b"}, IRArray{IRString("a"), IRString("b")}, false},
		{"nested map", map[string]any{"a": []any{int64(1), true}}, IRObject{"a": IRArray{IRInt(1), IRBool(true)}}, false},
		{"yaml map", map[any]any{"k": "v"}, IRObject{"k": IRString("v")}, false},
		{"non-string key", map[any]any{1: "v"}, nil, true},
		{"unsupported", struct{}{}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "got %#v", got)
		})
	}
}

func TestToGoInvertsFromGo(t *testing.T) {
	in := map[string]any{
		"a": "x",
		"b": int64(2),
		"c": []any{true, map[string]any{"d": "e"}},
	}
	v, err := FromGo(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToGo(v))
}

func TestStripNulls(t *testing.T) {
	tests := []struct {
		name  string
		input IRValue
		want  IRValue
	}{
		{"null", IRNull{}, nil},
		{"scalar", IRString("a"), IRString("a")},
		{"object keeps non-null", IRObject{"a": IRString("x"), "b": IRNull{}}, IRObject{"a": IRString("x")}},
		{"object of nulls collapses", IRObject{"a": IRNull{}}, nil},
		{"array of nulls collapses", IRArray{IRNull{}, IRObject{"a": IRNull{}}}, nil},
		{"empty object survives", IRObject{}, IRObject{}},
		{"nested", IRArray{IRObject{"a": IRNull{}, "b": IRInt(1)}, IRNull{}}, IRArray{IRObject{"b": IRInt(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripNulls(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.True(t, Equal(tt.want, got), "got %#v", got)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{"a": IRArray{IRObject{"b": IRString("c")}}}
	cp := Clone(orig).(IRObject)

	cp["a"].(IRArray)[0].(IRObject)["b"] = IRString("changed")
	assert.Equal(t, IRString("c"), orig["a"].(IRArray)[0].(IRObject)["b"])
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, IRNull{}))
	assert.True(t, Equal(IRInt(1), IRInt(1)))
	assert.False(t, Equal(IRInt(1), IRString("1")))
	assert.False(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}))
	assert.False(t, Equal(IRObject{"a": IRInt(1)}, IRObject{"b": IRInt(1)}))
	assert.False(t, Equal(IRObject{}, IRArray{}))
}

func TestLookup(t *testing.T) {
	rec := IRObject{
		"main_entry_personal_name": IRObject{"personal_name": IRString("Ellis")},
		"international_standard_book_number": IRArray{
			IRObject{"international_standard_book_number": IRString("80-902734-1-6")},
			IRObject{"international_standard_book_number": IRString("960-425-059-0")},
		},
	}

	v, ok := Lookup(rec, "main_entry_personal_name.personal_name")
	require.True(t, ok)
	assert.Equal(t, IRString("Ellis"), v)

	v, ok = Lookup(rec, "international_standard_book_number.international_standard_book_number")
	require.True(t, ok)
	assert.Equal(t, IRArray{IRString("80-902734-1-6"), IRString("960-425-059-0")}, v)

	_, ok = Lookup(rec, "missing.path")
	assert.False(t, ok)

	v, ok = Lookup(rec, "")
	require.True(t, ok)
	assert.True(t, Equal(rec, v))
}

func TestAsStringAndAsList(t *testing.T) {
	s, ok := AsString(IRArray{IRString("first"), IRString("second")})
	require.True(t, ok)
	assert.Equal(t, "first", s)

	s, ok = AsString(IRInt(12))
	require.True(t, ok)
	assert.Equal(t, "12", s)

	_, ok = AsString(IRObject{})
	assert.False(t, ok)

	assert.Equal(t, IRArray{IRString("x")}, AsList(IRString("x")))
	assert.Equal(t, IRArray{IRInt(1)}, AsList(IRArray{IRInt(1)}))
	assert.Nil(t, AsList(nil))
}
