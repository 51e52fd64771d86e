// Package jsoncodec centralises JSON handling for engine payloads. Full
// (un)marshalling goes through sonic in std-compatible mode; the Peek
// helpers extract single fields from raw payloads without decoding the
// whole document, which keeps the event-consumption path allocation-light.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// PeekString returns the string value at path in data, or "" when the
// path is absent or not a string-coercible value.
func PeekString(data []byte, path string) string {
	return gjson.GetBytes(data, path).String()
}

// PeekInt returns the integer value at path in data, or 0 when absent.
func PeekInt(data []byte, path string) int64 {
	return gjson.GetBytes(data, path).Int()
}

// PeekBool returns the boolean value at path in data, or false when absent.
func PeekBool(data []byte, path string) bool {
	return gjson.GetBytes(data, path).Bool()
}

// Valid reports whether data is well-formed JSON.
func Valid(data []byte) bool {
	return gjson.ValidBytes(data)
}
