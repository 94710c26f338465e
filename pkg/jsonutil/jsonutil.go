// Package jsonutil centralizes JSON encode/decode behind bytedance/sonic so
// every caller (export/import, embedding vector framing, provider HTTP
// bodies) goes through one fast codec instead of each picking its own.
package jsonutil

import "github.com/bytedance/sonic"

// Marshal encodes v using sonic's standard-library-compatible API.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalIndent encodes v with indentation, matching encoding/json's signature.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
