package template

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// toJSON renders v as indented JSON
func (r *Renderer) toJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// base64Encode encodes a string to base64
func (r *Renderer) base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// base64Decode decodes a base64 string
func (r *Renderer) base64Decode(s string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// indent prefixes each line of s, leaving a trailing empty line alone
func (r *Renderer) indent(prefix, s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" || i < len(lines)-1 {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// sha256Hash returns the hex SHA256 of a string
func (r *Renderer) sha256Hash(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}

type customDataEntry interface {
	CustomData(n int) string
}

// customData returns custom field n of a password entry, or "" for
// anything else.
func (r *Renderer) customData(n int, entry interface{}) string {
	if e, ok := entry.(customDataEntry); ok {
		return e.CustomData(n)
	}
	return ""
}
