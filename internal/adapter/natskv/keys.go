package natskv

import (
	"encoding/base64"
	"fmt"
)

// NATS KV keys only allow [-/_=.a-zA-Z0-9]; store keys use ':' separators
// and arbitrary ids, so every key is stored base64url encoded.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(enc string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode kv key %q: %w", enc, err)
	}
	return string(b), nil
}
