package source

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// fingerprintLen is the length in hex characters of a generated fingerprint.
const fingerprintLen = 16

// GenerateFingerprint hashes the sorted (key, value) label pairs and the
// alert name into a fixed-length stable digest. Identical inputs yield an
// identical output regardless of map iteration order.
func GenerateFingerprint(labels map[string]string, name string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(labels[k]))
		h.Write([]byte{0})
	}
	h.Write([]byte(name))

	return hex.EncodeToString(h.Sum(nil))[:fingerprintLen]
}
