package storage

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/sha3"

	"github.com/lotdex/lotdex/pkg/exchange"
)

func encodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

// checksum is a sha3-256 over the canonical JSON encoding of the snapshot.
// Snapshot rows are deterministically ordered, so equal state hashes equal.
func checksum(snap *exchange.StateSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
