package registry

import (
	"bytes"
	"encoding/json"
)

// decodeInto rejects unknown fields so schema drift surfaces at publish time.
func decodeInto(raw json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
