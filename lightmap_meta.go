package lightmapper

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// LightmapExtrasKey is the extras field the baking tool writes the lightmap
// identifier under. Matching is case-sensitive.
const LightmapExtrasKey = "TLM_Lightmap"

// GltfExtras carries a node's free-form extras as the raw JSON text found in
// the scene file.
type GltfExtras struct {
	Value string
}

// lightmapExtras is the only part of the extras object we understand.
// Decoded by hand: struct tags in encoding/json match keys case-insensitively
// and let a repeated key silently win. A repeated lightmap key is an error.
type lightmapExtras struct {
	Lightmap *string
}

func (e *lightmapExtras) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("extras is %s, not an object", jsonKind(tok))
	}

	seen := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		if key != LightmapExtrasKey {
			continue
		}
		if seen {
			return errors.Errorf("duplicate field %s", LightmapExtrasKey)
		}
		seen = true

		if string(raw) == "null" {
			continue
		}
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return errors.Wrapf(err, "field %s", LightmapExtrasKey)
		}
		e.Lightmap = &name
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func jsonKind(tok json.Token) string {
	switch tok.(type) {
	case nil:
		return "null"
	case json.Delim:
		return "an array"
	case string:
		return "a string"
	case float64, json.Number:
		return "a number"
	case bool:
		return "a boolean"
	}
	return "an unknown value"
}

// ParseLightmapReference decodes an extras blob. found is false when the blob
// is a valid object without a lightmap field; err is set when the blob is not
// an object or the field is not a string.
func ParseLightmapReference(raw string) (name string, found bool, err error) {
	var extras lightmapExtras
	if err := json.Unmarshal([]byte(raw), &extras); err != nil {
		return "", false, errors.Wrap(err, "decode extras")
	}
	if extras.Lightmap == nil {
		return "", false, nil
	}
	return *extras.Lightmap, true, nil
}
