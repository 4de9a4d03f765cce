package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// ContentTypeCBOR is the media type for CBOR encoded telemetry.
const ContentTypeCBOR = "application/cbor"

// utf8BOM is the byte order mark some clients prepend to JSON bodies.
// No well-formed CBOR item starts with 0xEF, so stripping it is unambiguous.
const utf8BOM = "\xEF\xBB\xBF"

var (
	// ErrEmptyPayload is returned for payloads with no content.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrNotObject is returned when the payload decodes to something other than an object.
	ErrNotObject = errors.New("payload is not an object")
)

// cborDecMode decodes CBOR maps into map[string]any so both encodings share
// the same normalizer input.
//
//nolint:gochecknoglobals // Immutable decoder configuration built once.
var cborDecMode cbor.DecMode

func init() { //nolint:gochecknoinits // Decoder options are validated once at startup.
	var err error

	cborDecMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		panic("ingest: CBOR decoder initialization failed: " + err.Error())
	}
}

// Decode parses a raw payload into a loosely typed object.
// CBOR is used when contentType says so, or when the payload does not look
// like a JSON object; everything else is decoded as JSON. A leading UTF-8
// byte order mark is ignored.
func Decode(raw []byte, contentType string) (map[string]any, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(raw), []byte(utf8BOM)))
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	if isCBOR(contentType) || !looksLikeJSON(trimmed[0]) {
		return decodeCBOR(raw)
	}

	return decodeJSON(trimmed)
}

// isCBOR reports whether the media type names CBOR.
func isCBOR(contentType string) bool {
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == ContentTypeCBOR
}

// looksLikeJSON reports whether the first significant byte can start a JSON document.
func looksLikeJSON(first byte) bool {
	switch first {
	case '{', '[', '"':
		return true
	default:
		return false
	}
}

func decodeJSON(raw []byte) (map[string]any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	payload, ok := value.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	return payload, nil
}

func decodeCBOR(raw []byte) (map[string]any, error) {
	var value any
	if err := cborDecMode.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode cbor: %w", err)
	}

	payload, ok := value.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	return payload, nil
}
