package decoder

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// HasDelta is implemented by decoded records that carry a relative
// timestamp. The second return is false when the record has no delta.
type HasDelta interface {
	DeltaSeconds() (float64, bool)
}

// HasData is implemented by decoded records that are key-value
// shaped. Payload may be nil for records without a data field; a
// decoded value that does not implement HasData is not a record and
// is skipped by the decoder.
type HasData interface {
	Payload() any
}

// cborRecord is the structured record produced by the built-in CBOR
// codec. It implements both capability interfaces.
type cborRecord struct {
	delta *float64
	data  any
}

func (r *cborRecord) DeltaSeconds() (float64, bool) {
	if r.delta == nil {
		return 0, false
	}
	return *r.delta, true
}

func (r *cborRecord) Payload() any {
	return r.data
}

// recDecMode maps any-typed CBOR targets to map[string]any so record
// payloads compare cleanly and re-encode with encoding/json.
var recDecMode cbor.DecMode

func init() {
	var err error
	recDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("decoder: CBOR decoder initialization failed: " + err.Error())
	}

	// Built-in sensor types all share the CBOR event blob encoding.
	for _, sensorType := range []string{"digit360", "digit", "gelsight_mini"} {
		Register(sensorType, func() Codec { return cborCodec{} })
	}
}

// cborCodec decodes CBOR event blobs of the form
// {"delta": <seconds>, "data": <payload>}. Non-map blobs decode
// successfully but yield a non-record value, which the decoder skips.
type cborCodec struct{}

func (cborCodec) Deserialize(blob []byte) (any, error) {
	var value any
	if err := recDecMode.Unmarshal(blob, &value); err != nil {
		return nil, err
	}

	fields, ok := value.(map[string]any)
	if !ok {
		// Decoded but not key-value shaped.
		return value, nil
	}

	record := &cborRecord{data: fields["data"]}
	if raw, present := fields["delta"]; present {
		if delta, ok := asFloat(raw); ok {
			record.delta = &delta
		}
	}
	return record, nil
}

// asFloat widens the numeric types the CBOR decoder produces for
// any-typed targets.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
