// Package container reads and writes .touch telemetry containers.
//
// A container is an append-only binary file: a fixed magic header, a
// JSON configuration block declaring the recorded sensors, then a
// growable sequence of chunk frames. Each chunk payload is a CBOR map
// of sensor name -> stream name -> ordered event blobs. Chunks are
// read-only once written; chunk order defines global event order.
package container

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Format constants. Changing any of these breaks compatibility with
// existing .touch files.
const (
	formatVersion = 1

	// headerSize is the fixed file prefix: 8-byte magic.
	headerSize = 8

	// frameHeaderSize is the per-chunk frame prefix: 1-byte
	// compression tag + uint32 compressed length + uint32
	// uncompressed length.
	frameHeaderSize = 9

	// maxChunkSize bounds a single chunk payload. A frame header
	// claiming more than this is treated as corruption rather than
	// an allocation request.
	maxChunkSize = 1 << 30
)

// magic is the 8-byte container file signature: "TOUCHC" + version
// byte + reserved byte.
var magic = [8]byte{'T', 'O', 'U', 'C', 'H', 'C', formatVersion, 0}

// SensorConfig is one declared sensor in the container's config block.
type SensorConfig struct {
	SensorName string `json:"sensor_name"`
	SensorType string `json:"sensor_type"`
}

// Config is the container's embedded configuration record, declared
// once at write time.
type Config struct {
	Sensors []SensorConfig `json:"sensors"`
}

// ChunkPayload is one decoded chunk: sensor name -> stream name ->
// ordered event blobs for that time window.
type ChunkPayload map[string]map[string][][]byte

// encMode encodes chunk payloads with Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding. Same
// logical payload always produces identical bytes.
var encMode cbor.EncMode

// decMode accepts standard CBOR and maps any-typed targets to
// map[string]any instead of the CBOR default map[any]any.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("container: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("container: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshalPayload(payload ChunkPayload) ([]byte, error) {
	data, err := encMode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding chunk payload: %w", err)
	}
	return data, nil
}

func unmarshalPayload(data []byte) (ChunkPayload, error) {
	var payload ChunkPayload
	if err := decMode.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding chunk payload: %w", err)
	}
	return payload, nil
}
