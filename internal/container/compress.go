package container

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm used for a
// chunk frame. Tags are stored in frame headers (1 byte each); the
// values are format constants.
type CompressionTag uint8

const (
	// CompressionNone stores the chunk payload uncompressed. Used
	// for payloads dominated by already-compressed event blobs
	// (JPEG camera frames) where compression only costs CPU.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 applies LZ4 block compression. Fast default
	// for mixed binary sensor data.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd applies zstd at the default level. Better
	// ratios for scalar-heavy payloads (serial, IMU, pressure).
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("container: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("container: zstd decoder initialization failed: " + err.Error())
	}
}

// compress applies the requested algorithm to data. Incompressible
// payloads fall back to CompressionNone, so the returned tag may
// differ from the requested one.
func compress(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		var c lz4.Compressor
		n, err := c.CompressBlock(data, buf)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compression: %w", err)
		}
		if n == 0 || n >= len(data) {
			// Incompressible.
			return data, CompressionNone, nil
		}
		return buf[:n], CompressionLZ4, nil
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil
	default:
		return nil, 0, fmt.Errorf("unknown compression tag %d", uint8(tag))
	}
}

// decompress reverses compress. uncompressedSize comes from the frame
// header and bounds the output buffer.
func decompress(data []byte, tag CompressionTag, uncompressedSize uint32) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		buf := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompression: got %d bytes, frame header says %d", n, uncompressedSize)
		}
		return buf, nil
	case CompressionZstd:
		buf, err := zstdDecoder.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}
		if uint32(len(buf)) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompression: got %d bytes, frame header says %d", len(buf), uncompressedSize)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", uint8(tag))
	}
}
