package container

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// frameIndexEntry locates one chunk frame within the container file.
type frameIndexEntry struct {
	offset           int64
	tag              CompressionTag
	compressedSize   uint32
	uncompressedSize uint32
}

// Reader provides index-addressed access to a container's chunks. A
// single forward scan at open time builds the chunk index; chunk
// payloads are decoded lazily on demand.
type Reader struct {
	file   *os.File
	config Config
	index  []frameIndexEntry
}

// Open validates the container header, reads the config block and
// scans the chunk frames. Truncated or garbled frames are fatal —
// recovery of corrupted containers is out of scope.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader := &Reader{file: file}
	if err := reader.scan(); err != nil {
		file.Close()
		return nil, fmt.Errorf("opening container %s: %w", path, err)
	}
	return reader, nil
}

func (r *Reader) scan() error {
	var header [headerSize]byte
	if _, err := io.ReadFull(r.file, header[:]); err != nil {
		return fmt.Errorf("reading container magic: %w", err)
	}
	if !bytes.Equal(header[:6], magic[:6]) {
		return fmt.Errorf("not a touch container (bad magic)")
	}
	if header[6] != formatVersion {
		return fmt.Errorf("unsupported container version %d", header[6])
	}

	var lenBytes [4]byte
	if _, err := io.ReadFull(r.file, lenBytes[:]); err != nil {
		return fmt.Errorf("reading config length: %w", err)
	}
	configLen := binary.LittleEndian.Uint32(lenBytes[:])
	if configLen > maxChunkSize {
		return fmt.Errorf("config block claims %d bytes", configLen)
	}
	configJSON := make([]byte, configLen)
	if _, err := io.ReadFull(r.file, configJSON); err != nil {
		return fmt.Errorf("reading config block: %w", err)
	}
	if configLen > 0 {
		if err := json.Unmarshal(configJSON, &r.config); err != nil {
			return fmt.Errorf("parsing config block: %w", err)
		}
	}

	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("stat container: %w", err)
	}
	fileSize := info.Size()

	// Scan chunk frames. EOF at a frame boundary ends the container;
	// EOF inside a frame is corruption.
	offset := int64(headerSize + 4 + int(configLen))
	var frameHeader [frameHeaderSize]byte
	for {
		_, err := io.ReadFull(r.file, frameHeader[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading chunk %d frame header: %w", len(r.index), err)
		}

		entry := frameIndexEntry{
			offset:           offset + frameHeaderSize,
			tag:              CompressionTag(frameHeader[0]),
			compressedSize:   binary.LittleEndian.Uint32(frameHeader[1:5]),
			uncompressedSize: binary.LittleEndian.Uint32(frameHeader[5:9]),
		}
		if entry.compressedSize > maxChunkSize || entry.uncompressedSize > maxChunkSize {
			return fmt.Errorf("chunk %d frame header claims %d/%d bytes", len(r.index), entry.compressedSize, entry.uncompressedSize)
		}
		if entry.offset+int64(entry.compressedSize) > fileSize {
			return fmt.Errorf("chunk %d frame is truncated", len(r.index))
		}

		if _, err := r.file.Seek(int64(entry.compressedSize), io.SeekCurrent); err != nil {
			return fmt.Errorf("seeking past chunk %d: %w", len(r.index), err)
		}
		r.index = append(r.index, entry)
		offset = entry.offset + int64(entry.compressedSize)
	}
}

// Config returns the container's sensor configuration.
func (r *Reader) Config() Config {
	return r.config
}

// ChunkCount returns the number of chunk frames in the container. A
// container with only a config block has zero chunks.
func (r *Reader) ChunkCount() int {
	return len(r.index)
}

// Chunk reads, decompresses and decodes the chunk at index i.
func (r *Reader) Chunk(i int) (ChunkPayload, error) {
	if i < 0 || i >= len(r.index) {
		return nil, fmt.Errorf("chunk index %d out of range [0,%d)", i, len(r.index))
	}
	entry := r.index[i]

	compressed := make([]byte, entry.compressedSize)
	if _, err := r.file.ReadAt(compressed, entry.offset); err != nil {
		return nil, fmt.Errorf("reading chunk %d: %w", i, err)
	}

	raw, err := decompress(compressed, entry.tag, entry.uncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", i, err)
	}
	return unmarshalPayload(raw)
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
