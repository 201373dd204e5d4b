package container

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// Writer appends chunk frames to a .touch container. The config block
// is declared once at creation; chunks are appended one frame at a
// time and are immutable once written.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
}

// Create writes a new container at path with the given sensor
// configuration and returns a Writer positioned for the first chunk.
func Create(path string, cfg Config) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	buf := bufio.NewWriter(file)

	if _, err := buf.Write(magic[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing container magic: %w", err)
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("encoding container config: %w", err)
	}
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(configJSON)))
	if _, err := buf.Write(lenBytes[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing config length: %w", err)
	}
	if _, err := buf.Write(configJSON); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing config block: %w", err)
	}

	return &Writer{file: file, buf: buf}, nil
}

// OpenAppend reopens an existing container for appending chunks. The
// header is validated; the write position is the end of the file.
func OpenAppend(path string) (*Writer, error) {
	reader, err := Open(path)
	if err != nil {
		return nil, err
	}
	reader.Close()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening container for append: %w", err)
	}
	return &Writer{file: file, buf: bufio.NewWriter(file)}, nil
}

// AppendChunk encodes payload as CBOR, compresses it with the
// requested algorithm and appends one chunk frame. Incompressible
// payloads are stored uncompressed regardless of tag.
func (w *Writer) AppendChunk(payload ChunkPayload, tag CompressionTag) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	if len(raw) > maxChunkSize {
		return fmt.Errorf("chunk payload is %d bytes, limit is %d", len(raw), maxChunkSize)
	}

	compressed, actualTag, err := compress(raw, tag)
	if err != nil {
		return err
	}

	var header [frameHeaderSize]byte
	header[0] = byte(actualTag)
	binary.LittleEndian.PutUint32(header[1:5], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[5:9], uint32(len(raw)))

	if _, err := w.buf.Write(header[:]); err != nil {
		return fmt.Errorf("writing chunk frame header: %w", err)
	}
	if _, err := w.buf.Write(compressed); err != nil {
		return fmt.Errorf("writing chunk frame data: %w", err)
	}
	return nil
}

// Close flushes buffered frames and closes the file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flushing container: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing container: %w", err)
	}
	return nil
}
