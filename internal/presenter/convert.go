package presenter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"touchview/internal/decoder"
)

// RecordingConverter is the single conversion strategy: decode a
// container and route every event into a fresh recording. It
// satisfies the cache.Converter interface.
type RecordingConverter struct {
	decoder *decoder.Decoder
	opts    DownsampleOptions
	paths   EntityPathConfig
	logger  *logrus.Logger

	// OnStats, when set, receives the decode statistics of every
	// successful conversion.
	OnStats func(decoder.Stats)
}

// NewRecordingConverter creates a converter using codecs from the
// given registry.
func NewRecordingConverter(registry *decoder.Registry, opts DownsampleOptions) *RecordingConverter {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &RecordingConverter{
		decoder: decoder.New(registry),
		opts:    opts,
		paths:   DefaultEntityPaths(),
		logger:  logger,
	}
}

// Convert decodes the container at containerPath and writes the
// routed events to destPath. The destination holds a nonzero-size
// recording on success; on failure no usable file is left behind.
func (c *RecordingConverter) Convert(containerPath, destPath string) error {
	if dir := filepath.Dir(destPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating recording directory: %w", err)
		}
	}

	writer, err := NewRecordingWriter(destPath, c.opts, c.paths)
	if err != nil {
		return err
	}

	start := time.Now()
	stats, decodeErr := c.decoder.Decode(containerPath, writer.Log)
	closeErr := writer.Close()
	if decodeErr != nil {
		os.Remove(destPath)
		return decodeErr
	}
	if closeErr != nil {
		os.Remove(destPath)
		return closeErr
	}

	if c.OnStats != nil {
		c.OnStats(stats)
	}
	c.logger.WithFields(logrus.Fields{
		"container": containerPath,
		"recording": destPath,
		"attempted": stats.Attempted,
		"skipped":   stats.Skipped,
		"yielded":   stats.Yielded,
		"elapsed":   time.Since(start).String(),
	}).Info("conversion complete")
	return nil
}
