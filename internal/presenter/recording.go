package presenter

import (
	"bufio"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"touchview/internal/decoder"
)

// recordingMagic is the 8-byte .rec file signature: "TOUCHR" +
// version byte + reserved byte.
var recordingMagic = [8]byte{'T', 'O', 'U', 'C', 'H', 'R', 1, 0}

// recordingEntry is one routed event in a .rec file. Entries form a
// CBOR stream after the magic header.
type recordingEntry struct {
	EntityPath string   `cbor:"entity_path"`
	TimeS      *float64 `cbor:"time_s,omitempty"`
	Data       any      `cbor:"data"`
}

// Router accepts decoded events and performs visualization-backend
// writes keyed by entity path.
type Router interface {
	Log(event decoder.Event) error
	Close() error
}

// RecordingWriter is the concrete Router: it writes routed events to
// a .rec recording file. Camera frames honor ImageStride, audio
// events honor AudioDecimation, scalar fan-out honors ScalarStride.
type RecordingWriter struct {
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	opts    DownsampleOptions
	paths   EntityPathConfig

	// per-entity-path event counters driving the stride decisions
	counts map[string]int
}

// NewRecordingWriter creates a recording at path, truncating any
// existing file.
func NewRecordingWriter(path string, opts DownsampleOptions, paths EntityPathConfig) (*RecordingWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}
	buf := bufio.NewWriter(file)
	if _, err := buf.Write(recordingMagic[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing recording magic: %w", err)
	}
	return &RecordingWriter{
		file:    file,
		buf:     buf,
		encoder: cbor.NewEncoder(buf),
		opts:    opts.normalized(),
		paths:   paths,
		counts:  make(map[string]int),
	}, nil
}

func (w *RecordingWriter) write(path string, timeS *float64, data any) error {
	return w.encoder.Encode(recordingEntry{EntityPath: path, TimeS: timeS, Data: data})
}

// writeScalar writes a single scalar value, dropping nils.
func (w *RecordingWriter) writeScalar(path string, timeS *float64, value any) error {
	if value == nil {
		return nil
	}
	return w.write(path, timeS, value)
}

// admit counts an event against path and reports whether the stride
// keeps it.
func (w *RecordingWriter) admit(path string, stride int) bool {
	n := w.counts[path]
	w.counts[path] = n + 1
	return n%stride == 0
}

// Log routes one decoded event into the recording.
func (w *RecordingWriter) Log(event decoder.Event) error {
	base := w.paths.PathFor(event.SensorName, event.StreamName)

	switch event.StreamName {
	case "camera":
		if event.Data == nil || !w.admit(base, w.opts.ImageStride) {
			return nil
		}
		return w.write(base, event.Delta, event.Data)

	case "serial":
		fields, ok := event.Data.(map[string]any)
		if !ok {
			return nil
		}
		return w.logSerial(base, event.Delta, fields)

	case "audio":
		if event.Data == nil || !w.admit(base, w.opts.AudioDecimation) {
			return nil
		}
		return w.write(base, event.Delta, event.Data)

	default:
		if event.Data == nil || !w.admit(base, w.opts.ScalarStride) {
			return nil
		}
		return w.write(base, event.Delta, event.Data)
	}
}

// logSerial fans a structured serial payload out to scalar sub-paths.
func (w *RecordingWriter) logSerial(base string, timeS *float64, fields map[string]any) error {
	if pressure, ok := fields["pressure"].(map[string]any); ok {
		if err := w.writeScalar(base+"/pressure/pressure", timeS, pressure["pressure"]); err != nil {
			return err
		}
		if err := w.writeScalar(base+"/pressure/temperature", timeS, pressure["temperature"]); err != nil {
			return err
		}
	}

	if gas, ok := fields["gas"].(map[string]any); ok {
		for _, key := range []string{"temperature", "pressure", "humidity", "gas", "gas_index"} {
			if err := w.writeScalar(base+"/gas/"+key, timeS, gas[key]); err != nil {
				return err
			}
		}
	}

	if imu, ok := fields["imu"].(map[string]any); ok {
		if err := w.logIMU(base, timeS, imu); err != nil {
			return err
		}
	}

	return nil
}

func (w *RecordingWriter) logIMU(base string, timeS *float64, imu map[string]any) error {
	if raw, ok := imu["raw"].(map[string]any); ok {
		rawPrefix := base + "/imu/raw"
		if sensorID, ok := raw["sensor_"]; ok && sensorID != nil {
			rawPrefix = fmt.Sprintf("%s/sensor_%v", rawPrefix, sensorID)
		}
		for _, axis := range []string{"x", "y", "z"} {
			if err := w.writeScalar(rawPrefix+"/"+axis, timeS, raw[axis]); err != nil {
				return err
			}
		}
	}

	if euler, ok := imu["euler"].(map[string]any); ok {
		for _, key := range []string{"heading", "pitch", "roll"} {
			if err := w.writeScalar(base+"/imu/euler/"+key, timeS, euler[key]); err != nil {
				return err
			}
		}
	}

	if quat, ok := imu["quat"].(map[string]any); ok {
		for _, key := range []string{"x", "y", "z", "w", "accuracy"} {
			if err := w.writeScalar(base+"/imu/quat/"+key, timeS, quat[key]); err != nil {
				return err
			}
		}
	}

	return nil
}

// Close flushes and closes the recording file.
func (w *RecordingWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flushing recording: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing recording: %w", err)
	}
	return nil
}
