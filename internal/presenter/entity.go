// Package presenter routes decoded events into viewer-consumable
// recordings and maintains the viewer layout blueprint.
package presenter

import "fmt"

// DownsampleOptions controls downsampling for high-frequency streams
// during conversion. All strides default to 1 (keep everything).
type DownsampleOptions struct {
	ImageStride     int
	AudioDecimation int
	ScalarStride    int
}

// DefaultDownsampleOptions returns the no-downsampling defaults.
func DefaultDownsampleOptions() DownsampleOptions {
	return DownsampleOptions{ImageStride: 1, AudioDecimation: 1, ScalarStride: 1}
}

func (o DownsampleOptions) normalized() DownsampleOptions {
	if o.ImageStride < 1 {
		o.ImageStride = 1
	}
	if o.AudioDecimation < 1 {
		o.AudioDecimation = 1
	}
	if o.ScalarStride < 1 {
		o.ScalarStride = 1
	}
	return o
}

// EntityPathConfig defines how sensor streams map to recording entity
// paths. Entity paths are derived deterministically from sensor and
// stream names.
type EntityPathConfig struct {
	Root    string
	Streams map[string]string
}

// DefaultEntityPaths returns the canonical stream-to-path mapping.
func DefaultEntityPaths() EntityPathConfig {
	return EntityPathConfig{
		Root: "sensors",
		Streams: map[string]string{
			"camera":    "camera",
			"serial":    "serial",
			"pressure":  "pressure",
			"imu":       "imu",
			"imu_euler": "imu/euler",
			"imu_quat":  "imu/quaternion",
			"audio":     "audio",
		},
	}
}

// PathFor returns the canonical entity path for a sensor stream.
// Streams without an explicit mapping use their own name.
func (c EntityPathConfig) PathFor(sensorName, streamName string) string {
	streamPath, ok := c.Streams[streamName]
	if !ok {
		streamPath = streamName
	}
	return fmt.Sprintf("%s/%s/%s", c.Root, sensorName, streamPath)
}
