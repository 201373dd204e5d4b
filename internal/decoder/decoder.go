package decoder

import (
	"fmt"
	"sort"

	"touchview/internal/container"
)

// Event is one decoded telemetry sample, yielded in chunk-then-
// sensor-then-stream-then-blob order. Delta is a relative timestamp
// for timeline placement and may be absent.
type Event struct {
	SensorName string
	StreamName string
	Delta      *float64
	Data       any
}

// Stats accounts for every blob touched during one decode pass.
// Attempted == Skipped + Yielded.
type Stats struct {
	Attempted int
	Skipped   int
	Yielded   int
}

// Decoder turns containers into ordered event sequences using codecs
// from its registry.
type Decoder struct {
	registry *Registry
}

// New creates a decoder backed by the given registry. Pass
// DefaultRegistry() for the process-wide codec set.
func New(registry *Registry) *Decoder {
	return &Decoder{registry: registry}
}

// buildCodecs instantiates one codec per declared sensor. Sensors
// with missing fields or an unregistered type are excluded; their
// events never surface.
func (d *Decoder) buildCodecs(cfg container.Config) map[string]Codec {
	codecs := make(map[string]Codec)
	for _, sensor := range cfg.Sensors {
		if sensor.SensorName == "" || sensor.SensorType == "" {
			continue
		}
		factory, ok := d.registry.Lookup(sensor.SensorType)
		if !ok {
			continue
		}
		codecs[sensor.SensorName] = factory()
	}
	return codecs
}

// Decode streams every event in the container at path through emit,
// single pass, in chunk order. Each call re-opens the container from
// chunk zero. Per-blob deserialization failures and non-record
// results are skipped and counted in Stats; container-level failures
// and emit errors abort the pass.
func (d *Decoder) Decode(path string, emit func(Event) error) (Stats, error) {
	var stats Stats

	reader, err := container.Open(path)
	if err != nil {
		return stats, err
	}
	defer reader.Close()

	codecs := d.buildCodecs(reader.Config())

	for i := 0; i < reader.ChunkCount(); i++ {
		payload, err := reader.Chunk(i)
		if err != nil {
			return stats, fmt.Errorf("decoding chunk %d: %w", i, err)
		}

		// Map iteration order is randomized; sort so repeated passes
		// over the same container yield identical sequences.
		for _, sensorName := range sortedKeys(payload) {
			codec, ok := codecs[sensorName]
			if !ok {
				continue
			}
			streams := payload[sensorName]

			for _, streamName := range sortedKeys(streams) {
				for _, blob := range streams[streamName] {
					stats.Attempted++

					decoded, err := codec.Deserialize(blob)
					if err != nil {
						stats.Skipped++
						continue
					}
					record, ok := decoded.(HasData)
					if !ok {
						stats.Skipped++
						continue
					}

					event := Event{
						SensorName: sensorName,
						StreamName: streamName,
						Data:       record.Payload(),
					}
					if timed, ok := decoded.(HasDelta); ok {
						if delta, present := timed.DeltaSeconds(); present {
							event.Delta = &delta
						}
					}

					if err := emit(event); err != nil {
						return stats, err
					}
					stats.Yielded++
				}
			}
		}
	}

	return stats, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
