package presenter

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"touchview/internal/container"
)

// buildConverterFixture writes a small two-sensor container at path.
func buildConverterFixture(t *testing.T, path string) {
	t.Helper()

	blob := func(fields map[string]any) []byte {
		data, err := cbor.Marshal(fields)
		if err != nil {
			t.Fatalf("encoding fixture blob: %v", err)
		}
		return data
	}

	cfg := container.Config{Sensors: []container.SensorConfig{
		{SensorName: "alpha", SensorType: "digit360"},
		{SensorName: "beta", SensorType: "gelsight_mini"},
	}}
	w, err := container.Create(path, cfg)
	if err != nil {
		t.Fatalf("creating fixture container: %v", err)
	}
	chunk := container.ChunkPayload{
		"alpha": {
			"camera": {
				blob(map[string]any{"delta": 0.0, "data": []byte{1, 2, 3, 4}}),
			},
			"serial": {
				blob(map[string]any{"delta": 0.1, "data": map[string]any{
					"pressure": map[string]any{"pressure": 100.2, "temperature": 21.0},
				}}),
			},
		},
		"beta": {
			"audio": {
				blob(map[string]any{"delta": 0.2, "data": []any{1.0, -1.0, 0.5}}),
			},
		},
	}
	if err := w.AppendChunk(chunk, container.CompressionLZ4); err != nil {
		t.Fatalf("appending fixture chunk: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing fixture container: %v", err)
	}
}
