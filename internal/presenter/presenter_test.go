package presenter

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"touchview/internal/decoder"
)

func delta(v float64) *float64 { return &v }

// readRecording decodes every entry of a .rec file.
func readRecording(t *testing.T, path string) []recordingEntry {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening recording: %v", err)
	}
	defer file.Close()

	var magic [8]byte
	if _, err := io.ReadFull(file, magic[:]); err != nil {
		t.Fatalf("reading recording magic: %v", err)
	}
	if !bytes.Equal(magic[:], recordingMagic[:]) {
		t.Fatalf("unexpected recording magic %v", magic)
	}

	var entries []recordingEntry
	dec := cbor.NewDecoder(file)
	for {
		var entry recordingEntry
		if err := dec.Decode(&entry); err == io.EOF {
			return entries
		} else if err != nil {
			t.Fatalf("decoding recording entry: %v", err)
		}
		entries = append(entries, entry)
	}
}

// TestPathFor verifies the stream-to-entity-path mapping, including
// the aliased IMU streams and the identity fallback.
func TestPathFor(t *testing.T) {
	paths := DefaultEntityPaths()
	cases := map[[2]string]string{
		{"alpha", "camera"}:    "sensors/alpha/camera",
		{"alpha", "imu_euler"}: "sensors/alpha/imu/euler",
		{"alpha", "imu_quat"}:  "sensors/alpha/imu/quaternion",
		{"beta", "unknown"}:    "sensors/beta/unknown",
	}
	for input, want := range cases {
		if got := paths.PathFor(input[0], input[1]); got != want {
			t.Errorf("PathFor(%q, %q) = %q, want %q", input[0], input[1], got, want)
		}
	}
}

// TestRecordingWriterCameraStride verifies image downsampling keeps
// every Nth frame per entity path.
func TestRecordingWriterCameraStride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.rec")
	opts := DefaultDownsampleOptions()
	opts.ImageStride = 3
	w, err := NewRecordingWriter(path, opts, DefaultEntityPaths())
	if err != nil {
		t.Fatalf("NewRecordingWriter failed: %v", err)
	}

	for i := 0; i < 7; i++ {
		event := decoder.Event{
			SensorName: "alpha",
			StreamName: "camera",
			Delta:      delta(float64(i)),
			Data:       []byte{byte(i)},
		}
		if err := w.Log(event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readRecording(t, path)
	if len(entries) != 3 { // frames 0, 3, 6
		t.Fatalf("expected 3 entries with stride 3, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.EntityPath != "sensors/alpha/camera" {
			t.Errorf("unexpected entity path %q", entry.EntityPath)
		}
	}
	if *entries[1].TimeS != 3 {
		t.Errorf("second kept frame should be t=3, got %v", *entries[1].TimeS)
	}
}

// TestRecordingWriterSerialFanOut verifies structured serial payloads
// fan out to pressure/gas/imu sub-paths.
func TestRecordingWriterSerialFanOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.rec")
	w, err := NewRecordingWriter(path, DefaultDownsampleOptions(), DefaultEntityPaths())
	if err != nil {
		t.Fatalf("NewRecordingWriter failed: %v", err)
	}

	event := decoder.Event{
		SensorName: "alpha",
		StreamName: "serial",
		Delta:      delta(1.5),
		Data: map[string]any{
			"pressure": map[string]any{"pressure": 101.3, "temperature": 22.5},
			"imu": map[string]any{
				"euler": map[string]any{"heading": 10.0, "pitch": 2.0, "roll": 1.0},
			},
		},
	}
	if err := w.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readRecording(t, path)
	got := make(map[string]bool)
	for _, entry := range entries {
		got[entry.EntityPath] = true
		if entry.TimeS == nil || *entry.TimeS != 1.5 {
			t.Errorf("entry %s missing timestamp", entry.EntityPath)
		}
	}
	for _, want := range []string{
		"sensors/alpha/serial/pressure/pressure",
		"sensors/alpha/serial/pressure/temperature",
		"sensors/alpha/serial/imu/euler/heading",
		"sensors/alpha/serial/imu/euler/pitch",
		"sensors/alpha/serial/imu/euler/roll",
	} {
		if !got[want] {
			t.Errorf("missing fan-out path %s (have %v)", want, got)
		}
	}
}

// TestRecordingWriterSkipsNonStructuredSerial verifies non-map serial
// payloads route nothing.
func TestRecordingWriterSkipsNonStructuredSerial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.rec")
	w, err := NewRecordingWriter(path, DefaultDownsampleOptions(), DefaultEntityPaths())
	if err != nil {
		t.Fatalf("NewRecordingWriter failed: %v", err)
	}
	if err := w.Log(decoder.Event{SensorName: "alpha", StreamName: "serial", Data: "raw text"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if entries := readRecording(t, path); len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

// TestLayoutFingerprintStable verifies equal layouts fingerprint
// identically and different layouts differently.
func TestLayoutFingerprintStable(t *testing.T) {
	a := DefaultLayout()
	b := DefaultLayout()
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical layouts must share a fingerprint")
	}
	if len(a.Fingerprint()) != 12 {
		t.Errorf("fingerprint length = %d, want 12", len(a.Fingerprint()))
	}

	b.Views = b.Views[:1]
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different layouts must not share a fingerprint")
	}
}

// TestBlueprintStoreResolve verifies blueprint generation, reuse and
// the disable flag.
func TestBlueprintStoreResolve(t *testing.T) {
	dir := t.TempDir()
	store := NewBlueprintStore(dir, "touchview-test", false)

	path, ok := store.Resolve()
	if !ok {
		t.Fatal("Resolve should produce a blueprint")
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("blueprint file missing or empty: %v", err)
	}

	again, ok := store.Resolve()
	if !ok || again != path {
		t.Error("repeated Resolve should reuse the same blueprint file")
	}

	disabled := NewBlueprintStore(dir, "touchview-test", true)
	if _, ok := disabled.Resolve(); ok {
		t.Error("disabled store must not produce blueprints")
	}
}

// TestLoadLayoutFile verifies YAML and JSON layout overrides parse to
// the same structure.
func TestLoadLayoutFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "layout.yaml")
	yamlDoc := "timeline: custom_time\nviews:\n  - name: Cameras\n    type: image\n    entities: [\"sensors/*/camera\"]\n"
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("writing yaml layout: %v", err)
	}

	jsonPath := filepath.Join(dir, "layout.json")
	jsonDoc := `{"timeline":"custom_time","views":[{"name":"Cameras","type":"image","entities":["sensors/*/camera"]}]}`
	if err := os.WriteFile(jsonPath, []byte(jsonDoc), 0o644); err != nil {
		t.Fatalf("writing json layout: %v", err)
	}

	fromYAML, err := LoadLayoutFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadLayoutFile(yaml) failed: %v", err)
	}
	fromJSON, err := LoadLayoutFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadLayoutFile(json) failed: %v", err)
	}
	if !reflect.DeepEqual(fromYAML, fromJSON) {
		t.Errorf("yaml and json layouts differ: %+v vs %+v", fromYAML, fromJSON)
	}
	if fromYAML.Timeline != "custom_time" {
		t.Errorf("timeline = %q", fromYAML.Timeline)
	}
}

// TestConverterProducesRecording verifies the converter glue end to
// end against a real container.
func TestConverterProducesRecording(t *testing.T) {
	// Container creation lives in the decoder tests; here a direct
	// writer is enough.
	dir := t.TempDir()
	containerPath := filepath.Join(dir, "input.touch")
	buildConverterFixture(t, containerPath)

	dest := filepath.Join(dir, "nested", "out.rec")
	conv := NewRecordingConverter(decoder.DefaultRegistry(), DefaultDownsampleOptions())
	if err := conv.Convert(containerPath, dest); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	entries := readRecording(t, dest)
	if len(entries) == 0 {
		t.Fatal("converted recording holds no entries")
	}
}
