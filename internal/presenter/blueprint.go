package presenter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultTimeline is the timeline name viewers place events on.
const DefaultTimeline = "ot_time"

// View is one pane of the viewer layout.
type View struct {
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type" yaml:"type"`
	Entities []string `json:"entities" yaml:"entities"`
}

// ViewerLayout defines how the viewer arranges sensor streams.
type ViewerLayout struct {
	Timeline string `json:"timeline" yaml:"timeline"`
	Views    []View `json:"views" yaml:"views"`
}

// DefaultLayout returns the built-in three-pane layout: camera
// images, scalar time series and audio tensors across all sensors.
func DefaultLayout() ViewerLayout {
	return ViewerLayout{
		Timeline: DefaultTimeline,
		Views: []View{
			{Name: "Cameras", Type: "image", Entities: []string{"sensors/*/camera"}},
			{Name: "Scalars", Type: "time_series", Entities: []string{
				"sensors/*/serial",
				"sensors/*/pressure",
				"sensors/*/imu",
				"sensors/*/imu/*",
			}},
			{Name: "Audio", Type: "tensor", Entities: []string{"sensors/*/audio"}},
		},
	}
}

// LoadLayoutFile parses a layout override file. YAML is a superset of
// JSON, so both encodings are accepted.
func LoadLayoutFile(path string) (ViewerLayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ViewerLayout{}, fmt.Errorf("reading layout file: %w", err)
	}
	var layout ViewerLayout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return ViewerLayout{}, fmt.Errorf("parsing layout file %s: %w", path, err)
	}
	if layout.Timeline == "" {
		layout.Timeline = DefaultTimeline
	}
	return layout, nil
}

// Fingerprint returns the first 12 hex characters of the layout's
// canonical-JSON SHA-256, used to name blueprint files.
func (l ViewerLayout) Fingerprint() string {
	canonical, err := json.Marshal(l)
	if err != nil {
		// ViewerLayout contains only marshalable types.
		panic("presenter: layout fingerprint: " + err.Error())
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:])[:12]
}

// normalizeEntity anchors an entity expression at the root.
func normalizeEntity(expr string) string {
	if strings.HasPrefix(expr, "/") || strings.HasPrefix(expr, "$") {
		return expr
	}
	return "/" + expr
}

// blueprintDoc is the on-disk .rbl document handed to viewers.
type blueprintDoc struct {
	ApplicationID string `json:"application_id"`
	Timeline      string `json:"timeline"`
	Views         []View `json:"views"`
}

// BlueprintStore builds and caches presentation-layout blueprint
// files. The active layout is swappable at runtime (layout file
// watcher); blueprints are content-addressed by layout fingerprint,
// so a swap never invalidates files older sessions still reference.
type BlueprintStore struct {
	mu       sync.Mutex
	cacheDir string
	appID    string
	disabled bool
	layout   ViewerLayout
}

// NewBlueprintStore creates a store writing blueprints into cacheDir.
func NewBlueprintStore(cacheDir, appID string, disabled bool) *BlueprintStore {
	return &BlueprintStore{
		cacheDir: cacheDir,
		appID:    appID,
		disabled: disabled,
		layout:   DefaultLayout(),
	}
}

// SetLayout replaces the active layout.
func (s *BlueprintStore) SetLayout(layout ViewerLayout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = layout
}

// Layout returns the active layout.
func (s *BlueprintStore) Layout() ViewerLayout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Resolve returns the blueprint file for the active layout, writing
// it if absent. Returns ok=false when blueprint generation is
// disabled or fails; sessions proceed without a blueprint in that
// case.
func (s *BlueprintStore) Resolve() (string, bool) {
	if s.disabled {
		return "", false
	}

	s.mu.Lock()
	layout := s.layout
	s.mu.Unlock()

	path, err := s.save(layout)
	if err != nil {
		log.Printf("⚠️  [BLUEPRINT] Failed to build viewer blueprint: %v", err)
		return "", false
	}
	return path, true
}

func (s *BlueprintStore) save(layout ViewerLayout) (string, error) {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	path := filepath.Join(s.cacheDir, fmt.Sprintf("viewer-%s.rbl", layout.Fingerprint()))
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	doc := blueprintDoc{
		ApplicationID: s.appID,
		Timeline:      layout.Timeline,
	}
	for _, view := range layout.Views {
		normalized := view
		normalized.Entities = make([]string, len(view.Entities))
		for i, entity := range view.Entities {
			normalized.Entities[i] = normalizeEntity(entity)
		}
		doc.Views = append(doc.Views, normalized)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding blueprint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing blueprint: %w", err)
	}
	return path, nil
}
