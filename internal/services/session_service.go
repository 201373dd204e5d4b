package services

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"touchview/internal/cache"
	"touchview/internal/config"
	"touchview/internal/logging"
	"touchview/internal/models"
)

// BlueprintResolver supplies the presentation-layout artifact
// attached to viewer invocations. A nil resolver (or ok=false) means
// viewers start without a blueprint.
type BlueprintResolver interface {
	Resolve() (path string, ok bool)
}

// SessionRecord tracks one supervised viewer process. The session id
// is immutable; the process is replaced on reload. All field access
// after publication goes through the service's lock.
type SessionRecord struct {
	SessionID       string
	process         *viewerProcess
	ViewerArgs      []string
	CreatedAt       time.Time
	LoadedRecording string
	LastLoadedAt    *time.Time
}

// SessionService supervises external viewer processes and resolves
// requested containers to recordings through the conversion cache.
// The session table is guarded by one mutex; spawning, terminating,
// converting and port probing all happen outside the lock, which is
// reacquired only to publish the result.
type SessionService struct {
	mu       sync.Mutex
	sessions map[string]*SessionRecord

	cfg        *config.Config
	cache      *cache.ConversionCache
	converter  cache.Converter
	blueprints BlueprintResolver
	metrics    *Metrics
}

// NewSessionService creates a session service. blueprints and metrics
// may be nil.
func NewSessionService(cfg *config.Config, convCache *cache.ConversionCache, converter cache.Converter, blueprints BlueprintResolver, metrics *Metrics) *SessionService {
	return &SessionService{
		sessions:   make(map[string]*SessionRecord),
		cfg:        cfg,
		cache:      convCache,
		converter:  converter,
		blueprints: blueprints,
		metrics:    metrics,
	}
}

// resolveRecording turns a request's target into a recording path.
// An explicit recording path wins; otherwise a container path is
// converted, through the cache or directly next to the container.
// Neither supplied returns "", nil (the viewer starts empty).
func (s *SessionService) resolveRecording(recordingPath, containerPath string, useCache bool) (string, error) {
	if recordingPath != "" {
		resolved, err := filepath.Abs(recordingPath)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(resolved); err != nil {
			return "", &NotFoundError{Detail: fmt.Sprintf("Recording not found: %s", resolved)}
		}
		return resolved, nil
	}

	if containerPath != "" {
		resolved, err := filepath.Abs(containerPath)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(resolved); err != nil {
			return "", &NotFoundError{Detail: fmt.Sprintf("Touch container not found: %s", resolved)}
		}

		if useCache {
			dest, err := s.cache.Resolve(resolved, s.converter)
			if err != nil {
				return "", err
			}
			logging.WithConversion(resolved, dest).Debug("resolved container through cache")
			return dest, nil
		}

		dest := strings.TrimSuffix(resolved, filepath.Ext(resolved)) + ".rec"
		if err := s.converter.Convert(resolved, dest); err != nil {
			return "", err
		}
		logging.WithConversion(resolved, dest).Debug("converted container")
		return dest, nil
	}

	return "", nil
}

// viewerArgPresent reports whether flag appears in args, either bare
// or in --flag=value form.
func viewerArgPresent(args []string, flag string) bool {
	prefix := flag + "="
	for _, arg := range args {
		if arg == flag || strings.HasPrefix(arg, prefix) {
			return true
		}
	}
	return false
}

// allocatePort asks the kernel for a free local TCP port.
func allocatePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// normalizeViewerArgs injects a free local port unless the caller
// already pinned one or asked the viewer to connect out. Keeps
// concurrently running sessions from colliding on the default port.
func normalizeViewerArgs(args []string) []string {
	normalized := slices.Clone(args)
	if viewerArgPresent(normalized, "--port") || viewerArgPresent(normalized, "--connect") {
		return normalized
	}
	port, err := allocatePort()
	if err != nil {
		log.Printf("⚠️  [SESSION] Could not allocate a viewer port: %v", err)
		return normalized
	}
	return append(normalized, "--port", strconv.Itoa(port))
}

// spawnViewer starts one viewer process on the given recording and
// holds it to the startup grace window.
func (s *SessionService) spawnViewer(recording string, viewerArgs []string) (*viewerProcess, error) {
	command := slices.Clone(s.cfg.ViewerCommand)
	command = append(command, viewerArgs...)
	if s.blueprints != nil {
		if blueprintPath, ok := s.blueprints.Resolve(); ok {
			command = append(command, blueprintPath)
		}
	}
	if recording != "" {
		command = append(command, recording)
	}

	proc, err := startProcess(command)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			s.spawnOutcome("not_found")
			return nil, &NotFoundError{Detail: fmt.Sprintf("Viewer command not found: %s", command[0])}
		}
		s.spawnOutcome("startup_failure")
		return nil, err
	}

	time.Sleep(spawnGracePeriod)
	if !proc.Alive() {
		s.spawnOutcome("startup_failure")
		return nil, &StartupError{Command: strings.Join(command, " ")}
	}

	s.spawnOutcome("ok")
	return proc, nil
}

func (s *SessionService) spawnOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.ViewerSpawns.WithLabelValues(outcome).Inc()
	}
}

// infoLocked builds the public view of a record. Callers hold the
// lock, except during Create before the record is published.
func infoLocked(record *SessionRecord) models.SessionInfo {
	status := "exited"
	if record.process.Alive() {
		status = "running"
	}
	return models.SessionInfo{
		SessionID:       record.SessionID,
		PID:             record.process.PID(),
		Status:          status,
		CreatedAt:       record.CreatedAt,
		LoadedRecording: record.LoadedRecording,
		LastLoadedAt:    record.LastLoadedAt,
	}
}

// Create resolves the requested target, spawns a viewer and registers
// a new session.
func (s *SessionService) Create(req models.CreateSessionRequest) (models.SessionInfo, error) {
	recording, err := s.resolveRecording(req.RecordingPath, req.ContainerPath, req.UseCacheOrDefault())
	if err != nil {
		return models.SessionInfo{}, err
	}

	viewerArgs := normalizeViewerArgs(append(slices.Clone(s.cfg.ViewerArgs), req.ViewerArgs...))
	proc, err := s.spawnViewer(recording, viewerArgs)
	if err != nil {
		return models.SessionInfo{}, err
	}

	now := time.Now()
	record := &SessionRecord{
		SessionID:       uuid.NewString(),
		process:         proc,
		ViewerArgs:      viewerArgs,
		CreatedAt:       now,
		LoadedRecording: recording,
	}
	if recording != "" {
		record.LastLoadedAt = &now
	}

	s.mu.Lock()
	s.sessions[record.SessionID] = record
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
	}
	logging.WithSession(record.SessionID).Info("viewer session created", "pid", proc.PID())
	return infoLocked(record), nil
}

// Load resolves a new target and replaces the session's viewer
// process. A session deleted while the replacement was spawning
// leaves no orphan: the fresh process is terminated and not-found is
// returned.
func (s *SessionService) Load(sessionID string, req models.LoadSessionRequest) (models.SessionInfo, error) {
	s.mu.Lock()
	record, ok := s.sessions[sessionID]
	var currentProc *viewerProcess
	var currentArgs []string
	if ok {
		currentProc = record.process
		currentArgs = slices.Clone(record.ViewerArgs)
	}
	s.mu.Unlock()

	if !ok {
		return models.SessionInfo{}, &NotFoundError{Detail: fmt.Sprintf("Session not found: %s", sessionID)}
	}

	recording, err := s.resolveRecording(req.RecordingPath, req.ContainerPath, req.UseCacheOrDefault())
	if err != nil {
		return models.SessionInfo{}, err
	}
	if recording == "" {
		return models.SessionInfo{}, &ValidationError{Detail: "Provide recording_path or container_path"}
	}

	if currentProc.Alive() {
		if !req.ReplaceViewerOrDefault() {
			return models.SessionInfo{}, &ConflictError{Detail: "Session already running; set replace_viewer to true"}
		}
		currentProc.Terminate()
	}

	proc, err := s.spawnViewer(recording, normalizeViewerArgs(currentArgs))
	if err != nil {
		return models.SessionInfo{}, err
	}

	now := time.Now()
	s.mu.Lock()
	if _, stillThere := s.sessions[sessionID]; !stillThere {
		s.mu.Unlock()
		proc.Terminate()
		return models.SessionInfo{}, &NotFoundError{Detail: fmt.Sprintf("Session not found: %s", sessionID)}
	}
	record.process = proc
	record.LoadedRecording = recording
	record.LastLoadedAt = &now
	info := infoLocked(record)
	s.mu.Unlock()

	logging.WithSession(sessionID).Info("recording loaded", "recording", recording, "pid", proc.PID())
	return info, nil
}

// State returns the session's current liveness plus the playback
// stub. Pure read, no side effects.
func (s *SessionService) State(sessionID string) (models.SessionState, error) {
	s.mu.Lock()
	record, ok := s.sessions[sessionID]
	var info models.SessionInfo
	if ok {
		info = infoLocked(record)
	}
	s.mu.Unlock()

	if !ok {
		return models.SessionState{}, &NotFoundError{Detail: fmt.Sprintf("Session not found: %s", sessionID)}
	}
	return models.SessionState{
		Session:  info,
		Playback: models.PlaybackState{State: "unknown"},
	}, nil
}

// List returns a snapshot of all tracked sessions.
func (s *SessionService) List() []models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]models.SessionInfo, 0, len(s.sessions))
	for _, record := range s.sessions {
		infos = append(infos, infoLocked(record))
	}
	slices.SortFunc(infos, func(a, b models.SessionInfo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return infos
}

// Count returns the number of tracked sessions.
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Delete removes the session record, then terminates its process
// with the graceful-then-forceful policy.
func (s *SessionService) Delete(sessionID string) (models.DeleteSessionResponse, error) {
	s.mu.Lock()
	record, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return models.DeleteSessionResponse{}, &NotFoundError{Detail: fmt.Sprintf("Session not found: %s", sessionID)}
	}

	record.process.Terminate()
	if s.metrics != nil {
		s.metrics.SessionsActive.Dec()
	}
	logging.WithSession(sessionID).Info("viewer session closed")
	return models.DeleteSessionResponse{SessionID: sessionID, Status: "closed"}, nil
}

// Shutdown drains the session table and terminates every viewer,
// regardless of individual session state.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	records := make([]*SessionRecord, 0, len(s.sessions))
	for _, record := range s.sessions {
		records = append(records, record)
	}
	s.sessions = make(map[string]*SessionRecord)
	s.mu.Unlock()

	if len(records) == 0 {
		return
	}
	log.Printf("🛑 [SESSION] Shutting down %d session(s)...", len(records))
	for _, record := range records {
		record.process.Terminate()
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(0)
	}
}
