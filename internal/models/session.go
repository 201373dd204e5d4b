// Package models holds the request and response types of the session
// control API.
package models

import "time"

// CreateSessionRequest starts a new viewer session. Either a
// ready-made recording or a container to convert may be supplied;
// both absent starts an empty viewer.
type CreateSessionRequest struct {
	RecordingPath string   `json:"recording_path,omitempty"`
	ContainerPath string   `json:"container_path,omitempty"`
	ViewerArgs    []string `json:"viewer_args,omitempty"`

	// UseCache routes container conversion through the content-
	// addressed cache. Defaults to true when omitted.
	UseCache *bool `json:"use_cache,omitempty"`
}

// LoadSessionRequest loads a new recording into an existing session.
type LoadSessionRequest struct {
	RecordingPath string `json:"recording_path,omitempty"`
	ContainerPath string `json:"container_path,omitempty"`
	UseCache      *bool  `json:"use_cache,omitempty"`

	// ReplaceViewer terminates a still-running viewer before loading.
	// Defaults to true when omitted; false turns a running session
	// into a conflict.
	ReplaceViewer *bool `json:"replace_viewer,omitempty"`
}

// UseCacheOrDefault returns the cache flag with its default applied.
func (r CreateSessionRequest) UseCacheOrDefault() bool {
	return r.UseCache == nil || *r.UseCache
}

// UseCacheOrDefault returns the cache flag with its default applied.
func (r LoadSessionRequest) UseCacheOrDefault() bool {
	return r.UseCache == nil || *r.UseCache
}

// ReplaceViewerOrDefault returns the replace flag with its default
// applied.
func (r LoadSessionRequest) ReplaceViewerOrDefault() bool {
	return r.ReplaceViewer == nil || *r.ReplaceViewer
}

// SessionInfo is the public view of one viewer session.
type SessionInfo struct {
	SessionID       string     `json:"session_id"`
	PID             int        `json:"pid"`
	Status          string     `json:"status"` // "running" or "exited"
	CreatedAt       time.Time  `json:"created_at"`
	LoadedRecording string     `json:"loaded_recording,omitempty"`
	LastLoadedAt    *time.Time `json:"last_loaded_at,omitempty"`
}

// PlaybackState is a stub: playback introspection into the external
// viewer process is not implemented, so the state is always
// "unknown".
type PlaybackState struct {
	State string   `json:"state"`
	TimeS *float64 `json:"time_s,omitempty"`
}

// SessionState couples session info with the playback stub.
type SessionState struct {
	Session  SessionInfo   `json:"session"`
	Playback PlaybackState `json:"playback"`
}

// DeleteSessionResponse acknowledges session termination.
type DeleteSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}
