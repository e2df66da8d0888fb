package protocol

import "time"

// TTSRequest asks the synthesizer to speak Text. Nil Volume keeps the node default.
type TTSRequest struct {
	SessionID string `json:"session_id"`
	Target    string `json:"target,omitempty"`
	Text      string `json:"text"`
	Volume    *int   `json:"volume,omitempty"`
	Crossfade *bool  `json:"crossfade,omitempty"`
	Spell     bool   `json:"spell,omitempty"`
}

// AudioChunk carries little-endian 16-bit mono PCM for one slice of an utterance.
type AudioChunk struct {
	SessionID  string `json:"session_id"`
	Target     string `json:"target,omitempty"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// TTSStatus closes out a request. It is published even when no audio was produced.
type TTSStatus struct {
	SessionID        string    `json:"session_id"`
	Target           string    `json:"target,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	Completed        bool      `json:"completed"`
	Error            string    `json:"error,omitempty"`
	Diphones         []string  `json:"diphones,omitempty"`
	UnresolvedTokens []string  `json:"unresolved_tokens,omitempty"`
	MissingUnits     []string  `json:"missing_units,omitempty"`
	DateErrors       []string  `json:"date_errors,omitempty"`
	Samples          int       `json:"samples"`
	Timestamp        time.Time `json:"timestamp"`
}

const (
	SubjectTTSRequest = "tts.request"
	SubjectTTSAudio   = "tts.audio"
	SubjectTTSDone    = "tts.done"

	SubjectNodeAnnounce        = "ctrl.node.announce"
	SubjectNodeHeartbeatPrefix = "ctrl.node.heartbeat"
)
