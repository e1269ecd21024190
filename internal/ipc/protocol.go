package ipc

import "encoding/json"

// Request is one newline-delimited JSON command sent to the running session.
type Request struct {
	Command string `json:"command"`

	// Path names the file to analyze for the scan command.
	Path string `json:"path,omitempty"`

	// Message carries typed chat text for the say command.
	Message string `json:"message,omitempty"`
}

// Response is the single JSON reply for a request.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// Detail carries command-specific payloads, such as scan records or
	// history listings.
	Detail json.RawMessage `json:"detail,omitempty"`
}
