package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Profile   string    `json:"profile,omitempty"`
	// Extension names the extension that provided the command, if any.
	Extension string `json:"extension,omitempty"`
}

// ExtensionInfo is one row of `extension list`.
type ExtensionInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	MinCLIVersion string `json:"min_cli_version,omitempty"`
	Summary       string `json:"summary,omitempty"`
	Path          string `json:"path"`
	Loaded        bool   `json:"loaded"`
	Error         string `json:"error,omitempty"`
}

// ConfiguredDefault is one entry of `configure --list-defaults`.
type ConfiguredDefault struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
