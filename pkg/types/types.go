// Package types defines the public domain types shared across the returns pipeline.
package types

import "time"

// DefaultHashSecretEnv is the environment variable read for the identifier hashing secret.
const DefaultHashSecretEnv = "LIIA_HASH_SECRET"

// FileMetadata is the sidecar record written next to every file taken in at intake.
type FileMetadata struct {
	UUID         string    `yaml:"uuid" json:"uuid"`
	SHA256       string    `yaml:"sha256" json:"sha256"`
	OriginalPath string    `yaml:"original_path" json:"originalPath"`
	Name         string    `yaml:"name" json:"name"`
	Size         int64     `yaml:"size" json:"size"`
	ModifiedTime time.Time `yaml:"modified_time" json:"modifiedTime"`
}

// FileInfo describes a file reported by a filesystem walk.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Metadata is the per-file context handed to transforms.
type Metadata struct {
	Dataset   string
	LACode    string
	LAName    string
	Year      int
	Term      string
	UUID      string
	SessionID string
	Filename  string
}

// Authority is a local authority submitting returns.
type Authority struct {
	Code    string   `yaml:"code" json:"code"`
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}
