package printkit

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
)

// Artifact holds an exported file and provides helpers for common output
// forms such as raw bytes, base64 encoding, and streaming readers.
//
// An Artifact is a one-shot snapshot: it is never linked back to the
// document it was produced from, and its methods never modify the data.
type Artifact struct {
	Format   Format
	Filename string

	data []byte
}

// NewArtifact wraps data produced for format.
func NewArtifact(format Format, filename string, data []byte) *Artifact {
	return &Artifact{Format: format, Filename: filename, data: data}
}

// Bytes returns the raw file content.
func (a *Artifact) Bytes() []byte {
	return a.data
}

// MIME returns the media type of the artifact's format.
func (a *Artifact) MIME() string {
	return a.Format.MIME()
}

// Base64 returns the content encoded as a standard base64 string (RFC 4648).
func (a *Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.data)
}

// DataURI returns the content as a data: URI, suitable for inline previews.
func (a *Artifact) DataURI() string {
	return "data:" + a.MIME() + ";base64," + a.Base64()
}

// Reader returns an [*bytes.Reader] over the content.
func (a *Artifact) Reader() *bytes.Reader {
	return bytes.NewReader(a.data)
}

// WriteTo writes the full content to w. It implements [io.WriterTo].
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.data)
	return int64(n), err
}

// WriteToFile writes the artifact to the file at path, creating it if needed.
func (a *Artifact) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, a.data, perm)
}

// Len returns the size of the artifact in bytes.
func (a *Artifact) Len() int {
	return len(a.data)
}
