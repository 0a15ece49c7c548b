// Package uploads persists inbound binary attachments to content storage.
package uploads

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// ErrBadPayload is returned when the attachment payload is not a
// decodable base64 blob.
var ErrBadPayload = errors.New("undecodable attachment payload")

// Store writes attachment bytes to a local directory and hands back a
// stable filename. Content is opaque; no validation beyond decoding.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory attachments are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save decodes a data-URI payload ("data:<mime>;base64,<body>", a bare
// base64 body is also accepted) and writes it under a ULID-based name
// that preserves the original extension. The returned filename is the
// attachment reference recorded on the message.
func (s *Store) Save(payload, originalName string) (string, error) {
	body := payload
	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		body = payload[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", ErrBadPayload
	}

	filename := ulid.Make().String() + filepath.Ext(originalName)
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("attachment write failed")
		return "", err
	}

	s.logger.Debug().Str("file", filename).Int("bytes", len(data)).Msg("attachment saved")
	return filename, nil
}
