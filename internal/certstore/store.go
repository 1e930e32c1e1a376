package certstore

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/anandb/mockrelay/internal/apperrors"
)

// Kind names which PEM file is being written, used in the tracked file's
// name per spec §6 ("<id>-cert-*.pem", "<id>-key-*.pem", "<id>-ca-*.pem").
type Kind string

const (
	KindCert Kind = "cert"
	KindKey  Kind = "key"
	KindCA   Kind = "ca"
)

// Store materializes PEM content to a scratch directory, tracking every
// file it writes per listener so it can be cleaned up later (spec §4.4).
// Filesystem access goes through afero so tests can swap in an in-memory
// filesystem instead of touching disk, the way the teacher isolates its
// own filesystem side effects in tests.
type Store struct {
	fs         afero.Fs
	scratchDir string
	log        *zap.Logger

	mu    sync.Mutex
	files map[string][]string // listenerID -> tracked paths
}

func NewStore(fs afero.Fs, scratchDir string, log *zap.Logger) *Store {
	return &Store{fs: fs, scratchDir: scratchDir, log: log, files: make(map[string][]string)}
}

var seqMu sync.Mutex
var seq int

func nextSeq() int {
	seqMu.Lock()
	defer seqMu.Unlock()
	seq++
	return seq
}

// WriteMaterial atomically creates a scratch file holding pemContent,
// named "<listenerId>-<kind>-<seq>.pem", with POSIX mode 0600, and tracks
// it against listenerID for later cleanup.
func (s *Store) WriteMaterial(listenerID string, pemContent string, kind Kind) (string, error) {
	if err := s.fs.MkdirAll(s.scratchDir, 0700); err != nil {
		return "", apperrors.InvalidCertificateError("creating scratch dir %q: %v", s.scratchDir, err)
	}
	name := fmt.Sprintf("%s-%s-%d.pem", listenerID, kind, nextSeq())
	path := s.scratchDir + "/" + name

	f, err := s.fs.OpenFile(path, osCreateExclFlags(), 0600)
	if err != nil {
		return "", apperrors.InvalidCertificateError("writing %s material for %q: %v", kind, listenerID, err)
	}
	defer f.Close()
	if _, err := f.WriteString(pemContent); err != nil {
		return "", apperrors.InvalidCertificateError("writing %s material for %q: %v", kind, listenerID, err)
	}

	s.mu.Lock()
	s.files[listenerID] = append(s.files[listenerID], path)
	s.mu.Unlock()
	return path, nil
}

// ReleaseListener best-effort deletes every file tracked for listenerID.
func (s *Store) ReleaseListener(listenerID string) {
	s.mu.Lock()
	paths := s.files[listenerID]
	delete(s.files, listenerID)
	s.mu.Unlock()

	for _, p := range paths {
		if err := s.fs.Remove(p); err != nil {
			s.log.Warn("failed to remove TLS scratch file",
				zap.String("listener_id", listenerID),
				zap.String("path", p),
				zap.Error(err))
		}
	}
}

// Shutdown releases every listener's tracked files, if enabled is true.
func (s *Store) Shutdown(enabled bool) {
	if !enabled {
		return
	}
	s.mu.Lock()
	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.ReleaseListener(id)
	}
}
