package config

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/model"
)

// ListenerCreator is the subset of listener.Manager the loader needs. It
// is satisfied by *listener.Manager; declared here to keep this package
// free of a dependency on the listener package.
type ListenerCreator interface {
	CreateListener(cfg model.ListenerConfig) error
	AppendExpectation(listenerID string, exp model.Expectation) error
}

// Loader turns a config document (file path or base64 blob) into a live
// set of listeners, per spec §4.10.
type Loader struct {
	log *zap.Logger
	env Environment
}

func NewLoader(log *zap.Logger, env Environment) *Loader {
	if env == nil {
		env = osEnvironment{}
	}
	return &Loader{log: log, env: env}
}

type osEnvironment struct{}

func (osEnvironment) Lookup(name string) (string, bool) { return os.LookupEnv(name) }

// LoadFile reads, strips (if applicable), expands and parses the
// document at path, then installs it into creator. Per-entry failures are
// logged and skipped; a failure reading or parsing the document itself is
// returned to the caller.
func (l *Loader) LoadFile(path string, creator ListenerCreator) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return apperrors.ParseError("reading config file %q: %v", path, err)
	}
	return l.load(path, raw, creator)
}

// LoadBase64 decodes a base64-encoded document and installs it, per the
// loader's alternative "base64 blob" entry point (spec §4.10).
func (l *Loader) LoadBase64(blob string, creator ListenerCreator) error {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return apperrors.ParseError("decoding base64 config blob: %v", err)
	}
	return l.load("<base64>", raw, creator)
}

func (l *Loader) load(name string, raw []byte, creator ListenerCreator) error {
	doc, err := l.Parse(name, raw)
	if err != nil {
		return err
	}
	for i, entry := range doc {
		if err := l.installEntry(entry, creator); err != nil {
			l.log.Error("skipping config entry that failed to load",
				zap.Int("entry_index", i),
				zap.Error(err))
		}
	}
	return nil
}

// Parse runs the stripping and expansion passes and decodes the result
// into a Document, without installing anything.
func (l *Loader) Parse(name string, raw []byte) (Document, error) {
	stripped := raw
	if LooksCommentTolerant(name, raw) {
		var err error
		stripped, err = StripComments(raw)
		if err != nil {
			return nil, err
		}
	}
	expanded, err := ExpandVariables(stripped, l.env)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(expanded, &doc); err != nil {
		return nil, apperrors.ParseError("invalid JSON after preprocessing: %v", err)
	}
	return doc, nil
}

func (l *Loader) installEntry(entry Entry, creator ListenerCreator) error {
	lc, err := entry.Server.ToListenerConfig()
	if err != nil {
		return err
	}
	if err := creator.CreateListener(lc); err != nil {
		return err
	}
	for _, expDoc := range entry.Expectations {
		exp, err := expDoc.ToExpectation()
		if err != nil {
			l.log.Error("skipping invalid expectation",
				zap.String("listener_id", lc.ListenerID),
				zap.Error(err))
			continue
		}
		if err := creator.AppendExpectation(lc.ListenerID, exp); err != nil {
			l.log.Error("failed to append expectation",
				zap.String("listener_id", lc.ListenerID),
				zap.Error(err))
		}
	}
	return nil
}
