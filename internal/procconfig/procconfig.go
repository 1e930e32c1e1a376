// Package procconfig binds process-level settings from the environment,
// the same way the teacher's control plane binds its own process
// configuration with envconfig.
package procconfig

import (
	"os"

	"github.com/kelseyhightower/envconfig"
)

const wellKnownConfigPath = "/server.jsonmc"

// Settings holds process-wide knobs that are not part of the declarative
// listener configuration document itself.
type Settings struct {
	// ConfigFile is the path to the listener configuration document. If
	// empty, wellKnownConfigPath is tried before falling back to "no
	// listeners".
	ConfigFile string `envconfig:"CONFIG_FILE"`

	// ScratchDir is where TLS material is materialized to disk.
	ScratchDir string `envconfig:"SCRATCH_DIR"`

	// CleanupOnShutdown controls whether the certificate store removes the
	// TLS scratch files it still tracks when the process shuts down. Files
	// of listeners released by the listener manager's Shutdown are removed
	// regardless, since releasing a listener always deletes its TLS files.
	CleanupOnShutdown bool `envconfig:"CLEANUP_ON_SHUTDOWN" default:"true"`
}

// Load binds Settings from environment variables prefixed MOCKRELAY_, and
// fills in the documented defaults for anything left unset.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("mockrelay", &s); err != nil {
		return Settings{}, err
	}
	if s.ScratchDir == "" {
		s.ScratchDir = os.TempDir()
	}
	return s, nil
}

// ResolveConfigPath applies the loader's three-level precedence from
// spec §4.10: explicit path, then the well-known container-local path,
// then "no listeners" (signaled by returning "", nil).
func (s Settings) ResolveConfigPath() (string, error) {
	if s.ConfigFile != "" {
		return s.ConfigFile, nil
	}
	if _, err := os.Stat(wellKnownConfigPath); err == nil {
		return wellKnownConfigPath, nil
	}
	return "", nil
}
