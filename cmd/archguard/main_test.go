package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arch.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
ignore_tests: true
shared_modules: [pkg]
allow_violations:
  - modules/migration/infrastructure/progress
layers:
  application: [services]
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ".", cfg.Root)
	require.True(t, cfg.IgnoreTests)

	aliases := layerAliases(cfg)
	require.Equal(t, cleanarch.LayerApplication, aliases["services"])
	require.NotContains(t, aliases, "handlers")
	require.Equal(t, cleanarch.LayerDomain, aliases["entities"])
}

func TestFilterViolations(t *testing.T) {
	cfg := &config{
		SharedModules:     []string{"pkg"},
		AllowedViolations: []string{"infrastructure/progress"},
	}
	msgs := []string{
		"cannot import between migration and pkg modules",
		"services imports modules/migration/infrastructure/progress",
		"domain imports modules/migration/infrastructure/persistence",
	}
	require.Equal(t, []string{msgs[2]}, filterViolations(msgs, cfg))
}
