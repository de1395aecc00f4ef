package vm

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the subset of Settings reasonable to default from a file,
// mirroring the project-manifest pattern elsewhere in this package family:
// a plain TOML-tagged struct, unmarshaled with toml.Unmarshal and then
// folded onto a Settings record field by field. Every field is a pointer
// so toml.Unmarshal leaves a key absent from the document as nil instead
// of Go's zero value, which would otherwise be indistinguishable from an
// explicit `= false` / `= 0` in the file.
type Config struct {
	MaxCallDepth         *int    `toml:"max_call_depth"`
	JITDisabled          *bool   `toml:"jit_disabled"`
	VectorSize           *int    `toml:"vector_size"`
	GeneralizedIteration *bool   `toml:"generalized_iteration"`
	UseImportConstants   *bool   `toml:"use_import_constants"`
	LogLevel             *string `toml:"log_level"`
}

// LoadConfigFile reads a TOML document at path and overlays it onto
// settings. Fields present in the document overwrite the matching settings
// fields, including any the caller set before this call; fields absent
// from the document keep settings' existing values. Applied to a
// DefaultSettings() record, with the caller's own overrides set after this
// call, the precedence is default < file < explicit code.
func LoadConfigFile(path string, settings *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse error in %s: %w", path, err)
	}

	if cfg.VectorSize != nil && (*cfg.VectorSize == 3 || *cfg.VectorSize == 4) {
		settings.VectorSize = *cfg.VectorSize
	}
	if cfg.GeneralizedIteration != nil {
		settings.GeneralizedIteration = *cfg.GeneralizedIteration
	}
	if cfg.UseImportConstants != nil {
		settings.UseImportConstants = *cfg.UseImportConstants
	}
	if cfg.MaxCallDepth != nil {
		settings.MaxCallDepth = *cfg.MaxCallDepth
	}
	if cfg.JITDisabled != nil {
		settings.JITDisabled = *cfg.JITDisabled
	}
	if cfg.LogLevel != nil {
		settings.LogLevel = *cfg.LogLevel
	}
	return nil
}
