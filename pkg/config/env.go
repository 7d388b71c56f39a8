package config

import (
	"os"
	"strconv"

	"github.com/cuemby/veyradb/pkg/log"
)

// ApplyEnv overlays a handful of environment variables onto cfg, mirroring
// the per-domain log-level toggles named in the external-interfaces
// surface (originally `LiteCoreLog<domain>=verbose|debug|info|warning`):
// here a single VEYRADB_LOG_LEVEL covers the whole process, since this
// engine's zerolog-based logger (pkg/log) sets level globally rather than
// per domain filter.
func (c Config) ApplyEnv() Config {
	if v := os.Getenv("VEYRADB_LOG_LEVEL"); v != "" {
		c.LogLevel = log.Level(v)
	}
	if v := os.Getenv("VEYRADB_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LogJSON = b
		}
	}
	if v := os.Getenv("VEYRADB_DATA_DIR"); v != "" {
		c.DataDirectory = v
	}
	return c
}
