/*
Package log provides structured logging for the engine using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
domain-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Domain Loggers                    │          │
	│  │  - WithDomain(DomainSync)                   │          │
	│  │  - WithDatabase("/data/app.veyra")          │          │
	│  │  - WithReplicator("repl-7")                 │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Log Domains

Unlike a single undifferentiated log stream, each subsystem logs through
its own Domain (see domains.go): DB, Query, RevTree, Blob, Sync, BLIP,
Actor. The domain is a field on each log line; verbosity is set once for
all domains by the global level, and no domain has a level of its own.

# Usage

Initializing the logger:

	import "github.com/cuemby/veyradb/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Domain logging:

	syncLog := log.WithDomain(log.DomainSync)
	syncLog.Info().Str("replicator_id", "repl-7").Msg("replication started")

	dbLog := log.WithDatabase(path)
	dbLog.Debug().Uint64("sequence", seq).Msg("transaction committed")

Simple logging:

	log.Info("database opened")
	log.Warn("compaction deferred: store busy")
	log.Error("checkpoint write failed")
	log.Fatal("cannot open database file") // exits process

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance, initialized once at startup,
    accessible from all packages without being threaded through call
    signatures.

Domain Logger Pattern:
  - Child loggers carry a "domain" field so log lines can be filtered per
    subsystem without separate logger instances per package; all domains
    share the global level.

Structured Logging Pattern:
  - Typed fields (.Str, .Uint64, .Err) instead of string interpolation,
    so logs remain parseable by aggregation tooling.

# Security

Never log document bodies, blob contents, or encryption keys. Replication
logs should carry document IDs and revision IDs, not their content.
*/
package log
