package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"econcraft.ai/internal/persistence/indexdb"
	"econcraft.ai/internal/persistence/snapshot"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/tuning"
	"econcraft.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cat *catalogs.Catalog, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

func indexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("EC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(indexPath(worldDir))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported EC_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
