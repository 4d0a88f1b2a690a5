package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"econcraft.ai/internal/persistence/snapshot"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/tuning"
	"econcraft.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of the tick and audit logs.
// Writes are queued and applied by one goroutine in batched transactions;
// when the queue is full entries are dropped and counted. The JSONL logs
// remain the source of truth.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot SnapshotRow
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteIndex{
		db: db,
		// Bursty command traffic must not stall the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func open(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sqlx.DB) error {
	// WAL suits the append-only workload; NORMAL is enough for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		// Paused ticks repeat a tick number, so rows are keyed by rowid.
		`CREATE TABLE IF NOT EXISTS ticks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			paused INTEGER NOT NULL,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			commands INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_tick ON ticks(tick);`,
		`CREATE TABLE IF NOT EXISTS joins (
			tick INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (tick, player_id)
		);`,
		`CREATE TABLE IF NOT EXISTS leaves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			player_id TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			req_id TEXT NOT NULL,
			cmd TEXT NOT NULL,
			code TEXT NOT NULL,
			cmd_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_player_tick ON commands(player_id, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			details TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			players INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SnapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Seed:       snap.Seed,
		Players:    len(snap.Players),
		Tiles:      len(snap.Tiles),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertCatalogs stores the raw catalog files and the effective tuning so
// an index can be interpreted without the original config dir.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var rows []CatalogRow
	read := func(name, file, digest string) {
		b, err := os.ReadFile(filepath.Join(configDir, file))
		if err != nil || len(b) == 0 {
			return
		}
		rows = append(rows, CatalogRow{Name: name, Digest: digest, JSON: string(b), UpdatedAt: now})
	}
	if configDir != "" {
		read("buildings", "buildings.json", cat.BuildingsDigest)
		read("resources", "resources.json", cat.ResourcesDigest)
	}
	// Tuning: store the values actually applied.
	if b, err := json.Marshal(tune); err == nil {
		sum := sha256.Sum256(b)
		rows = append(rows, CatalogRow{Name: "tuning", Digest: hex.EncodeToString(sum[:]), JSON: string(b), UpdatedAt: now})
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := tx.NamedExec(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(:name,:digest,:json,:updated_at)`, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	insertTick, _ := s.db.Preparex(`INSERT INTO ticks(tick,paused,digest,joins,leaves,commands,rejected,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertJoin, _ := s.db.Preparex(`INSERT OR REPLACE INTO joins(tick,player_id,name) VALUES(?,?,?)`)
	insertLeave, _ := s.db.Preparex(`INSERT INTO leaves(tick,player_id) VALUES(?,?)`)
	insertCmd, _ := s.db.Preparex(`INSERT INTO commands(tick,seq,player_id,req_id,cmd,code,cmd_json) VALUES(?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Preparex(`INSERT INTO audits(tick,actor,action,details,raw_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Preparex(`INSERT OR REPLACE INTO snapshots(tick,path,seed,players,tiles,recorded_at) VALUES(?,?,?,?,?,?)`)
	stmts := []*sqlx.Stmt{insertTick, insertJoin, insertLeave, insertCmd, insertAudit, insertSnapshot}
	defer func() {
		for _, st := range stmts {
			if st != nil {
				_ = st.Close()
			}
		}
	}()
	for _, st := range stmts {
		if st == nil {
			// Schema is created in open; a failed prepare means the db is unusable.
			for range s.ch {
			}
			return
		}
	}

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sqlx.Stmt, args ...any) bool {
		if _, err := tx.Stmtx(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			raw, _ := json.Marshal(e)
			rejected := 0
			for _, c := range e.Commands {
				if c.Code != "" {
					rejected++
				}
			}
			if !exec(insertTick, int64(e.Tick), e.Paused, e.Digest, len(e.Joins), len(e.Leaves), len(e.Commands), rejected, string(raw)) {
				continue
			}
			ok := true
			for _, j := range e.Joins {
				if ok = exec(insertJoin, int64(e.Tick), j.PlayerID, j.Name); !ok {
					break
				}
			}
			for _, id := range e.Leaves {
				if !ok {
					break
				}
				ok = exec(insertLeave, int64(e.Tick), id)
			}
			for i, c := range e.Commands {
				if !ok {
					break
				}
				cj, _ := json.Marshal(c.Cmd)
				ok = exec(insertCmd, int64(e.Tick), i, c.PlayerID, c.Cmd.ReqID, c.Cmd.Cmd, c.Code, string(cj))
			}
			if !ok {
				continue
			}

		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			if !exec(insertAudit, int64(a.Tick), a.Actor, a.Action, a.Details, string(raw)) {
				continue
			}

		case reqSnapshot:
			sn := r.snapshot
			if !exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Seed, sn.Players, sn.Tiles, sn.RecordedAt) {
				continue
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
