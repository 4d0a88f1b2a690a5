package indexdb

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type TickRow struct {
	Tick     uint64 `db:"tick"`
	Paused   bool   `db:"paused"`
	Digest   string `db:"digest"`
	Joins    int    `db:"joins"`
	Leaves   int    `db:"leaves"`
	Commands int    `db:"commands"`
	Rejected int    `db:"rejected"`
}

type CommandRow struct {
	Tick     uint64 `db:"tick"`
	Seq      int    `db:"seq"`
	PlayerID string `db:"player_id"`
	ReqID    string `db:"req_id"`
	Cmd      string `db:"cmd"`
	Code     string `db:"code"`
	CmdJSON  string `db:"cmd_json"`
}

type AuditRow struct {
	Tick    uint64 `db:"tick"`
	Actor   string `db:"actor"`
	Action  string `db:"action"`
	Details string `db:"details"`
}

type SnapshotRow struct {
	Tick       uint64 `db:"tick"`
	Path       string `db:"path"`
	Seed       int64  `db:"seed"`
	Players    int    `db:"players"`
	Tiles      int    `db:"tiles"`
	RecordedAt string `db:"recorded_at"`
}

type CatalogRow struct {
	Name      string `db:"name"`
	Digest    string `db:"digest"`
	JSON      string `db:"json"`
	UpdatedAt string `db:"updated_at"`
}

// Reader runs read-only queries against an index written by SQLiteIndex.
type Reader struct{ db *sqlx.DB }

func OpenReader(path string) (*Reader, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// RecentTicks returns up to limit tick rows, newest first.
func (r *Reader) RecentTicks(ctx context.Context, limit int) ([]TickRow, error) {
	var out []TickRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT tick, paused, digest, joins, leaves, commands, rejected FROM ticks ORDER BY id DESC LIMIT ?`, clampLimit(limit))
	return out, err
}

// CommandsByPlayer returns a player's most recent commands, newest first.
func (r *Reader) CommandsByPlayer(ctx context.Context, playerID string, limit int) ([]CommandRow, error) {
	var out []CommandRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT tick, seq, player_id, req_id, cmd, code, cmd_json FROM commands WHERE player_id = ? ORDER BY id DESC LIMIT ?`,
		playerID, clampLimit(limit))
	return out, err
}

// Audits returns the most recent audit rows, newest first.
func (r *Reader) Audits(ctx context.Context, limit int) ([]AuditRow, error) {
	var out []AuditRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT tick, actor, action, details FROM audits ORDER BY id DESC LIMIT ?`, clampLimit(limit))
	return out, err
}

func (r *Reader) Snapshots(ctx context.Context) ([]SnapshotRow, error) {
	var out []SnapshotRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT tick, path, seed, players, tiles, recorded_at FROM snapshots ORDER BY tick ASC`)
	return out, err
}

func (r *Reader) Catalogs(ctx context.Context) ([]CatalogRow, error) {
	var out []CatalogRow
	err := r.db.SelectContext(ctx, &out, `SELECT name, digest, json, updated_at FROM catalogs ORDER BY name`)
	return out, err
}

// JoinTick reports the tick a player registered at.
func (r *Reader) JoinTick(ctx context.Context, playerID string) (uint64, bool, error) {
	var ticks []uint64
	if err := r.db.SelectContext(ctx, &ticks, `SELECT tick FROM joins WHERE player_id = ? ORDER BY tick LIMIT 1`, playerID); err != nil {
		return 0, false, err
	}
	if len(ticks) == 0 {
		return 0, false, nil
	}
	return ticks[0], true, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 100
	case n > 10000:
		return 10000
	}
	return n
}
