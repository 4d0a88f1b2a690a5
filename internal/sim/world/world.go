package world

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"econcraft.ai/internal/persistence/snapshot"
	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/clock"
	"econcraft.ai/internal/sim/economy"
	"econcraft.ai/internal/sim/terrain"
	"econcraft.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID     string
	Tuning tuning.Tuning
}

type JoinRequest struct {
	Name    string
	Out     chan []byte
	Results chan []byte
	Resp    chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	Out         chan []byte
	Results     chan []byte
	Resp        chan JoinResponse
}

// LeaveRequest reports a closed connection. It carries the connection's
// channels so a leave that arrives after the player resumed elsewhere does
// not detach the newer session.
type LeaveRequest struct {
	PlayerID string
	Out      chan []byte
	Results  chan []byte
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type CommandEnvelope struct {
	PlayerID string
	Cmd      protocol.CmdMsg
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type RecordedCommand struct {
	PlayerID string          `json:"player_id"`
	Cmd      protocol.CmdMsg `json:"cmd"`
	Code     string          `json:"code,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Paused   bool              `json:"paused,omitempty"`
	Removed  []string          `json:"removed,omitempty"` // by admin, before joins
	Joins    []RecordedJoin    `json:"joins,omitempty"`
	Leaves   []string          `json:"leaves,omitempty"`
	Commands []RecordedCommand `json:"commands,omitempty"`
	Digest   string            `json:"digest"`
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	Actor   string `json:"actor"`
	Action  string `json:"action"` // e.g. "REMOVE_PLAYER", "SET_RATE"
	Details string `json:"details,omitempty"`
}

// Player is a registered participant. Its economy is only touched from the
// world loop goroutine.
type Player struct {
	ID          string
	Name        string
	ResumeToken string
	Econ        *economy.PlayerEconomy

	events []protocol.Event
}

func (p *Player) addEvent(e protocol.Event) {
	p.events = append(p.events, e)
}

type clientState struct {
	Out     chan []byte
	Results chan []byte
}

// World is a single-threaded authoritative simulation of every player's
// economy. All state must be accessed only from the world loop goroutine.
type World struct {
	cfg    WorldConfig
	cat    *catalogs.Catalog
	deps   *catalogs.DependencyIndex
	econ   economy.Config
	logger *log.Logger

	tick   atomic.Uint64
	clock  *clock.Clock
	paused bool

	terrain *terrain.Generator
	tiles   map[terrain.Position]*terrain.Tile

	players map[string]*Player
	byName  map[string]string
	byToken map[string]string
	clients map[string]*clientState

	inbox  chan CommandEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan LeaveRequest
	admin  chan adminReq
	stop   chan struct{}

	nextPlayerNum atomic.Uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing happens off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, cat *catalogs.Catalog, deps *catalogs.DependencyIndex, logger *log.Logger) (*World, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	for i, sb := range cfg.Tuning.StarterBuildings {
		if _, ok := cat.Building(catalogs.BuildingID(sb.Building)); !ok {
			return nil, &catalogs.DataError{File: "tuning.yaml", Msg: fmt.Sprintf("starter_buildings[%d]: unknown building id %d", i, sb.Building)}
		}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	t := cfg.Tuning
	inboxCap := t.InboxCapacity
	if inboxCap <= 0 {
		inboxCap = 1024
	}
	w := &World{
		cfg:    cfg,
		cat:    cat,
		deps:   deps,
		logger: logger,
		econ: economy.Config{
			StockpileMaximum: t.StockpileMaximum,
			Population: economy.Population{
				Idle:    t.Population.Idle,
				Total:   t.Population.Total,
				Maximum: t.Population.Maximum,
			},
		},
		clock:   clock.New(uint8(t.TickRateHz)),
		terrain: terrain.NewGenerator(t.Terrain.Seed, t.Terrain.MaxSlotsPerTile, cat),
		tiles:   map[terrain.Position]*terrain.Tile{},
		players: map[string]*Player{},
		byName:  map[string]string{},
		byToken: map[string]string{},
		clients: map[string]*clientState{},
		inbox:   make(chan CommandEnvelope, inboxCap),
		join:    make(chan JoinRequest, 64),
		attach:  make(chan AttachRequest, 64),
		leave:   make(chan LeaveRequest, 64),
		admin:   make(chan adminReq, 16),
		stop:    make(chan struct{}),
	}
	w.metrics.Store(WorldMetrics{TickRateHz: t.TickRateHz})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Attach() chan<- AttachRequest  { return w.attach }
func (w *World) Leave() chan<- LeaveRequest    { return w.leave }

func (w *World) ID() string                 { return w.cfg.ID }
func (w *World) CurrentTick() uint64        { return w.tick.Load() }
func (w *World) Catalog() *catalogs.Catalog { return w.cat }
func (w *World) Tuning() tuning.Tuning      { return w.cfg.Tuning }

// Run drives the tick loop until ctx is cancelled or Stop is called. Joins,
// leaves and commands received between ticks are applied at the next tick
// boundary in arrival order.
func (w *World) Run(ctx context.Context) error {
	timer := time.NewTimer(w.clock.Target())
	defer timer.Stop()

	var pendingCmds []CommandEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest
	var pendingAdmin []adminReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.attach:
			w.handleAttach(req)
		case req := <-w.leave:
			pendingLeaves = append(pendingLeaves, req)
		case env := <-w.inbox:
			pendingCmds = append(pendingCmds, env)
		case req := <-w.admin:
			if !w.handleAdminImmediate(req) {
				pendingAdmin = append(pendingAdmin, req)
			}
		case <-timer.C:
			w.stepInternal(pendingJoins, pendingLeaves, pendingCmds, pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
			pendingAdmin = pendingAdmin[:0]

			next := w.clock.Target()
			if !w.paused {
				next = w.clock.Tick()
			}
			timer.Reset(next)
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It is intended for tests and deterministic replays.
func (w *World) StepOnce(joins []JoinRequest, leaves []LeaveRequest, cmds []CommandEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.stepInternal(joins, leaves, cmds, nil)
	return tick, digest
}
