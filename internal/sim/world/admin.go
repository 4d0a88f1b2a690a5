package world

import (
	"context"
	"errors"
	"fmt"
)

type adminOp int

const (
	adminSnapshot adminOp = iota
	adminPause
	adminResume
	adminSetRate
	adminRemovePlayer
)

type adminReq struct {
	Op       adminOp
	Rate     uint8
	PlayerID string
	Resp     chan adminResp
}

type adminResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	return w.adminCall(ctx, adminReq{Op: adminSnapshot})
}

// Pause stops economies from advancing. Commands keep being applied at the
// tick cadence.
func (w *World) Pause(ctx context.Context) error {
	_, err := w.adminCall(ctx, adminReq{Op: adminPause})
	return err
}

func (w *World) Resume(ctx context.Context) error {
	_, err := w.adminCall(ctx, adminReq{Op: adminResume})
	return err
}

// SetRate changes the target tick rate. 0 is treated as 1.
func (w *World) SetRate(ctx context.Context, ups uint8) error {
	_, err := w.adminCall(ctx, adminReq{Op: adminSetRate, Rate: ups})
	return err
}

// RemovePlayer unregisters a player at the next tick boundary.
func (w *World) RemovePlayer(ctx context.Context, playerID string) error {
	_, err := w.adminCall(ctx, adminReq{Op: adminRemovePlayer, PlayerID: playerID})
	return err
}

func (w *World) adminCall(ctx context.Context, req adminReq) (uint64, error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin not available")
	}
	resp := make(chan adminResp, 1)
	req.Resp = resp

	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// handleAdminImmediate applies requests that only touch loop pacing. It
// reports false for requests that must wait for the tick boundary.
func (w *World) handleAdminImmediate(req adminReq) bool {
	nowTick := w.tick.Load()
	switch req.Op {
	case adminPause:
		if !w.paused {
			w.paused = true
			w.clock.Pause()
			w.logger.Printf("tick %d: paused", nowTick)
			w.audit(nowTick, "ADMIN", "PAUSE", "")
		}
	case adminResume:
		if w.paused {
			w.paused = false
			w.logger.Printf("tick %d: resumed", nowTick)
			w.audit(nowTick, "ADMIN", "RESUME", "")
		}
	case adminSetRate:
		w.clock.SetRate(req.Rate)
		w.logger.Printf("tick %d: tick rate set to %d/s", nowTick, w.clock.Rate())
		w.audit(nowTick, "ADMIN", "SET_RATE", fmt.Sprintf("%d", w.clock.Rate()))
	default:
		return false
	}
	reply(req, adminResp{Tick: nowTick})
	return true
}

// handleAdminDeferred returns the ids of players it removed.
func (w *World) handleAdminDeferred(reqs []adminReq, nowTick uint64) (removed []string) {
	for _, req := range reqs {
		switch req.Op {
		case adminSnapshot:
			reply(req, w.adminSnapshot(nowTick))
		case adminRemovePlayer:
			resp := adminResp{Tick: nowTick}
			if err := w.removePlayer(req.PlayerID, nowTick); err != nil {
				resp.Err = err.Error()
			} else {
				removed = append(removed, req.PlayerID)
			}
			reply(req, resp)
		default:
			reply(req, adminResp{Tick: nowTick, Err: "unsupported admin op"})
		}
	}
	return removed
}

// adminSnapshot exports the state as of the last completed tick.
func (w *World) adminSnapshot(nowTick uint64) adminResp {
	snapTick := uint64(0)
	if nowTick > 0 {
		snapTick = nowTick - 1
	}
	if w.snapshotSink == nil {
		return adminResp{Tick: snapTick, Err: "snapshot sink not configured"}
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(snapTick):
		return adminResp{Tick: snapTick}
	default:
		return adminResp{Tick: snapTick, Err: "snapshot sink backpressure"}
	}
}

func reply(req adminReq, resp adminResp) {
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- resp:
	default:
		// Caller timed out; don't block the sim loop.
	}
}
