package world

import "fmt"

// Replay re-applies one tick log entry to a world that is not running and
// returns the digest of the resulting state. Entries must be fed in log
// order starting at CurrentTick. Connections are not involved, so leaves
// are ignored and no RESULT or STATE is sent.
func (w *World) Replay(e TickLogEntry) (string, error) {
	if now := w.tick.Load(); e.Tick != now {
		return "", fmt.Errorf("replay: entry tick %d, world at %d", e.Tick, now)
	}
	w.paused = e.Paused

	for _, id := range e.Removed {
		if err := w.removePlayer(id, e.Tick); err != nil {
			return "", fmt.Errorf("replay tick %d: %w", e.Tick, err)
		}
	}

	joins := make([]JoinRequest, 0, len(e.Joins))
	for _, j := range e.Joins {
		joins = append(joins, JoinRequest{Name: j.Name})
	}
	cmds := make([]CommandEnvelope, 0, len(e.Commands))
	for _, c := range e.Commands {
		cmds = append(cmds, CommandEnvelope{PlayerID: c.PlayerID, Cmd: c.Cmd})
	}

	digest := w.stepInternal(joins, nil, cmds, nil)

	for _, j := range e.Joins {
		if p := w.players[j.PlayerID]; p == nil || p.Name != j.Name {
			return digest, fmt.Errorf("replay tick %d: join %s (%s) got a different id", e.Tick, j.Name, j.PlayerID)
		}
	}
	return digest, nil
}
