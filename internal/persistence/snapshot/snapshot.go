package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Ext = ".snap.zst"

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Players int    `json:"players"`
}

// SnapshotV1 holds the durable world state. Per-player generation caches are
// never stored; they are recomputed after import.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed             int64  `json:"seed"`
	TickRateHz       int    `json:"tick_rate_hz"`
	Paused           bool   `json:"paused,omitempty"`
	StockpileMaximum uint32 `json:"stockpile_maximum"`
	MaxSlotsPerTile  uint32 `json:"max_slots_per_tile"`

	BuildingsDigest string `json:"buildings_digest"`
	ResourcesDigest string `json:"resources_digest"`

	Players []PlayerV1 `json:"players"`
	Tiles   []TileV1   `json:"tiles"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextPlayer uint64 `json:"next_player"`
}

type PlayerV1 struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ResumeToken string `json:"resume_token"`

	Population PopulationV1  `json:"population"`
	Buildings  []BuildingV1  `json:"buildings"`
	Stockpiles []StockpileV1 `json:"stockpiles"`
	Lands      [][2]int32    `json:"lands,omitempty"`

	Inbound  []LedgerEntryV1 `json:"inbound,omitempty"`
	Outbound []LedgerEntryV1 `json:"outbound,omitempty"`
}

type PopulationV1 struct {
	Idle    uint32 `json:"idle"`
	Total   uint32 `json:"total"`
	Maximum uint32 `json:"maximum"`
}

type BuildingV1 struct {
	Building   uint8         `json:"building"`
	Count      uint32        `json:"count"`
	Hired      uint32        `json:"hired"`
	Capacity   uint32        `json:"capacity"`
	Placements []PlacementV1 `json:"placements"`
}

type PlacementV1 struct {
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	Count uint32 `json:"count"`
}

type StockpileV1 struct {
	Resource uint8  `json:"resource"`
	Current  uint32 `json:"current"`
	Maximum  uint32 `json:"maximum"`
}

type LedgerEntryV1 struct {
	Peer       string    `json:"peer"`
	Offering   []EntryV1 `json:"offering"`
	Requesting []EntryV1 `json:"requesting"`
}

type EntryV1 struct {
	Resource uint8  `json:"resource"`
	Amount   uint32 `json:"amount"`
}

type TileV1 struct {
	X     int32    `json:"x"`
	Y     int32    `json:"y"`
	Slots []SlotV1 `json:"slots"`
}

type SlotV1 struct {
	Building uint8  `json:"building"`
	Used     uint32 `json:"used"`
	Total    uint32 `json:"total"`
}

// Path returns the file a snapshot for tick is stored under in dir.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", tick, Ext))
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	snap.Header.Players = len(snap.Players)

	// Write to a temp file first so a crash never leaves a truncated latest snapshot.
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob payload repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != 1 {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// Latest returns the snapshot with the highest tick in dir, or "" if none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, Ext) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, Ext), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
