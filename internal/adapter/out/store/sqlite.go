package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	storeport "github.com/azrael-sim/azrael/internal/core/port/out/store"
)

// SQLiteLog mirrors every committed write to a modernc.org/sqlite
// database so the orchestrator can resume after a restart: on boot it
// reads the table back into a fresh MemoryStore and GetAll() proceeds
// from there (spec.md §6, Persisted state layout). Writes are applied
// to the in-memory store synchronously and mirrored to disk by a single
// background writer goroutine draining a channel, the same shape as
// the teacher pack's SQLiteIndex (modernc.org/sqlite, single open
// connection, async writer).
type SQLiteLog struct {
	*MemoryStore

	db   *sql.DB
	ch   chan writeReq
	wg   sync.WaitGroup
	enc  *zstd.Encoder
	log  *log.Logger
}

type writeReq struct {
	id   entity.BodyID
	body *entity.Body // nil means "deleted"
}

// OpenSQLiteLog opens (creating if needed) a durable log at path and
// replays it into a fresh in-memory store.
func OpenSQLiteLog(path string, logger *log.Logger) (*SQLiteLog, error) {
	if logger == nil {
		logger = log.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("azrael: empty sqlite log path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("azrael: create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("azrael: open sqlite log: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS bodies (
		id INTEGER PRIMARY KEY,
		version INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("azrael: migrate sqlite log: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("azrael: init snapshot compressor: %w", err)
	}

	mem := NewMemoryStore()
	bodies, err := replay(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	mem.Seed(bodies)

	l := &SQLiteLog{
		MemoryStore: mem,
		db:          db,
		ch:          make(chan writeReq, 256),
		enc:         enc,
		log:         logger,
	}
	l.wg.Add(1)
	go l.writerLoop()
	return l, nil
}

func replay(db *sql.DB) (map[entity.BodyID]entity.Body, error) {
	rows, err := db.Query(`SELECT id, payload FROM bodies`)
	if err != nil {
		return nil, fmt.Errorf("azrael: replay sqlite log: %w", err)
	}
	defer rows.Close()

	out := make(map[entity.BodyID]entity.Body)
	for rows.Next() {
		var id uint64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("azrael: scan sqlite row: %w", err)
		}
		decoded, err := decompress(payload)
		if err != nil {
			return nil, err
		}
		var wire wireBody
		if err := json.Unmarshal(decoded, &wire); err != nil {
			return nil, fmt.Errorf("azrael: decode body %d: %w", id, err)
		}
		out[entity.BodyID(id)] = wire.toBody()
	}
	return out, rows.Err()
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("azrael: init snapshot decompressor: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("azrael: decompress body payload: %w", err)
	}
	return out, nil
}

// CommitBatch commits to the in-memory store first, then enqueues the
// committed bodies for durable mirroring.
func (l *SQLiteLog) CommitBatch(ctx context.Context, writes map[entity.BodyID]entity.Body, expected map[entity.BodyID]uint64) (storeport.CommitResult, error) {
	result, err := l.MemoryStore.CommitBatch(ctx, writes, expected)
	if err != nil {
		return result, err
	}
	for _, id := range result.Committed {
		w := writes[id]
		w.Version = expected[id] + 1
		l.enqueue(id, &w)
	}
	return result, nil
}

func (l *SQLiteLog) Add(ctx context.Context, body entity.Body) (entity.BodyID, error) {
	id, err := l.MemoryStore.Add(ctx, body)
	if err != nil {
		return id, err
	}
	if snapshot, err := l.MemoryStore.Get(ctx, []entity.BodyID{id}); err == nil {
		if b, ok := snapshot[id]; ok {
			l.enqueue(id, &b)
		}
	}
	return id, nil
}

func (l *SQLiteLog) Remove(ctx context.Context, ids []entity.BodyID) error {
	if err := l.MemoryStore.Remove(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		l.enqueue(id, nil)
	}
	return nil
}

func (l *SQLiteLog) enqueue(id entity.BodyID, body *entity.Body) {
	select {
	case l.ch <- writeReq{id: id, body: body}:
	default:
		l.log.Printf("[StateStore] durable log backlog full, dropping mirror write for body %d (memory store stays authoritative)", id)
	}
}

func (l *SQLiteLog) writerLoop() {
	defer l.wg.Done()
	for req := range l.ch {
		if req.body == nil {
			if _, err := l.db.Exec(`DELETE FROM bodies WHERE id = ?`, uint64(req.id)); err != nil {
				l.log.Printf("[StateStore] delete mirror row %d: %v", req.id, err)
			}
			continue
		}
		payload, err := json.Marshal(toWire(*req.body))
		if err != nil {
			l.log.Printf("[StateStore] encode body %d: %v", req.id, err)
			continue
		}
		compressed := l.enc.EncodeAll(payload, nil)
		if _, err := l.db.Exec(
			`INSERT INTO bodies (id, version, payload) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET version = excluded.version, payload = excluded.payload`,
			uint64(req.id), req.body.Version, compressed,
		); err != nil {
			l.log.Printf("[StateStore] mirror write body %d: %v", req.id, err)
		}
	}
}

// Close stops the writer goroutine and closes the database handle.
func (l *SQLiteLog) Close() error {
	close(l.ch)
	l.wg.Wait()
	return l.db.Close()
}
