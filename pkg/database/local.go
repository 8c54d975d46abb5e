package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// LocalDatabase 本地数据库实现
//
// Documents live in memory. Transactions are optimistic: reads record the
// version they saw and commit fails with ErrTransactionConflict when any of
// them changed in the meantime. When dataDir is set the whole store is
// snapshotted to dataDir/documents.json after every committed write.
type LocalDatabase struct {
	docOps

	mu      sync.RWMutex
	docs    map[string]map[string]localDoc
	dataDir string
	logger  *log.Logger
}

type localDoc struct {
	Meta    docMeta         `json:"meta"`
	Data    json.RawMessage `json:"data"`
	Version int64           `json:"version"`
}

const localSnapshotFile = "documents.json"

// NewLocalDatabase 创建本地数据库实例. An empty dataDir keeps everything in memory.
func NewLocalDatabase(ctx context.Context, dataDir string) (*LocalDatabase, error) {
	db := &LocalDatabase{
		docs:    make(map[string]map[string]localDoc),
		dataDir: dataDir,
		logger:  log.FromContext(ctx).WithPrefix("localdb"),
	}
	db.docOps = docOps{raw: localRaw{db: db}}

	if dataDir == "" {
		return db, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *LocalDatabase) load() error {
	data, err := os.ReadFile(filepath.Join(db.dataDir, localSnapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &db.docs); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	db.logger.Debug("loaded snapshot", "collections", len(db.docs))
	return nil
}

// persist must be called with db.mu held.
func (db *LocalDatabase) persist() {
	if db.dataDir == "" {
		return
	}
	data, err := json.Marshal(db.docs)
	if err != nil {
		db.logger.Error("failed to encode snapshot", "err", err)
		return
	}
	tmp := filepath.Join(db.dataDir, localSnapshotFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		db.logger.Error("failed to write snapshot", "err", err)
		return
	}
	if err := os.Rename(tmp, filepath.Join(db.dataDir, localSnapshotFile)); err != nil {
		db.logger.Error("failed to replace snapshot", "err", err)
	}
}

// lookup must be called with db.mu held.
func (db *LocalDatabase) lookup(coll, id string) (localDoc, bool) {
	c, ok := db.docs[coll]
	if !ok {
		return localDoc{}, false
	}
	d, ok := c[id]
	return d, ok
}

// store must be called with db.mu held.
func (db *LocalDatabase) store(coll, id string, meta docMeta, data []byte) {
	c, ok := db.docs[coll]
	if !ok {
		c = make(map[string]localDoc)
		db.docs[coll] = c
	}
	prev := c[id]
	c[id] = localDoc{Meta: meta, Data: append(json.RawMessage(nil), data...), Version: prev.Version + 1}
}

// RunTransaction implements DatabaseInterface.
func (db *LocalDatabase) RunTransaction(ctx context.Context, fn TxFunc) error {
	tx := &localTx{
		db:     db,
		reads:  make(map[docKey]int64),
		writes: make(map[docKey]localWrite),
	}
	if err := fn(ctx, docOps{raw: tx}); err != nil {
		return err
	}
	return tx.commit()
}

// EnsureSchema implements DatabaseInterface.
func (db *LocalDatabase) EnsureSchema(context.Context) error {
	return nil
}

// HealthCheck 健康检查
func (db *LocalDatabase) HealthCheck(context.Context) error {
	if db.dataDir == "" {
		return nil
	}
	if _, err := os.Stat(db.dataDir); err != nil {
		return fmt.Errorf("data directory is not accessible: %w", err)
	}
	return nil
}

// Close 关闭连接
func (db *LocalDatabase) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.persist()
	return nil
}

// localRaw is the non-transactional view of the store.
type localRaw struct {
	db *LocalDatabase
}

func (r localRaw) get(_ context.Context, coll, id string) ([]byte, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.lookup(coll, id)
	if !ok {
		return nil, ErrNotFound
	}
	return d.Data, nil
}

func (r localRaw) insert(_ context.Context, coll, id string, meta docMeta, data []byte) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.lookup(coll, id); ok {
		return ErrDuplicateKey
	}
	r.db.store(coll, id, meta, data)
	r.db.persist()
	return nil
}

func (r localRaw) put(_ context.Context, coll, id string, meta docMeta, data []byte) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.store(coll, id, meta, data)
	r.db.persist()
	return nil
}

func (r localRaw) list(_ context.Context, coll string, f docFilter) ([][]byte, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out [][]byte
	for _, d := range r.db.docs[coll] {
		if f.match(d.Meta) {
			out = append(out, d.Data)
		}
	}
	return out, nil
}

type docKey struct {
	coll string
	id   string
}

type localWrite struct {
	meta   docMeta
	data   []byte
	insert bool
}

// localTx buffers writes until commit. reads maps every key observed to the
// version seen; zero means the document did not exist.
type localTx struct {
	db     *LocalDatabase
	reads  map[docKey]int64
	writes map[docKey]localWrite
}

func (tx *localTx) observe(k docKey) (localDoc, bool) {
	tx.db.mu.RLock()
	d, ok := tx.db.lookup(k.coll, k.id)
	tx.db.mu.RUnlock()
	if _, seen := tx.reads[k]; !seen {
		tx.reads[k] = d.Version
	}
	return d, ok
}

func (tx *localTx) get(_ context.Context, coll, id string) ([]byte, error) {
	k := docKey{coll, id}
	if w, ok := tx.writes[k]; ok {
		return w.data, nil
	}
	d, ok := tx.observe(k)
	if !ok {
		return nil, ErrNotFound
	}
	return d.Data, nil
}

func (tx *localTx) insert(_ context.Context, coll, id string, meta docMeta, data []byte) error {
	k := docKey{coll, id}
	if _, ok := tx.writes[k]; ok {
		return ErrDuplicateKey
	}
	if _, ok := tx.observe(k); ok {
		return ErrDuplicateKey
	}
	tx.writes[k] = localWrite{meta: meta, data: append([]byte(nil), data...), insert: true}
	return nil
}

func (tx *localTx) put(_ context.Context, coll, id string, meta docMeta, data []byte) error {
	k := docKey{coll, id}
	w, ok := tx.writes[k]
	tx.writes[k] = localWrite{meta: meta, data: append([]byte(nil), data...), insert: ok && w.insert}
	return nil
}

func (tx *localTx) list(context.Context, string, docFilter) ([][]byte, error) {
	return nil, fmt.Errorf("list is not supported inside a transaction")
}

func (tx *localTx) commit() error {
	if len(tx.writes) == 0 {
		return nil
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	for k, seen := range tx.reads {
		d, _ := tx.db.lookup(k.coll, k.id)
		if d.Version != seen {
			return ErrTransactionConflict
		}
	}
	for k, w := range tx.writes {
		if _, exists := tx.db.lookup(k.coll, k.id); exists && w.insert {
			return ErrDuplicateKey
		}
	}
	for k, w := range tx.writes {
		tx.db.store(k.coll, k.id, w.meta, w.data)
	}
	tx.db.persist()
	return nil
}
