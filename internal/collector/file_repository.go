package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"predictengine/internal/model"
	"predictengine/internal/tradingapi"
)

// FileRepository persists ticks as a JSON array under one file per
// condition ID, using the same write-to-.tmp-then-rename pattern as
// the position store so a crash mid-flush never corrupts prior ticks.
type FileRepository struct {
	dir string
	mu  sync.Mutex
}

// NewFileRepository builds a repository backed by dir, created on Init.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Init creates the backing directory. Safe to call more than once.
func (r *FileRepository) Init(_ context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create tick store dir: %w", err)
	}
	return nil
}

// SaveTicks appends batch to each affected condition's file. The whole
// JSON array is read, extended in memory, and atomically rewritten so a concurrent reader never observes a partial
// write.
func (r *FileRepository) SaveTicks(_ context.Context, batch []model.Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byCondition := make(map[string][]model.Tick)
	for _, t := range batch {
		byCondition[t.ConditionID] = append(byCondition[t.ConditionID], t)
	}
	for cid, ticks := range byCondition {
		existing, err := r.readLocked(cid)
		if err != nil {
			return err
		}
		existing = append(existing, ticks...)
		if err := r.writeLocked(cid, existing); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileRepository) path(conditionID string) string {
	return filepath.Join(r.dir, "ticks_"+conditionID+".json")
}

func (r *FileRepository) readLocked(conditionID string) ([]model.Tick, error) {
	data, err := os.ReadFile(r.path(conditionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ticks: %w", err)
	}
	var ticks []model.Tick
	if err := json.Unmarshal(data, &ticks); err != nil {
		return nil, fmt.Errorf("unmarshal ticks: %w", err)
	}
	return ticks, nil
}

func (r *FileRepository) writeLocked(conditionID string, ticks []model.Tick) error {
	data, err := json.Marshal(ticks)
	if err != nil {
		return fmt.Errorf("marshal ticks: %w", err)
	}
	path := r.path(conditionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write ticks: %w", err)
	}
	return os.Rename(tmp, path)
}

// GetTicks returns ticks for a single asset ID within [startMs, endMs).
func (r *FileRepository) GetTicks(ctx context.Context, assetID string, startMs, endMs int64) ([]model.Tick, error) {
	all, err := r.allTicks()
	if err != nil {
		return nil, err
	}
	var out []model.Tick
	for _, t := range all {
		if t.AssetID == assetID && t.TimestampMs >= startMs && t.TimestampMs < endMs {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetTicksByCondition returns ticks for a single condition ID within
// [startMs, endMs).
func (r *FileRepository) GetTicksByCondition(_ context.Context, conditionID string, startMs, endMs int64) ([]model.Tick, error) {
	r.mu.Lock()
	ticks, err := r.readLocked(conditionID)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []model.Tick
	for _, t := range ticks {
		if t.TimestampMs >= startMs && t.TimestampMs < endMs {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetDistinctConditionIDs lists every condition ID with at least one
// stored tick in [startMs, endMs), sorted for deterministic output.
func (r *FileRepository) GetDistinctConditionIDs(_ context.Context, startMs, endMs int64) ([]string, error) {
	all, err := r.allTicks()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, t := range all {
		if t.TimestampMs >= startMs && t.TimestampMs < endMs {
			seen[t.ConditionID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for cid := range seen {
		out = append(out, cid)
	}
	sort.Strings(out)
	return out, nil
}

// GetTickCount returns the total number of ticks stored across all
// condition files.
func (r *FileRepository) GetTickCount(_ context.Context) (int64, error) {
	all, err := r.allTicks()
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

func (r *FileRepository) allTicks() ([]model.Tick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tick store dir: %w", err)
	}
	var all []model.Tick
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		var ticks []model.Tick
		if err := json.Unmarshal(data, &ticks); err != nil {
			continue
		}
		all = append(all, ticks...)
	}
	return all, nil
}

// Close is a no-op for file-based storage.
func (r *FileRepository) Close() error { return nil }

var _ tradingapi.TickRepository = (*FileRepository)(nil)
