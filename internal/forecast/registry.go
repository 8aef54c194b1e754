package forecast

import (
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/seqmodel"
)

// Snapshot is an immutable trained model plus the per-item normalization
// scalars captured while building its training set. A published snapshot
// must never be mutated; training builds a new one.
type Snapshot struct {
	Version      int64              `json:"version"`
	WindowLength int                `json:"window_length"`
	TrainedAt    time.Time          `json:"trained_at"`
	Model        *seqmodel.Model    `json:"model"`
	Norms        map[string]float64 `json:"norms"`
	Report       seqmodel.Report    `json:"report"`
}

// Norm returns the stored maxConsumption for an item
func (s *Snapshot) Norm(itemID string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.Norms[itemID]
	return v, ok && v > 0
}

// Registry holds the process-wide model snapshot. Readers never block writers.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Current returns the published snapshot or nil
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Model returns the current model or ErrModelUnavailable
func (r *Registry) Model() (*Snapshot, error) {
	snap := r.current.Load()
	if snap == nil || snap.Model == nil {
		return nil, domain.ErrModelUnavailable
	}
	return snap, nil
}

// Publish swaps in snap. Snapshots older than the current one are ignored so a
// slow restore cannot replace a freshly trained model; the return value
// reports whether snap was installed.
func (r *Registry) Publish(snap *Snapshot) bool {
	for {
		cur := r.current.Load()
		if cur != nil && snap.Version <= cur.Version {
			return false
		}
		if r.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

// Version returns the current model version, 0 when none is published
func (r *Registry) Version() int64 {
	if snap := r.current.Load(); snap != nil {
		return snap.Version
	}
	return 0
}
