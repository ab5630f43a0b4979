package restore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"showroom/internal/changelog"
	"showroom/internal/manifest"
	"showroom/internal/metrics"
	"showroom/internal/selection"
	"showroom/internal/snapshot"
	"showroom/internal/state"
)

// Restorer rebuilds the durable selection from the latest checkpoint and the
// changelog recorded after it.
type Restorer struct {
	backend   state.Backend
	snapshots snapshot.Reader
	manifests manifest.Reader
	log       *zap.Logger
	metrics   *metrics.Registry
}

type RestoreResult struct {
	SnapshotID string `json:"snapshotId,omitempty"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
	Keys       int    `json:"keys"`
	Bytes      int64  `json:"bytes"`
}

func NewRestorer(backend state.Backend, snaps snapshot.Reader, mr manifest.Reader, log *zap.Logger, m *metrics.Registry) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{
		backend:   backend,
		snapshots: snaps,
		manifests: mr,
		log:       log,
		metrics:   m,
	}
}

// RestoreFromSnapshot loads a checkpointed selection. An empty id or a
// snapshot that no longer exists yields an empty selection.
func (r *Restorer) RestoreFromSnapshot(snapshotID string) (selection.Map, error) {
	if snapshotID == "" {
		return selection.Map{}, nil
	}
	m, err := r.snapshots.ReadSnapshot(snapshotID)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			r.log.Warn("restore: snapshot not found, starting empty", zap.String("snapshot_id", snapshotID))
			return selection.Map{}, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	r.log.Info("restore: loaded snapshot",
		zap.String("snapshot_id", snapshotID),
		zap.Int("keys", len(m)))
	return selection.Map(m), nil
}

// Replay applies every delta with Seq above fromSeq to m in log order.
// Deltas at or below the highest sequence already applied are skipped, so
// duplicated records replay once.
func Replay(m selection.Map, deltas []changelog.Delta, fromSeq int64) (selection.Map, RestoreResult) {
	out := m.Copy()
	res := RestoreResult{}
	last := fromSeq
	for _, d := range deltas {
		if d.Seq <= last {
			res.Skipped++
			continue
		}
		switch d.Op {
		case changelog.OpSet:
			out[d.Key] = selection.Clamp(d.Qty)
		case changelog.OpDrop:
			delete(out, d.Key)
		case changelog.OpReset:
			out = selection.Map{}
		default:
			res.Skipped++
			continue
		}
		last = d.Seq
		res.Applied++
	}
	res.Keys = len(out)
	return out, res
}

// RestoreAndReplay reads the latest manifest, loads its snapshot, replays the
// newer changelog deltas from src and saves the result to the backend. Without
// a manifest the whole changelog is replayed onto an empty selection.
func (r *Restorer) RestoreAndReplay(ctx context.Context, src changelog.Source) (RestoreResult, error) {
	start := time.Now()

	var man manifest.Manifest
	m, err := r.manifests.ReadLatest()
	switch {
	case err == nil:
		man = m
	case errors.Is(err, manifest.ErrNoManifest):
		r.log.Info("restore: no manifest, replaying full changelog")
	default:
		return RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}

	sel, err := r.RestoreFromSnapshot(man.SnapshotID)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("restore snapshot: %w", err)
	}

	deltas, n, err := src.ReadAll(ctx)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("read changelog: %w", err)
	}
	sel, res := Replay(sel, deltas, man.LastSeq)
	res.SnapshotID = man.SnapshotID
	res.Bytes = n

	if err := r.backend.Save(sel); err != nil {
		return res, fmt.Errorf("save selection: %w", err)
	}

	if r.metrics != nil {
		r.metrics.Applied.Add(float64(res.Applied))
		r.metrics.Skipped.Add(float64(res.Skipped))
		r.metrics.ReplayBytes.Add(float64(n))
		r.metrics.TTRSec.Set(time.Since(start).Seconds())
		if man.CreatedAtEpochSecond > 0 {
			r.metrics.LastManifestAgeSec.Set(man.Age(time.Now()).Seconds())
		}
	}
	r.log.Info("restore: replay done",
		zap.String("snapshot_id", man.SnapshotID),
		zap.Int64("from_seq", man.LastSeq),
		zap.Int("applied", res.Applied),
		zap.Int("skipped", res.Skipped),
		zap.Int("keys", res.Keys))
	return res, nil
}
