package catalog

import (
	"context"
	"sync/atomic"
	"time"
)

// Snapshot is one grouped catalog fetch, tagged with the sequence number
// issued when the fetch started.
type Snapshot struct {
	Seq       uint64
	Groups    []Group
	FetchedAt time.Time
}

// Fetcher wraps a Loader and numbers every fetch it starts. Consumers compare
// a snapshot's Seq with Latest to detect results overtaken by a newer fetch.
type Fetcher struct {
	loader Loader
	issued atomic.Uint64
}

func NewFetcher(l Loader) *Fetcher {
	return &Fetcher{loader: l}
}

// Fetch loads and groups a catalog. The sequence is taken before loading, so a
// slow fetch that finishes after a later one still carries its older number.
func (f *Fetcher) Fetch(ctx context.Context) (Snapshot, error) {
	seq := f.issued.Add(1)
	recs, err := f.loader.Load(ctx)
	if err != nil {
		return Snapshot{Seq: seq}, err
	}
	return Snapshot{Seq: seq, Groups: GroupByVariant(recs), FetchedAt: NowUTC()}, nil
}

// Latest returns the most recently issued sequence number.
func (f *Fetcher) Latest() uint64 { return f.issued.Load() }

// NowUTC is split for testability.
var NowUTC = func() time.Time { return time.Now().UTC() }
