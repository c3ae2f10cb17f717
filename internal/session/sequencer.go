// Package session assigns per-session event sequences. All records of
// one session must be materialized before its ranks can be assigned,
// so grouping is a barrier at session granularity; sessions themselves
// are independent and ranked in parallel.
package session

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// Sequenced pairs a validated record with its session position.
type Sequenced struct {
	Record *types.ValidatedRecord

	// Sequence is the 1-based rank within the session, contiguous with
	// no gaps or repeats.
	Sequence int

	// IsSessionStart is true for exactly one record per session.
	IsSessionStart bool
}

// Sequencer groups records by session and assigns ranks.
type Sequencer struct {
	workers int
}

// NewSequencer creates a sequencer ranking up to workers sessions in
// parallel.
func NewSequencer(workers int) *Sequencer {
	if workers <= 0 {
		workers = 1
	}
	return &Sequencer{workers: workers}
}

// Sequence groups the run's validated records by session_id, orders
// each session by (timestamp, event_id), and assigns 1-based ranks.
// Records without a session_id share the empty-string group, matching
// how the upstream window partitioning treated null sessions. The
// result is ordered by session key, then rank, so downstream output is
// reproducible for identical input regardless of input order.
func (s *Sequencer) Sequence(ctx context.Context, records []*types.ValidatedRecord) ([]Sequenced, error) {
	if len(records) == 0 {
		return nil, nil
	}

	groups := make(map[string][]*types.ValidatedRecord)
	for _, rec := range records {
		groups[rec.SessionID] = append(groups[rec.SessionID], rec)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Each session owns its slice; no shared mutable state crosses
	// session boundaries.
	ranked := make([][]Sequenced, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, key := range keys {
		i := i
		recs := groups[key]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ranked[i] = rankSession(recs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Sequenced, 0, len(records))
	for _, group := range ranked {
		out = append(out, group...)
	}
	return out, nil
}

// rankSession sorts one session's records and assigns ranks. The
// event_id tie-break makes the order a pure function of the records,
// so reruns and any level of parallel grouping produce identical
// sequences even when timestamps collide.
func rankSession(recs []*types.ValidatedRecord) []Sequenced {
	sort.Slice(recs, func(a, b int) bool {
		if !recs[a].Timestamp.Equal(recs[b].Timestamp) {
			return recs[a].Timestamp.Before(recs[b].Timestamp)
		}
		return recs[a].EventID < recs[b].EventID
	})

	out := make([]Sequenced, len(recs))
	for i, rec := range recs {
		out[i] = Sequenced{
			Record:         rec,
			Sequence:       i + 1,
			IsSessionStart: i == 0,
		}
	}
	return out
}
