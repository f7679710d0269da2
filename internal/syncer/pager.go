package syncer

import (
	"dexIngest/internal/model"
)

// pager holds the request position of one entity loop.
type pager struct {
	d      Descriptor
	lastID string
	since  int64
	skip   int
}

func newPager(d Descriptor, cursor model.SyncCursor, mode Mode, startBlock int64) *pager {
	p := &pager{d: d}
	switch d.Pagination {
	case KeysetID:
		if mode != ModeFull {
			p.lastID = cursor.LastSyncedID
		}
	case KeysetNumeric:
		if d.Marker == MarkerBlock && startBlock > 0 {
			p.since = startBlock
		}
		if mode != ModeFull {
			if stored := cursorMarker(d, cursor); stored > p.since {
				p.since = stored
			}
		}
	}
	return p
}

func cursorMarker(d Descriptor, c model.SyncCursor) int64 {
	if d.Marker == MarkerBlock {
		return c.LastSyncedBlockNumber
	}
	return c.LastSyncedTimestamp
}

// advance moves the position past nodes. It reports false when the page did
// not move the position forward.
func (p *pager) advance(nodes []Node) bool {
	switch p.d.Pagination {
	case KeysetID:
		maxID := ""
		for _, n := range nodes {
			if id, ok := n.String("id"); ok && id > maxID {
				maxID = id
			}
		}
		if maxID <= p.lastID {
			return false
		}
		p.lastID = maxID
		return true
	case KeysetNumeric:
		var (
			maxMarker int64
			ties      int
			seen      bool
		)
		for _, n := range nodes {
			m, ok, err := n.Int64(p.d.MarkerField)
			if !ok || err != nil {
				continue
			}
			switch {
			case !seen || m > maxMarker:
				maxMarker, ties, seen = m, 1, true
			case m == maxMarker:
				ties++
			}
		}
		if !seen || maxMarker < p.since {
			return false
		}
		// rows sharing the page maximum were already seen; skip them next time.
		if maxMarker > p.since {
			p.since = maxMarker
			p.skip = ties
		} else {
			p.skip += ties
		}
		return true
	default:
		p.skip += len(nodes)
		return true
	}
}

// apply returns c advanced to the pager position, never moving it backwards.
func (p *pager) apply(c model.SyncCursor) model.SyncCursor {
	switch p.d.Pagination {
	case KeysetID:
		if p.lastID > c.LastSyncedID {
			c.LastSyncedID = p.lastID
		}
	case KeysetNumeric:
		if p.d.Marker == MarkerBlock {
			if p.since > c.LastSyncedBlockNumber {
				c.LastSyncedBlockNumber = p.since
			}
		} else if p.since > c.LastSyncedTimestamp {
			c.LastSyncedTimestamp = p.since
		}
	}
	return c
}
