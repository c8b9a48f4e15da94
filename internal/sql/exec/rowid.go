package exec

import (
	"strconv"
	"strings"
	"sync"

	"coredb/internal/engine"
)

// rowIDGenerator assigns strictly increasing per-table row id suffixes.
// Grounded on spec §3/§9: ids are a monotonic counter; implementations
// must guard against collisions across restarts, so the first insert
// into a table after process start recovers the table's current maximum
// id from a range scan before handing out fresh ones.
type rowIDGenerator struct {
	mu   sync.Mutex
	eng  *engine.Engine
	last map[string]int64
}

func newRowIDGenerator(eng *engine.Engine) *rowIDGenerator {
	return &rowIDGenerator{eng: eng, last: make(map[string]int64)}
}

func (g *rowIDGenerator) next(table string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, seen := g.last[table]; !seen {
		max, err := g.scanMaxID(table)
		if err != nil {
			return 0, err
		}
		g.last[table] = max
	}
	g.last[table]++
	return g.last[table], nil
}

func (g *rowIDGenerator) scanMaxID(table string) (int64, error) {
	prefix := table + ":"
	rows, err := g.eng.RangeScan([]byte(prefix), []byte(prefix+"\xff"))
	if err != nil {
		return 0, err
	}
	var max int64
	for _, kv := range rows {
		key := string(kv.Key)
		suffix := strings.TrimPrefix(key, prefix)
		if n, err := strconv.ParseInt(suffix, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

// rowKey formats the 18-digit zero-padded row key, per spec §3/§6.
func rowKey(table string, id int64) []byte {
	return []byte(table + ":" + padID(id))
}

func padID(id int64) string {
	s := strconv.FormatInt(id, 10)
	for len(s) < 18 {
		s = "0" + s
	}
	return s
}
