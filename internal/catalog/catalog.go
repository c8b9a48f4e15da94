// Package catalog implements schema and statistics metadata as reserved-
// prefix keys inside the engine's B+-tree, per spec §3/§4.6. Grounded
// directly on original_source/python/toydb/catalog.py for the prefix
// scheme and the range-scan-for-existence rule spec §9 calls out
// explicitly ("existence checks must use range scan over the exact
// prefix, not point lookup that swallows exceptions"); the Go
// struct/method shape follows the teacher's storage_engine/catalog
// layout even though that file's JSON-backed storage is not reused.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"coredb/internal/btree"
	"coredb/internal/dberr"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

const (
	prefixTables  = "__catalog__tables:"
	prefixColumns = "__catalog__columns:"
	prefixIndexes = "__catalog__indexes:"
	prefixStats   = "__catalog__stats:"

	deleted = "DELETED"
)

// Store is the subset of engine.Engine the catalog needs.
type Store interface {
	Get(key []byte) ([]byte, bool, error)
	Insert(key, value []byte) error
	RangeScan(start, end []byte) ([]btree.KV, error)
}

// ColumnDef describes one column: its declared type and position.
type ColumnDef struct {
	Name    string
	Type    string // INT | TEXT | FLOAT
	Ordinal int
}

// IndexDef describes a secondary index's metadata (spec §1 Non-goals:
// "physical secondary indexes (only their metadata is tracked)").
type IndexDef struct {
	Name   string
	Table  string
	Column string
}

// Catalog is the schema/statistics facility, backed by the engine's tree.
type Catalog struct {
	store    Store
	cache    *ristretto.Cache[string, []ColumnDef]
	idxCache *ristretto.Cache[string, []IndexDef]
	log      *zap.Logger
}

// New constructs a Catalog over store, with ristretto read-through caches
// for DescribeTable and GetIndexesForTable lookups. Losing a cached entry
// is always safe: the B+-tree range scan remains the source of truth, and
// existence checks never consult either cache (spec §4.6/§9).
func New(store Store, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []ColumnDef]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	idxCache, err := ristretto.NewCache(&ristretto.Config[string, []IndexDef]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create catalog index cache: %w", err)
	}
	return &Catalog{store: store, cache: cache, idxCache: idxCache, log: log}, nil
}

func tableKey(name string) []byte  { return []byte(prefixTables + name) }
func columnKey(table, col string) []byte {
	return []byte(prefixColumns + table + ":" + col)
}
func indexKey(name string) []byte { return []byte(prefixIndexes + name) }
func statsKey(table string) []byte { return []byte(prefixStats + table) }

// tableExists uses a range scan over the exact table-prefix key rather
// than a point lookup, per spec §9's explicit warning.
func (c *Catalog) tableExists(name string) (bool, error) {
	key := tableKey(name)
	rows, err := c.store.RangeScan(key, key)
	if err != nil {
		return false, err
	}
	for _, kv := range rows {
		if string(kv.Value) != deleted {
			return true, nil
		}
	}
	return false, nil
}

// CreateTable writes the table row and one row per column with its
// ordinal. Fails with SchemaError if a non-deleted table row already
// exists.
func (c *Catalog) CreateTable(name string, columns []ColumnDef) error {
	exists, err := c.tableExists(name)
	if err != nil {
		return err
	}
	if exists {
		return &dberr.SchemaError{Msg: fmt.Sprintf("table %s already exists", name)}
	}
	if err := c.store.Insert(tableKey(name), []byte(fmt.Sprintf("columns=%d", len(columns)))); err != nil {
		return err
	}
	for i, col := range columns {
		val := fmt.Sprintf("type=%s,ordinal=%d", col.Type, i)
		if err := c.store.Insert(columnKey(name, col.Name), []byte(val)); err != nil {
			return err
		}
	}
	if err := c.store.Insert(statsKey(name), []byte("rows=0")); err != nil {
		return err
	}
	c.cache.Del(name)
	c.log.Info("catalog: created table", zap.String("table", name), zap.Int("columns", len(columns)))
	return nil
}

// DropTable marks the table, its columns, and all indexes referencing it
// as DELETED.
func (c *Catalog) DropTable(name string) error {
	exists, err := c.tableExists(name)
	if err != nil {
		return err
	}
	if !exists {
		return &dberr.SchemaError{Msg: fmt.Sprintf("table %s does not exist", name)}
	}
	if err := c.store.Insert(tableKey(name), []byte(deleted)); err != nil {
		return err
	}
	cols, err := c.DescribeTable(name)
	if err != nil {
		return err
	}
	for _, col := range cols {
		if err := c.store.Insert(columnKey(name, col.Name), []byte(deleted)); err != nil {
			return err
		}
	}
	indexes, err := c.GetIndexesForTable(name)
	if err != nil {
		return err
	}
	for _, ix := range indexes {
		if err := c.store.Insert(indexKey(ix.Name), []byte(deleted)); err != nil {
			return err
		}
	}
	c.cache.Del(name)
	c.idxCache.Del(name)
	return nil
}

// AddColumn appends a column with ordinal = current column count.
func (c *Catalog) AddColumn(table string, col ColumnDef) error {
	cols, err := c.DescribeTable(table)
	if err != nil {
		return err
	}
	col.Ordinal = len(cols)
	if err := c.store.Insert(columnKey(table, col.Name), []byte(fmt.Sprintf("type=%s,ordinal=%d", col.Type, col.Ordinal))); err != nil {
		return err
	}
	if err := c.store.Insert(tableKey(table), []byte(fmt.Sprintf("columns=%d", len(cols)+1))); err != nil {
		return err
	}
	c.cache.Del(table)
	return nil
}

// CreateIndex writes an index metadata row; it does not build a physical
// index structure (spec §1 Non-goals).
func (c *Catalog) CreateIndex(name, table, column string) error {
	exists, err := c.tableExists(table)
	if err != nil {
		return err
	}
	if !exists {
		return &dberr.SchemaError{Msg: fmt.Sprintf("table %s does not exist", table)}
	}
	if err := c.store.Insert(indexKey(name), []byte(fmt.Sprintf("table=%s,column=%s", table, column))); err != nil {
		return err
	}
	c.idxCache.Del(table)
	return nil
}

// DropIndex marks an index as DELETED.
func (c *Catalog) DropIndex(name string) error {
	if val, ok, err := c.store.Get(indexKey(name)); err == nil && ok && string(val) != deleted {
		if table := indexTableFromValue(string(val)); table != "" {
			c.idxCache.Del(table)
		}
	}
	return c.store.Insert(indexKey(name), []byte(deleted))
}

// indexTableFromValue extracts the "table=" field from an index metadata
// value, as written by CreateIndex.
func indexTableFromValue(val string) string {
	for _, part := range strings.Split(val, ",") {
		p := strings.SplitN(part, "=", 2)
		if len(p) == 2 && p[0] == "table" {
			return p[1]
		}
	}
	return ""
}

// DescribeTable returns the table's columns sorted by ordinal, consulting
// the ristretto cache before falling back to a range scan.
func (c *Catalog) DescribeTable(table string) ([]ColumnDef, error) {
	if cached, ok := c.cache.Get(table); ok {
		return cached, nil
	}
	prefix := prefixColumns + table + ":"
	rows, err := c.store.RangeScan([]byte(prefix), []byte(prefix+"\xff"))
	if err != nil {
		return nil, err
	}
	var cols []ColumnDef
	for _, kv := range rows {
		val := string(kv.Value)
		if val == deleted {
			continue
		}
		name := strings.TrimPrefix(string(kv.Key), prefix)
		col, err := parseColumnValue(name, val)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Ordinal < cols[j].Ordinal })
	c.cache.SetWithTTL(table, cols, 1, 0)
	return cols, nil
}

func parseColumnValue(name, val string) (ColumnDef, error) {
	col := ColumnDef{Name: name}
	for _, part := range strings.Split(val, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "type":
			col.Type = kv[1]
		case "ordinal":
			n, err := strconv.Atoi(kv[1])
			if err != nil {
				return col, fmt.Errorf("bad ordinal in catalog entry %q: %w", val, err)
			}
			col.Ordinal = n
		}
	}
	return col, nil
}

// ListTables returns every non-deleted table name.
func (c *Catalog) ListTables() ([]string, error) {
	rows, err := c.store.RangeScan([]byte(prefixTables), []byte(prefixTables+"\xff"))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, kv := range rows {
		if string(kv.Value) == deleted {
			continue
		}
		names = append(names, strings.TrimPrefix(string(kv.Key), prefixTables))
	}
	return names, nil
}

// GetIndexesForTable returns every non-deleted index whose metadata
// references table, consulting the ristretto cache before falling back to
// a range scan.
func (c *Catalog) GetIndexesForTable(table string) ([]IndexDef, error) {
	if cached, ok := c.idxCache.Get(table); ok {
		return cached, nil
	}
	rows, err := c.store.RangeScan([]byte(prefixIndexes), []byte(prefixIndexes+"\xff"))
	if err != nil {
		return nil, err
	}
	var out []IndexDef
	for _, kv := range rows {
		val := string(kv.Value)
		if val == deleted {
			continue
		}
		ix := IndexDef{Name: strings.TrimPrefix(string(kv.Key), prefixIndexes)}
		for _, part := range strings.Split(val, ",") {
			p := strings.SplitN(part, "=", 2)
			if len(p) != 2 {
				continue
			}
			switch p[0] {
			case "table":
				ix.Table = p[1]
			case "column":
				ix.Column = p[1]
			}
		}
		if ix.Table == table {
			out = append(out, ix)
		}
	}
	c.idxCache.SetWithTTL(table, out, 1, 0)
	return out, nil
}

// GetStats returns the advisory row count for table.
func (c *Catalog) GetStats(table string) (int, error) {
	val, ok, err := c.store.Get(statsKey(table))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(val), "rows="))
	if err != nil {
		return 0, fmt.Errorf("bad stats entry for %s: %w", table, err)
	}
	return n, nil
}

// UpdateStats overwrites the advisory row count for table.
func (c *Catalog) UpdateStats(table string, rows int) error {
	return c.store.Insert(statsKey(table), []byte(fmt.Sprintf("rows=%d", rows)))
}

// TableExists is the public existence check, per spec §4.6/§9 it is a
// range scan, never a point lookup.
func (c *Catalog) TableExists(name string) (bool, error) {
	return c.tableExists(name)
}
