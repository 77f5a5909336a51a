package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/kjannette/quotesync/internal/models"
)

const (
	OpSelect = "select"
	OpInsert = "insert"
	OpUpdate = "update"
)

// Call records one primitive issued against a MemoryStore.
type Call struct {
	Op       string
	Table    string
	KeyField string
	Keys     []string // select: requested keys; update: the key value
	Rows     int
}

// MemoryStore keeps tables in process. It enforces key uniqueness on insert
// like a primary key would, records every call, and lets tests inject
// failures through Hook.
type MemoryStore struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string][]models.Record
	calls  []Call

	// Hook runs before each primitive; a non-nil error fails the call.
	Hook func(Call) error
}

// DefaultTableKeys maps each synchronized table to its key column. History
// has no key.
func DefaultTableKeys() map[string]string {
	return map[string]string{
		models.TableStocks:       models.KeySymbol,
		models.TableStockDetails: models.KeyStockSymbol,
		models.TableIndexPrices:  models.KeySymbol,
		models.TableIndexHistory: "",
	}
}

func NewMemoryStore(tableKeys map[string]string) *MemoryStore {
	if tableKeys == nil {
		tableKeys = DefaultTableKeys()
	}
	m := &MemoryStore{
		keys:   make(map[string]string, len(tableKeys)),
		tables: make(map[string][]models.Record, len(tableKeys)),
	}
	for t, k := range tableKeys {
		m.keys[t] = k
		m.tables[t] = nil
	}
	return m
}

func (m *MemoryStore) SelectKeys(_ context.Context, table, keyField string, keys []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(Call{Op: OpSelect, Table: table, KeyField: keyField, Keys: append([]string(nil), keys...)}); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var found []string
	for _, r := range m.tables[table] {
		if k := r.Key(keyField); want[k] {
			found = append(found, k)
			delete(want, k)
		}
	}
	return found, nil
}

func (m *MemoryStore) Insert(_ context.Context, table string, rows []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(Call{Op: OpInsert, Table: table, Rows: len(rows)}); err != nil {
		return err
	}

	if key := m.keys[table]; key != "" {
		seen := make(map[string]bool)
		for _, r := range m.tables[table] {
			seen[r.Key(key)] = true
		}
		for _, r := range rows {
			k := r.Key(key)
			if seen[k] {
				return fmt.Errorf("insert into %s: duplicate key %s=%s", table, key, k)
			}
			seen[k] = true
		}
	}

	for _, r := range rows {
		m.tables[table] = append(m.tables[table], r.Clone())
	}
	return nil
}

func (m *MemoryStore) Update(_ context.Context, table string, row models.Record, keyField, keyValue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(Call{Op: OpUpdate, Table: table, KeyField: keyField, Keys: []string{keyValue}, Rows: 1}); err != nil {
		return err
	}

	for _, r := range m.tables[table] {
		if r.Key(keyField) != keyValue {
			continue
		}
		for c, v := range row {
			r[c] = v
		}
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Rows returns a copy of table's rows in insertion order.
func (m *MemoryStore) Rows(table string) []models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Record, len(m.tables[table]))
	for i, r := range m.tables[table] {
		out[i] = r.Clone()
	}
	return out
}

// Calls returns the primitives issued so far.
func (m *MemoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MemoryStore) ResetCalls() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

func (m *MemoryStore) begin(c Call) error {
	if _, ok := m.tables[c.Table]; !ok {
		return fmt.Errorf("%s %s: %w", c.Op, c.Table, ErrUnknownTable)
	}
	m.calls = append(m.calls, c)
	if m.Hook != nil {
		if err := m.Hook(c); err != nil {
			return err
		}
	}
	return nil
}
