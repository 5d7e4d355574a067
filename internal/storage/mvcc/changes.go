package mvcc

import "github.com/KilimcininKorOglu/mvstore/internal/storage/value"

// ChangeLog records the last committed version that wrote or deleted each
// key. A tombstone leaves no row behind, so the log is what tells a writer
// that an absent key was inserted and deleted again after it staged the key.
//
// ChangeLog is not safe for concurrent use; the engine guards it with its
// commit lock.
type ChangeLog struct {
	tables map[string]map[string]uint64
	size   int
}

// NewChangeLog creates an empty log.
func NewChangeLog() *ChangeLog {
	return &ChangeLog{tables: make(map[string]map[string]uint64)}
}

// changeKey maps keys that compare equal to the same string. Integers of
// every width compare numerically, so they share the Long encoding.
func changeKey(key value.Value) string {
	if n, ok := key.Int64(); ok {
		key = value.Long(n)
	}
	return string(value.Append(nil, key))
}

// Record notes that version changed key in table.
func (l *ChangeLog) Record(table string, key value.Value, version uint64) {
	keys, ok := l.tables[table]
	if !ok {
		keys = make(map[string]uint64)
		l.tables[table] = keys
	}
	k := changeKey(key)
	if _, ok := keys[k]; !ok {
		l.size++
	}
	if version > keys[k] {
		keys[k] = version
	}
}

// LastChange returns the last recorded version that changed key, 0 if none
// is recorded.
func (l *ChangeLog) LastChange(table string, key value.Value) uint64 {
	return l.tables[table][changeKey(key)]
}

// Prune forgets every change at or below version and returns how many were
// dropped.
func (l *ChangeLog) Prune(version uint64) int {
	if l.size == 0 {
		return 0
	}
	dropped := 0
	for table, keys := range l.tables {
		for k, v := range keys {
			if v <= version {
				delete(keys, k)
				dropped++
			}
		}
		if len(keys) == 0 {
			delete(l.tables, table)
		}
	}
	l.size -= dropped
	return dropped
}

// Len returns the number of recorded keys.
func (l *ChangeLog) Len() int { return l.size }
