package inmemdb

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/chat"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
	"github.com/trezcool/educa/core/user"
)

type (
	enrollmentKey struct {
		courseID int
		userID   int
	}

	progressKey struct {
		userID   int
		moduleID int
	}

	itemRow struct {
		base    content.ItemBase
		payload string
	}

	tables struct {
		users    map[int]user.User
		subjects map[int]course.Subject
		courses  map[int]course.Course
		modules  map[int]course.Module
		contents map[int]content.Content
		items    map[content.Kind]map[int]itemRow
		students map[enrollmentKey]time.Time // enrolled at
		progress map[progressKey]enrollment.ModuleProgress
		messages map[int]chat.Message
		pkCount  map[string]int
	}

	// DB is an in-memory store guarded by a single lock.
	// Every write, including order allocation, happens while the lock is held.
	DB struct {
		mutex sync.RWMutex
		tables
	}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	items := make(map[content.Kind]map[int]itemRow, len(content.Kinds))
	for _, k := range content.Kinds {
		items[k] = make(map[int]itemRow)
	}
	return tables{
		users:    make(map[int]user.User),
		subjects: make(map[int]course.Subject),
		courses:  make(map[int]course.Course),
		modules:  make(map[int]course.Module),
		contents: make(map[int]content.Content),
		items:    items,
		students: make(map[enrollmentKey]time.Time),
		progress: make(map[progressKey]enrollment.ModuleProgress),
		messages: make(map[int]chat.Message),
		pkCount:  make(map[string]int),
	}
}

func (t tables) clone() tables {
	items := make(map[content.Kind]map[int]itemRow, len(t.items))
	for k, rows := range t.items {
		items[k] = maps.Clone(rows)
	}
	return tables{
		users:    maps.Clone(t.users),
		subjects: maps.Clone(t.subjects),
		courses:  maps.Clone(t.courses),
		modules:  maps.Clone(t.modules),
		contents: maps.Clone(t.contents),
		items:    items,
		students: maps.Clone(t.students),
		progress: maps.Clone(t.progress),
		messages: maps.Clone(t.messages),
		pkCount:  maps.Clone(t.pkCount),
	}
}

// nextPK returns the next serial id of table. The lock must be held.
func (db *DB) nextPK(table string) int {
	db.pkCount[table]++
	return db.pkCount[table]
}

// txExec marks repository calls made from inside Atomic, where the lock is already held.
type txExec struct {
	core.DBExecutor
}

func inTx(exec []core.DBExecutor) bool {
	if len(exec) > 0 {
		_, ok := exec[0].(txExec)
		return ok
	}
	return false
}

func (db *DB) write(exec []core.DBExecutor, fn func() error) error {
	if !inTx(exec) {
		db.mutex.Lock()
		defer db.mutex.Unlock()
	}
	return fn()
}

func (db *DB) read(exec []core.DBExecutor, fn func() error) error {
	if !inTx(exec) {
		db.mutex.RLock()
		defer db.mutex.RUnlock()
	}
	return fn()
}

var _ core.Transactor = (*DB)(nil)

// Atomic runs fn with the store locked; every change made by fn is undone when it fails.
func (db *DB) Atomic(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	snapshot := db.tables.clone()
	if err := fn(txExec{}); err != nil {
		db.tables = snapshot
		return err
	}
	return nil
}
