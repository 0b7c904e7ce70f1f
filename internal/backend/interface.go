package backend

import (
	"context"

	"ledger/internal/services"
	"ledger/internal/storage"
	"ledger/internal/store"
)

// Result is what a backend factory hands to the binaries. Releasing it is
// the ledger service's job: LedgerService.Close closes Store and Publisher.
type Result struct {
	Store store.Store
	// Publisher is nil unless entry events are enabled.
	Publisher services.Publisher
	// SQLite is set for the sqlite backend; the sync worker needs its
	// bookkeeping queries.
	SQLite *storage.SQLiteRepository
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// JSON file specific
	DataDirectory string
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	JSONFileBackend BackendType = "jsonfile"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, JSONFileBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
