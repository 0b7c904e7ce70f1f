package backend

import (
	"errors"
	"fmt"

	"ledger/internal/config"
)

// FromAppConfig picks the backend settings out of the application config.
// AMQP settings only matter to the sqlite backend, whose sync columns the
// worker sweeps.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("backend: nil application config")
	}
	kind := BackendType(appConfig.DataBackend)
	if !kind.IsValid() {
		return Config{}, fmt.Errorf("backend: unknown DATA_BACKEND %q", appConfig.DataBackend)
	}

	cfg := Config{Type: kind}
	switch kind {
	case SQLiteBackend:
		cfg.SQLiteDBPath = appConfig.SQLiteDBPath
		cfg.AMQPURL = appConfig.AMQPURL
		cfg.AMQPExchange = appConfig.AMQPExchange
		cfg.AMQPQueue = appConfig.AMQPQueue
	case JSONFileBackend:
		cfg.DataDirectory = appConfig.DataDir
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case !c.Type.IsValid():
		return fmt.Errorf("invalid backend type: %s", c.Type)
	case c.Type == SQLiteBackend && c.SQLiteDBPath == "":
		return errors.New("SQLite database path is required for sqlite backend")
	case c.Type == JSONFileBackend && c.DataDirectory == "":
		return errors.New("data directory is required for jsonfile backend")
	}
	return nil
}

// GetBackendTypes lists every accepted DATA_BACKEND value.
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, JSONFileBackend}
}
