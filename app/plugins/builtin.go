package plugins

import (
	"github.com/kilianp07/evsim/config"
	"github.com/kilianp07/evsim/core/eventcache"
	"github.com/kilianp07/evsim/core/runlog"
)

func init() {
	RegisterLedger("jsonl", func(cfg config.LedgerConfig) (runlog.Store, error) {
		if cfg.MaxSizeMB > 0 {
			return runlog.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return runlog.NewJSONLStore(cfg.Path)
	})
	RegisterLedger("sqlite", func(cfg config.LedgerConfig) (runlog.Store, error) {
		return runlog.NewSQLiteStore(cfg.Path)
	})

	RegisterEventStore("file", func(cfg *config.Config) (eventcache.Store, error) {
		return eventcache.NewFileStore(cfg.CacheDir), nil
	})
	RegisterEventStore("redis", func(cfg *config.Config) (eventcache.Store, error) {
		return eventcache.NewRedisStore(cfg.EventCache.Redis)
	})
}
