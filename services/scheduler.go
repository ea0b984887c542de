package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type expiringCache interface {
	PurgeExpired() int
}

// StartMaintenance schedules the cache purge and the idle session eviction.
// The caller stops the returned cron on shutdown.
func StartMaintenance(cache SessionCache, sessions *SessionManager, maxIdle time.Duration) (*cron.Cron, error) {
	c := cron.New()

	if ec, ok := cache.(expiringCache); ok {
		if _, err := c.AddFunc("@every 1m", func() {
			if n := ec.PurgeExpired(); n > 0 {
				log.Printf("[CACHE] purged %d expired session slots", n)
			}
		}); err != nil {
			return nil, err
		}
	}

	if _, err := c.AddFunc("@every 5m", func() {
		sessions.EvictIdle(context.Background(), maxIdle)
	}); err != nil {
		return nil, err
	}

	c.Start()
	log.Println("Maintenance scheduler started")
	return c, nil
}
