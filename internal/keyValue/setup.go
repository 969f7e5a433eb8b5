package keyValue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Short lived lookups that don't belong in the database, like the profile
// existence check done on every authenticated request. Backed by redis, or by
// an in-process map with a sweeper when running self contained.

type entry struct {
	value   string
	expires time.Time
}

var mutex sync.RWMutex
var local = make(map[string]entry)

var sugar *zap.SugaredLogger
var redisClient *redis.Client
var redisCtx = context.Background()
var selfContained = true

func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained

	if selfContained {
		go sweepExpiredKeys()
	}
}

func sweepExpiredKeys() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		mutex.Lock()
		for key, e := range local {
			if e.expires.Before(time.Now()) {
				delete(local, key)
			}
		}
		mutex.Unlock()
	}
}

// Get returns empty string for a missing or expired key, same as redis.Nil.
func Get(key string) (string, error) {
	if selfContained {
		mutex.RLock()
		defer mutex.RUnlock()

		e := local[key]
		if e.expires.Before(time.Now()) {
			return "", nil
		}

		return e.value, nil
	}

	value, err := redisClient.Get(redisCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func Set(key string, value string, expires time.Duration) error {
	sugar.Debugf("Caching key [%s]", key)

	if selfContained {
		mutex.Lock()
		defer mutex.Unlock()

		local[key] = entry{value, time.Now().Add(expires)}

		return nil
	}

	_, err := redisClient.Set(redisCtx, key, value, expires).Result()
	return err
}
