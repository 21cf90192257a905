// Package idempotency deduplicates caller-side transfer retries with a redis key store.
// The transfer engine itself never deduplicates.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"walletledger/config"
	"walletledger/models"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	keyPrefix     = "walletledger:transfer:"
	pendingMarker = "pending"
)

// ErrDuplicateRequest is matched by every DuplicateRequestError
var ErrDuplicateRequest = errors.New("duplicate transfer request")

// DuplicateRequestError reports a key that was already used.
// EntryID is zero while the first request is still in flight.
type DuplicateRequestError struct {
	Key     string
	EntryID int64
}

func (e *DuplicateRequestError) Error() string {
	if e.EntryID == 0 {
		return fmt.Sprintf("transfer request %q is already in progress", e.Key)
	}
	return fmt.Sprintf("transfer request %q already committed as entry %d", e.Key, e.EntryID)
}

func (e *DuplicateRequestError) Is(target error) bool {
	return target == ErrDuplicateRequest
}

// TransferEngine is the part of the transfer engine the Transferer wraps
type TransferEngine interface {
	Transfer(ctx context.Context, req models.TransferRequest) (*models.LedgerEntry, error)
}

// Transferer claims an idempotency key before handing a request to the engine
type Transferer struct {
	engine TransferEngine
	rdb    *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a client for the configured idempotency store
func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewTransferer creates a Transferer whose keys expire after ttl
func NewTransferer(engine TransferEngine, rdb *redis.Client, ttl time.Duration) *Transferer {
	return &Transferer{engine: engine, rdb: rdb, ttl: ttl}
}

// Transfer runs req at most once per key within the TTL.
// An empty key passes the request straight to the engine.
func (t *Transferer) Transfer(ctx context.Context, key string, req models.TransferRequest) (*models.LedgerEntry, error) {
	if key == "" {
		return t.engine.Transfer(ctx, req)
	}

	redisKey := keyPrefix + key
	claimed, err := t.rdb.SetNX(ctx, redisKey, pendingMarker, t.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		return nil, t.duplicate(ctx, key, redisKey)
	}

	if req.Reference == "" {
		req.Reference = key
	}

	entry, err := t.engine.Transfer(ctx, req)

	// The outcome must be recorded even when the caller has already given up
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		// Release the key so the caller can retry a failed transfer
		if delErr := t.rdb.Del(writeCtx, redisKey).Err(); delErr != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": delErr,
			}).Warn("Failed to release idempotency key")
		}
		return nil, err
	}

	if err := t.rdb.Set(writeCtx, redisKey, strconv.FormatInt(entry.ID, 10), t.ttl).Err(); err != nil {
		log.WithFields(log.Fields{
			"key":     key,
			"entryID": entry.ID,
			"error":   err,
		}).Warn("Failed to record committed entry for idempotency key")
	}

	return entry, nil
}

func (t *Transferer) duplicate(ctx context.Context, key, redisKey string) error {
	val, err := t.rdb.Get(ctx, redisKey).Result()
	if err == redis.Nil || val == pendingMarker {
		return &DuplicateRequestError{Key: key}
	}
	if err != nil {
		return fmt.Errorf("failed to read idempotency key: %w", err)
	}

	entryID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt idempotency value %q: %w", val, err)
	}
	return &DuplicateRequestError{Key: key, EntryID: entryID}
}
