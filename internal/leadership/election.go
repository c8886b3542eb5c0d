/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects the instance that runs the auto-build loop when
// several gradefm instances share one grade output. A Redis SetNX lease is
// the lock; the leader renews it, followers poll for it.
package leadership

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/audiosolutions/gradefm/internal/telemetry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	electionKey = "gradefm:leader:autobuild"

	leaseDuration = 15 * time.Second
	retryInterval = 2 * time.Second
)

// Config configures the election.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	InstanceID    string
}

// Election is a Redis lease election.
type Election struct {
	client     *redis.Client
	logger     zerolog.Logger
	instanceID string

	leader   atomic.Bool
	leaderCh chan bool
	cancel   context.CancelFunc
}

// NewElection connects to Redis and prepares an election.
func NewElection(cfg Config, logger zerolog.Logger) (*Election, error) {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Election{
		client:     client,
		logger:     logger.With().Str("component", "leadership").Str("instance_id", cfg.InstanceID).Logger(),
		instanceID: cfg.InstanceID,
		leaderCh:   make(chan bool, 1),
	}, nil
}

// Start runs the campaign loop until Stop or ctx cancellation.
func (e *Election) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.logger.Info().Dur("lease", leaseDuration).Msg("leader election started")
	go e.campaign(ctx)
}

// Stop releases leadership if held and closes the Redis connection.
func (e *Election) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	if e.leader.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.release(ctx); err != nil {
			e.logger.Error().Err(err).Msg("release leadership failed")
		}
	}
	return e.client.Close()
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	return e.leader.Load()
}

// LeaderCh delivers leadership transitions. Slow consumers miss
// intermediate flips, never the latest state.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// CurrentLeader returns the instance ID holding the lease, empty when none.
func (e *Election) CurrentLeader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, electionKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read leader key: %w", err)
	}
	return id, nil
}

func (e *Election) campaign(ctx context.Context) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := e.tryAcquire(ctx)
			if err != nil {
				e.logger.Error().Err(err).Msg("leadership attempt failed")
				e.setLeader(false)
				continue
			}
			e.setLeader(held)
		}
	}
}

// tryAcquire takes the lease if free, or renews it if we already hold it.
func (e *Election) tryAcquire(ctx context.Context) (bool, error) {
	acquired, err := e.client.SetNX(ctx, electionKey, e.instanceID, leaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lease: %w", err)
	}
	if acquired {
		return true, nil
	}

	holder, err := e.client.Get(ctx, electionKey).Result()
	if err == redis.Nil {
		// Lease expired between the two calls; next tick retries.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lease holder: %w", err)
	}
	if holder != e.instanceID {
		return false, nil
	}

	if err := e.client.Expire(ctx, electionKey, leaseDuration).Err(); err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return true, nil
}

// release drops the lease only if this instance still owns it.
func (e *Election) release(ctx context.Context) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	if err := e.client.Eval(ctx, script, []string{electionKey}, e.instanceID).Err(); err != nil {
		return fmt.Errorf("delete lease: %w", err)
	}
	e.logger.Info().Msg("leadership released")
	return nil
}

func (e *Election) setLeader(held bool) {
	if e.leader.Load() == held {
		return
	}
	e.leader.Store(held)

	if held {
		e.logger.Info().Msg("acquired leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues(e.instanceID, "acquired").Inc()
	} else {
		e.logger.Warn().Msg("lost leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues(e.instanceID, "lost").Inc()
	}

	// Replace any undelivered notification with the latest state.
	select {
	case e.leaderCh <- held:
	default:
		select {
		case <-e.leaderCh:
		default:
		}
		e.leaderCh <- held
	}
}
