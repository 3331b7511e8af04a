package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"binarymlm/internal/matching"
)

const (
	sweepSchedule = "@hourly"
	guardTTL      = 48 * time.Hour
)

type MatchingRunner interface {
	RunDaily(ctx context.Context) (*matching.Result, error)
}

type OTPSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the daily matching job and the hourly code sweep. When a
// redis client is given, a matching run is claimed per UTC day so several
// instances do not run it twice.
type Scheduler struct {
	schedule string
	matching MatchingRunner
	sweeper  OTPSweeper
	redis    *redis.Client
	prefix   string
	now      func() time.Time
}

func NewScheduler(schedule string, m MatchingRunner, s OTPSweeper, rdb *redis.Client) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid matching schedule %q: %w", schedule, err)
	}
	return &Scheduler{schedule: schedule, matching: m, sweeper: s, redis: rdb, prefix: "matching_run_", now: time.Now}, nil
}

// Start blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.RunMatching(ctx) }); err != nil {
		return err
	}
	if s.sweeper != nil {
		if _, err := c.AddFunc(sweepSchedule, func() { s.SweepOTP(ctx) }); err != nil {
			return err
		}
	}

	log.Info().Str("matching", s.schedule).Msg("background scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("background scheduler stopped")
	return nil
}

// RunMatching runs one matching cycle unless another instance claimed today's.
func (s *Scheduler) RunMatching(ctx context.Context) {
	key, ok := s.claim(ctx)
	if !ok {
		return
	}

	res, err := s.matching.RunDaily(ctx)
	if err != nil {
		if !errors.Is(err, matching.ErrRunInProgress) {
			s.release(key)
		}
		log.Error().Err(err).Msg("matching run failed")
		return
	}
	if len(res.Errors) > 0 {
		log.Warn().Int("failed", res.Failed).Msg("matching run finished with failures")
	}
}

func (s *Scheduler) SweepOTP(ctx context.Context) {
	if _, err := s.sweeper.SweepExpired(ctx); err != nil {
		log.Error().Err(err).Msg("otp sweep failed")
	}
}

func (s *Scheduler) claim(ctx context.Context) (string, bool) {
	if s.redis == nil {
		return "", true
	}
	key := s.prefix + s.now().UTC().Format("2006-01-02")
	ok, err := s.redis.SetNX(ctx, key, "true", guardTTL).Result()
	if err != nil {
		log.Warn().Err(err).Msg("matching guard unavailable, running anyway")
		return "", true
	}
	if !ok {
		log.Info().Str("key", key).Msg("matching already ran today")
	}
	return key, ok
}

func (s *Scheduler) release(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to release matching guard")
	}
}
