package training

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockcast/internal/domain"
)

// Scheduler retrains on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	trainer *Trainer
}

// NewScheduler parses a standard five-field cron spec (descriptors such as
// "@daily" are accepted too).
func NewScheduler(trainer *Trainer, spec string) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, trainer: trainer}
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid training schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	status, err := s.trainer.Train(context.Background())
	switch {
	case errors.Is(err, domain.ErrTrainingInProgress):
		log.Info().Msg("training: scheduled run skipped, another run is active")
	case err != nil:
		log.Error().Err(err).Msg("training: scheduled run failed")
	default:
		log.Info().Str("run_id", status.RunID).Str("state", string(status.State)).Msg("training: scheduled run finished")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and returns a context done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
