// Package training builds the shared demand model from every active item's
// history and publishes it for forecasting.
package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/andresuchdata/stockcast/internal/seqmodel"
)

// State of a training run
type State string

const (
	StateIdle             State = "idle"
	StateRunning          State = "running"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
	StateInsufficientData State = "insufficient_data"
)

// RunStatus describes the current or last training run
type RunStatus struct {
	RunID        string           `json:"run_id,omitempty"`
	State        State            `json:"state"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
	Items        int              `json:"items"`
	Examples     int              `json:"examples"`
	ModelVersion int64            `json:"model_version,omitempty"`
	SnapshotKey  string           `json:"snapshot_key,omitempty"`
	Report       *seqmodel.Report `json:"report,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// SnapshotStore persists published snapshots
type SnapshotStore interface {
	Save(ctx context.Context, snap *forecast.Snapshot) (string, error)
	// Versions lists stored versions in ascending order
	Versions(ctx context.Context) ([]int64, error)
	Load(ctx context.Context, version int64) (*forecast.Snapshot, error)
}

// Recorder receives training outcomes
type Recorder interface {
	ObserveTraining(outcome string, elapsed time.Duration)
	SetModel(version int64, trainLoss, validationLoss float64)
}

type Trainer struct {
	items      repository.InventoryRepository
	forecaster *forecast.Forecaster
	registry   *forecast.Registry
	store      SnapshotStore
	recorder   Recorder
	cfg        config.TrainingConfig
	window     int
	workers    int
	onPublish  []func(*forecast.Snapshot)
	now        func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	status  RunStatus
}

func NewTrainer(
	items repository.InventoryRepository,
	forecaster *forecast.Forecaster,
	registry *forecast.Registry,
	store SnapshotStore,
	cfg config.TrainingConfig,
	fcfg config.ForecastConfig,
) *Trainer {
	return &Trainer{
		items:      items,
		forecaster: forecaster,
		registry:   registry,
		store:      store,
		cfg:        cfg,
		window:     fcfg.WindowLength,
		workers:    max(1, fcfg.Workers),
		now:        time.Now,
		status:     RunStatus{State: StateIdle},
	}
}

func (t *Trainer) WithRecorder(r Recorder) *Trainer {
	t.recorder = r
	return t
}

func (t *Trainer) WithClock(now func() time.Time) *Trainer {
	t.now = now
	return t
}

// OnPublish registers a callback run after a new snapshot is installed
func (t *Trainer) OnPublish(fn func(*forecast.Snapshot)) {
	t.onPublish = append(t.onPublish, fn)
}

// Status returns a copy of the current run status
func (t *Trainer) Status() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Train runs one training pass inline. Only one run may be active; a
// concurrent call gets domain.ErrTrainingInProgress. Too little data ends
// the run with StateInsufficientData and no error, leaving the current
// model in place.
func (t *Trainer) Train(ctx context.Context) (RunStatus, error) {
	runID, err := t.acquire()
	if err != nil {
		return t.Status(), err
	}
	return t.run(ctx, runID)
}

// StartAsync starts a run in the background and returns its id
func (t *Trainer) StartAsync(ctx context.Context) (string, error) {
	runID, err := t.acquire()
	if err != nil {
		return "", err
	}
	go func() {
		if _, err := t.run(context.WithoutCancel(ctx), runID); err != nil {
			log.Error().Err(err).Str("run_id", runID).Msg("training: background run failed")
		}
	}()
	return runID, nil
}

func (t *Trainer) acquire() (string, error) {
	if !t.running.CompareAndSwap(false, true) {
		return "", domain.ErrTrainingInProgress
	}
	runID := uuid.NewString()
	started := t.now()
	t.setStatus(RunStatus{RunID: runID, State: StateRunning, StartedAt: &started})
	return runID, nil
}

func (t *Trainer) run(ctx context.Context, runID string) (status RunStatus, err error) {
	defer t.running.Store(false)
	status = t.Status()
	start := time.Now()
	logger := log.With().Str("run_id", runID).Logger()

	defer func() {
		finished := t.now()
		status.FinishedAt = &finished
		if err != nil {
			status.State = StateFailed
			status.Error = err.Error()
		}
		t.setStatus(status)
		if t.recorder != nil {
			t.recorder.ObserveTraining(string(status.State), time.Since(start))
		}
	}()

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	examples, norms, err := t.collect(ctx)
	if err != nil {
		return status, err
	}
	status.Items = len(norms)
	status.Examples = len(examples)

	if len(examples) < t.cfg.MinExamples {
		logger.Info().Int("examples", len(examples)).Int("required", t.cfg.MinExamples).Msg("training: not enough data, keeping current model")
		status.State = StateInsufficientData
		return status, nil
	}

	model, report, err := seqmodel.Train(ctx, examples, seqmodel.TrainConfig{
		Epochs:          t.cfg.Epochs,
		BatchSize:       t.cfg.BatchSize,
		ValidationSplit: t.cfg.ValidationSplit,
		LearningRate:    t.cfg.LearningRate,
		HiddenSize:      t.cfg.HiddenSize,
		DenseSize:       t.cfg.DenseSize,
		Seed:            t.cfg.Seed,
	})
	if err != nil {
		return status, fmt.Errorf("train model: %w", err)
	}

	snap := &forecast.Snapshot{
		Version:      t.nextVersion(ctx),
		WindowLength: t.window,
		TrainedAt:    t.now(),
		Model:        model,
		Norms:        norms,
		Report:       report,
	}

	if t.store != nil {
		key, err := t.store.Save(ctx, snap)
		if err != nil {
			logger.Error().Err(err).Msg("training: snapshot not persisted")
		}
		status.SnapshotKey = key
	}

	t.publish(snap)

	status.State = StateSucceeded
	status.ModelVersion = snap.Version
	status.Report = &report
	logger.Info().
		Int64("version", snap.Version).
		Int("examples", len(examples)).
		Float64("train_loss", report.TrainLoss).
		Float64("validation_loss", report.ValidationLoss).
		Dur("elapsed", time.Since(start)).
		Msg("training: model published")
	return status, nil
}

// collect builds pooled examples and per-item normalization scalars. Items
// are processed concurrently; their examples are concatenated in item id
// order so a fixed dataset always trains the same model.
func (t *Trainer) collect(ctx context.Context) ([]domain.TrainingExample, map[string]float64, error) {
	items, err := t.items.ListActiveItems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list active items: %w", err)
	}

	now := t.now()
	encoder := t.forecaster.Encoder()

	var (
		mu     sync.Mutex
		byItem = make(map[string][]domain.TrainingExample)
		norms  = make(map[string]float64)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, item := range items {
		g.Go(func() error {
			samples, err := t.forecaster.History(gctx, item.ID, now)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				log.Warn().Str("item_id", item.ID).Err(err).Msg("training: skipping item")
				return nil
			}
			weeks := forecast.WeeklyDemand(samples)
			if len(weeks) <= t.window {
				return nil
			}

			vectors, maxC := encoder.Encode(weeks)
			examples := forecast.BuildTrainingExamples(item.ID, vectors, t.window)

			mu.Lock()
			byItem[item.ID] = examples
			norms[item.ID] = maxC
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(byItem))
	for id := range byItem {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pooled []domain.TrainingExample
	for _, id := range ids {
		pooled = append(pooled, byItem[id]...)
	}
	return pooled, norms, nil
}

// nextVersion numbers a new snapshot above both the published model and
// every stored one, so a store holding snapshots the registry could not
// restore is never overwritten.
func (t *Trainer) nextVersion(ctx context.Context) int64 {
	latest := t.registry.Version()
	if t.store == nil {
		return latest + 1
	}
	versions, err := t.store.Versions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("training: stored versions unavailable, numbering from the published model")
		return latest + 1
	}
	for _, v := range versions {
		latest = max(latest, v)
	}
	return latest + 1
}

// Restore installs the newest persisted snapshot that loads cleanly and
// matches the configured window length. Unreadable or incompatible
// snapshots are skipped; with none left forecasts use the fallback.
func (t *Trainer) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	versions, err := t.store.Versions(ctx)
	if err != nil {
		return fmt.Errorf("restore model: %w", err)
	}
	if len(versions) == 0 {
		log.Info().Msg("training: no stored model, forecasts use the fallback predictor")
		return nil
	}

	for i := len(versions) - 1; i >= 0; i-- {
		snap, err := t.store.Load(ctx, versions[i])
		if err != nil {
			log.Warn().Err(err).Int64("version", versions[i]).Msg("training: skipping unreadable snapshot")
			continue
		}
		if snap.WindowLength != 0 && snap.WindowLength != t.window {
			log.Warn().
				Int64("version", snap.Version).
				Int("snapshot_window", snap.WindowLength).
				Int("window", t.window).
				Msg("training: skipping snapshot with a different window length")
			continue
		}

		t.publish(snap)
		log.Info().Int64("version", snap.Version).Time("trained_at", snap.TrainedAt).Msg("training: restored model")
		return nil
	}

	log.Warn().Int("stored", len(versions)).Msg("training: no compatible stored model, forecasts use the fallback predictor")
	return nil
}

func (t *Trainer) publish(snap *forecast.Snapshot) {
	if !t.registry.Publish(snap) {
		log.Warn().Int64("version", snap.Version).Int64("current", t.registry.Version()).Msg("training: stale snapshot not published")
		return
	}
	if t.recorder != nil {
		t.recorder.SetModel(snap.Version, snap.Report.TrainLoss, snap.Report.ValidationLoss)
	}
	for _, fn := range t.onPublish {
		fn(snap)
	}
}

func (t *Trainer) setStatus(s RunStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
}
