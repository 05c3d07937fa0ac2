package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amanas96/slot-swapper/internal/notify"
	"github.com/amanas96/slot-swapper/internal/repository"
	"go.uber.org/zap"
)

// RelayConfig параметры доставки событий из outbox
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Scheduler управляет фоновыми задачами: сейчас это доставка outbox
type Scheduler struct {
	store    repository.TxManager
	notifier notify.Notifier
	cfg      RelayConfig
	logger   *zap.Logger
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(store repository.TxManager, notifier notify.Notifier, cfg RelayConfig, logger *zap.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Scheduler{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Int("batch_size", s.cfg.BatchSize))

	s.wg.Add(1)
	go s.runOutboxRelay(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runOutboxRelay(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drain(ctx)
		case <-s.stopChan:
			s.logger.Info("Outbox relay stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Outbox relay cancelled")
			return
		}
	}
}

// drain разбирает outbox пачками, пока пачки приходят полными
func (s *Scheduler) drain(ctx context.Context) {
	for {
		n, err := s.DispatchOutbox(ctx)
		if err != nil {
			s.logger.Error("Failed to dispatch outbox", zap.Error(err))
			return
		}
		if n < s.cfg.BatchSize || ctx.Err() != nil {
			return
		}
	}
}

// DispatchOutbox доставляет одну пачку событий и возвращает её размер.
// Неудачная доставка увеличивает счётчик попыток; после MaxAttempts
// сообщение помечается dead.
func (s *Scheduler) DispatchOutbox(ctx context.Context) (int, error) {
	claimed := 0
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		messages, err := repos.Outbox.ClaimPending(ctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		claimed = len(messages)

		for _, msg := range messages {
			at := s.now()
			if err := s.notifier.Notify(ctx, msg); err != nil {
				s.logger.Warn("Outbox delivery failed",
					zap.String("message_id", msg.ID.String()),
					zap.String("topic", msg.Topic),
					zap.Int("attempt", msg.Attempts+1),
					zap.Error(err))
				if err := repos.Outbox.MarkFailed(ctx, msg.ID, at, s.cfg.MaxAttempts); err != nil {
					return err
				}
				if msg.Attempts+1 >= s.cfg.MaxAttempts {
					s.logger.Error("Outbox message moved to dead letter",
						zap.String("message_id", msg.ID.String()),
						zap.String("topic", msg.Topic))
				}
				continue
			}
			if err := repos.Outbox.MarkProcessed(ctx, msg.ID, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("dispatch outbox: %w", err)
	}
	return claimed, nil
}
