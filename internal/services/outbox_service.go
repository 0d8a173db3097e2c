// internal/services/outbox_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

// TaskHandler performs the side effect a task describes. Returning an error schedules a retry
// unless the error is marked with Permanent.
type TaskHandler func(ctx context.Context, task *models.OutboxTask) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying. The task goes straight to dead.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type OutboxService struct {
	db       *gorm.DB
	cfg      config.OutboxConfig
	mu       sync.RWMutex
	handlers map[models.TaskKind]TaskHandler
	now      func() time.Time
}

type TaskFilter struct {
	utils.PaginationParams
	Status *models.TaskStatus `json:"status,omitempty"`
	Kind   *models.TaskKind   `json:"kind,omitempty"`
}

func NewOutboxService(db *gorm.DB, cfg config.OutboxConfig) *OutboxService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 20
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = time.Minute
	}

	return &OutboxService{
		db:       db,
		cfg:      cfg,
		handlers: make(map[models.TaskKind]TaskHandler),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *OutboxService) Register(kind models.TaskKind, handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

func (s *OutboxService) handler(kind models.TaskKind) (TaskHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[kind]
	return h, ok
}

// Enqueue persists a task that becomes due immediately.
func (s *OutboxService) Enqueue(ctx context.Context, kind models.TaskKind, referenceID *uuid.UUID, payload interface{}) (*models.OutboxTask, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task payload: %w", err)
	}

	task := &models.OutboxTask{
		Kind:          kind,
		Payload:       datatypes.JSON(data),
		Status:        models.TaskStatusPending,
		MaxAttempts:   s.cfg.MaxAttempts,
		NextAttemptAt: s.now(),
		ReferenceID:   referenceID,
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue %s task: %w", kind, err)
	}

	return task, nil
}

// EnqueueBestEffort enqueues and logs failures instead of returning them. Request handlers use it
// after their own write has committed.
func (s *OutboxService) EnqueueBestEffort(ctx context.Context, kind models.TaskKind, referenceID *uuid.UUID, payload interface{}) {
	if _, err := s.Enqueue(ctx, kind, referenceID, payload); err != nil {
		fields := logrus.Fields{"kind": kind}
		if referenceID != nil {
			fields["reference_id"] = referenceID.String()
		}
		logrus.WithError(err).WithFields(fields).Error("Failed to enqueue background task")
	}
}

// ProcessDue claims up to BatchSize due tasks and runs them sequentially. It returns how many
// tasks were run.
func (s *OutboxService) ProcessDue(ctx context.Context) (int, error) {
	tasks, err := s.claimDue(ctx)
	if err != nil {
		return 0, err
	}

	for i := range tasks {
		if ctx.Err() != nil {
			// Claimed but unrun tasks are reclaimed once their lease expires
			break
		}
		s.run(ctx, &tasks[i])
	}

	return len(tasks), nil
}

func (s *OutboxService) dueCondition(now time.Time) (string, []interface{}) {
	return "((status = ? AND next_attempt_at <= ?) OR (status = ? AND locked_until < ?))",
		[]interface{}{models.TaskStatusPending, now, models.TaskStatusProcessing, now}
}

func (s *OutboxService) claimDue(ctx context.Context) ([]models.OutboxTask, error) {
	now := s.now()
	cond, args := s.dueCondition(now)

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.OutboxTask{}).
		Where(cond, args...).
		Order("next_attempt_at ASC").
		Limit(s.cfg.BatchSize).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to find due tasks: %w", err)
	}

	lease := now.Add(2 * s.cfg.TaskTimeout)
	claimed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		// Conditional update: only one worker wins a given task
		result := s.db.WithContext(ctx).Model(&models.OutboxTask{}).
			Where("id = ?", id).
			Where(cond, args...).
			Updates(map[string]interface{}{
				"status":       models.TaskStatusProcessing,
				"locked_until": lease,
				"updated_at":   now,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to claim task %s: %w", id, result.Error)
		}
		if result.RowsAffected == 1 {
			claimed = append(claimed, id)
		}
	}

	if len(claimed) == 0 {
		return nil, nil
	}

	var tasks []models.OutboxTask
	if err := s.db.WithContext(ctx).Where("id IN ?", claimed).Order("next_attempt_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to load claimed tasks: %w", err)
	}
	return tasks, nil
}

func (s *OutboxService) run(ctx context.Context, task *models.OutboxTask) {
	logger := logrus.WithFields(logrus.Fields{
		"task_id": task.ID.String(),
		"kind":    task.Kind,
		"attempt": task.Attempts + 1,
	})

	err := s.invoke(ctx, task)
	now := s.now()
	attempts := task.Attempts + 1

	if err == nil {
		if uerr := s.db.WithContext(ctx).Model(&models.OutboxTask{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"status":       models.TaskStatusDone,
			"attempts":     attempts,
			"locked_until": nil,
			"completed_at": now,
			"last_error":   "",
			"updated_at":   now,
		}).Error; uerr != nil {
			logger.WithError(uerr).Error("Failed to mark task done")
			return
		}
		logger.Debug("Task completed")
		return
	}

	maxAttempts := task.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = s.cfg.MaxAttempts
	}

	var permanent *permanentError
	if errors.As(err, &permanent) || attempts >= maxAttempts {
		if uerr := s.db.WithContext(ctx).Model(&models.OutboxTask{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"status":       models.TaskStatusDead,
			"attempts":     attempts,
			"locked_until": nil,
			"last_error":   truncate(err.Error(), 2000),
			"updated_at":   now,
		}).Error; uerr != nil {
			logger.WithError(uerr).Error("Failed to mark task dead")
			return
		}
		logger.WithError(err).Warn("Task marked as dead")
		return
	}

	backoff := s.calculateBackoff(attempts)
	next := now.Add(backoff)
	if uerr := s.db.WithContext(ctx).Model(&models.OutboxTask{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"status":          models.TaskStatusPending,
		"attempts":        attempts,
		"locked_until":    nil,
		"next_attempt_at": next,
		"last_error":      truncate(err.Error(), 2000),
		"updated_at":      now,
	}).Error; uerr != nil {
		logger.WithError(uerr).Error("Failed to schedule task retry")
		return
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"next_attempt_at": next.Format(time.RFC3339),
		"backoff":         backoff.String(),
	}).Warn("Task failed, retry scheduled")
}

func (s *OutboxService) invoke(ctx context.Context, task *models.OutboxTask) (err error) {
	handler, ok := s.handler(task.Kind)
	if !ok {
		return Permanent(fmt.Errorf("no handler registered for task kind %q", task.Kind))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()

	return handler(ctx, task)
}

// calculateBackoff returns InitialBackoff * 2^(attempt-1), capped at MaxBackoff.
func (s *OutboxService) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	backoff := time.Duration(float64(s.cfg.InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > s.cfg.MaxBackoff || backoff <= 0 {
		backoff = s.cfg.MaxBackoff
	}
	return backoff
}

func (s *OutboxService) ListTasks(ctx context.Context, filter *TaskFilter) ([]models.OutboxTask, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.OutboxTask{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to count tasks", err)
	}

	var tasks []models.OutboxTask
	query = utils.ApplySort(query, filter.PaginationParams, []utils.SortField{
		{Name: "createdAt", Column: "created_at"},
		{Name: "nextAttemptAt", Column: "next_attempt_at"},
		{Name: "attempts", Column: "attempts"},
	})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&tasks).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to list tasks", err)
	}

	return tasks, total, nil
}

// RetryTask puts a dead task back in the queue with a fresh attempt budget.
func (s *OutboxService) RetryTask(ctx context.Context, id uuid.UUID) (*models.OutboxTask, error) {
	now := s.now()
	result := s.db.WithContext(ctx).Model(&models.OutboxTask{}).
		Where("id = ? AND status = ?", id, models.TaskStatusDead).
		Updates(map[string]interface{}{
			"status":          models.TaskStatusPending,
			"attempts":        0,
			"next_attempt_at": now,
			"locked_until":    nil,
			"updated_at":      now,
		})
	if result.Error != nil {
		return nil, apperr.Persistence("Failed to retry task", result.Error)
	}

	var task models.OutboxTask
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Task")
		}
		return nil, apperr.Persistence("Failed to load task", err)
	}

	if result.RowsAffected == 0 {
		return nil, apperr.Conflict("only dead tasks can be retried (task is %s)", task.Status)
	}
	return &task, nil
}

// PurgeCompleted deletes done tasks completed before now minus olderThan.
func (s *OutboxService) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	result := s.db.WithContext(ctx).
		Where("status = ? AND completed_at < ?", models.TaskStatusDone, cutoff).
		Delete(&models.OutboxTask{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountByStatus feeds the admin dashboard.
func (s *OutboxService) CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error) {
	var rows []struct {
		Status models.TaskStatus
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.OutboxTask{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.TaskStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// decodePayload unmarshals a task payload; malformed payloads are permanent failures.
func decodePayload(task *models.OutboxTask, dst interface{}) error {
	if err := json.Unmarshal(task.Payload, dst); err != nil {
		return Permanent(fmt.Errorf("invalid %s task payload: %w", task.Kind, err))
	}
	return nil
}
