// Package task はタスク管理のドメインロジックを提供する。
//
// 一覧取得時のスイープ（期限切れPENDINGタスクのMISSED遷移）、作成時の
// 表示順採番、更新・削除時の所有権検証、一括並び替えのオーケストレーションを行う。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskdeck/internal/model"
	"github.com/hitoshi/taskdeck/internal/repository"
	"github.com/hitoshi/taskdeck/internal/security"
)

// MetricsRecorder はタスク操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordTaskCreated()
	RecordMissedTransitions(count int)
}

// Service はタスク管理のサービス層。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.TextSanitizerService
	metrics   MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（テストやメトリクス無効時）。
func NewService(
	taskRepo repository.TaskRepository,
	sanitizer security.TextSanitizerService,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// CreateInput はタスク作成の入力。enum値と期限は未正規化の文字列で受け取る。
type CreateInput struct {
	Title       string
	Description string
	Deadline    string
	Category    string
	Priority    string
}

// UpdateInput はタスク部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	Deadline    *string
	Priority    *string
	Status      *string
	Category    *string
	SortOrder   *int
}

// List はオーナーのタスク一覧をdeadline昇順で返す。
// 返却前にスイープを実行する: 期限切れのPENDINGタスクがあれば一括でMISSEDに
// 遷移させて永続化し、再読した一覧を返す。対象がなければ最初の読み取り結果を
// そのまま返す。
// 書き込みと再読は単一トランザクションではない。その間に完了したタスクは
// MarkMissedのPENDINGガードにより上書きされない。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Task, error) {
	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}

	overdueIDs := OverduePendingIDs(tasks, time.Now())
	if len(overdueIDs) == 0 {
		return tasks, nil
	}

	if err := s.taskRepo.MarkMissed(ctx, ownerID, overdueIDs); err != nil {
		return nil, fmt.Errorf("期限切れタスクの遷移に失敗しました: %w", err)
	}

	slog.Info("overdue tasks marked as missed",
		slog.String("owner_id", ownerID),
		slog.Int("count", len(overdueIDs)),
	)
	if s.metrics != nil {
		s.metrics.RecordMissedTransitions(len(overdueIDs))
	}

	tasks, err = s.taskRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の再取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// Create はタスクを作成する。
// title、deadline、category、priorityは必須。enum値は格納形式に正規化し、
// タイトルと説明文はサニタイズする。statusはPENDING、表示順はストアが
// オーナーの最大値+1を割り当てる。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*model.Task, error) {
	title := s.sanitizer.Sanitize(input.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	if input.Deadline == "" {
		return nil, model.NewValidationError("期限は必須です")
	}
	deadline, err := model.ParseDeadline(input.Deadline)
	if err != nil {
		return nil, model.NewValidationError("期限の形式が正しくありません")
	}
	category, ok := model.CanonicalCategory(input.Category)
	if !ok {
		return nil, model.NewValidationError("カテゴリが正しくありません")
	}
	priority, ok := model.CanonicalPriority(input.Priority)
	if !ok {
		return nil, model.NewValidationError("優先度が正しくありません")
	}

	now := time.Now()
	task := &model.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: s.sanitizer.Sanitize(input.Description),
		Deadline:    deadline,
		Priority:    priority,
		Status:      model.StatusPending,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.taskRepo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordTaskCreated()
	}

	return created, nil
}

// Update はタスクを部分更新する。指定されたフィールドのみを変更する。
// 所有権はFindOwnedで検証し、存在しないか他オーナーの所有の場合は
// TaskNotFoundを返す（Forbiddenにしない）。
// statusの明示的な指定は任意の遷移を許可する。スイープの一方向規則の
// 意図的なエスケープハッチであり、MISSEDからPENDINGへの手動復帰等に使われる。
func (s *Service) Update(ctx context.Context, ownerID, taskID string, input UpdateInput) (*model.Task, error) {
	task, err := s.taskRepo.FindOwned(ctx, ownerID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	if input.Title != nil {
		title := s.sanitizer.Sanitize(*input.Title)
		if title == "" {
			return nil, model.NewValidationError("タイトルは必須です")
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.Deadline != nil {
		deadline, err := model.ParseDeadline(*input.Deadline)
		if err != nil {
			return nil, model.NewValidationError("期限の形式が正しくありません")
		}
		task.Deadline = deadline
	}
	if input.Priority != nil {
		priority, ok := model.CanonicalPriority(*input.Priority)
		if !ok {
			return nil, model.NewValidationError("優先度が正しくありません")
		}
		task.Priority = priority
	}
	if input.Status != nil {
		status, ok := model.CanonicalStatus(*input.Status)
		if !ok {
			return nil, model.NewValidationError("状態が正しくありません")
		}
		task.Status = status
	}
	if input.Category != nil {
		category, ok := model.CanonicalCategory(*input.Category)
		if !ok {
			return nil, model.NewValidationError("カテゴリが正しくありません")
		}
		task.Category = category
	}
	if input.SortOrder != nil {
		task.SortOrder = *input.SortOrder
	}
	task.UpdatedAt = time.Now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		// FindOwnedと書き込みの間に削除された場合もTaskNotFoundとして報告する
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, model.NewTaskNotFoundError(taskID)
		}
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}

	return task, nil
}

// Delete はタスクを削除する。
// 所有権はFindOwnedで検証し、存在しないか他オーナーの所有の場合は
// TaskNotFoundを返す。
func (s *Service) Delete(ctx context.Context, ownerID, taskID string) error {
	task, err := s.taskRepo.FindOwned(ctx, ownerID, taskID)
	if err != nil {
		return fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(taskID)
	}

	if err := s.taskRepo.Delete(ctx, ownerID, taskID); err != nil {
		// FindOwnedと削除の間に行が消えた場合もTaskNotFoundとして報告する
		if errors.Is(err, repository.ErrTaskNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	return nil
}

// BulkReorder は各ペアの表示順を一括で割り当てる。
// 全ペアが単一トランザクションで適用され、部分適用は観測されない。
// 他オーナーのタスクを参照するペアは0行に作用し、エラーにしない
// （所有権スコープにより他オーナーへの影響は起きないため、黙って無視する）。
func (s *Service) BulkReorder(ctx context.Context, ownerID string, pairs []repository.ReorderPair) error {
	for _, pair := range pairs {
		if pair.ID == "" {
			return model.NewValidationError("タスクIDが空の要素が含まれています")
		}
	}

	if err := s.taskRepo.BulkReorder(ctx, ownerID, pairs); err != nil {
		return fmt.Errorf("表示順の一括更新に失敗しました: %w", err)
	}

	return nil
}
