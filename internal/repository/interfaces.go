// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskdeck/internal/model"
)

// ErrTaskNotFound は削除・更新対象のタスクが存在しない（または他オーナーの所有）ことを示す。
var ErrTaskNotFound = errors.New("task not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// ReorderPair はbulk reorderの1要素。タスクIDと新しい表示順の組。
type ReorderPair struct {
	ID        string
	SortOrder int
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべてのクエリはオーナーIDでスコープされる。
type TaskRepository interface {
	// ListByOwner はオーナーのタスク一覧をdeadline昇順で返す。
	// 該当なしの場合は空スライスを返す（エラーにしない）。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error)

	// Create はタスクを作成する。
	// sort_orderはINSERT内でオーナーの最大値+1（タスクがなければ0）を割り当てる。
	Create(ctx context.Context, task *model.Task) (*model.Task, error)

	// FindOwned はオーナーIDとタスクIDでタスクを取得する。
	// 更新・削除前の所有権ゲートとして使用する。見つからない場合はnilを返す。
	FindOwned(ctx context.Context, ownerID, id string) (*model.Task, error)

	// Update はタスクを上書き更新する。FindOwnedで取得済みのタスクを渡すこと。
	Update(ctx context.Context, task *model.Task) error

	// Delete はオーナーのタスクを削除する。
	// 該当行がない（存在しないか他オーナーの所有）場合はErrTaskNotFoundを返す。
	Delete(ctx context.Context, ownerID, id string) error

	// BulkReorder は各ペアのsort_orderを単一トランザクションで割り当てる。
	// 全件成功するか1件も適用されないかのいずれか。
	// 他オーナーのタスクを参照するペアは0行に作用し、エラーにしない。
	BulkReorder(ctx context.Context, ownerID string, pairs []ReorderPair) error

	// MarkMissed は指定IDのタスクを一括でMISSEDに遷移させる。
	// status = PENDINGの行のみ対象とし、完了済みタスクを上書きしない。
	MarkMissed(ctx context.Context, ownerID string, ids []string) error
}
