package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/taskdeck/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, owner_id, title, description, deadline, priority, status, category, sort_order, created_at, updated_at`

// scanTask は1行をmodel.Taskに読み取る。
func scanTask(s interface{ Scan(...any) error }) (*model.Task, error) {
	task := &model.Task{}
	err := s.Scan(
		&task.ID, &task.OwnerID, &task.Title, &task.Description, &task.Deadline,
		&task.Priority, &task.Status, &task.Category, &task.SortOrder,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListByOwner はオーナーのタスク一覧をdeadline昇順で返す。該当なしの場合は空スライスを返す。
func (r *PostgresTaskRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 ORDER BY deadline ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("タスク行の読み取りに失敗しました: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の走査に失敗しました: %w", err)
	}
	return tasks, nil
}

// Create はタスクを作成する。
// sort_orderはオーナーの既存最大値+1（既存タスクがなければ0）をINSERT内のサブクエリで割り当て、
// 採番と挿入を単一文で行う。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (id, owner_id, title, description, deadline, priority, status, category, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		         (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM tasks WHERE owner_id = $2),
		         $9, $10)
		 RETURNING `+taskColumns,
		task.ID, task.OwnerID, task.Title, task.Description, task.Deadline,
		task.Priority, task.Status, task.Category, task.CreatedAt, task.UpdatedAt,
	)

	created, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return created, nil
}

// FindOwned はオーナーIDとタスクIDでタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindOwned(ctx context.Context, ownerID, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return task, nil
}

// Update はタスクを上書き更新する。
// 行の特定はidとowner_idの両方で行い、他オーナーのタスクには作用しない。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = $3, description = $4, deadline = $5, priority = $6,
		     status = $7, category = $8, sort_order = $9, updated_at = $10
		 WHERE id = $1 AND owner_id = $2`,
		task.ID, task.OwnerID, task.Title, task.Description, task.Deadline,
		task.Priority, task.Status, task.Category, task.SortOrder, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete はオーナーのタスクを削除する。
// 該当行がない（存在しないか他オーナーの所有）場合はErrTaskNotFoundを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// BulkReorder は各ペアのsort_orderを単一トランザクションで割り当てる。
// 途中でエラーが発生した場合は全件ロールバックし、部分的な並び替えは観測されない。
// 他オーナーのタスクを参照するペアはWHERE句のスコープにより0行に作用し、エラーにしない。
func (r *PostgresTaskRepo) BulkReorder(ctx context.Context, ownerID string, pairs []ReorderPair) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, pair := range pairs {
		_, err := tx.ExecContext(ctx,
			`UPDATE tasks SET sort_order = $3, updated_at = $4 WHERE id = $1 AND owner_id = $2`,
			pair.ID, ownerID, pair.SortOrder, now,
		)
		if err != nil {
			return fmt.Errorf("表示順の更新に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// MarkMissed は指定IDのタスクを一括でMISSEDに遷移させる。
// status = PENDINGの行のみ対象とし、スイープの書き込みと再読の間に完了した
// タスクを上書きしない。
func (r *PostgresTaskRepo) MarkMissed(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $3, updated_at = $4
		 WHERE owner_id = $1 AND id = ANY($2) AND status = $5`,
		ownerID, pq.Array(ids), model.StatusMissed, time.Now(), model.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("期限切れタスクの一括更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
