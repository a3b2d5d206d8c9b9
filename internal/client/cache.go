// Package client はタスク管理APIのGoクライアントを提供する。
// サーバーのレスポンスを反映するタスクキャッシュを保持し、
// 並び替えのみ楽観的更新（失敗時ロールバック）を行う。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Task はAPIが返すタスク表現。
type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Deadline    time.Time `json:"deadline"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// APIError はサーバーが返すエラーレスポンス。
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("APIエラー %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// CreateTaskInput はタスク作成の入力。
type CreateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

// UpdateTaskInput はタスク部分更新の入力。nilのフィールドは送信しない。
type UpdateTaskInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
	Category    *string `json:"category,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// ReorderEntry は並び替えの1要素。
type ReorderEntry struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// Client はタスク管理APIのクライアント。
// タスクキャッシュを保持し、取得失敗時は最後に成功した内容を維持する。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	tokenMu sync.RWMutex
	token   string

	mu    sync.RWMutex
	tasks []Task
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientがnilの場合はタイムアウト付きのデフォルトクライアントを使用する。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SetToken はAuthorizationヘッダーで送信するセッショントークンを設定する。
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

// Tasks はキャッシュ中のタスクのコピーを返す。
func (c *Client) Tasks() []Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make([]Task, len(c.tasks))
	copy(snapshot, c.tasks)
	return snapshot
}

// Refresh はサーバーからタスク一覧を取得してキャッシュを置き換える。
// 取得に失敗した場合はキャッシュを変更せずエラーを返す。
func (c *Client) Refresh(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		c.logger.Warn("タスク一覧の取得に失敗しました。キャッシュを維持します",
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.mu.Lock()
	c.tasks = tasks
	c.mu.Unlock()

	return c.Tasks(), nil
}

// Create はタスクを作成する。サーバーが返した結果のみをキャッシュに反映する。
func (c *Client) Create(ctx context.Context, input CreateTaskInput) (*Task, error) {
	var created Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", input, &created); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tasks = append(c.tasks, created)
	c.mu.Unlock()

	return &created, nil
}

// Update はタスクを部分更新する。サーバーが返した結果のみをキャッシュに反映する。
func (c *Client) Update(ctx context.Context, taskID string, input UpdateTaskInput) (*Task, error) {
	var updated Task
	path := "/api/tasks/" + taskID
	if err := c.do(ctx, http.MethodPut, path, input, &updated); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for i := range c.tasks {
		if c.tasks[i].ID == updated.ID {
			c.tasks[i] = updated
			break
		}
	}
	c.mu.Unlock()

	return &updated, nil
}

// Delete はタスクを削除する。成功した場合のみキャッシュから取り除く。
func (c *Client) Delete(ctx context.Context, taskID string) error {
	path := "/api/tasks/" + taskID
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.tasks {
		if c.tasks[i].ID == taskID {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	return nil
}

// ToggleComplete は完了状態を反転する。
// COMPLETEDはPENDINGに、PENDINGとMISSEDはCOMPLETEDに遷移する。
func (c *Client) ToggleComplete(ctx context.Context, taskID string) (*Task, error) {
	c.mu.RLock()
	var current *Task
	for i := range c.tasks {
		if c.tasks[i].ID == taskID {
			current = &c.tasks[i]
			break
		}
	}
	c.mu.RUnlock()

	if current == nil {
		return nil, fmt.Errorf("タスクがキャッシュに存在しません: %s", taskID)
	}

	next := "COMPLETED"
	if current.Status == "COMPLETED" {
		next = "PENDING"
	}

	return c.Update(ctx, taskID, UpdateTaskInput{Status: &next})
}

// Reorder は表示順を楽観的に更新する。
// キャッシュへ先に反映し、サーバーへの一括更新が失敗した場合は
// エラーを返す前に元の状態へロールバックする。
func (c *Client) Reorder(ctx context.Context, entries []ReorderEntry) error {
	orderByID := make(map[string]int, len(entries))
	for _, e := range entries {
		orderByID[e.ID] = e.Order
	}

	return c.applyOptimistic(
		func(tasks []Task) []Task {
			for i := range tasks {
				if order, ok := orderByID[tasks[i].ID]; ok {
					tasks[i].Order = order
				}
			}
			sort.SliceStable(tasks, func(i, j int) bool {
				return tasks[i].Order < tasks[j].Order
			})
			return tasks
		},
		func() error {
			body := map[string][]ReorderEntry{"tasks": entries}
			return c.do(ctx, http.MethodPut, "/api/tasks", body, nil)
		},
	)
}

// applyOptimistic は楽観的更新の3段階（スナップショット、投機的反映、
// 確定またはロールバック）を実行する。
// confirmが失敗した場合、キャッシュをスナップショットに戻してからエラーを返す。
func (c *Client) applyOptimistic(mutate func([]Task) []Task, confirm func() error) error {
	c.mu.Lock()
	snapshot := make([]Task, len(c.tasks))
	copy(snapshot, c.tasks)

	working := make([]Task, len(c.tasks))
	copy(working, c.tasks)
	c.tasks = mutate(working)
	c.mu.Unlock()

	if err := confirm(); err != nil {
		c.mu.Lock()
		c.tasks = snapshot
		c.mu.Unlock()
		return err
	}

	return nil
}

// do はHTTPリクエストを実行し、成功レスポンスをoutにデコードする。
// 2xx以外のレスポンスはAPIErrorとして返す。
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	c.tokenMu.RLock()
	token := c.token
	c.tokenMu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの実行に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Code = "UNKNOWN"
			apiErr.Message = fmt.Sprintf("サーバーがステータス %d を返しました", resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	}

	return nil
}
