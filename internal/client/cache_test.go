package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func seedTasks() []Task {
	deadline := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return []Task{
		{ID: "task-1", Title: "レポート提出", Status: "PENDING", Deadline: deadline, Order: 0},
		{ID: "task-2", Title: "買い物", Status: "MISSED", Deadline: deadline, Order: 1},
		{ID: "task-3", Title: "掃除", Status: "COMPLETED", Deadline: deadline, Order: 2},
	}
}

// newSeededClient はキャッシュに初期タスクを投入したクライアントを生成するヘルパー。
func newSeededClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	listThenDelegate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/api/tasks" {
			json.NewEncoder(w).Encode(seedTasks())
			return
		}
		handler.ServeHTTP(w, r)
	})

	server := httptest.NewServer(listThenDelegate)
	t.Cleanup(server.Close)

	c := NewClient(server.URL, server.Client(), nil)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	return c
}

// 一覧取得失敗時にキャッシュが維持され、エラーが返ることを検証
func TestClient_Refresh_KeepsCacheOnFailure(t *testing.T) {
	failing := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"code": "INTERNAL_ERROR", "message": "boom"})
			return
		}
		json.NewEncoder(w).Encode(seedTasks())
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client(), nil)
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("initial Refresh returned error: %v", err)
	}

	failing = true
	if _, err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should return error when the server fails")
	}

	cached := c.Tasks()
	if len(cached) != 3 {
		t.Errorf("len(cached) = %d, want 3 (last known good)", len(cached))
	}
}

// タスク作成が成功した場合のみサーバーの結果がキャッシュに追加されることを検証
func TestClient_Create_AppliesServerResult(t *testing.T) {
	c := newSeededClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Task{ID: "task-4", Title: "新タスク", Status: "PENDING", Order: 3})
	}))

	created, err := c.Create(context.Background(), CreateTaskInput{
		Title:    "新タスク",
		Deadline: "2026-05-01T09:00:00",
		Category: "General",
		Priority: "LOW",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created.ID != "task-4" {
		t.Errorf("created.ID = %q, want %q", created.ID, "task-4")
	}
	if len(c.Tasks()) != 4 {
		t.Errorf("len(cached) = %d, want 4", len(c.Tasks()))
	}
}

// タスク作成失敗時にキャッシュが変更されないことを検証
func TestClient_Create_NoCacheChangeOnFailure(t *testing.T) {
	c := newSeededClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"code": "VALIDATION_ERROR", "message": "期限は必須です"})
	}))

	_, err := c.Create(context.Background(), CreateTaskInput{Title: "新タスク"})
	if err == nil {
		t.Fatal("Create should return error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("apiErr.Code = %q, want %q", apiErr.Code, "VALIDATION_ERROR")
	}
	if len(c.Tasks()) != 3 {
		t.Errorf("len(cached) = %d, want 3 (unchanged)", len(c.Tasks()))
	}
}

// 削除成功でキャッシュから取り除かれることを検証
func TestClient_Delete_RemovesFromCache(t *testing.T) {
	c := newSeededClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "タスクを削除しました。"})
	}))

	if err := c.Delete(context.Background(), "task-2"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	for _, task := range c.Tasks() {
		if task.ID == "task-2" {
			t.Error("task-2 should be removed from the cache")
		}
	}
}

// 完了トグルの遷移規則を検証:
// PENDINGとMISSEDはCOMPLETEDへ、COMPLETEDはPENDINGへ遷移する
func TestClient_ToggleComplete_Transitions(t *testing.T) {
	tests := []struct {
		taskID     string
		wantStatus string
	}{
		{"task-1", "COMPLETED"}, // PENDING → COMPLETED
		{"task-2", "COMPLETED"}, // MISSED → COMPLETED
		{"task-3", "PENDING"},   // COMPLETED → PENDING
	}

	for _, tt := range tests {
		t.Run(tt.taskID, func(t *testing.T) {
			var sentStatus string
			c := newSeededClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Status *string `json:"status"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == nil {
					t.Fatalf("request should carry a status field")
				}
				sentStatus = *body.Status

				updated := Task{ID: tt.taskID, Status: *body.Status}
				json.NewEncoder(w).Encode(updated)
			}))

			got, err := c.ToggleComplete(context.Background(), tt.taskID)
			if err != nil {
				t.Fatalf("ToggleComplete returned error: %v", err)
			}
			if sentStatus != tt.wantStatus {
				t.Errorf("sent status = %q, want %q", sentStatus, tt.wantStatus)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("got.Status = %q, want %q", got.Status, tt.wantStatus)
			}
		})
	}
}

// 並び替えが楽観的にキャッシュへ反映され、確定後も維持されることを検証
func TestClient_Reorder_OptimisticApply(t *testing.T) {
	c := newSeededClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "表示順を更新しました。"})
	}))

	err := c.Reorder(context.Background(), []ReorderEntry{
		{ID: "task-3", Order: 0},
		{ID: "task-1", Order: 1},
		{ID: "task-2", Order: 2},
	})
	if err != nil {
		t.Fatalf("Reorder returned error: %v", err)
	}

	cached := c.Tasks()
	if cached[0].ID != "task-3" {
		t.Errorf("cached[0].ID = %q, want %q", cached[0].ID, "task-3")
	}
	if cached[0].Order != 0 {
		t.Errorf("cached[0].Order = %d, want 0", cached[0].Order)
	}
}

// 並び替え失敗時にエラー返却と同期してキャッシュがロールバックされることを検証
func TestClient_Reorder_RollbackOnFailure(t *testing.T) {
	c := newSeededClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"code": "INTERNAL_ERROR", "message": "boom"})
	}))

	before := c.Tasks()

	err := c.Reorder(context.Background(), []ReorderEntry{
		{ID: "task-3", Order: 0},
		{ID: "task-1", Order: 1},
		{ID: "task-2", Order: 2},
	})
	if err == nil {
		t.Fatal("Reorder should return error")
	}

	// エラー返却の時点でロールバック済み
	after := c.Tasks()
	if len(after) != len(before) {
		t.Fatalf("len(after) = %d, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID || after[i].Order != before[i].Order {
			t.Errorf("after[%d] = {%s %d}, want {%s %d}", i, after[i].ID, after[i].Order, before[i].ID, before[i].Order)
		}
	}
}

// キャッシュにないタスクのトグルがエラーになることを検証
func TestClient_ToggleComplete_UnknownTask(t *testing.T) {
	c := NewClient("http://localhost:0", nil, nil)
	if _, err := c.ToggleComplete(context.Background(), "unknown"); err == nil {
		t.Error("ToggleComplete should return error for a task not in the cache")
	}
}
