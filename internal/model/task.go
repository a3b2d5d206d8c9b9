// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Task はユーザーが管理するタスクを表す。
// SortOrderは同一オーナー内での表示順を定義し、オーナーをまたいだ一意性は持たない。
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Deadline    time.Time
	Priority    Priority
	Status      Status
	Category    Category
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Priority はタスクの優先度を表す。格納形式は大文字。
type Priority string

const (
	// PriorityLow は低優先度。
	PriorityLow Priority = "LOW"
	// PriorityMedium は中優先度。
	PriorityMedium Priority = "MEDIUM"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "HIGH"
)

// Status はタスクの状態を表す。格納形式は大文字。
// 自動遷移はPENDING→MISSEDのみ。ユーザーの明示的な更新では任意の状態を設定できる。
type Status string

const (
	// StatusPending は未完了状態。
	StatusPending Status = "PENDING"
	// StatusCompleted は完了状態。
	StatusCompleted Status = "COMPLETED"
	// StatusMissed は期限切れ状態。
	StatusMissed Status = "MISSED"
)

// Category はタスクのカテゴリを表す。格納形式は先頭大文字。
type Category string

const (
	// CategoryGeneral は汎用カテゴリ。
	CategoryGeneral Category = "General"
	// CategoryWork は仕事カテゴリ。
	CategoryWork Category = "Work"
	// CategoryStudy は学習カテゴリ。
	CategoryStudy Category = "Study"
	// CategoryPersonal は個人カテゴリ。
	CategoryPersonal Category = "Personal"
)

// CanonicalPriority は入力文字列を格納形式の優先度に正規化する。
// 大文字小文字を区別しない。未知の値の場合はfalseを返す。
func CanonicalPriority(s string) (Priority, bool) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	}
	return "", false
}

// CanonicalStatus は入力文字列を格納形式の状態に正規化する。
// 大文字小文字を区別しない。未知の値の場合はfalseを返す。
func CanonicalStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusMissed:
		return StatusMissed, true
	}
	return "", false
}

// CanonicalCategory は入力文字列を格納形式のカテゴリに正規化する。
// 大文字小文字を区別しない。未知の値の場合はfalseを返す。
func CanonicalCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryGeneral, CategoryWork, CategoryStudy, CategoryPersonal} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// deadlineLayoutLocal はタイムゾーン指定のないISO-8601形式。
// 元クライアントが送信する "2026-02-25T18:30:00" 形式に対応し、UTCとして解釈する。
const deadlineLayoutLocal = "2006-01-02T15:04:05"

// ParseDeadline はISO-8601文字列を絶対時刻にパースする。
// RFC3339（タイムゾーン付き）を優先し、タイムゾーンなしはUTCとして扱う。
func ParseDeadline(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(deadlineLayoutLocal, s)
}
