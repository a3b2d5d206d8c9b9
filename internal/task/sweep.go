package task

import (
	"time"

	"github.com/hitoshi/taskdeck/internal/model"
)

// OverduePendingIDs は期限切れ遷移の対象となるタスクIDを選別する純粋関数。
// status = PENDING かつ deadline < now のタスクのみを対象とする。
// COMPLETEDおよびMISSEDのタスクは期限に関係なく対象外。
// 対象がなければnilを返し、スイープは書き込みを行わない（冪等）。
func OverduePendingIDs(tasks []*model.Task, now time.Time) []string {
	var ids []string
	for _, t := range tasks {
		if t.Status == model.StatusPending && t.Deadline.Before(now) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
