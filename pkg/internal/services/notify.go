package services

import (
	"sync"
	"time"
)

const (
	NotifySuccess = "success"
	NotifyError   = "error"

	notifyBacklogLimit = 32
)

// Notification is a classified sequencer outcome waiting to be rendered.
// The presentation layer (toasts, whatever) is someone else's problem; the
// core only classifies.
type Notification struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	notifyLock    sync.Mutex
	notifyBacklog = make(map[string][]Notification)
)

func PushNotification(account, level, message string) {
	notifyLock.Lock()
	defer notifyLock.Unlock()

	backlog := append(notifyBacklog[account], Notification{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	})
	if len(backlog) > notifyBacklogLimit {
		backlog = backlog[len(backlog)-notifyBacklogLimit:]
	}
	notifyBacklog[account] = backlog
}

// DrainNotifications hands the account's pending outcomes over and clears
// the backlog.
func DrainNotifications(account string) []Notification {
	notifyLock.Lock()
	defer notifyLock.Unlock()

	backlog := notifyBacklog[account]
	delete(notifyBacklog, account)
	return backlog
}
