package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, employeeID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, employeeID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, employeeID, notificationID string) error
}

var _ StoreAPI = (*Store)(nil)
