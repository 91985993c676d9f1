package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/angosms/sms-gateway/internal/model"
)

type NotificationsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, n model.Notification) error
}

type notificationsRepo struct{}

func NewNotificationsRepository() NotificationsRepository { return &notificationsRepo{} }

func (r *notificationsRepo) Insert(ctx context.Context, tx *sqlx.Tx, n model.Notification) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (account_id, kind, title, body, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`, n.AccountID, n.Kind, n.Title, n.Body)
	return err
}
