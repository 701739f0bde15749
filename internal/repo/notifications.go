package repo

import (
	"context"
	"database/sql"

	"volunteermatch/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,user_id,message,type,link,created_by,created_at,read) VALUES (?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Message, n.Type, nullable(n.Link), n.CreatedBy, n.CreatedAt, boolInt(n.Read))
	return wrap("insert notification", err)
}

// ListNotifications returns a user's notifications, newest first.
func (r Repo) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,message,type,link,created_by,created_at,read FROM notifications WHERE user_id=? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, wrap("list notifications", err)
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var link sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &link, &n.CreatedBy, &n.CreatedAt, &n.Read); err != nil {
			return nil, wrap("list notifications", err)
		}
		if link.Valid {
			n.Link = link.String
		}
		res = append(res, n)
	}
	return res, wrap("list notifications", rows.Err())
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
