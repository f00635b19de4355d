package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Record is one row of the records table.
type Record struct {
	ID          string
	AppID       string
	Scope       string
	Kind        string
	Name        string
	AmountCents int64
	OccurredAt  string
	Paid        bool
	ImageURL    string
	ImagePath   string
}

const createRecord = `INSERT INTO records (id, app_id, scope, kind, name, amount_cents, occurred_at, paid, image_url, image_path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecord(ctx context.Context, r Record) error {
	_, err := q.db.ExecContext(ctx, createRecord,
		r.ID, r.AppID, r.Scope, r.Kind, r.Name, r.AmountCents, r.OccurredAt, r.Paid, r.ImageURL, r.ImagePath)
	return err
}

const getRecord = `SELECT id, app_id, scope, kind, name, amount_cents, occurred_at, paid, image_url, image_path
FROM records WHERE app_id = ? AND scope = ? AND kind = ? AND id = ?`

func (q *Queries) GetRecord(ctx context.Context, appID, scope, kind, id string) (Record, error) {
	row := q.db.QueryRowContext(ctx, getRecord, appID, scope, kind, id)
	var r Record
	err := row.Scan(&r.ID, &r.AppID, &r.Scope, &r.Kind, &r.Name, &r.AmountCents, &r.OccurredAt, &r.Paid, &r.ImageURL, &r.ImagePath)
	return r, err
}

const listRecords = `SELECT id, app_id, scope, kind, name, amount_cents, occurred_at, paid, image_url, image_path
FROM records WHERE app_id = ? AND scope = ? AND kind = ? ORDER BY rowid`

func (q *Queries) ListRecords(ctx context.Context, appID, scope, kind string) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx, listRecords, appID, scope, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.AppID, &r.Scope, &r.Kind, &r.Name, &r.AmountCents, &r.OccurredAt, &r.Paid, &r.ImageURL, &r.ImagePath); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setRecordPaid = `UPDATE records SET paid = ?, updated_at = CURRENT_TIMESTAMP
WHERE app_id = ? AND scope = ? AND kind = 'debts' AND id = ?`

func (q *Queries) SetRecordPaid(ctx context.Context, paid bool, appID, scope, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setRecordPaid, paid, appID, scope, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteRecord = `DELETE FROM records WHERE app_id = ? AND scope = ? AND kind = ? AND id = ?`

func (q *Queries) DeleteRecord(ctx context.Context, appID, scope, kind, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRecord, appID, scope, kind, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getGoal = `SELECT goal_cents FROM settings WHERE app_id = ? AND scope = ?`

func (q *Queries) GetGoal(ctx context.Context, appID, scope string) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, getGoal, appID, scope).Scan(&cents)
	return cents, err
}

const upsertGoal = `INSERT INTO settings (app_id, scope, goal_cents) VALUES (?, ?, ?)
ON CONFLICT (app_id, scope) DO UPDATE SET goal_cents = excluded.goal_cents, updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertGoal(ctx context.Context, appID, scope string, cents int64) error {
	_, err := q.db.ExecContext(ctx, upsertGoal, appID, scope, cents)
	return err
}
