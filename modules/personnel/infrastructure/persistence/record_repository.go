package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recordColumns = `id, org_id, username, leader, workplace, association, status, message, version, created_at, last_modified_at`

type RecordRepository struct {
	db  DB
	now func() time.Time
}

func NewRecordRepository(db DB) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

func (r *RecordRepository) Get(ctx context.Context, id string) (provisioning.Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM provisioning_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return provisioning.Record{}, mapPgError(err)
	}
	return rec, nil
}

func (r *RecordRepository) Upsert(ctx context.Context, rec provisioning.Record) (provisioning.Record, error) {
	// timestamptz keeps microseconds
	now := r.now().UTC().Truncate(time.Microsecond)
	if rec.IsNew() {
		rec.Version = 1
		rec.Created = now
		rec.LastModified = now
		_, err := r.db.Exec(ctx, `
			INSERT INTO provisioning_records (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			rec.ID, rec.OrgID, rec.Username, rec.Leader, rec.Workplace,
			nullable(rec.Association), string(rec.Status), nullable(rec.Message),
			rec.Version, rec.Created, rec.LastModified,
		)
		if err != nil {
			return provisioning.Record{}, mapPgError(err)
		}
		return rec, nil
	}

	row := r.db.QueryRow(ctx, `
		UPDATE provisioning_records
		SET org_id = $3,
			username = $4,
			leader = $5,
			workplace = $6,
			association = $7,
			status = $8,
			message = $9,
			version = version + 1,
			last_modified_at = $10
		WHERE id = $1 AND version = $2
		RETURNING version, created_at, last_modified_at`,
		rec.ID, rec.Version, rec.OrgID, rec.Username, rec.Leader, rec.Workplace,
		nullable(rec.Association), string(rec.Status), nullable(rec.Message), now,
	)
	if err := row.Scan(&rec.Version, &rec.Created, &rec.LastModified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return provisioning.Record{}, provisioning.ErrVersionConflict
		}
		return provisioning.Record{}, mapPgError(err)
	}
	return rec, nil
}

func (r *RecordRepository) List(ctx context.Context, params provisioning.ListParams) ([]provisioning.Record, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if params.OrgID != "" {
		where = append(where, "org_id = "+arg(params.OrgID))
	}
	if !params.Since.IsZero() {
		where = append(where, "last_modified_at >= "+arg(params.Since.UTC()))
	}
	if len(params.Statuses) > 0 {
		statuses := make([]string, 0, len(params.Statuses))
		for _, s := range params.Statuses {
			statuses = append(statuses, string(s))
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}

	sql := `SELECT ` + recordColumns + ` FROM provisioning_records`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY last_modified_at DESC, id`
	if params.Limit > 0 {
		sql += ` LIMIT ` + arg(params.Limit)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []provisioning.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (provisioning.Record, error) {
	var (
		rec         provisioning.Record
		association *string
		message     *string
		status      string
	)
	if err := row.Scan(
		&rec.ID, &rec.OrgID, &rec.Username, &rec.Leader, &rec.Workplace,
		&association, &status, &message, &rec.Version, &rec.Created, &rec.LastModified,
	); err != nil {
		return provisioning.Record{}, err
	}
	rec.Status = provisioning.Status(status)
	if association != nil {
		rec.Association = *association
	}
	if message != nil {
		rec.Message = *message
	}
	return rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
