package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/types"
)

// postgres rejects malformed uuids with this code
const invalidTextRepresentation = "22P02"

const classColumns = `
	c.id, c.created_at, c.ended_at,
	t.id, t.username,
	s.id, s.name
FROM class_details c
LEFT JOIN "user" t ON t.id = c.teacher_id
LEFT JOIN subject s ON s.id = c.subject_id`

var (
	getClassSQL    = `SELECT` + classColumns + ` WHERE c.id = $1`
	liveClassesSQL = `SELECT` + classColumns + ` WHERE c.ended_at IS NULL ORDER BY c.created_at`
	markEndedSQL   = `UPDATE class_details SET ended_at = now(), updated_at = now() WHERE id = $1 AND ended_at IS NULL`
	classExistsSQL = `SELECT EXISTS(SELECT 1 FROM class_details WHERE id = $1)`
)

// querier is the subset of pgxpool.Pool the directory uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Db is the Postgres backed class directory.
type Db struct {
	conn   querier
	logger *zap.SugaredLogger
}

type classRow struct {
	ID          string
	CreatedAt   time.Time
	EndedAt     pgtype.Timestamp
	TeacherID   pgtype.Text
	TeacherName pgtype.Text
	SubjectID   pgtype.Text
	SubjectName pgtype.Text
}

func (r *classRow) fields() []any {
	return []any{&r.ID, &r.CreatedAt, &r.EndedAt, &r.TeacherID, &r.TeacherName, &r.SubjectID, &r.SubjectName}
}

func (r *classRow) details() types.ClassDetails {
	details := types.ClassDetails{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Teacher:   types.Person{ID: r.TeacherID.String, Name: r.TeacherName.String},
	}
	if r.EndedAt.Valid {
		ended := r.EndedAt.Time
		details.EndedAt = &ended
	}
	if r.SubjectID.Valid {
		details.Subject = &types.Subject{ID: r.SubjectID.String, Name: r.SubjectName.String}
	}
	return details
}

// Connect opens a connection pool for conf and verifies it with a ping.
func Connect(ctx context.Context, conf config.DatabaseConfig, logger *zap.SugaredLogger) (*Db, func(), error) {
	poolConf, err := pgxpool.ParseConfig(conf.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing database url: %w", err)
	}
	if conf.MaxConns > 0 {
		poolConf.MaxConns = conf.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConf)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connecting to %s: %w", poolConf.ConnConfig.Host, err)
	}
	logger.Infow("connected to database", "host", poolConf.ConnConfig.Host, "database", poolConf.ConnConfig.Database)
	return New(pool, logger), pool.Close, nil
}

func New(conn querier, logger *zap.SugaredLogger) *Db {
	return &Db{conn: conn, logger: logger}
}

func (db *Db) GetClass(ctx context.Context, classID string) (*types.ClassDetails, error) {
	var row classRow
	err := db.conn.QueryRow(ctx, getClassSQL, classID).Scan(row.fields()...)
	if err != nil {
		return nil, classError(classID, err)
	}
	details := row.details()
	return &details, nil
}

// MarkEnded stamps the end time of a class. Ending an already ended class
// keeps the first timestamp.
func (db *Db) MarkEnded(ctx context.Context, classID string) error {
	tag, err := db.conn.Exec(ctx, markEndedSQL, classID)
	if err != nil {
		return classError(classID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := db.conn.QueryRow(ctx, classExistsSQL, classID).Scan(&exists); err != nil {
		return classError(classID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", types.ErrClassNotFound, classID)
	}
	return nil
}

func (db *Db) LiveClasses(ctx context.Context) ([]types.ClassDetails, error) {
	rows, err := db.conn.Query(ctx, liveClassesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []types.ClassDetails
	for rows.Next() {
		var row classRow
		if err := rows.Scan(row.fields()...); err != nil {
			return nil, err
		}
		classes = append(classes, row.details())
	}
	return classes, rows.Err()
}

func classError(classID string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", types.ErrClassNotFound, classID)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return fmt.Errorf("%w: %s", types.ErrClassNotFound, classID)
	}
	return fmt.Errorf("class %s: %w", classID, err)
}
