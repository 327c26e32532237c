// Package runstore persists benchmark run records in Postgres so runs on
// different machines and layouts can be compared later.
package runstore

import (
	"context"
	"fmt"
	"time"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Service struct {
	logger *zap.Logger
	tracer trace.Tracer
	db     DBTX
}

func NewService(logger *zap.Logger, db DBTX) *Service {
	return &Service{
		logger: logger,
		tracer: otel.Tracer("runstore/service"),
		db:     db,
	}
}

const saveQuery = `INSERT INTO run_records (id, label, command, launcher_variant, tasks, nodes, tasks_per_node, exit_code, stdout, stderr, started_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (s *Service) Save(ctx context.Context, record Record) error {
	traceCtx, span := s.tracer.Start(ctx, "SaveRecord")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err := s.db.Exec(traceCtx, saveQuery,
		record.ID,
		record.Label,
		record.Command,
		record.LauncherVariant,
		record.Tasks,
		record.Nodes,
		record.TasksPerNode,
		record.ExitCode,
		record.Stdout,
		record.Stderr,
		record.StartedAt,
		record.Duration.Milliseconds(),
	)
	if err != nil {
		logger.Error("failed to save run record", zap.Error(err), zap.String("id", record.ID.String()))
		span.RecordError(err)
		return fmt.Errorf("failed to save run record: %w", err)
	}

	logger.Info("saved run record",
		zap.String("id", record.ID.String()),
		zap.String("label", record.Label),
		zap.Int("exit_code", record.ExitCode))

	return nil
}

const getByIDQuery = `SELECT id, label, command, launcher_variant, tasks, nodes, tasks_per_node, exit_code, stdout, stderr, started_at, duration_ms
FROM run_records WHERE id = $1`

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	traceCtx, span := s.tracer.Start(ctx, "GetRecordByID")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	row := s.db.QueryRow(traceCtx, getByIDQuery, id)

	record, err := scanRecord(row)
	if err != nil {
		logger.Error("failed to get run record", zap.Error(err), zap.String("id", id.String()))
		span.RecordError(err)
		return Record{}, fmt.Errorf("failed to get run record %s: %w", id, err)
	}

	return record, nil
}

const listByLabelQuery = `SELECT id, label, command, launcher_variant, tasks, nodes, tasks_per_node, exit_code, stdout, stderr, started_at, duration_ms
FROM run_records WHERE label = $1 ORDER BY started_at`

func (s *Service) ListByLabel(ctx context.Context, label string) ([]Record, error) {
	traceCtx, span := s.tracer.Start(ctx, "ListRecordsByLabel")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	rows, err := s.db.Query(traceCtx, listByLabelQuery, label)
	if err != nil {
		logger.Error("failed to list run records", zap.Error(err), zap.String("label", label))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list run records for %q: %w", label, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read run records: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var record Record
	var durationMs int64

	err := row.Scan(
		&record.ID,
		&record.Label,
		&record.Command,
		&record.LauncherVariant,
		&record.Tasks,
		&record.Nodes,
		&record.TasksPerNode,
		&record.ExitCode,
		&record.Stdout,
		&record.Stderr,
		&record.StartedAt,
		&durationMs,
	)
	if err != nil {
		return Record{}, err
	}

	record.Duration = time.Duration(durationMs) * time.Millisecond
	return record, nil
}
