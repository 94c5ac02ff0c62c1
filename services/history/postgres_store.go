// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pgErrUniqueViolation is PostgreSQL's unique_violation code.
const pgErrUniqueViolation = "23505"

// historyRow is the SQL shape of a Record.
type historyRow struct {
	ID            string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	UserID        string    `gorm:"column:user_id;type:varchar(255);not null;index:idx_history_user_created,priority:1"`
	FileName      string    `gorm:"column:file_name;type:varchar(255);not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index:idx_history_user_created,priority:2,sort:desc"`
	ImageURL      string    `gorm:"column:image_url;type:text"`
	CodeURL       string    `gorm:"column:code_url;type:text"`
	UMLCodeURL    string    `gorm:"column:uml_code_url;type:text"`
	PlantUMLText  string    `gorm:"column:plantuml;type:text;not null"`
	GeneratedCode string    `gorm:"column:generated_code;type:text"`
	Language      string    `gorm:"column:language;type:varchar(20)"`
}

func (historyRow) TableName() string { return "uml_history" }

func rowFromRecord(rec Record) historyRow {
	return historyRow{
		ID:            rec.ID,
		UserID:        rec.UserID,
		FileName:      rec.FileName,
		CreatedAt:     rec.CreatedAt,
		ImageURL:      rec.ImageURL,
		CodeURL:       rec.CodeURL,
		UMLCodeURL:    rec.UMLCodeURL,
		PlantUMLText:  rec.PlantUMLText,
		GeneratedCode: rec.GeneratedCode,
		Language:      rec.Language,
	}
}

func (r historyRow) record() Record {
	return Record{
		ID:            r.ID,
		UserID:        r.UserID,
		FileName:      r.FileName,
		CreatedAt:     r.CreatedAt.UTC(),
		ImageURL:      r.ImageURL,
		CodeURL:       r.CodeURL,
		UMLCodeURL:    r.UMLCodeURL,
		PlantUMLText:  r.PlantUMLText,
		GeneratedCode: r.GeneratedCode,
		Language:      r.Language,
	}
}

// StoreError carries a PostgreSQL error code for callers that care.
type StoreError struct {
	Code   string
	Detail string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("postgres error %s: %v", e.Code, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, &StoreError{Code: pgErr.Code, Detail: pgErr.Detail, Err: err})
	}
	return fmt.Errorf("%s: %w", op, err)
}

// PostgresStore keeps records in a PostgreSQL table via gorm.
type PostgresStore struct {
	db *gorm.DB
}

var _ DocumentStore = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and migrates the history table.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an open gorm connection and migrates the history table.
func NewGormStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&historyRow{}); err != nil {
		return nil, wrapPgError("migrate history table", err)
	}
	slog.Info("History table ready", "table", historyRow{}.TableName())
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	row := rowFromRecord(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapPgError("insert history record", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	var row historyRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, wrapPgError("load history record", err)
	}
	return row.record(), nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	var rows []historyRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapPgError("list history records", err)
	}
	recs := make([]Record, len(rows))
	for i, r := range rows {
		recs[i] = r.record()
	}
	return recs, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&historyRow{})
	if res.Error != nil {
		return wrapPgError("delete history record", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
