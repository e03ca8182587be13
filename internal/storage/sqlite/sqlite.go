// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package sqlite keeps the container event feed in a SQLite database through GORM.
// It uses the pure Go glebarez/sqlite driver, so no cgo is required.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultPageSize = 100

var errPathRequired = errors.New("sqlite: database path is required")

// EventModel is the row layout of the events table.
type EventModel struct {
	Seq         uint64    `gorm:"primaryKey;autoIncrement"`
	EventID     string    `gorm:"type:text;uniqueIndex"`
	Time        time.Time `gorm:"index"`
	Type        string    `gorm:"type:text;index"`
	ContainerID string    `gorm:"type:text;index"`
	Identity    string    `gorm:"type:text"`
	Role        string    `gorm:"type:text"`
	Message     string    `gorm:"type:text"`
}

func (EventModel) TableName() string { return "events" }

// EventStore is a durable, append-only event feed.
type EventStore struct {
	db     *gorm.DB
	logger *slog.Logger
	path   string
}

// Open creates the database file if needed and migrates the schema.
func Open(path string, slogger *slog.Logger) (*EventStore, error) {
	if path == "" {
		return nil, errPathRequired
	}
	slogger = logging.OrNoop(slogger)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating database directory %s: %w", errdefs.ErrEventStore, dir, err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)

	gormLogger := logger.New(
		slogAdapter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite database: %w", errdefs.ErrEventStore, err)
	}
	if err = db.AutoMigrate(&EventModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrating: %w", errdefs.ErrEventStore, err)
	}

	slogger.Debug("event store opened", slog.String("path", path))
	return &EventStore{db: db, logger: slogger, path: path}, nil
}

func (s *EventStore) Path() string {
	return s.path
}

// Append inserts ev and returns it with the sequence number the database assigned.
func (s *EventStore) Append(ctx context.Context, ev modelhub.Event) (modelhub.Event, error) {
	model := toEventModel(ev)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return modelhub.Event{}, fmt.Errorf("%w: appending event: %w", errdefs.ErrEventStore, err)
	}
	ev.Seq = model.Seq
	return ev, nil
}

// Events returns up to limit events with a sequence number greater than after, oldest first.
func (s *EventStore) Events(ctx context.Context, after uint64, limit int) (modelhub.EventPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	var models []EventModel
	err := s.db.WithContext(ctx).
		Where("seq > ?", after).
		Order("seq ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return modelhub.EventPage{}, fmt.Errorf("%w: querying events: %w", errdefs.ErrEventStore, err)
	}

	page := modelhub.EventPage{Next: after, Events: make([]modelhub.Event, 0, len(models))}
	for i := range models {
		page.Events = append(page.Events, toEventDomain(&models[i]))
		page.Next = models[i].Seq
	}
	return page, nil
}

// Prune deletes events older than before and returns how many were removed.
func (s *EventStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("time < ?", before.UTC()).Delete(&EventModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: pruning events: %w", errdefs.ErrEventStore, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *EventStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toEventModel(ev modelhub.Event) EventModel {
	return EventModel{
		EventID:     uuid.NewString(),
		Time:        ev.Time.UTC(),
		Type:        string(ev.Type),
		ContainerID: ev.ContainerID,
		Identity:    ev.Identity,
		Role:        string(ev.Role),
		Message:     ev.Message,
	}
}

func toEventDomain(m *EventModel) modelhub.Event {
	return modelhub.Event{
		Seq:         m.Seq,
		Time:        m.Time,
		Type:        modelhub.EventType(m.Type),
		ContainerID: m.ContainerID,
		Identity:    m.Identity,
		Role:        modelhub.Role(m.Role),
		Message:     m.Message,
	}
}

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Warn(fmt.Sprintf(format, args...))
}
