// Package database stores acquisition history in SQLite, as an alternative to the bbolt store.
package database

import (
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"moul.io/zapgorm2"

	"github.com/alanbriolat/video-acquirer/internal/session"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// acquisition is the row type of the acquisition table.
type acquisition struct {
	ID          string `gorm:"primaryKey"`
	SourceID    string
	Quality     string
	Status      string
	FailureKind string
	Filename    string
	Size        int64
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (acquisition) TableName() string {
	return "acquisition"
}

func fromRecord(r *session.Record) acquisition {
	return acquisition{
		ID:          r.ID,
		SourceID:    r.SourceID,
		Quality:     r.Quality,
		Status:      string(r.Status),
		FailureKind: r.FailureKind,
		Filename:    r.Filename,
		Size:        r.Size,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}

func (a acquisition) toRecord() session.Record {
	return session.Record{
		ID:          a.ID,
		SourceID:    a.SourceID,
		Quality:     a.Quality,
		Status:      session.RecordStatus(a.Status),
		FailureKind: a.FailureKind,
		Filename:    a.Filename,
		Size:        a.Size,
		StartedAt:   a.StartedAt,
		FinishedAt:  a.FinishedAt,
	}
}

type Database struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

var _ session.Database = (*Database)(nil)

// Open connects to the SQLite database at path. Call Migrate before use.
func Open(path string, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.L()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: zapgorm2.New(log.Named("gorm")),
	})
	if err != nil {
		return nil, err
	}
	return &Database{db: db, log: log.Named("database").Sugar()}, nil
}

func (d *Database) Migrate() error {
	d.log.Info("running database migrations")
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch {
	case err == nil:
		d.log.Info("database migration complete")
	case errors.Is(err, migrate.ErrNoChange):
		d.log.Info("no database migration required")
	default:
		return err
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListRecords returns the history, oldest first.
func (d *Database) ListRecords() ([]session.Record, error) {
	var rows []acquisition
	if err := d.db.Order("finished_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]session.Record, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}

func (d *Database) WriteRecord(r *session.Record) error {
	row := fromRecord(r)
	return d.db.Save(&row).Error
}

func (d *Database) DeleteRecord(r *session.Record) error {
	return d.db.Delete(&acquisition{}, "id = ?", r.ID).Error
}
