// Package sqlite keeps the photo cache in a local SQLite file through gorm. It
// is the zero-setup default for development.
package sqlite

import (
	"context"
	"time"

	"github.com/jmgilman/go/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roverlens/marsphotos/pkg/storage"
)

const insertBatchSize = 100

// photoRow maps one cached photo onto the photos table.
type photoRow struct {
	ID        uint    `gorm:"primaryKey"`
	Rover     string  `gorm:"not null;index:idx_photos_lookup,priority:1"`
	Page      int     `gorm:"not null;index:idx_photos_lookup,priority:2"`
	Sol       *int    `gorm:"index:idx_photos_lookup,priority:3"`
	EarthDate *string `gorm:"index:idx_photos_lookup,priority:4"`
	Camera    *string
	PhotoID   int64  `gorm:"not null"`
	ImgSrc    string `gorm:"not null"`
	SavedAt   time.Time
}

func (photoRow) TableName() string { return "photos" }

type Repository struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database pinned to a single connection.
func Open(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "open sqlite database")
	}
	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabase, "sqlite handle")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewRepository(db), nil
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema migrates the photos table and the lookup index.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&photoRow{}); err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "migrate photos table")
	}
	return nil
}

func (r *Repository) Lookup(ctx context.Context, f storage.Filter) ([]storage.ImageRecord, error) {
	q := r.db.WithContext(ctx).Where("rover = ? AND page = ?", f.Rover, f.Page)
	if f.Sol != nil {
		q = q.Where("sol = ?", *f.Sol)
	} else {
		q = q.Where("earth_date = ?", f.EarthDate)
	}
	if f.Camera != "" {
		q = q.Where("camera = ?", f.Camera)
	}

	var rows []photoRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "lookup photos")
	}

	records := make([]storage.ImageRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].record())
	}
	return records, nil
}

func (r *Repository) InsertMany(ctx context.Context, records []storage.ImageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]photoRow, 0, len(records))
	for i := range records {
		rows = append(rows, newPhotoRow(records[i]))
	}
	res := r.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize)
	if res.Error != nil {
		return int(res.RowsAffected), errors.Wrap(res.Error, errors.CodeDatabase, "insert photos")
	}
	return int(res.RowsAffected), nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "sqlite handle")
	}
	return sqlDB.Close()
}

func newPhotoRow(rec storage.ImageRecord) photoRow {
	row := photoRow{
		Rover:   rec.Rover,
		Page:    rec.Page,
		Sol:     rec.Sol,
		PhotoID: rec.ExternalID,
		ImgSrc:  rec.ImageURL,
		SavedAt: rec.FetchedAt.UTC(),
	}
	if rec.EarthDate != "" {
		row.EarthDate = &rec.EarthDate
	}
	if rec.Camera != "" {
		row.Camera = &rec.Camera
	}
	return row
}

func (r photoRow) record() storage.ImageRecord {
	rec := storage.ImageRecord{
		Rover:      r.Rover,
		Page:       r.Page,
		Sol:        r.Sol,
		ExternalID: r.PhotoID,
		ImageURL:   r.ImgSrc,
		FetchedAt:  r.SavedAt.UTC(),
	}
	if r.EarthDate != nil {
		rec.EarthDate = *r.EarthDate
	}
	if r.Camera != nil {
		rec.Camera = *r.Camera
	}
	return rec
}
