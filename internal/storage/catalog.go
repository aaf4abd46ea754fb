package storage

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SaveMeta is the per-slot row a front-end renders in its load menu; the
// binary slot itself never has to be decoded for listing.
type SaveMeta struct {
	Slot      int    `gorm:"primaryKey"`
	Label     string // label at the top of the call stack
	LastLine  string // most recent history line at save time
	UpdatedAt time.Time
}

// Catalog indexes save slots in a sqlite database next to the slot files.
type Catalog struct {
	db *gorm.DB
}

func OpenCatalog(path string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SaveMeta{}); err != nil {
		return nil, err
	}
	return &Catalog{db: db}, nil
}

// Record upserts the metadata row for a slot.
func (c *Catalog) Record(meta SaveMeta) error {
	meta.UpdatedAt = time.Now()
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		UpdateAll: true,
	}).Create(&meta).Error
}

// List returns all slots, most recently written first.
func (c *Catalog) List() ([]SaveMeta, error) {
	var metas []SaveMeta
	err := c.db.Order("updated_at desc").Find(&metas).Error
	return metas, err
}

// Get returns the metadata for one slot.
func (c *Catalog) Get(slot int) (SaveMeta, error) {
	var meta SaveMeta
	err := c.db.First(&meta, "slot = ?", slot).Error
	return meta, err
}

// Forget removes a slot's row, e.g. after its file is deleted.
func (c *Catalog) Forget(slot int) error {
	return c.db.Delete(&SaveMeta{}, "slot = ?", slot).Error
}

func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
