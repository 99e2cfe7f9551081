package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrListingNotFound = errors.New("listing not found")

type ShopDAO struct {
	db *gorm.DB
}

func NewShopDAO(db *gorm.DB) *ShopDAO {
	return &ShopDAO{
		db: db,
	}
}

func (d *ShopDAO) FindOwners(ctx context.Context) ([]Owner, error) {
	var owners []Owner
	result := d.db.WithContext(ctx).Order("id").Find(&owners)
	if result.Error != nil {
		return nil, result.Error
	}
	return owners, nil
}

func (d *ShopDAO) FindTabs(ctx context.Context) ([]Tab, error) {
	var tabs []Tab
	result := d.db.WithContext(ctx).Order("id").Find(&tabs)
	if result.Error != nil {
		return nil, result.Error
	}
	return tabs, nil
}

func (d *ShopDAO) FindListings(ctx context.Context) ([]Listing, error) {
	var listings []Listing
	result := d.db.WithContext(ctx).Order("id").Find(&listings)
	if result.Error != nil {
		return nil, result.Error
	}
	return listings, nil
}

// InsertOwner creates the owner row and its tabs. It fails on an existing id.
func (d *ShopDAO) InsertOwner(ctx context.Context, owner Owner, tabs []string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		return insertTabs(tx, owner.ID, tabs)
	})
}

// SaveOwner upserts the owner row and replaces its tab set with tabs,
// keeping surviving rows so their creation order is preserved.
func (d *ShopDAO) SaveOwner(ctx context.Context, owner Owner, tabs []string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"nick", "custom_name", "icon", "is_open", "updated_at"}),
		}).Create(&owner).Error
		if err != nil {
			return err
		}

		del := tx.Where("owner_id = ?", owner.ID)
		if len(tabs) > 0 {
			del = del.Where("name NOT IN ?", tabs)
		}
		if err := del.Delete(&Tab{}).Error; err != nil {
			return err
		}
		return insertTabs(tx, owner.ID, tabs)
	})
}

func (d *ShopDAO) InsertTab(ctx context.Context, ownerID, name string) error {
	return insertTabs(d.db.WithContext(ctx), ownerID, []string{name})
}

// DeleteTab removes the tab row and every listing filed under it.
func (d *ShopDAO) DeleteTab(ctx context.Context, ownerID, name string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND tab = ?", ownerID, name).Delete(&Listing{}).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ? AND name = ?", ownerID, name).Delete(&Tab{}).Error
	})
}

func (d *ShopDAO) InsertListing(ctx context.Context, listing Listing) (Listing, error) {
	listing.ID = 0
	result := d.db.WithContext(ctx).Create(&listing)
	if result.Error != nil {
		return Listing{}, result.Error
	}
	return listing, nil
}

func (d *ShopDAO) UpdateListing(ctx context.Context, listing Listing) (Listing, error) {
	result := d.db.WithContext(ctx).Model(&Listing{ID: listing.ID}).Select("*").Updates(&listing)
	if result.Error != nil {
		return Listing{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Listing{}, ErrListingNotFound
	}
	return listing, nil
}

func (d *ShopDAO) DeleteListing(ctx context.Context, id int64) error {
	return d.db.WithContext(ctx).Delete(&Listing{}, id).Error
}

func (d *ShopDAO) DeleteOwnerListings(ctx context.Context, ownerID string) error {
	return d.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&Listing{}).Error
}

func insertTabs(tx *gorm.DB, ownerID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	rows := make([]Tab, len(names))
	for i, name := range names {
		rows[i] = Tab{OwnerID: ownerID, Name: name}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
