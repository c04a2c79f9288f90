package services

import (
	"context"
	"fmt"

	"eve-trader/internal/models"
	"eve-trader/internal/services/esi"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type typeMetadataSource interface {
	TypeInfo(ctx context.Context, typeID int64) (*esi.TypeInfo, error)
	GroupInfo(ctx context.Context, groupID int64) (*esi.GroupInfo, error)
}

// TypeResolver guarantees an ItemType row exists before any price row
// referencing it is written. Resolution is cache-through: a row already in
// the database is trusted as-is, no network call.
type TypeResolver struct {
	db     *gorm.DB
	source typeMetadataSource
}

func NewTypeResolver(db *gorm.DB, source typeMetadataSource) *TypeResolver {
	return &TypeResolver{db: db, source: source}
}

// Ensure resolves typeID to a local ItemType row, fetching type and group
// metadata on first sight. A failed lookup leaves no partial row behind.
func (r *TypeResolver) Ensure(ctx context.Context, typeID int64) error {
	var count int64
	if err := r.db.Model(&models.ItemType{}).Where("type_id = ?", typeID).Count(&count).Error; err != nil {
		return fmt.Errorf("type %d lookup failed: %w", typeID, err)
	}
	if count > 0 {
		return nil
	}

	info, err := r.source.TypeInfo(ctx, typeID)
	if err != nil {
		return fmt.Errorf("type %d metadata fetch failed: %w", typeID, err)
	}
	group, err := r.source.GroupInfo(ctx, info.GroupID)
	if err != nil {
		return fmt.Errorf("group %d metadata fetch failed for type %d: %w", info.GroupID, typeID, err)
	}

	row := models.ItemType{
		TypeID:         typeID,
		Name:           info.Name,
		GroupID:        info.GroupID,
		CategoryID:     group.CategoryID,
		Volume:         info.Volume,
		PackagedVolume: info.PackagedVolume,
		PortionSize:    info.PortionSize,
		IconID:         info.IconID,
	}
	// Upsert so a concurrent first-sight of the same type stays harmless
	err = r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "type_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "group_id", "category_id", "volume", "packaged_volume", "portion_size", "icon_id", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("type %d save failed: %w", typeID, err)
	}
	return nil
}
