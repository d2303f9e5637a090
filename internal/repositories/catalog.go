package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"coursemarket/internal/models"
)

// CatalogRepository reads the canonical catalog the cart validates against
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindItem looks up the live catalog entry for a cart line. Returns a
// NotFoundError when the item does not exist; published state is returned
// as-is so the caller decides how to report unpublished items.
func (r *CatalogRepository) FindItem(ctx context.Context, itemType models.ItemType, itemID int) (*models.CatalogItem, error) {
	item := &models.CatalogItem{
		ItemType: itemType,
		ItemID:   itemID,
	}

	switch itemType {
	case models.ItemTypeCourse:
		err := r.db.QueryRowContext(ctx,
			`SELECT title, slug, price, image_url, published FROM courses WHERE id = $1`,
			itemID).Scan(&item.Title, &item.Slug, &item.Price, &item.ImageURL, &item.Published)
		if err != nil {
			return nil, wrapCatalogErr(err, itemType, itemID)
		}

	case models.ItemTypeDigitalProduct:
		err := r.db.QueryRowContext(ctx,
			`SELECT title, slug, price, image_url, published FROM digital_products WHERE id = $1`,
			itemID).Scan(&item.Title, &item.Slug, &item.Price, &item.ImageURL, &item.Published)
		if err != nil {
			return nil, wrapCatalogErr(err, itemType, itemID)
		}

	case models.ItemTypeEvent:
		err := r.db.QueryRowContext(ctx,
			`SELECT title, slug, price, image_url, published, starts_at, available_spots
			 FROM events WHERE id = $1`,
			itemID).Scan(&item.Title, &item.Slug, &item.Price, &item.ImageURL, &item.Published,
			&item.StartsAt, &item.AvailableSpots)
		if err != nil {
			return nil, wrapCatalogErr(err, itemType, itemID)
		}

	default:
		return nil, models.NewValidationError("invalid item type: %q", itemType)
	}

	return item, nil
}

func wrapCatalogErr(err error, itemType models.ItemType, itemID int) error {
	if err == sql.ErrNoRows {
		return models.NewNotFoundError("%s %d not found", itemType, itemID)
	}
	return models.NewDatabaseError(fmt.Sprintf("failed to look up %s %d", itemType, itemID), err)
}
