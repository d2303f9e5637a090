package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursemarket/internal/models"
)

func TestBuildLineItemsCollectsOrderTotal(t *testing.T) {
	order := &models.Order{ID: 7, TotalAmount: 10798, Currency: "usd"}
	lines := []models.OrderLine{
		{ItemType: models.ItemTypeCourse, ItemID: 1, Title: "Course 1", Price: 4999, Quantity: 2},
	}

	items := buildLineItems(order, lines)
	require.Len(t, items, 2)

	collected := 0
	for _, item := range items {
		collected += int(*item.PriceData.UnitAmount) * int(*item.Quantity)
	}
	assert.Equal(t, order.TotalAmount, collected)

	tax := items[1]
	assert.Equal(t, "Sales tax", *tax.PriceData.ProductData.Name)
	assert.Equal(t, int64(800), *tax.PriceData.UnitAmount)
	assert.Equal(t, "usd", *tax.PriceData.Currency)
}

func TestBuildLineItemsNoTaxLineWhenTotalMatchesLines(t *testing.T) {
	order := &models.Order{ID: 8, TotalAmount: 5000, Currency: "usd"}
	lines := []models.OrderLine{
		{ItemType: models.ItemTypeEvent, ItemID: 5, Title: "Workshop", Price: 2500, Quantity: 2},
	}

	items := buildLineItems(order, lines)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2500), *items[0].PriceData.UnitAmount)
}

func TestBuildLineItemsMultipleLines(t *testing.T) {
	// Lines sum to 86831; an 8% tax of 6946 brings the total to 93777.
	order := &models.Order{ID: 9, TotalAmount: 93777, Currency: "usd"}
	lines := []models.OrderLine{
		{ItemType: models.ItemTypeCourse, ItemID: 1, Title: "Course 1", Price: 4999, Quantity: 3},
		{ItemType: models.ItemTypeDigitalProduct, ItemID: 2, Title: "Ebook", Price: 12500, Quantity: 1},
		{ItemType: models.ItemTypeEvent, ItemID: 5, Title: "Workshop", Price: 29667, Quantity: 2},
	}

	items := buildLineItems(order, lines)
	require.Len(t, items, 4)

	collected := 0
	for _, item := range items {
		collected += int(*item.PriceData.UnitAmount) * int(*item.Quantity)
	}
	assert.Equal(t, order.TotalAmount, collected)
}
