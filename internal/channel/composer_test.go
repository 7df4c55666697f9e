package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
)

func TestComposer_RenderServices(t *testing.T) {
	c := NewComposer()

	out := c.RenderServices([]model.Service{
		{Name: "Swedish Massage", Price: 80, DurationMinutes: 45, IsActive: true},
		{Name: "Full Facial Treatment", Price: 120, DurationMinutes: 60, IsActive: true},
		{Name: "Retired Service", Price: 10, DurationMinutes: 10, IsActive: false},
	})

	assert.Contains(t, out, "Full Facial Treatment: $120.00 (60 min)")
	assert.Contains(t, out, "Swedish Massage: $80.00 (45 min)")
	assert.NotContains(t, out, "Retired Service")
}

func TestComposer_RenderServices_Empty(t *testing.T) {
	c := NewComposer()

	out := c.RenderServices(nil)
	assert.Contains(t, out, "no services")
}

func TestComposer_RenderHours(t *testing.T) {
	c := NewComposer()

	hours := map[model.Weekday]model.DayHours{
		"monday": {Open: 9 * 60, Close: 17 * 60},
		"sunday": {IsClosed: true},
	}
	out := c.RenderHours(hours)

	assert.Contains(t, out, "monday: 09:00 to 17:00")
	assert.Contains(t, out, "sunday: closed")
	assert.Contains(t, out, "tuesday: not set")
}

func TestComposer_RenderInventory_LowStock(t *testing.T) {
	c := NewComposer()

	out := c.RenderInventory([]model.InventoryItem{
		{Name: "Facial Cream Premium", Quantity: 15, Unit: "bottles", LowStockThreshold: 20},
		{Name: "Towels", Quantity: 80, Unit: "pieces", LowStockThreshold: 10},
	})

	assert.Contains(t, out, "Facial Cream Premium: 15 bottles (running low)")
	assert.Contains(t, out, "Towels: 80 pieces")
	assert.NotContains(t, out, "Towels: 80 pieces (running low)")
}

func TestComposer_ErrorTemplatesAreDistinct(t *testing.T) {
	c := NewComposer()

	assert.NotEqual(t, c.FallbackUnavailable(), c.FallbackBadResponse())
	assert.Contains(t, c.FallbackUnavailable(), "Connection error")
	assert.Contains(t, c.FallbackBadResponse(), "Backend error")
}
