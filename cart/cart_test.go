package cart

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietpos/terminal/api"
)

var (
	coffee = api.Product{ID: "p1", Name: "Ca phe sua", Price: 50000, Category: "drinks"}
	banhMi = api.Product{ID: "p2", Name: "Banh mi", Price: 30000, Category: "food"}
)

func TestAddAccumulatesQuantity(t *testing.T) {
	c := New()

	c.Add(coffee)
	c.Add(coffee)
	c.Add(banhMi)

	assert.Equal(t, 2, c.Quantity("p1"))
	assert.Equal(t, 1, c.Quantity("p2"))
	assert.Equal(t, 2, c.Len(), "repeated adds must not create new lines")
	assert.Equal(t, 3, c.ItemCount())
}

func TestTotal(t *testing.T) {
	c := New()

	c.Add(coffee)
	c.Add(coffee)
	c.Add(banhMi)

	// 50000*2 + 30000*1
	assert.Equal(t, int64(130000), c.Total())
}

func TestRemoveDecrementsAndDropsLine(t *testing.T) {
	c := New()

	c.Add(coffee)
	c.Add(coffee)
	c.Remove("p1")
	assert.Equal(t, 1, c.Quantity("p1"))

	c.Remove("p1")
	assert.Equal(t, 0, c.Quantity("p1"))
	assert.True(t, c.IsEmpty())
	assert.Equal(t, int64(0), c.Total())
}

func TestRemoveAbsentProductIsNoOp(t *testing.T) {
	c := New()
	c.Add(coffee)

	c.Remove("ghost")

	assert.Equal(t, 1, c.ItemCount())
	assert.Equal(t, int64(50000), c.Total())
}

func TestLinesKeepFirstAddedOrder(t *testing.T) {
	c := New()

	c.Add(coffee)
	c.Add(banhMi)
	c.Add(coffee)

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "p1", lines[0].Product.ID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "p2", lines[1].Product.ID)

	// Removing and re-adding moves the line to the end
	c.Remove("p1")
	c.Remove("p1")
	c.Add(coffee)

	lines = c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "p2", lines[0].Product.ID)
	assert.Equal(t, "p1", lines[1].Product.ID)
}

func TestItems(t *testing.T) {
	c := New()

	c.Add(coffee)
	c.Add(coffee)
	c.Add(banhMi)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, api.OrderItem{ProductID: "p1", Quantity: 2}, items[0])
	assert.Equal(t, api.OrderItem{ProductID: "p2", Quantity: 1}, items[1])
}

func TestClear(t *testing.T) {
	c := New()
	c.Add(coffee)
	c.Add(banhMi)

	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.Lines())
	assert.Equal(t, int64(0), c.Total())
}

func TestConcurrentAdds(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(coffee)
			c.Add(banhMi)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Quantity("p1"))
	assert.Equal(t, 50, c.Quantity("p2"))
	assert.Equal(t, int64(50*(50000+30000)), c.Total())
}
