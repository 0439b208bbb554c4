package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

type harness struct {
	conn   *gorm.DB
	client *db.Client
	repo   *Repository
	cache  *memoryCountCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	return &harness{
		conn:   conn,
		client: db.NewFromGorm(conn),
		repo:   NewRepository(conn),
		cache:  newMemoryCountCache(),
	}
}

func (h *harness) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: h.repo, Cache: h.cache, Logger: logger.Nop()})
	require.NoError(t, err)
	return svc
}

func (h *harness) merger(t *testing.T, repo CartRepository) Merger {
	t.Helper()
	if repo == nil {
		repo = h.repo
	}
	m, err := NewMerger(MergerParams{Repo: repo, Tx: h.client, Cache: h.cache, Logger: logger.Nop()})
	require.NoError(t, err)
	return m
}

func (h *harness) guestCart(t *testing.T, lines map[uuid.UUID]int) uuid.UUID {
	t.Helper()
	row, err := h.repo.Create(context.Background(), &models.Cart{})
	require.NoError(t, err)
	h.addLines(t, row.ID, lines)
	return row.ID
}

func (h *harness) userCart(t *testing.T, userID uuid.UUID, lines map[uuid.UUID]int) uuid.UUID {
	t.Helper()
	row, err := h.repo.Create(context.Background(), &models.Cart{UserID: &userID})
	require.NoError(t, err)
	h.addLines(t, row.ID, lines)
	return row.ID
}

func (h *harness) addLines(t *testing.T, cartID uuid.UUID, lines map[uuid.UUID]int) {
	t.Helper()
	for productID, qty := range lines {
		require.NoError(t, h.repo.UpsertItem(context.Background(), cartID, productID, qty))
	}
}

// quantities returns product -> quantity for the cart.
func (h *harness) quantities(t *testing.T, cartID uuid.UUID) map[uuid.UUID]int {
	t.Helper()
	var rows []models.CartItem
	require.NoError(t, h.conn.Where("cart_id = ?", cartID).Find(&rows).Error)
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Quantity
	}
	return out
}

func (h *harness) cartExists(t *testing.T, cartID uuid.UUID) bool {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.Cart{}).Where("id = ?", cartID).Count(&count).Error)
	return count == 1
}

func (h *harness) cartsForUser(t *testing.T, userID uuid.UUID) []models.Cart {
	t.Helper()
	var rows []models.Cart
	require.NoError(t, h.conn.Where("user_id = ?", userID).Find(&rows).Error)
	return rows
}

type memoryCountCache struct {
	mu          sync.Mutex
	counts      map[uuid.UUID]int
	invalidated []uuid.UUID
}

func newMemoryCountCache() *memoryCountCache {
	return &memoryCountCache{counts: make(map[uuid.UUID]int)}
}

func (c *memoryCountCache) Get(_ context.Context, cartID uuid.UUID) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count, ok := c.counts[cartID]
	return count, ok, nil
}

func (c *memoryCountCache) Set(_ context.Context, cartID uuid.UUID, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[cartID] = count
	return nil
}

func (c *memoryCountCache) Invalidate(_ context.Context, cartID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, cartID)
	c.invalidated = append(c.invalidated, cartID)
	return nil
}

func (c *memoryCountCache) wasInvalidated(cartID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.invalidated {
		if id == cartID {
			return true
		}
	}
	return false
}
