package memory

import (
	"fmt"
	"time"

	"research-chat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DetailsCache keeps recently resolved catalog entities so repeated context enrichment
// (every sync re-reads details for each context) does not hit the database each time.
type DetailsCache struct {
	cache *cache.Cache
}

func NewDetailsCache(ttl time.Duration) *DetailsCache {
	return &DetailsCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func detailsKey(userId uuid.UUID, contextType string, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", userId, contextType, id)
}

func (c *DetailsCache) Save(userId uuid.UUID, item *entity.CatalogItem) {
	c.cache.Set(detailsKey(userId, item.Type, item.Id), item, cache.DefaultExpiration)
}

func (c *DetailsCache) Get(userId uuid.UUID, contextType string, id uuid.UUID) (*entity.CatalogItem, bool) {
	if x, found := c.cache.Get(detailsKey(userId, contextType, id)); found {
		return x.(*entity.CatalogItem), true
	}
	return nil, false
}

func (c *DetailsCache) Delete(userId uuid.UUID, contextType string, id uuid.UUID) {
	c.cache.Delete(detailsKey(userId, contextType, id))
}
