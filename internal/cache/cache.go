// Package cache keeps recently read customers close to the service.
package cache

import (
	"context"

	"github.com/umalmyha/customer-records/internal/model"
)

// CustomerCacheRepository keeps recently read customers.
// Missing entry is reported as nil customer and nil error.
type CustomerCacheRepository interface {
	FindByID(context.Context, string) (*model.Customer, error)
	// Evict drops cached customer. Versions with UpdatedAt up to staleUpTo are refused by Create afterwards,
	// so reads which raced with a write can't put outdated record back.
	Evict(ctx context.Context, id string, staleUpTo int64) error
	Create(context.Context, *model.Customer) error
}

type noopCustomerCache struct{}

// NewNoopCustomerCache builds CustomerCacheRepository which never holds anything
func NewNoopCustomerCache() CustomerCacheRepository {
	return noopCustomerCache{}
}

func (noopCustomerCache) FindByID(context.Context, string) (*model.Customer, error) {
	return nil, nil
}

func (noopCustomerCache) Evict(context.Context, string, int64) error {
	return nil
}

func (noopCustomerCache) Create(context.Context, *model.Customer) error {
	return nil
}
