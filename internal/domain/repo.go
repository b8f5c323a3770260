package domain

import (
	"context"
	"time"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, in OrderInput) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	RecentOrders(ctx context.Context, limit int) ([]Order, error)
}

type PlaceRepository interface {
	LookupOrCreate(ctx context.Context, address string, now time.Time) (Place, bool, error)
	Store(ctx context.Context, address string, c Coordinates, at time.Time) (Place, error)
	GetByAddress(ctx context.Context, address string) (Place, error)
	RecentResolved(ctx context.Context, limit int) ([]Place, error)
}
