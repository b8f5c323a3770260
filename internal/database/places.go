package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TemirB/foodcart/internal/domain"
)

var placeColumns = []string{"id", "address", "longitude", "latitude", "resolved_at"}

var _ domain.PlaceRepository = (*PlaceRepo)(nil)

type PlaceRepo struct {
	pool *pgxpool.Pool
	sq   squirrel.StatementBuilderType
}

func NewPlaceRepo(pool *pgxpool.Pool) *PlaceRepo {
	return &PlaceRepo{
		pool: pool,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// The insert and the fallback read share one statement snapshot, so a row
// committed by a concurrent insert after the snapshot is invisible to both
// branches. LookupOrCreate re-reads in that case.
const lookupOrCreateSQL = `
	WITH ins AS (
		INSERT INTO places (address, resolved_at)
		VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING
		RETURNING id, address, longitude, latitude, resolved_at
	)
	SELECT id, address, longitude, latitude, resolved_at, true FROM ins
	UNION ALL
	SELECT id, address, longitude, latitude, resolved_at, false FROM places WHERE address = $1
	LIMIT 1`

// LookupOrCreate returns the place for an already normalized address,
// inserting an unresolved one when none exists. created is true only for the
// caller whose insert won.
func (r *PlaceRepo) LookupOrCreate(ctx context.Context, address string, now time.Time) (domain.Place, bool, error) {
	const op = "database.PlaceRepo.LookupOrCreate"

	var (
		p       domain.Place
		created bool
	)
	err := r.pool.QueryRow(ctx, lookupOrCreateSQL, address, now).Scan(
		&p.ID, &p.Address, &p.Longitude, &p.Latitude, &p.ResolvedAt, &created,
	)
	switch {
	case err == nil:
		return p, created, nil
	case errors.Is(err, pgx.ErrNoRows), isPgCode(err, pgUniqueViolation):
		// Lost the race to a concurrent creator.
		p, err = r.GetByAddress(ctx, address)
		if err != nil {
			return domain.Place{}, false, fmt.Errorf("%s: read after conflict: %w", op, err)
		}
		return p, false, nil
	default:
		return domain.Place{}, false, fmt.Errorf("%s: %w", op, asValidation(err))
	}
}

// Store writes coordinates for the address. A missing row is re-created.
func (r *PlaceRepo) Store(ctx context.Context, address string, c domain.Coordinates, at time.Time) (domain.Place, error) {
	const op = "database.PlaceRepo.Store"

	query, args, err := r.sq.Insert("places").
		Columns("address", "longitude", "latitude", "resolved_at").
		Values(address, c.Longitude, c.Latitude, at).
		Suffix(`ON CONFLICT (address) DO UPDATE SET
			longitude = EXCLUDED.longitude,
			latitude = EXCLUDED.latitude,
			resolved_at = EXCLUDED.resolved_at
			RETURNING id, address, longitude, latitude, resolved_at`).
		ToSql()
	if err != nil {
		return domain.Place{}, fmt.Errorf("%s: build upsert: %w", op, err)
	}

	p, err := scanPlace(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Place{}, fmt.Errorf("%s: %w", op, asValidation(err))
	}
	return p, nil
}

func (r *PlaceRepo) GetByAddress(ctx context.Context, address string) (domain.Place, error) {
	query, args, err := r.sq.Select(placeColumns...).
		From("places").
		Where(squirrel.Eq{"address": address}).
		ToSql()
	if err != nil {
		return domain.Place{}, fmt.Errorf("build select: %w", err)
	}

	p, err := scanPlace(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Place{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Place{}, fmt.Errorf("database.PlaceRepo.GetByAddress: %w", err)
	}
	return p, nil
}

// RecentResolved returns up to limit places with coordinates, newest first.
func (r *PlaceRepo) RecentResolved(ctx context.Context, limit int) ([]domain.Place, error) {
	query, args, err := r.sq.Select(placeColumns...).
		From("places").
		Where(squirrel.NotEq{"longitude": nil, "latitude": nil}).
		OrderBy("resolved_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database.PlaceRepo.RecentResolved: %w", err)
	}
	defer rows.Close()

	var places []domain.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("database.PlaceRepo.RecentResolved: scan: %w", err)
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

func scanPlace(row pgx.Row) (domain.Place, error) {
	var p domain.Place
	if err := row.Scan(&p.ID, &p.Address, &p.Longitude, &p.Latitude, &p.ResolvedAt); err != nil {
		return domain.Place{}, err
	}
	return p, nil
}
