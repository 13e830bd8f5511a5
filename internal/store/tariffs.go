package store

import (
	"context"
	"fmt"

	"vds-shop-bot/internal/db"
)

// Tariffs provides catalog access. Rows are immutable apart from
// administrative price correction.
type Tariffs struct {
	store db.Store
}

// NewTariffs returns the tariff store over the gateway.
func NewTariffs(store db.Store) *Tariffs {
	return &Tariffs{store: store}
}

func tariffFromRow(row db.Row) Tariff {
	return Tariff{
		ID:       row.Int64("id"),
		Location: row.String("location"),
		Specs:    row.String("specs"),
		Price:    row.Float64("price"),
	}
}

// Locations returns the distinct catalog locations in alphabetical order.
func (t *Tariffs) Locations(ctx context.Context) ([]string, error) {
	rows, err := t.store.Fetch(ctx, `select distinct location from tariffs order by location`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.String("location"))
	}
	return out, nil
}

// ByLocation lists tariffs for one location, cheapest first.
func (t *Tariffs) ByLocation(ctx context.Context, location string) ([]Tariff, error) {
	rows, err := t.store.Fetch(ctx, `select * from tariffs where location=$1 order by price asc`, location)
	if err != nil {
		return nil, fmt.Errorf("list tariffs by location: %w", err)
	}
	out := make([]Tariff, 0, len(rows))
	for _, row := range rows {
		out = append(out, tariffFromRow(row))
	}
	return out, nil
}

// All lists the whole catalog ordered by location then price.
func (t *Tariffs) All(ctx context.Context) ([]Tariff, error) {
	rows, err := t.store.Fetch(ctx, `select * from tariffs order by location, price`)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	out := make([]Tariff, 0, len(rows))
	for _, row := range rows {
		out = append(out, tariffFromRow(row))
	}
	return out, nil
}

// ByID returns a tariff by primary key.
func (t *Tariffs) ByID(ctx context.Context, id int64) (*Tariff, error) {
	row, err := t.store.FetchOne(ctx, `select * from tariffs where id=$1`, id)
	if err != nil {
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	tariff := tariffFromRow(row)
	return &tariff, nil
}

// Create inserts a new tariff and returns the stored row.
func (t *Tariffs) Create(ctx context.Context, location, specs string, price float64) (*Tariff, error) {
	if _, err := t.store.Exec(ctx,
		`insert into tariffs (location, specs, price) values ($1, $2, $3)`,
		location, specs, price); err != nil {
		return nil, fmt.Errorf("insert tariff: %w", err)
	}
	row, err := t.store.FetchOne(ctx,
		`select * from tariffs where location=$1 and specs=$2 and price=$3`,
		location, specs, price)
	if err != nil {
		return nil, fmt.Errorf("reload tariff: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	tariff := tariffFromRow(row)
	return &tariff, nil
}

// Seed upserts the preset: existing location+specs pairs get a price
// correction, everything else is inserted. Returns added and updated counts.
func (t *Tariffs) Seed(ctx context.Context, preset []TariffSeed) (added, updated int, err error) {
	for _, entry := range preset {
		row, err := t.store.FetchOne(ctx,
			`select id, price from tariffs where location=$1 and specs=$2 limit 1`,
			entry.Location, entry.Specs)
		if err != nil {
			return added, updated, fmt.Errorf("seed lookup: %w", err)
		}
		if row != nil {
			if row.Float64("price") != entry.Price {
				if _, err := t.store.Exec(ctx,
					`update tariffs set price=$1 where id=$2`, entry.Price, row.Int64("id")); err != nil {
					return added, updated, fmt.Errorf("seed price update: %w", err)
				}
				updated++
			}
			continue
		}
		if _, err := t.Create(ctx, entry.Location, entry.Specs, entry.Price); err != nil {
			return added, updated, err
		}
		added++
	}
	return added, updated, nil
}
