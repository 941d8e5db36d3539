package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"billtracker/internal/core"
)

type profileRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Name      string `db:"name"`
	Street    string `db:"street"`
	City      string `db:"city"`
	Country   string `db:"country"`
	Color     string `db:"color"`
	BillCount int    `db:"bill_count"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r profileRow) toCore() core.Profile {
	color := r.Color
	if color == "" {
		color = core.DefaultProfileColor
	}
	return core.Profile{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Address:   core.Address{Street: r.Street, City: r.City, Country: r.Country},
		Color:     color,
		BillCount: r.BillCount,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

func (s *SQLStore) selectProfiles() sq.SelectBuilder {
	return s.sb.Select(
		"p.id", "p.user_id", "p.name", "p.street", "p.city", "p.country", "p.color",
		"(SELECT COUNT(*) FROM bills b WHERE b.profile_id = p.id) AS bill_count",
		"p.created_at", "p.updated_at",
	).From("profiles p")
}

func (s *SQLStore) CreateProfile(ctx context.Context, p *core.Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Color == "" {
		p.Color = core.DefaultProfileColor
	}
	now := s.stamp()
	p.CreatedAt, p.UpdatedAt = fromMillis(now), fromMillis(now)

	b := s.sb.Insert("profiles").
		Columns("id", "user_id", "name", "street", "city", "country", "color", "created_at", "updated_at").
		Values(p.ID, p.UserID, p.Name, p.Address.Street, p.Address.City, p.Address.Country, p.Color, now, now)
	return s.exec(ctx, s.db, b, "insert profile")
}

func (s *SQLStore) GetProfile(ctx context.Context, id string) (core.Profile, error) {
	var row profileRow
	if err := s.get(ctx, &row, s.selectProfiles().Where(sq.Eq{"p.id": id}), "profile"); err != nil {
		return core.Profile{}, err
	}
	return row.toCore(), nil
}

func (s *SQLStore) ListProfilesByUser(ctx context.Context, userID string) ([]core.Profile, error) {
	var rows []profileRow
	q := s.selectProfiles().Where(sq.Eq{"p.user_id": userID}).OrderBy("p.created_at", "p.id")
	if err := s.selectRows(ctx, &rows, q, "profiles"); err != nil {
		return nil, err
	}
	out := make([]core.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *SQLStore) UpdateProfile(ctx context.Context, id string, patch core.ProfilePatch) error {
	set := map[string]any{"updated_at": s.stamp()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Address != nil {
		set["street"] = patch.Address.Street
		set["city"] = patch.Address.City
		set["country"] = patch.Address.Country
	}
	if patch.Color != nil {
		set["color"] = *patch.Color
	}
	b := s.sb.Update("profiles").SetMap(set).Where(sq.Eq{"id": id})
	return s.exec(ctx, s.db, b, "update profile")
}

// DeleteProfile removes the profile with its bills and their instances in
// one transaction.
func (s *SQLStore) DeleteProfile(ctx context.Context, id string) ([]core.BillInstance, error) {
	var removed []core.BillInstance
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		removed, err = s.deleteInstances(ctx, tx,
			sq.Expr("bill_id IN (SELECT id FROM bills WHERE profile_id = ?)", id), "delete profile instances")
		if err != nil {
			return err
		}
		if err := s.execAny(ctx, tx, s.sb.Delete("bills").Where(sq.Eq{"profile_id": id}), "delete profile bills"); err != nil {
			return err
		}
		return s.exec(ctx, tx, s.sb.Delete("profiles").Where(sq.Eq{"id": id}), "delete profile")
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// execAny is exec without the affected-rows check.
func (s *SQLStore) execAny(ctx context.Context, e sqlx.ExecerContext, b sq.Sqlizer, what string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s statement: %w", what, err)
	}
	if _, err := e.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
