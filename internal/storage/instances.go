package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"billtracker/internal/core"
)

type instanceRow struct {
	ID          string `db:"id"`
	BillID      string `db:"bill_id"`
	UserID      string `db:"user_id"`
	Period      string `db:"period"`
	AmountCents int64  `db:"amount_cents"`
	DueDate     string `db:"due_date"`
	Description string `db:"description"`
	IsPaid      bool   `db:"is_paid"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func (r instanceRow) toCore() core.BillInstance {
	return core.BillInstance{
		ID:          r.ID,
		BillID:      r.BillID,
		UserID:      r.UserID,
		Period:      r.Period,
		Amount:      core.Money{Cents: r.AmountCents},
		DueDate:     r.DueDate,
		Description: r.Description,
		IsPaid:      r.IsPaid,
		CreatedAt:   fromMillis(r.CreatedAt),
		UpdatedAt:   fromMillis(r.UpdatedAt),
	}
}

type instanceViewRow struct {
	instanceRow
	BillName     string `db:"bill_name"`
	ProfileID    string `db:"profile_id"`
	ProfileName  string `db:"profile_name"`
	ProfileColor string `db:"profile_color"`
}

func (r instanceViewRow) toCore() core.InstanceView {
	color := r.ProfileColor
	if color == "" {
		color = core.DefaultProfileColor
	}
	return core.InstanceView{
		BillInstance: r.instanceRow.toCore(),
		BillName:     r.BillName,
		ProfileID:    r.ProfileID,
		ProfileName:  r.ProfileName,
		ProfileColor: color,
	}
}

var instanceColumns = []string{
	"i.id", "i.bill_id", "i.user_id", "i.period", "i.amount_cents",
	"i.due_date", "i.description", "i.is_paid", "i.created_at", "i.updated_at",
}

const returningInstance = "RETURNING id, bill_id, user_id, period, amount_cents, due_date, description, is_paid, created_at, updated_at"

// deleteInstances removes the instances matching where inside tx and
// returns the rows it removed.
func (s *SQLStore) deleteInstances(ctx context.Context, tx *sqlx.Tx, where sq.Sqlizer, what string) ([]core.BillInstance, error) {
	query, args, err := s.sb.Delete("bill_instances").Where(where).Suffix(returningInstance).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s statement: %w", what, err)
	}
	var rows []instanceRow
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	out := make([]core.BillInstance, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *SQLStore) selectInstances() sq.SelectBuilder {
	return s.sb.Select(instanceColumns...).From("bill_instances i")
}

// selectViews joins bills and profiles. Orphaned rows still list, with
// placeholder names.
func (s *SQLStore) selectViews() sq.SelectBuilder {
	cols := append(append([]string{}, instanceColumns...),
		"COALESCE(b.name, 'Unknown Bill') AS bill_name",
		"COALESCE(p.id, '') AS profile_id",
		"COALESCE(p.name, '') AS profile_name",
		"COALESCE(p.color, '') AS profile_color",
	)
	return s.sb.Select(cols...).
		From("bill_instances i").
		LeftJoin("bills b ON b.id = i.bill_id").
		LeftJoin("profiles p ON p.id = b.profile_id")
}

func (s *SQLStore) InsertInstanceIfAbsent(ctx context.Context, i *core.BillInstance) (bool, error) {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	now := s.stamp()
	i.CreatedAt, i.UpdatedAt = fromMillis(now), fromMillis(now)

	query, args, err := s.sb.Insert("bill_instances").
		Columns("id", "bill_id", "user_id", "period", "amount_cents",
			"due_date", "description", "is_paid", "created_at", "updated_at").
		Values(i.ID, i.BillID, i.UserID, i.Period, i.Amount.Cents,
			i.DueDate, i.Description, i.IsPaid, now, now).
		Suffix("ON CONFLICT (bill_id, period) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert instance statement: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert instance rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLStore) GetInstance(ctx context.Context, id string) (core.BillInstance, error) {
	var row instanceRow
	if err := s.get(ctx, &row, s.selectInstances().Where(sq.Eq{"i.id": id}), "bill instance"); err != nil {
		return core.BillInstance{}, err
	}
	return row.toCore(), nil
}

// ListInstancesByBill returns the bill's instances, newest period label first.
func (s *SQLStore) ListInstancesByBill(ctx context.Context, billID string) ([]core.BillInstance, error) {
	var rows []instanceRow
	q := s.selectInstances().Where(sq.Eq{"i.bill_id": billID}).OrderBy("i.period DESC", "i.created_at DESC")
	if err := s.selectRows(ctx, &rows, q, "bill instances"); err != nil {
		return nil, err
	}
	out := make([]core.BillInstance, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *SQLStore) UpdateInstance(ctx context.Context, id string, patch core.InstancePatch) error {
	set := map[string]any{"updated_at": s.stamp()}
	if patch.Period != nil {
		set["period"] = *patch.Period
	}
	if patch.Amount != nil {
		set["amount_cents"] = patch.Amount.Cents
	}
	if patch.DueDate != nil {
		set["due_date"] = *patch.DueDate
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.IsPaid != nil {
		set["is_paid"] = *patch.IsPaid
	}
	q := s.sb.Update("bill_instances").SetMap(set).Where(sq.Eq{"id": id})
	return s.exec(ctx, s.db, q, "update bill instance")
}

func (s *SQLStore) DeleteInstance(ctx context.Context, id string) error {
	return s.exec(ctx, s.db, s.sb.Delete("bill_instances").Where(sq.Eq{"id": id}), "delete bill instance")
}

func (s *SQLStore) GetInstanceView(ctx context.Context, id string) (core.InstanceView, error) {
	var row instanceViewRow
	if err := s.get(ctx, &row, s.selectViews().Where(sq.Eq{"i.id": id}), "bill instance"); err != nil {
		return core.InstanceView{}, err
	}
	return row.toCore(), nil
}

// ListInstanceViewsByUser lists the owner's instances. A non-empty period
// restricts the result to that exact label.
func (s *SQLStore) ListInstanceViewsByUser(ctx context.Context, userID, period string) ([]core.InstanceView, error) {
	q := s.selectViews().Where(sq.Eq{"i.user_id": userID})
	if period != "" {
		q = q.Where(sq.Eq{"i.period": period})
	}
	return s.listViews(ctx, q.OrderBy("i.due_date", "bill_name", "i.id"))
}

func (s *SQLStore) ListInstanceViewsByProfile(ctx context.Context, profileID string) ([]core.InstanceView, error) {
	q := s.selectViews().Where(sq.Eq{"b.profile_id": profileID})
	return s.listViews(ctx, q.OrderBy("i.period DESC", "bill_name", "i.id"))
}

func (s *SQLStore) listViews(ctx context.Context, q sq.SelectBuilder) ([]core.InstanceView, error) {
	var rows []instanceViewRow
	if err := s.selectRows(ctx, &rows, q, "bill instance views"); err != nil {
		return nil, err
	}
	out := make([]core.InstanceView, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}
