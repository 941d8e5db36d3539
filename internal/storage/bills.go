package storage

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"billtracker/internal/core"
)

type billRow struct {
	ID            string         `db:"id"`
	ProfileID     string         `db:"profile_id"`
	UserID        string         `db:"user_id"`
	Name          string         `db:"name"`
	DueDay        int            `db:"due_day"`
	EBillLink     sql.NullString `db:"ebill_link"`
	EBillUsername sql.NullString `db:"ebill_username"`
	EBillPassword sql.NullString `db:"ebill_password"`
	InstanceCount int            `db:"instance_count"`
	CreatedAt     int64          `db:"created_at"`
	UpdatedAt     int64          `db:"updated_at"`
}

func (r billRow) toCore() core.Bill {
	b := core.Bill{
		ID:            r.ID,
		ProfileID:     r.ProfileID,
		UserID:        r.UserID,
		Name:          r.Name,
		DueDay:        r.DueDay,
		InstanceCount: r.InstanceCount,
		CreatedAt:     fromMillis(r.CreatedAt),
		UpdatedAt:     fromMillis(r.UpdatedAt),
	}
	if r.EBillLink.Valid {
		b.EBill = &core.EBill{
			Link:     r.EBillLink.String,
			Username: r.EBillUsername.String,
			Password: r.EBillPassword.String,
		}
	}
	return b
}

func ebillColumns(e *core.EBill) (link, username, password any) {
	if e == nil {
		return nil, nil, nil
	}
	return e.Link, e.Username, e.Password
}

func (s *SQLStore) selectBills(withCount bool) sq.SelectBuilder {
	count := "0 AS instance_count"
	if withCount {
		count = "(SELECT COUNT(*) FROM bill_instances i WHERE i.bill_id = b.id) AS instance_count"
	}
	return s.sb.Select(
		"b.id", "b.profile_id", "b.user_id", "b.name", "b.due_day",
		"b.ebill_link", "b.ebill_username", "b.ebill_password",
		count, "b.created_at", "b.updated_at",
	).From("bills b")
}

func (s *SQLStore) listBills(ctx context.Context, q sq.SelectBuilder) ([]core.Bill, error) {
	var rows []billRow
	if err := s.selectRows(ctx, &rows, q, "bills"); err != nil {
		return nil, err
	}
	out := make([]core.Bill, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *SQLStore) CreateBill(ctx context.Context, b *core.Bill) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := s.stamp()
	b.CreatedAt, b.UpdatedAt = fromMillis(now), fromMillis(now)

	link, username, password := ebillColumns(b.EBill)
	q := s.sb.Insert("bills").
		Columns("id", "profile_id", "user_id", "name", "due_day",
			"ebill_link", "ebill_username", "ebill_password", "created_at", "updated_at").
		Values(b.ID, b.ProfileID, b.UserID, b.Name, b.DueDay, link, username, password, now, now)
	return s.exec(ctx, s.db, q, "insert bill")
}

func (s *SQLStore) GetBill(ctx context.Context, id string) (core.Bill, error) {
	var row billRow
	if err := s.get(ctx, &row, s.selectBills(true).Where(sq.Eq{"b.id": id}), "bill"); err != nil {
		return core.Bill{}, err
	}
	return row.toCore(), nil
}

func (s *SQLStore) ListBillsByProfile(ctx context.Context, profileID string) ([]core.Bill, error) {
	return s.listBills(ctx, s.selectBills(true).
		Where(sq.Eq{"b.profile_id": profileID}).
		OrderBy("b.created_at", "b.id"))
}

// ListAllBills returns every bill of every owner, without instance counts.
func (s *SQLStore) ListAllBills(ctx context.Context) ([]core.Bill, error) {
	return s.listBills(ctx, s.selectBills(false).OrderBy("b.user_id", "b.created_at", "b.id"))
}

func (s *SQLStore) UpdateBill(ctx context.Context, id string, patch core.BillPatch) error {
	set := map[string]any{"updated_at": s.stamp()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.DueDay != nil {
		set["due_day"] = *patch.DueDay
	}
	switch {
	case patch.RemoveEBill:
		set["ebill_link"], set["ebill_username"], set["ebill_password"] = nil, nil, nil
	case patch.EBill != nil:
		set["ebill_link"], set["ebill_username"], set["ebill_password"] = ebillColumns(patch.EBill)
	}
	q := s.sb.Update("bills").SetMap(set).Where(sq.Eq{"id": id})
	return s.exec(ctx, s.db, q, "update bill")
}

// DeleteBill removes the bill and its instances in one transaction.
func (s *SQLStore) DeleteBill(ctx context.Context, id string) ([]core.BillInstance, error) {
	var removed []core.BillInstance
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		removed, err = s.deleteInstances(ctx, tx, sq.Eq{"bill_id": id}, "delete bill instances")
		if err != nil {
			return err
		}
		return s.exec(ctx, tx, s.sb.Delete("bills").Where(sq.Eq{"id": id}), "delete bill")
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
