package repo

import (
	"context"
	"database/sql"
	"fmt"

	"conecta/internal/catalog"
	"conecta/internal/domain"
)

func scanVendor(row scanner) (domain.Vendor, error) {
	var v domain.Vendor
	if err := row.Scan(&v.ID, &v.Name, &v.Email, &v.SpecialtiesRaw, &v.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return v, ErrNotFound
		}
		return v, err
	}
	v.Specialties = catalog.ParseVendorSpecialties(v.SpecialtiesRaw)
	return v, nil
}

// InsertVendor seeds a vendor record. Specialties are stored as a JSON array
// of canonical codes.
func (r Repo) InsertVendor(ctx context.Context, v domain.Vendor) (domain.Vendor, error) {
	raw := v.SpecialtiesRaw
	if raw == "" {
		var err error
		if raw, err = marshalStrings(v.Specialties); err != nil {
			return v, err
		}
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO vendedores(nombre,correo,especialidades,created_at) VALUES (?,?,?,?)`, v.Name, v.Email, raw, v.CreatedAt)
	if err != nil {
		return v, fmt.Errorf("insert vendor: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return v, err
	}
	v.SpecialtiesRaw = raw
	v.Specialties = catalog.ParseVendorSpecialties(raw)
	return v, nil
}

func (r Repo) GetVendor(ctx context.Context, id int64) (domain.Vendor, error) {
	return r.getVendor(ctx, r.DB, id)
}

func (r Repo) GetVendorTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Vendor, error) {
	return r.getVendor(ctx, tx, id)
}

func (r Repo) getVendor(ctx context.Context, q querier, id int64) (domain.Vendor, error) {
	return scanVendor(q.QueryRowContext(ctx, `SELECT id,nombre,correo,especialidades,created_at FROM vendedores WHERE id=?`, id))
}

func (r Repo) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,nombre,correo,especialidades,created_at FROM vendedores ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}
