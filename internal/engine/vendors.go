package engine

import (
	"context"
	"strings"

	"conecta/internal/catalog"
	"conecta/internal/domain"
)

// RegisterVendor stores a vendor with its specialties normalized to catalog
// codes. Unknown specialties are an input error.
func (e Engine) RegisterVendor(ctx context.Context, name, email string, specialties []string) (domain.Vendor, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return domain.Vendor{}, InputError{Field: "nombre", Reason: "required"}
	}
	if email == "" {
		return domain.Vendor{}, InputError{Field: "correo", Reason: "required"}
	}
	codes := []string{}
	for _, s := range specialties {
		code, ok := catalog.Normalize(s)
		if !ok {
			return domain.Vendor{}, InputError{Field: "especialidades", Reason: "unknown specialty " + s}
		}
		if !catalog.Contains(codes, code) {
			codes = append(codes, code)
		}
	}
	v, err := e.Repo.InsertVendor(ctx, domain.Vendor{Name: name, Email: email, Specialties: codes, CreatedAt: e.stamp()})
	if err != nil {
		return v, err
	}
	e.log().Info("vendor registered", "vendedor_id", v.ID, "especialidades", strings.Join(codes, ","))
	return v, nil
}

func (e Engine) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	return e.Repo.ListVendors(ctx)
}
