package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GustheTrader/Build-flow/internal/domain/vendor"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

const (
	keyVendor     = "vendor:"
	keyVendorsAll = "vendors:all"
)

func vendorKey(id string) string { return keyVendor + id }

// VendorService manages suppliers and subcontractors.
type VendorService struct {
	store kvstore.Store
	now   func() time.Time
	newID func() string
}

// NewVendorService creates a VendorService.
func NewVendorService(store kvstore.Store) *VendorService {
	return &VendorService{store: store, now: time.Now, newID: uuid.NewString}
}

// Create stores a new vendor.
func (s *VendorService) Create(ctx context.Context, req *vendor.CreateRequest) (*vendor.Vendor, error) {
	if err := vendor.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	v := &vendor.Vendor{
		ID:            s.newID(),
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Category:      req.Category,
		TaxID:         req.TaxID,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := putJSON(ctx, s.store, vendorKey(v.ID), v, 0); err != nil {
		return nil, err
	}
	if err := s.store.SAdd(ctx, keyVendorsAll, v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

// Get returns a vendor by ID.
func (s *VendorService) Get(ctx context.Context, id string) (*vendor.Vendor, error) {
	v, err := getJSON[vendor.Vendor](ctx, s.store, vendorKey(id))
	if err != nil {
		return nil, fmt.Errorf("vendor %s: %w", id, err)
	}
	return v, nil
}

// List returns vendors matching f, sorted by name.
func (s *VendorService) List(ctx context.Context, f vendor.Filter) ([]vendor.Vendor, error) {
	ids, err := s.store.SMembers(ctx, keyVendorsAll)
	if err != nil {
		return nil, err
	}
	all, err := loadAll[vendor.Vendor](ctx, s.store, ids, vendorKey)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(v vendor.Vendor) bool { return !f.Matches(&v) })
	slices.SortFunc(out, func(a, b vendor.Vendor) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// Update applies a partial update.
func (s *VendorService) Update(ctx context.Context, id string, req vendor.UpdateRequest) (*vendor.Vendor, error) {
	if err := vendor.ValidateUpdateRequest(&req); err != nil {
		return nil, err
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.ContactPerson != nil {
		v.ContactPerson = *req.ContactPerson
	}
	if req.Email != nil {
		v.Email = *req.Email
	}
	if req.Phone != nil {
		v.Phone = *req.Phone
	}
	if req.Address != nil {
		v.Address = req.Address
	}
	if req.Category != nil {
		v.Category = *req.Category
	}
	if req.TaxID != nil {
		v.TaxID = *req.TaxID
	}
	if req.Notes != nil {
		v.Notes = *req.Notes
	}
	v.UpdatedAt = s.now().UTC()
	if err := putJSON(ctx, s.store, vendorKey(id), v, 0); err != nil {
		return nil, err
	}
	return v, nil
}

// Delete removes a vendor. Purchase orders keep their copy of the name.
func (s *VendorService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, vendorKey(id)); err != nil {
		return err
	}
	return s.store.SRem(ctx, keyVendorsAll, id)
}

// Categories returns the distinct non-empty vendor categories, sorted.
func (s *VendorService) Categories(ctx context.Context) ([]string, error) {
	all, err := s.List(ctx, vendor.Filter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := []string{}
	for i := range all {
		c := all[i].Category
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out, nil
}
