package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/GustheTrader/Build-flow/internal/domain/finance"
	"github.com/GustheTrader/Build-flow/internal/domain/purchaseorder"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

const (
	keyPO        = "po:"
	keyPOsAll    = "pos:all"
	keyPOCounter = "po:counter"
)

func poKey(id string) string { return keyPO + id }

// PurchaseOrderService manages vendor purchase orders.
type PurchaseOrderService struct {
	store   kvstore.Store
	vendors *VendorService
	now     func() time.Time
	newID   func() string
}

// NewPurchaseOrderService creates a PurchaseOrderService. vendors fills in
// the vendor name when a request omits it and may be nil.
func NewPurchaseOrderService(store kvstore.Store, vendors *VendorService) *PurchaseOrderService {
	return &PurchaseOrderService{store: store, vendors: vendors, now: time.Now, newID: uuid.NewString}
}

// Create numbers and prices a new draft purchase order.
func (s *PurchaseOrderService) Create(ctx context.Context, req *purchaseorder.CreateRequest, createdBy string) (*purchaseorder.PurchaseOrder, error) {
	if err := purchaseorder.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	vendorName := req.VendorName
	if vendorName == "" && s.vendors != nil {
		v, err := s.vendors.Get(ctx, req.VendorID)
		if err != nil {
			return nil, err
		}
		vendorName = v.Name
	}

	now := s.now().UTC()
	number, err := nextNumber(ctx, s.store, keyPOCounter, "PO", now)
	if err != nil {
		return nil, err
	}
	po := &purchaseorder.PurchaseOrder{
		ID:                   s.newID(),
		ProjectID:            req.ProjectID,
		PONumber:             number,
		VendorID:             req.VendorID,
		VendorName:           vendorName,
		VendorContact:        req.VendorContact,
		OrderDate:            req.OrderDate,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Status:               purchaseorder.StatusDraft,
		ShippingAddress:      req.ShippingAddress,
		Notes:                req.Notes,
		CreatedBy:            createdBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	po.Reprice(req.LineItems, req.TaxRate, s.newID)

	if err := s.save(ctx, po); err != nil {
		return nil, err
	}
	if err := s.store.SAdd(ctx, keyPOsAll, po.ID); err != nil {
		return nil, err
	}
	return po, nil
}

// Get returns a purchase order by ID.
func (s *PurchaseOrderService) Get(ctx context.Context, id string) (*purchaseorder.PurchaseOrder, error) {
	po, err := getJSON[purchaseorder.PurchaseOrder](ctx, s.store, poKey(id))
	if err != nil {
		return nil, fmt.Errorf("purchase order %s: %w", id, err)
	}
	return po, nil
}

// List returns purchase orders matching f, newest first.
func (s *PurchaseOrderService) List(ctx context.Context, f purchaseorder.Filter) ([]purchaseorder.PurchaseOrder, error) {
	ids, err := s.store.SMembers(ctx, keyPOsAll)
	if err != nil {
		return nil, err
	}
	all, err := loadAll[purchaseorder.PurchaseOrder](ctx, s.store, ids, poKey)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(po purchaseorder.PurchaseOrder) bool {
		return (f.ProjectID != "" && po.ProjectID != f.ProjectID) || !f.Matches(&po)
	})
	slices.SortFunc(out, func(a, b purchaseorder.PurchaseOrder) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Update applies a partial update. Status changes follow the order's
// allowed transitions; new lines reprice the order.
func (s *PurchaseOrderService) Update(ctx context.Context, id string, req purchaseorder.UpdateRequest) (*purchaseorder.PurchaseOrder, error) {
	if err := purchaseorder.ValidateUpdateRequest(&req); err != nil {
		return nil, err
	}
	po, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != nil && *req.Status != po.Status {
		if err := po.Transition(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.OrderDate != nil {
		po.OrderDate = *req.OrderDate
	}
	if req.ExpectedDeliveryDate != nil {
		po.ExpectedDeliveryDate = *req.ExpectedDeliveryDate
	}
	if req.ActualDeliveryDate != nil {
		po.ActualDeliveryDate = *req.ActualDeliveryDate
	}
	if req.ShippingAddress != nil {
		po.ShippingAddress = req.ShippingAddress
	}
	if req.Notes != nil {
		po.Notes = *req.Notes
	}
	if req.LineItems != nil || req.TaxRate != nil {
		lines := req.LineItems
		if lines == nil {
			lines = make([]purchaseorder.LineInput, 0, len(po.LineItems))
			for _, li := range po.LineItems {
				lines = append(lines, purchaseorder.LineInput{Description: li.Description, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
			}
		}
		rate := po.TaxRate
		if req.TaxRate != nil {
			rate = *req.TaxRate
		}
		po.Reprice(lines, rate, s.newID)
	}
	return s.touch(ctx, po)
}

// Delete removes a purchase order and its index entry.
func (s *PurchaseOrderService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, poKey(id)); err != nil {
		return err
	}
	return s.store.SRem(ctx, keyPOsAll, id)
}

// Send marks the order as sent to the vendor.
func (s *PurchaseOrderService) Send(ctx context.Context, id string) (*purchaseorder.PurchaseOrder, error) {
	return s.transition(ctx, id, purchaseorder.StatusSent)
}

// Approve marks the order as approved for delivery.
func (s *PurchaseOrderService) Approve(ctx context.Context, id string) (*purchaseorder.PurchaseOrder, error) {
	return s.transition(ctx, id, purchaseorder.StatusApproved)
}

func (s *PurchaseOrderService) transition(ctx context.Context, id string, to purchaseorder.Status) (*purchaseorder.PurchaseOrder, error) {
	po, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := po.Transition(to); err != nil {
		return nil, err
	}
	return s.touch(ctx, po)
}

// ReceiveItems accumulates received quantities per line.
func (s *PurchaseOrderService) ReceiveItems(ctx context.Context, id string, receipts []purchaseorder.Receipt) (*purchaseorder.PurchaseOrder, error) {
	po, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := po.Receive(receipts, today(s.now())); err != nil {
		return nil, err
	}
	return s.touch(ctx, po)
}

// Stats summarizes purchase orders, optionally for one project.
func (s *PurchaseOrderService) Stats(ctx context.Context, projectID string) (*purchaseorder.Stats, error) {
	all, err := s.List(ctx, purchaseorder.Filter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	st := &purchaseorder.Stats{TotalOrders: len(all), ByStatus: make(map[purchaseorder.Status]int, len(purchaseorder.Statuses))}
	for _, status := range purchaseorder.Statuses {
		st.ByStatus[status] = 0
	}
	for i := range all {
		st.TotalAmount += all[i].Total
		st.ByStatus[all[i].Status]++
		if all[i].Status == purchaseorder.StatusSent || all[i].Status == purchaseorder.StatusApproved {
			st.PendingDeliveries++
		}
	}
	st.TotalAmount = finance.Round2(st.TotalAmount)
	return st, nil
}

func (s *PurchaseOrderService) touch(ctx context.Context, po *purchaseorder.PurchaseOrder) (*purchaseorder.PurchaseOrder, error) {
	po.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, po); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *PurchaseOrderService) save(ctx context.Context, po *purchaseorder.PurchaseOrder) error {
	return putJSON(ctx, s.store, poKey(po.ID), po, 0)
}
