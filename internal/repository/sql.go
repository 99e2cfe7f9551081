package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/repository/dao"
	"github.com/vietanh2810/shopstore/internal/tracker"
)

type ShopDAO interface {
	FindOwners(ctx context.Context) ([]dao.Owner, error)
	FindTabs(ctx context.Context) ([]dao.Tab, error)
	FindListings(ctx context.Context) ([]dao.Listing, error)
	InsertOwner(ctx context.Context, owner dao.Owner, tabs []string) error
	SaveOwner(ctx context.Context, owner dao.Owner, tabs []string) error
	InsertTab(ctx context.Context, ownerID, name string) error
	DeleteTab(ctx context.Context, ownerID, name string) error
	InsertListing(ctx context.Context, listing dao.Listing) (dao.Listing, error)
	UpdateListing(ctx context.Context, listing dao.Listing) (dao.Listing, error)
	DeleteListing(ctx context.Context, id int64) error
	DeleteOwnerListings(ctx context.Context, ownerID string) error
}

// SQLProvider persists every operation as a row-level write executed on its
// own worker pool. It is the id authority for listings: AddListing returns
// the listing carrying the database-generated id.
type SQLProvider struct {
	db      *gorm.DB
	dao     ShopDAO
	exec    *executor
	workers int
}

func NewSQLProvider(db *gorm.DB, workers int) *SQLProvider {
	return &SQLProvider{
		db:      db,
		dao:     dao.NewShopDAO(db),
		workers: workers,
	}
}

func (p *SQLProvider) Name() string {
	return "sql"
}

func (p *SQLProvider) Initialize(ctx context.Context) error {
	if err := dao.InitTables(p.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("dao.InitTables -> %w", err)
	}
	p.exec = newExecutor(p.workers)
	return nil
}

func (p *SQLProvider) LoadAll(ctx context.Context, t *tracker.Tracker) error {
	owners, err := p.dao.FindOwners(ctx)
	if err != nil {
		return fmt.Errorf("%w: p.dao.FindOwners -> %v", ErrLoadFailed, err)
	}
	tabs, err := p.dao.FindTabs(ctx)
	if err != nil {
		return fmt.Errorf("%w: p.dao.FindTabs -> %v", ErrLoadFailed, err)
	}
	listings, err := p.dao.FindListings(ctx)
	if err != nil {
		return fmt.Errorf("%w: p.dao.FindListings -> %v", ErrLoadFailed, err)
	}

	tabsByOwner := make(map[string][]string)
	for _, tab := range tabs {
		tabsByOwner[tab.OwnerID] = append(tabsByOwner[tab.OwnerID], tab.Name)
	}
	for _, row := range owners {
		o, err := p.daoToDomainOwner(row, tabsByOwner[row.ID])
		if err != nil {
			return fmt.Errorf("%w: owner %q: %v", ErrLoadFailed, row.ID, err)
		}
		t.PutOwner(o)
	}
	for _, row := range listings {
		l, err := p.daoToDomainListing(row)
		if err != nil {
			return fmt.Errorf("%w: listing %d: %v", ErrLoadFailed, row.ID, err)
		}
		t.AddListing(l)
	}
	return nil
}

// AddListing inserts l and returns it with its database id. The insert is
// not bound to the cancellation of ctx: once a row may exist the caller must
// receive its id, or the row would only show up on the next load.
func (p *SQLProvider) AddListing(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	var created dao.Listing
	err := p.exec.Do(context.WithoutCancel(ctx), func(ctx context.Context) error {
		var err error
		created, err = p.dao.InsertListing(ctx, p.domainToDaoListing(l))
		return err
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("p.dao.InsertListing -> %w", err)
	}
	l.ID = created.ID
	return l, nil
}

func (p *SQLProvider) RemoveListing(ctx context.Context, id int64) error {
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.dao.DeleteListing(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("p.dao.DeleteListing -> %w", err)
	}
	return nil
}

func (p *SQLProvider) RemoveOwnerListings(ctx context.Context, owner uuid.UUID) error {
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.dao.DeleteOwnerListings(ctx, owner.String())
	})
	if err != nil {
		return fmt.Errorf("p.dao.DeleteOwnerListings -> %w", err)
	}
	return nil
}

func (p *SQLProvider) UpdateListing(ctx context.Context, l domain.Listing) error {
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		_, err := p.dao.UpdateListing(ctx, p.domainToDaoListing(l))
		return err
	})
	if err != nil {
		return fmt.Errorf("p.dao.UpdateListing -> %w", err)
	}
	return nil
}

func (p *SQLProvider) SaveOwnerInfo(ctx context.Context, o domain.Owner) error {
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.dao.SaveOwner(ctx, p.domainToDaoOwner(o), o.Tabs)
	})
	if err != nil {
		return fmt.Errorf("p.dao.SaveOwner -> %w", err)
	}
	return nil
}

// ImportOwner inserts an owner with its tabs without touching existing rows.
// Returns ErrOwnerExists when the owner is already stored.
func (p *SQLProvider) ImportOwner(ctx context.Context, o domain.Owner) error {
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.dao.InsertOwner(ctx, p.domainToDaoOwner(o), o.Tabs)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOwnerExists
		}
		return fmt.Errorf("p.dao.InsertOwner -> %w", err)
	}
	return nil
}

func (p *SQLProvider) CreateTab(ctx context.Context, owner uuid.UUID, name string) error {
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.dao.InsertTab(ctx, owner.String(), name)
	})
	if err != nil {
		return fmt.Errorf("p.dao.InsertTab -> %w", err)
	}
	return nil
}

func (p *SQLProvider) RemoveTab(ctx context.Context, owner uuid.UUID, name string) error {
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.dao.DeleteTab(ctx, owner.String(), name)
	})
	if err != nil {
		return fmt.Errorf("p.dao.DeleteTab -> %w", err)
	}
	return nil
}

// Shutdown drains pending writes and closes the connection pool. Writes
// submitted afterwards fail with ErrExecutorClosed.
func (p *SQLProvider) Shutdown(_ context.Context) error {
	if p.exec != nil {
		p.exec.Close()
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("p.db.DB -> %w", err)
	}
	return sqlDB.Close()
}

func (p *SQLProvider) domainToDaoListing(l domain.Listing) dao.Listing {
	row := dao.Listing{
		ID:            l.ID,
		ItemType:      l.ItemType,
		Quantity:      l.Quantity,
		BuyPrice:      l.BuyPrice,
		SellPrice:     l.SellPrice,
		Durability:    l.Durability,
		MaxDurability: l.MaxDurability,
		Stock:         l.Stock,
		Tab:           l.Tab,
	}
	if l.HasOwner() {
		owner := l.OwnerID.String()
		row.OwnerID = &owner
	}
	return row
}

func (p *SQLProvider) daoToDomainListing(row dao.Listing) (domain.Listing, error) {
	l := domain.Listing{
		ID:            row.ID,
		ItemType:      row.ItemType,
		Quantity:      row.Quantity,
		BuyPrice:      row.BuyPrice,
		SellPrice:     row.SellPrice,
		Durability:    row.Durability,
		MaxDurability: row.MaxDurability,
		Stock:         row.Stock,
		Tab:           row.Tab,
	}
	if row.OwnerID != nil && *row.OwnerID != "" {
		owner, err := uuid.Parse(*row.OwnerID)
		if err != nil {
			return domain.Listing{}, err
		}
		l.OwnerID = owner
	}
	return l, nil
}

func (p *SQLProvider) domainToDaoOwner(o domain.Owner) dao.Owner {
	return dao.Owner{
		ID:         o.ID.String(),
		Nick:       o.Nick,
		CustomName: o.CustomName,
		Icon:       o.Icon,
		IsOpen:     o.IsOpen,
	}
}

func (p *SQLProvider) daoToDomainOwner(row dao.Owner, tabs []string) (domain.Owner, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return domain.Owner{}, err
	}
	if tabs == nil {
		tabs = []string{}
	}
	return domain.Owner{
		ID:         id,
		Nick:       row.Nick,
		CustomName: row.CustomName,
		Icon:       row.Icon,
		IsOpen:     row.IsOpen,
		Tabs:       tabs,
	}, nil
}
