package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/tracker"
)

// Keys written by this version. Anything else found in a document is carried
// over verbatim on the next flush.
var (
	documentKeys = []string{"nextId", "listings", "owners"}
	listingKeys  = []string{"id", "itemType", "quantity", "buyPrice", "sellPrice", "ownerId",
		"durability", "maxDurability", "stock", "tab"}
	ownerKeys = []string{"id", "nick", "customName", "icon", "isOpen", "tabs"}
)

// filePrice is written as a JSON number. Quoted prices are still read.
type filePrice struct {
	decimal.Decimal
}

func (p filePrice) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

type fileListing struct {
	ID            int64     `json:"id"`
	ItemType      string    `json:"itemType"`
	Quantity      int       `json:"quantity"`
	BuyPrice      filePrice `json:"buyPrice"`
	SellPrice     filePrice `json:"sellPrice"`
	OwnerID       string    `json:"ownerId"`
	Durability    float64   `json:"durability"`
	MaxDurability float64   `json:"maxDurability"`
	Stock         int       `json:"stock"`
	Tab           string    `json:"tab"`
}

type fileOwner struct {
	ID         string   `json:"id"`
	Nick       string   `json:"nick"`
	CustomName string   `json:"customName"`
	Icon       string   `json:"icon"`
	IsOpen     bool     `json:"isOpen"`
	Tabs       []string `json:"tabs"`
}

type rawObject = map[string]json.RawMessage

// FileProvider keeps the whole store in a single JSON document. Per-operation
// writes only mark the store dirty; the document is rewritten by Flush.
type FileProvider struct {
	path  string
	dirty atomic.Bool

	// flushMu orders flushes and is held while the snapshot callback runs.
	flushMu sync.Mutex

	mu            sync.Mutex // guards the preserved document parts below
	documentExtra rawObject
	listingExtra  map[int64]rawObject
	ownerExtra    map[string]rawObject
	// Records that could not be loaded are written back unchanged.
	unloadedOwners   []json.RawMessage
	unloadedListings []json.RawMessage
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		path:         path,
		listingExtra: make(map[int64]rawObject),
		ownerExtra:   make(map[string]rawObject),
	}
}

func (p *FileProvider) Name() string {
	return "file"
}

func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) Initialize(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// LoadAll reads the document into t. A missing document is an empty store.
// An unreadable one is moved aside to <path>.corrupt-<unix> so a later flush
// cannot overwrite it, and ErrLoadFailed is returned.
func (p *FileProvider) LoadAll(_ context.Context, t *tracker.Tracker) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	if err := p.decode(data, t); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", p.path, time.Now().Unix())
		if renameErr := os.Rename(p.path, aside); renameErr != nil {
			return fmt.Errorf("%w: %v (quarantine failed: %v)", ErrLoadFailed, err, renameErr)
		}
		return fmt.Errorf("%w: %v (moved to %s)", ErrLoadFailed, err, aside)
	}

	return nil
}

func (p *FileProvider) decode(data []byte, t *tracker.Tracker) error {
	var doc rawObject
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	var nextID int64
	if raw, ok := doc["nextId"]; ok {
		if err := json.Unmarshal(raw, &nextID); err != nil {
			return fmt.Errorf("nextId: %w", err)
		}
	}

	var rawOwners, rawListings []json.RawMessage
	if raw, ok := doc["owners"]; ok {
		if err := json.Unmarshal(raw, &rawOwners); err != nil {
			return fmt.Errorf("owners: %w", err)
		}
	}
	if raw, ok := doc["listings"]; ok {
		if err := json.Unmarshal(raw, &rawListings); err != nil {
			return fmt.Errorf("listings: %w", err)
		}
	}

	owners := make([]domain.Owner, 0, len(rawOwners))
	ownerExtra := make(map[string]rawObject)
	var unloadedOwners, unloadedListings []json.RawMessage
	for i, raw := range rawOwners {
		var fo fileOwner
		extra, err := splitExtra(raw, &fo, ownerKeys)
		if err != nil {
			return fmt.Errorf("owners[%d]: %w", i, err)
		}
		id, err := uuid.Parse(fo.ID)
		if err != nil {
			zap.L().Warn("keeping owner with invalid id unloaded", zap.String("id", fo.ID), zap.String("path", p.path))
			unloadedOwners = append(unloadedOwners, raw)
			continue
		}
		if fo.Tabs == nil {
			fo.Tabs = []string{}
		}
		owners = append(owners, domain.Owner{
			ID:         id,
			Nick:       fo.Nick,
			CustomName: fo.CustomName,
			Icon:       fo.Icon,
			IsOpen:     fo.IsOpen,
			Tabs:       fo.Tabs,
		})
		if len(extra) > 0 {
			ownerExtra[id.String()] = extra
		}
	}

	listings := make([]domain.Listing, 0, len(rawListings))
	listingExtra := make(map[int64]rawObject)
	for i, raw := range rawListings {
		var fl fileListing
		extra, err := splitExtra(raw, &fl, listingKeys)
		if err != nil {
			return fmt.Errorf("listings[%d]: %w", i, err)
		}
		var owner uuid.UUID
		if fl.OwnerID != "" {
			if owner, err = uuid.Parse(fl.OwnerID); err != nil {
				zap.L().Warn("keeping listing with invalid owner unloaded", zap.Int64("listing_id", fl.ID), zap.String("owner_id", fl.OwnerID))
				unloadedListings = append(unloadedListings, raw)
				// Its id stays taken.
				nextID = max(nextID, fl.ID+1)
				continue
			}
		}
		if fl.Quantity <= 0 {
			fl.Quantity = 1
		}
		if fl.Stock < 0 {
			fl.Stock = 0
		}
		listings = append(listings, domain.Listing{
			ID:            fl.ID,
			ItemType:      fl.ItemType,
			Quantity:      fl.Quantity,
			BuyPrice:      fl.BuyPrice.Decimal,
			SellPrice:     fl.SellPrice.Decimal,
			OwnerID:       owner,
			Durability:    fl.Durability,
			MaxDurability: fl.MaxDurability,
			Stock:         fl.Stock,
			Tab:           fl.Tab,
		})
		if len(extra) > 0 && fl.ID != 0 {
			listingExtra[fl.ID] = extra
		}
	}

	for _, o := range owners {
		t.PutOwner(o)
	}
	t.SetNextID(nextID)
	for _, l := range listings {
		t.AddListing(l)
	}

	p.documentExtra = withoutKeys(doc, documentKeys)
	p.listingExtra = listingExtra
	p.ownerExtra = ownerExtra
	p.unloadedOwners = unloadedOwners
	p.unloadedListings = unloadedListings
	return nil
}

// Flush clears the dirty flag, then takes a snapshot and writes it
// atomically. Changes marked after the flag is cleared are picked up by the
// next flush. On failure the flag is set again so the next flush retries.
func (p *FileProvider) Flush(_ context.Context, snapshot func() tracker.Snapshot) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.dirty.Store(false)
	snap := snapshot()

	p.mu.Lock()
	data, err := p.encode(snap)
	p.mu.Unlock()
	if err != nil {
		p.dirty.Store(true)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := writeAtomic(p.path, data); err != nil {
		p.dirty.Store(true)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

func (p *FileProvider) Dirty() bool {
	return p.dirty.Load()
}

func (p *FileProvider) encode(snap tracker.Snapshot) ([]byte, error) {
	owners := make([]json.RawMessage, 0, len(snap.Owners)+len(p.unloadedOwners))
	for _, o := range snap.Owners {
		raw, err := mergeExtra(fileOwner{
			ID:         o.ID.String(),
			Nick:       o.Nick,
			CustomName: o.CustomName,
			Icon:       o.Icon,
			IsOpen:     o.IsOpen,
			Tabs:       o.Tabs,
		}, p.ownerExtra[o.ID.String()])
		if err != nil {
			return nil, err
		}
		owners = append(owners, raw)
	}

	owners = append(owners, p.unloadedOwners...)

	listings := make([]json.RawMessage, 0, len(snap.Listings)+len(p.unloadedListings))
	for _, l := range snap.Listings {
		fl := fileListing{
			ID:            l.ID,
			ItemType:      l.ItemType,
			Quantity:      l.Quantity,
			BuyPrice:      filePrice{l.BuyPrice},
			SellPrice:     filePrice{l.SellPrice},
			Durability:    l.Durability,
			MaxDurability: l.MaxDurability,
			Stock:         l.Stock,
			Tab:           l.Tab,
		}
		if l.HasOwner() {
			fl.OwnerID = l.OwnerID.String()
		}
		raw, err := mergeExtra(fl, p.listingExtra[l.ID])
		if err != nil {
			return nil, err
		}
		listings = append(listings, raw)
	}
	listings = append(listings, p.unloadedListings...)

	doc := make(rawObject, len(p.documentExtra)+3)
	for k, v := range p.documentExtra {
		doc[k] = v
	}
	var err error
	if doc["nextId"], err = json.Marshal(snap.NextID); err != nil {
		return nil, err
	}
	if doc["listings"], err = json.Marshal(listings); err != nil {
		return nil, err
	}
	if doc["owners"], err = json.Marshal(owners); err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (p *FileProvider) AddListing(_ context.Context, l domain.Listing) (domain.Listing, error) {
	p.dirty.Store(true)
	return l, nil
}

func (p *FileProvider) RemoveListing(_ context.Context, _ int64) error {
	p.dirty.Store(true)
	return nil
}

func (p *FileProvider) RemoveOwnerListings(_ context.Context, _ uuid.UUID) error {
	p.dirty.Store(true)
	return nil
}

func (p *FileProvider) UpdateListing(_ context.Context, _ domain.Listing) error {
	p.dirty.Store(true)
	return nil
}

func (p *FileProvider) SaveOwnerInfo(_ context.Context, _ domain.Owner) error {
	p.dirty.Store(true)
	return nil
}

func (p *FileProvider) CreateTab(_ context.Context, _ uuid.UUID, _ string) error {
	p.dirty.Store(true)
	return nil
}

func (p *FileProvider) RemoveTab(_ context.Context, _ uuid.UUID, _ string) error {
	p.dirty.Store(true)
	return nil
}

func (p *FileProvider) Shutdown(_ context.Context) error {
	return nil
}

// splitExtra decodes raw into v and returns the members whose keys are not in known.
func splitExtra(raw json.RawMessage, v any, known []string) (rawObject, error) {
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	var obj rawObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return withoutKeys(obj, known), nil
}

// mergeExtra encodes v and adds the preserved members it does not define itself.
func mergeExtra(v any, extra rawObject) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = val
		}
	}
	return json.Marshal(obj)
}

func withoutKeys(obj rawObject, keys []string) rawObject {
	out := make(rawObject)
	for k, v := range obj {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
