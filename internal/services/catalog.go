package services

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/models"
)

// productsCollection is the document store collection holding the catalog.
const productsCollection = "produtos"

// CatalogStore defines the document store operations needed for catalog
// reads and deletes. Abstracted as an interface for testing.
type CatalogStore interface {
	GetDocument(ctx context.Context, idToken, collection, id string) (*firebase.Document, error)
	ListDocuments(ctx context.Context, idToken, collection string) ([]*firebase.Document, error)
	DeleteDocument(ctx context.Context, idToken, collection, id string) error
}

// CatalogService serves product listings from the document store.
//
// Category filtering happens gateway-side: the whole collection is fetched
// and narrowed in memory. The catalog is small by design, and filtering
// locally keeps the store free of composite indexes and makes the
// case-insensitive match trivial.
type CatalogService struct {
	store        CatalogStore
	pollInterval time.Duration
}

// NewCatalogService creates a catalog service. pollInterval controls how
// often Watch re-reads the collection.
func NewCatalogService(store CatalogStore, pollInterval time.Duration) *CatalogService {
	return &CatalogService{
		store:        store,
		pollInterval: pollInterval,
	}
}

// List returns catalog products, optionally narrowed to one category.
// The categoria argument is matched case-insensitively; an empty argument
// returns the whole catalog. Products whose own categoria field is empty
// never match a category filter.
//
// Results are sorted by produto name for stable output.
func (c *CatalogService) List(ctx context.Context, idToken, categoria string) ([]models.Product, error) {
	docs, err := c.store.ListDocuments(ctx, idToken, productsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	wanted := models.NormalizeCategory(categoria)

	products := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		product := productFrom(doc)
		if wanted != "" && !product.InCategory(wanted) {
			continue
		}
		products = append(products, product)
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].Produto < products[j].Produto
	})

	return products, nil
}

// Get fetches a single product by document id. Returns firebase.ErrNotFound
// when no such product exists.
func (c *CatalogService) Get(ctx context.Context, idToken, id string) (*models.Product, error) {
	doc, err := c.store.GetDocument(ctx, idToken, productsCollection, id)
	if err != nil {
		return nil, err
	}
	product := productFrom(doc)
	return &product, nil
}

// Delete removes a product from the catalog.
func (c *CatalogService) Delete(ctx context.Context, idToken, id string) error {
	if err := c.store.DeleteDocument(ctx, idToken, productsCollection, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	log.Info().Str("product_id", id).Msg("Product deleted")
	return nil
}

// CatalogEvent is one emission from a catalog watcher: either a fresh
// snapshot of the (filtered) catalog or a terminal error. After an event
// with Err set, no further events follow.
type CatalogEvent struct {
	Products []models.Product
	Err      error
}

// Watcher is a live subscription to catalog changes. Events delivers an
// initial snapshot followed by a new snapshot whenever the visible catalog
// changes. Unsubscribe stops the feed and closes the channel; it is safe to
// call more than once.
type Watcher struct {
	Events <-chan CatalogEvent
	cancel context.CancelFunc
}

// Unsubscribe stops the watcher. No events are delivered after it returns
// control of the polling goroutine.
func (w *Watcher) Unsubscribe() {
	w.cancel()
}

// Watch subscribes to the catalog, optionally narrowed to one category.
// The document store's REST surface has no change feed, so the watcher
// polls: an immediate first read, then a re-read every poll interval, with
// an event emitted only when the snapshot actually differs.
//
// A failed poll is terminal: the watcher emits the error and closes the
// channel, mirroring how upstream snapshot listeners stop on error. Callers
// resubscribe to recover.
func (c *CatalogService) Watch(ctx context.Context, idToken, categoria string) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan CatalogEvent, 1)

	go c.poll(ctx, idToken, categoria, events)

	return &Watcher{Events: events, cancel: cancel}
}

// poll drives one watcher until its context ends or a read fails.
func (c *CatalogService) poll(ctx context.Context, idToken, categoria string, events chan<- CatalogEvent) {
	defer close(events)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var last []models.Product
	first := true

	for {
		products, err := c.List(ctx, idToken, categoria)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("Catalog watch poll failed")
			select {
			case events <- CatalogEvent{Err: err}:
			case <-ctx.Done():
			}
			return
		}

		// Emit the first snapshot unconditionally, then only on change
		if first || !reflect.DeepEqual(products, last) {
			select {
			case events <- CatalogEvent{Products: products}:
			case <-ctx.Done():
				return
			}
			last = products
			first = false
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// productFrom maps a document onto the catalog model. Absent fields come
// back zero-valued; historical documents with missing categoria or imagem
// are representable and survive the round trip.
func productFrom(doc *firebase.Document) models.Product {
	return models.Product{
		ID:         doc.ID,
		Produto:    doc.GetString("produto"),
		Descricao:  doc.GetString("descricao"),
		Quantidade: doc.GetInt("quantidade"),
		Categoria:  doc.GetString("categoria"),
		Imagem:     doc.GetString("imagem"),
		CreatedAt:  doc.GetString("createdAt"),
		UpdatedAt:  doc.GetString("updatedAt"),
	}
}
