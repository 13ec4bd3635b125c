package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/models"
)

// MutationStore defines the document store write operations needed by the
// mutation flow.
type MutationStore interface {
	SetDocument(ctx context.Context, idToken, collection, id string, fields map[string]firebase.Value, merge bool) error
	AddDocument(ctx context.Context, idToken, collection string, fields map[string]firebase.Value) (string, error)
}

// ImageUploader uploads a base64-encoded image and returns its hosted URL.
// Implemented by the image hosting client.
type ImageUploader interface {
	Upload(ctx context.Context, imageBase64 string) (string, error)
}

// ValidationError reports a rejected draft field with an end-user message.
// Validation failures never reach the network; a draft that fails here has
// caused no upload and no document write.
type ValidationError struct {
	Field   string // Draft field that failed validation
	Message string // Localized end-user message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// MutationService runs the catalog submission flow: validate the draft,
// upload the image if one was attached, then write the product document.
// The ordering is a hard invariant. Validation happens before any network
// activity, and the document write never happens if the upload fails, so
// the catalog can never reference an image that does not exist.
type MutationService struct {
	store    MutationStore
	uploader ImageUploader
}

// NewMutationService creates a mutation service.
func NewMutationService(store MutationStore, uploader ImageUploader) *MutationService {
	return &MutationService{
		store:    store,
		uploader: uploader,
	}
}

// Submit validates and persists a product draft.
//
// With existingID empty a new document is created (createdAt stamped by the
// gateway); otherwise the named document receives a merge write touching
// only the submitted fields plus updatedAt, so fields outside the draft
// survive untouched.
//
// Returns the id of the written document. A *ValidationError return means
// the draft was rejected before any network call.
func (m *MutationService) Submit(ctx context.Context, idToken string, draft *models.ProductDraft, existingID string) (string, error) {
	quantidade, err := validateDraft(draft)
	if err != nil {
		return "", err
	}

	// Image upload strictly precedes the document write
	imagem := draft.ImagemURL
	if draft.ImageBase64 != "" {
		url, err := m.uploader.Upload(ctx, draft.ImageBase64)
		if err != nil {
			log.Warn().Err(err).Msg("Image upload failed, aborting submission")
			return "", fmt.Errorf("image upload failed: %w", err)
		}
		imagem = url
	}

	// imagem is always part of the write set, empty or not; a draft without
	// an image stores "", and an edit that dropped the image clears it
	now := time.Now().UTC().Format(time.RFC3339)
	fields := map[string]firebase.Value{
		"produto":    firebase.StringVal(strings.TrimSpace(draft.Produto)),
		"descricao":  firebase.StringVal(draft.Descricao),
		"quantidade": firebase.IntVal(quantidade),
		"categoria":  firebase.StringVal(models.NormalizeCategory(draft.Categoria)),
		"imagem":     firebase.StringVal(imagem),
		"updatedAt":  firebase.StringVal(now),
	}

	if existingID != "" {
		if err := m.store.SetDocument(ctx, idToken, productsCollection, existingID, fields, true); err != nil {
			return "", fmt.Errorf("failed to update product: %w", err)
		}
		log.Info().Str("product_id", existingID).Msg("Product updated")
		return existingID, nil
	}

	fields["createdAt"] = firebase.StringVal(now)
	id, err := m.store.AddDocument(ctx, idToken, productsCollection, fields)
	if err != nil {
		return "", fmt.Errorf("failed to create product: %w", err)
	}

	log.Info().Str("product_id", id).Msg("Product created")
	return id, nil
}

// validateDraft checks the draft and returns the parsed quantity.
// Quantidade arrives as the raw form string and must parse as a
// non-negative integer; "3.5", "abc", and "-1" are all rejected.
func validateDraft(draft *models.ProductDraft) (int, error) {
	if strings.TrimSpace(draft.Produto) == "" {
		return 0, &ValidationError{
			Field:   "produto",
			Message: "Nome do produto é obrigatório",
		}
	}

	raw := strings.TrimSpace(draft.Quantidade)
	if raw == "" {
		return 0, &ValidationError{
			Field:   "quantidade",
			Message: "Quantidade é obrigatória",
		}
	}
	quantidade, err := strconv.Atoi(raw)
	if err != nil || quantidade < 0 {
		return 0, &ValidationError{
			Field:   "quantidade",
			Message: "Quantidade deve ser um número inteiro não negativo",
		}
	}

	if draft.Categoria != "" && !models.ValidCategory(draft.Categoria) {
		return 0, &ValidationError{
			Field:   "categoria",
			Message: "Categoria inválida",
		}
	}

	return quantidade, nil
}
