package models

import "strings"

// Product categories form a closed taxonomy. Values are stored lowercase in
// the document store, but historical documents exist with mixed casing, so
// all comparisons must lowercase both sides.
const (
	CategoryPeixes   = "peixes"
	CategoryRoedores = "roedores"
	CategoryAquarios = "aquarios"
	CategoryRacao    = "racao"
	CategoryRemedio  = "remedio"
	CategoryPassaros = "passaros"
)

// Categories lists the closed category taxonomy in display order.
var Categories = []string{
	CategoryPeixes,
	CategoryRoedores,
	CategoryAquarios,
	CategoryRacao,
	CategoryRemedio,
	CategoryPassaros,
}

// NormalizeCategory lowercases and trims a category value for comparison
// and storage.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// ValidCategory reports whether the value belongs to the taxonomy after
// normalization.
func ValidCategory(category string) bool {
	normalized := NormalizeCategory(category)
	for _, c := range Categories {
		if c == normalized {
			return true
		}
	}
	return false
}

// Product mirrors a document in the `produtos` collection. Field names match
// the stored document shape (Portuguese, as created by the original mobile
// clients). Optional fields default to their zero values; a product with an
// absent or unknown categoria is invisible to every category listing.
//
// JSON example:
//
//	{
//	  "id": "aX3kQ9",
//	  "produto": "Ração Premium",
//	  "descricao": "Para cães adultos",
//	  "quantidade": 10,
//	  "categoria": "racao",
//	  "imagem": "https://i.ibb.co/abc/racao.jpg",
//	  "createdAt": "2024-01-15T10:30:00Z",
//	  "updatedAt": "2024-01-20T14:45:00Z"
//	}
type Product struct {
	ID         string `json:"id"`                  // Store-generated document id
	Produto    string `json:"produto"`             // Product name (required)
	Descricao  string `json:"descricao"`           // Description (optional, defaults to "")
	Quantidade int    `json:"quantidade"`          // Stock quantity (non-negative)
	Categoria  string `json:"categoria"`           // Category from the closed taxonomy
	Imagem     string `json:"imagem"`              // Hosted image URL (optional, defaults to "")
	CreatedAt  string `json:"createdAt,omitempty"` // Creation time (ISO 8601)
	UpdatedAt  string `json:"updatedAt,omitempty"` // Last update time (ISO 8601)
}

// InCategory reports whether the product belongs to the given category,
// comparing case-insensitively. Products without a categoria never match.
func (p *Product) InCategory(category string) bool {
	if p.Categoria == "" {
		return false
	}
	return NormalizeCategory(p.Categoria) == NormalizeCategory(category)
}

// ProductDraft carries the raw form input for a catalog create or update.
// Quantidade stays a string until validation so that non-numeric input is a
// field-scoped validation error rather than a decoding failure.
type ProductDraft struct {
	Produto     string `json:"produto"`                // Product name (required)
	Descricao   string `json:"descricao"`              // Description (optional)
	Quantidade  string `json:"quantidade"`             // Raw quantity input, must parse as int >= 0
	Categoria   string `json:"categoria"`              // Category, normalized to lowercase on write
	ImagemURL   string `json:"imagem,omitempty"`       // Previously stored image URL, kept when no new image is picked
	ImageBase64 string `json:"image_base64,omitempty"` // Newly picked image payload, uploaded before the write
}
