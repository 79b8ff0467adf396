package dto

import (
	"time"

	"github.com/noah-isme/isms-go-api/internal/models"
)

// DocumentCreateRequest carries a new governed document.
type DocumentCreateRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Category string `json:"category" validate:"required,oneof=policy procedure guideline record"`
	Content  string `json:"content" validate:"omitempty"`
	Version  string `json:"version" validate:"omitempty,max=32"`
}

// DocumentResponse is one governed document as served to clients.
type DocumentResponse struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Version   string    `json:"version,omitempty"`
	Status    string    `json:"status"`
	OwnerID   *uint     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocumentResponse maps a document to its response shape.
func NewDocumentResponse(document models.Document) DocumentResponse {
	return DocumentResponse{
		ID:        document.ID,
		Title:     document.Title,
		Category:  document.Category,
		Version:   document.Version,
		Status:    document.Status,
		OwnerID:   document.OwnerID,
		CreatedAt: document.CreatedAt,
		UpdatedAt: document.UpdatedAt,
	}
}
