package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the weaviate class holding one object per corpus chunk.
const ClassName = "LegalChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks if the required class exists and creates it (or
// adds missing properties) if not. Vectorizer is "none": embeddings are
// computed by the embedding gateway, never by weaviate.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "documentId",
			DataType: []string{"string"}, // UUID as string (exact match)
		},
		{
			Name:     "chunkIndex",
			DataType: []string{"int"},
		},
		{
			Name:     "sectionRef",
			DataType: []string{"string"},
		},
		{
			Name:     "jurisdiction",
			DataType: []string{"string"}, // closed enum, exact match
		},
		{
			Name:     "instrumentType",
			DataType: []string{"string"}, // closed enum, exact match
		},
		{
			Name:     "projectId",
			DataType: []string{"string"},
		},
		{
			Name:     "title",
			DataType: []string{"text"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A chunk of a legal document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}
