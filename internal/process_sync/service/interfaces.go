package service

import (
	"context"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

// RecordRepository is the EA repository the tree is materialized into.
type RecordRepository interface {
	Search(ctx context.Context, name string) ([]domain.RecordMatch, error)
	CreateRecord(ctx context.Context, recordType, name, category string) (string, error)
	CreateChildRelationship(ctx context.Context, parentID, name, category, relationship string) (domain.ChildRecord, error)
	UpdateRecord(ctx context.Context, id string, patches []domain.Patch) (string, error)
	ArchiveRecord(ctx context.Context, id string) error
	ListOwners(ctx context.Context, id string) ([]domain.Subscription, error)
	AddOwner(ctx context.Context, id, roleID, email, firstName, surname string) error
	RemoveOwner(ctx context.Context, subscriptionID string) error
}

// DocumentRepository manages the links attached to records.
type DocumentRepository interface {
	ListDocuments(ctx context.Context, id string) ([]domain.Document, error)
	AddWebsiteLink(ctx context.Context, id, url, name, description string) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// OwnerGroupResolver reads the owner group name of a main process.
type OwnerGroupResolver interface {
	ResolveOwnerGroup(ctx context.Context, diagramID string) (string, error)
}

// OwnerLookup finds directory users by display name.
type OwnerLookup interface {
	SearchByName(ctx context.Context, name string) ([]domain.Person, error)
}

// ProcessLinks builds deep links into the process modeler.
type ProcessLinks interface {
	NavigatorURL(diagramID string) string
	DesignerURL(diagramID string) string
}
