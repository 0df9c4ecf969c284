package leanix

import (
	"context"
	"fmt"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

const (
	originCustomLink = "CUSTOM_LINK"
	documentWebsite  = "website"
)

const documentsQuery = `query($factSheetId: ID!) {
  factSheet(id: $factSheetId) {
    documents {
      edges { node { id name documentType url } }
    }
  }
}`

const createDocumentMutation = `mutation($factSheetId: ID!, $name: String!, $description: String, $url: String, $origin: String, $documentType: String) {
  result: createDocument(factSheetId: $factSheetId, name: $name, description: $description, url: $url, origin: $origin, documentType: $documentType) {
    id name url origin documentType
  }
}`

const deleteDocumentMutation = `mutation($id: ID!) {
  deleteDocument(id: $id) { id }
}`

// ListDocuments returns the documents attached to a fact sheet.
func (c *Client) ListDocuments(ctx context.Context, id string) ([]domain.Document, error) {
	var out struct {
		FactSheet *struct {
			Documents struct {
				Edges []struct {
					Node domain.Document `json:"node"`
				} `json:"edges"`
			} `json:"documents"`
		} `json:"factSheet"`
	}
	if err := c.graphql(ctx, "list documents", documentsQuery, map[string]any{"factSheetId": id}, &out); err != nil {
		return nil, err
	}
	if out.FactSheet == nil {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}

	docs := make([]domain.Document, 0, len(out.FactSheet.Documents.Edges))
	for _, e := range out.FactSheet.Documents.Edges {
		docs = append(docs, e.Node)
	}
	return docs, nil
}

// AddWebsiteLink attaches a custom website link to a fact sheet.
func (c *Client) AddWebsiteLink(ctx context.Context, id, url, name, description string) error {
	vars := map[string]any{
		"factSheetId":  id,
		"name":         name,
		"description":  description,
		"url":          url,
		"origin":       originCustomLink,
		"documentType": documentWebsite,
	}
	return c.graphql(ctx, "add website link", createDocumentMutation, vars, nil)
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.graphql(ctx, "delete document", deleteDocumentMutation, map[string]any{"id": documentID}, nil)
}
