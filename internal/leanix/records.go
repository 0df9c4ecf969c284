package leanix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

const (
	statusArchived = "ARCHIVED"
	archiveComment = "Archiving the factsheet"
)

type factSheet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Rev         int64  `json:"rev"`
	DisplayName string `json:"displayName"`
}

type factSheetResult struct {
	FactSheet factSheet `json:"factSheet"`
}

const createFactSheetMutation = `mutation($input: BaseFactSheetInput!, $patches: [Patch]) {
  createFactSheet(input: $input, patches: $patches) {
    factSheet { id name displayName rev type category }
  }
}`

const updateFactSheetMutation = `mutation($id: ID!, $patches: [Patch]!) {
  updateFactSheet(id: $id, patches: $patches) {
    factSheet { id name rev }
  }
}`

const archiveFactSheetMutation = `mutation($id: ID!, $rev: Long, $comment: String, $patches: [Patch]!) {
  result: updateFactSheet(id: $id, rev: $rev, comment: $comment, patches: $patches, validateOnly: false) {
    factSheet { id name status }
  }
}`

const factSheetQuery = `query($id: ID!) {
  factSheet(id: $id) { id name type category status rev displayName }
}`

const findByNameQuery = `query($filter: FilterInput) {
  allFactSheets(filter: $filter) {
    edges { node { id name type category status } }
  }
}`

// relationQuery lists the targets of one relation of a fact sheet. Type and
// relation names are validated against identifier before formatting.
const relationQuery = `query($id: ID!) {
  factSheet(id: $id) {
    id
    type
    ... on %s {
      %s { edges { node { factSheet { id } } } }
    }
  }
}`

type suggestionsResponse struct {
	Data []struct {
		Type        string `json:"type"`
		Suggestions []struct {
			ObjectID    string `json:"objectId"`
			DisplayName string `json:"displayName"`
			Type        string `json:"type"`
			Category    string `json:"category"`
			Reasons     []struct {
				Field string `json:"field"`
				Value string `json:"value"`
			} `json:"reasons"`
		} `json:"suggestions"`
	} `json:"data"`
}

// Search runs a full text suggestion search across all record types.
func (c *Client) Search(ctx context.Context, name string) ([]domain.RecordMatch, error) {
	endpoint := c.baseURL + suggestionsPath + "?" + url.Values{"q": {name}}.Encode()
	body, err := c.send(ctx, "search", http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}

	var resp suggestionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	var matches []domain.RecordMatch
	for _, group := range resp.Data {
		for _, s := range group.Suggestions {
			m := domain.RecordMatch{
				ID:       s.ObjectID,
				Type:     s.Type,
				Name:     s.DisplayName,
				Category: s.Category,
			}
			for _, r := range s.Reasons {
				if r.Field == "externalId" {
					m.ExternalID = r.Value
				}
			}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// CreateRecord creates a fact sheet and sets its category when one is given.
func (c *Client) CreateRecord(ctx context.Context, recordType, name, category string) (string, error) {
	patches := []domain.Patch{}
	if category != "" {
		patches = append(patches, domain.Patch{Op: "replace", Path: "/category", Value: category})
	}

	var out struct {
		CreateFactSheet factSheetResult `json:"createFactSheet"`
	}
	vars := map[string]any{
		"input":   map[string]any{"name": name, "type": recordType},
		"patches": patches,
	}
	if err := c.graphql(ctx, "create record", createFactSheetMutation, vars, &out); err != nil {
		return "", err
	}
	if out.CreateFactSheet.FactSheet.ID == "" {
		return "", fmt.Errorf("create record %q returned no id", name)
	}

	logging.NewLogger(ctx).LogInfof("create_record", "type=%s name=%q id=%s", recordType, name, out.CreateFactSheet.FactSheet.ID)
	return out.CreateFactSheet.FactSheet.ID, nil
}

// FindByName returns the ID of the active fact sheet of recordType whose name
// matches case-insensitively, or "" when there is none.
func (c *Client) FindByName(ctx context.Context, recordType, name string) (string, error) {
	var out struct {
		AllFactSheets struct {
			Edges []struct {
				Node factSheet `json:"node"`
			} `json:"edges"`
		} `json:"allFactSheets"`
	}
	vars := map[string]any{
		"filter": map[string]any{
			"facetFilters":   []map[string]any{{"facetKey": "FactSheetTypes", "keys": []string{recordType}}},
			"fullTextSearch": name,
		},
	}
	if err := c.graphql(ctx, "find record by name", findByNameQuery, vars, &out); err != nil {
		return "", err
	}
	for _, e := range out.AllFactSheets.Edges {
		if e.Node.Status == statusArchived {
			continue
		}
		if strings.EqualFold(e.Node.Name, name) {
			return e.Node.ID, nil
		}
	}
	return "", nil
}

// CreateChildRelationship finds or creates the child record and links it to
// parentID through relationship unless the edge already exists. A child
// created here is archived again when the link cannot be made, and the
// failure is reported as domain.ErrRecordRejected unless it is an
// authorization or context error.
func (c *Client) CreateChildRelationship(ctx context.Context, parentID, name, category, relationship string) (domain.ChildRecord, error) {
	if !identifier.MatchString(relationship) {
		return domain.ChildRecord{}, fmt.Errorf("invalid relationship name %q", relationship)
	}

	childID, err := c.FindByName(ctx, c.cfg.RecordType, name)
	if err != nil {
		return domain.ChildRecord{}, err
	}
	child := domain.ChildRecord{ID: childID}
	if childID == "" {
		if child.ID, err = c.CreateRecord(ctx, c.cfg.RecordType, name, category); err != nil {
			return domain.ChildRecord{}, err
		}
		child.Created = true
	}

	if err := c.ensureRelation(ctx, parentID, child.ID, relationship); err != nil {
		if child.Created {
			if aerr := c.ArchiveRecord(ctx, child.ID); aerr != nil {
				logging.NewLogger(ctx).LogErrorf("create_child_relationship", "archive id=%s error=%v", child.ID, aerr)
			}
		}
		if errors.Is(err, domain.ErrUnauthorized) || ctx.Err() != nil {
			return domain.ChildRecord{}, fmt.Errorf("failed to link %s to %s: %w", child.ID, parentID, err)
		}
		return domain.ChildRecord{}, fmt.Errorf("%w: failed to link %s to %s: %w", domain.ErrRecordRejected, child.ID, parentID, err)
	}
	return child, nil
}

func (c *Client) ensureRelation(ctx context.Context, parentID, childID, relationship string) error {
	targets, err := c.relationTargets(ctx, parentID, relationship)
	if err != nil {
		return err
	}
	for _, id := range targets {
		if id == childID {
			logging.NewLogger(ctx).LogInfof("create_child_relationship", "relation exists parent=%s child=%s", parentID, childID)
			return nil
		}
	}

	value, err := json.Marshal(map[string]string{"factSheetId": childID})
	if err != nil {
		return err
	}
	patch := domain.Patch{Op: "add", Path: "/" + relationship + "/new_" + childID, Value: string(value)}
	_, err = c.UpdateRecord(ctx, parentID, []domain.Patch{patch})
	return err
}

func (c *Client) relationTargets(ctx context.Context, id, relationship string) ([]string, error) {
	if !identifier.MatchString(c.cfg.RecordType) {
		return nil, fmt.Errorf("invalid record type %q", c.cfg.RecordType)
	}

	var out struct {
		FactSheet map[string]json.RawMessage `json:"factSheet"`
	}
	query := fmt.Sprintf(relationQuery, c.cfg.RecordType, relationship)
	if err := c.graphql(ctx, "list relations", query, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.FactSheet == nil {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}

	raw, ok := out.FactSheet[relationship]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var rel struct {
		Edges []struct {
			Node struct {
				FactSheet struct {
					ID string `json:"id"`
				} `json:"factSheet"`
			} `json:"node"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(raw, &rel); err != nil {
		return nil, fmt.Errorf("failed to decode relation %s: %w", relationship, err)
	}
	ids := make([]string, 0, len(rel.Edges))
	for _, e := range rel.Edges {
		ids = append(ids, e.Node.FactSheet.ID)
	}
	return ids, nil
}

// UpdateRecord applies patches to a fact sheet and returns its ID.
func (c *Client) UpdateRecord(ctx context.Context, id string, patches []domain.Patch) (string, error) {
	var out struct {
		UpdateFactSheet factSheetResult `json:"updateFactSheet"`
	}
	vars := map[string]any{"id": id, "patches": patches}
	if err := c.graphql(ctx, "update record", updateFactSheetMutation, vars, &out); err != nil {
		return "", err
	}
	return out.UpdateFactSheet.FactSheet.ID, nil
}

func (c *Client) get(ctx context.Context, id string) (factSheet, error) {
	var out struct {
		FactSheet *factSheet `json:"factSheet"`
	}
	if err := c.graphql(ctx, "get record", factSheetQuery, map[string]any{"id": id}, &out); err != nil {
		return factSheet{}, err
	}
	if out.FactSheet == nil {
		return factSheet{}, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}
	return *out.FactSheet, nil
}

// ArchiveRecord sets the status of a fact sheet to ARCHIVED at its current
// revision.
func (c *Client) ArchiveRecord(ctx context.Context, id string) error {
	fs, err := c.get(ctx, id)
	if err != nil {
		return err
	}

	vars := map[string]any{
		"id":      id,
		"rev":     fs.Rev,
		"comment": archiveComment,
		"patches": []domain.Patch{{Op: "add", Path: "/status", Value: statusArchived}},
	}
	if err := c.graphql(ctx, "archive record", archiveFactSheetMutation, vars, nil); err != nil {
		return err
	}
	logging.NewLogger(ctx).LogInfof("archive_record", "id=%s rev=%d", id, fs.Rev)
	return nil
}
