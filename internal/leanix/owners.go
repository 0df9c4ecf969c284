package leanix

import (
	"context"
	"fmt"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

// SubscriptionResponsible is the subscription type used for process owners.
const SubscriptionResponsible = "RESPONSIBLE"

const subscriptionsQuery = `query($id: ID!) {
  factSheet(id: $id) {
    subscriptions {
      edges { node { id type user { id email } roles { id name } } }
    }
  }
}`

const createSubscriptionMutation = `mutation($factSheetId: ID!, $user: UserInput!, $type: FactSheetSubscriptionType!, $roleIds: [ID]) {
  createSubscription(factSheetId: $factSheetId, user: $user, type: $type, roleIds: $roleIds) {
    id
  }
}`

const deleteSubscriptionMutation = `mutation($id: ID!) {
  deleteSubscription(id: $id) { id }
}`

// ListOwners returns the subscriptions of a fact sheet with their role IDs.
func (c *Client) ListOwners(ctx context.Context, id string) ([]domain.Subscription, error) {
	var out struct {
		FactSheet *struct {
			Subscriptions struct {
				Edges []struct {
					Node struct {
						ID    string `json:"id"`
						Type  string `json:"type"`
						Roles []struct {
							ID string `json:"id"`
						} `json:"roles"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"subscriptions"`
		} `json:"factSheet"`
	}
	if err := c.graphql(ctx, "list owners", subscriptionsQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.FactSheet == nil {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}

	subs := make([]domain.Subscription, 0, len(out.FactSheet.Subscriptions.Edges))
	for _, e := range out.FactSheet.Subscriptions.Edges {
		s := domain.Subscription{ID: e.Node.ID}
		for _, r := range e.Node.Roles {
			s.RoleIDs = append(s.RoleIDs, r.ID)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// AddOwner subscribes a user as responsible for the fact sheet.
func (c *Client) AddOwner(ctx context.Context, id, roleID, email, firstName, surname string) error {
	vars := map[string]any{
		"factSheetId": id,
		"user":        map[string]any{"email": email, "firstName": firstName, "lastName": surname},
		"type":        SubscriptionResponsible,
	}
	if roleID != "" {
		vars["roleIds"] = []string{roleID}
	}
	return c.graphql(ctx, "add owner", createSubscriptionMutation, vars, nil)
}

// RemoveOwner deletes a subscription.
func (c *Client) RemoveOwner(ctx context.Context, subscriptionID string) error {
	return c.graphql(ctx, "remove owner", deleteSubscriptionMutation, map[string]any{"id": subscriptionID}, nil)
}
