package leanix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// GraphQLError is returned when the repository answers with errors in the
// response body.
type GraphQLError struct {
	Operation string
	Messages  []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("graphql %s failed: %s", e.Operation, strings.Join(e.Messages, "; "))
}

// Is makes a GraphQLError match domain.ErrRecordRejected.
func (e *GraphQLError) Is(target error) bool { return target == domain.ErrRecordRejected }

// identifier guards names that are spliced into query text.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// graphql posts a query and decodes its data into out.
func (c *Client) graphql(ctx context.Context, op, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	body, err := c.send(ctx, op, http.MethodPost, c.baseURL+graphqlPath, payload)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var resp graphqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	if len(resp.Errors) > 0 {
		gerr := &GraphQLError{Operation: op}
		for _, e := range resp.Errors {
			gerr.Messages = append(gerr.Messages, e.Message)
		}
		return gerr
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", op, err)
	}
	return nil
}
