package transport

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
)

// GraphQLRequest is the body posted to a GraphQL endpoint.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLError is one entry of the "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// GraphQL posts a query or mutation to endpoint and decodes "data" into target.
// An "errors" payload is reported as *errors.ProtocolError and is not retried;
// no data is returned alongside it. Mutations get the longer mutation timeout.
func (c *Client) GraphQL(ctx context.Context, endpoint, query string, variables map[string]any, target any) error {
	timeout := constants.QueryTimeout
	if IsMutation(query) {
		timeout = constants.MutationTimeout
	}
	if c.timeout > 0 {
		timeout = c.timeout
	}
	return c.graphQL(ctx, endpoint, query, variables, timeout, target)
}

func (c *Client) graphQL(ctx context.Context, endpoint, query string, variables map[string]any, timeout time.Duration, target any) error {
	var resp graphQLResponse
	req := GraphQLRequest{Query: query, Variables: variables}
	if err := c.PostJSON(ctx, endpoint, req, timeout, &resp); err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return errors.NewProtocolError(c.name, msgs...)
	}

	if target == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Data, target); err != nil {
		return errors.WrapParse("json", "graphql data", err)
	}
	return nil
}

// IsMutation reports whether a GraphQL document is a mutation.
func IsMutation(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), "mutation")
}
