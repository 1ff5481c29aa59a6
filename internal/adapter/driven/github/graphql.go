package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BoardClient = (*BoardClient)(nil)

// graphqlTimeout bounds each GraphQL request as a safety net alongside
// context cancellation.
const graphqlTimeout = 30 * time.Second

// BoardClient implements driven.BoardClient against GitHub Projects (v2)
// through the GraphQL API.
type BoardClient struct {
	gql *githubv4.Client
}

// NewBoardClient creates a BoardClient authenticated with a personal access token.
func NewBoardClient(token string) *BoardClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)

	return &BoardClient{gql: githubv4.NewClient(withStatusErrors(httpClient))}
}

// NewBoardClientWithHTTPClient creates a BoardClient that posts to graphqlURL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewBoardClientWithHTTPClient(httpClient *http.Client, graphqlURL string) *BoardClient {
	return &BoardClient{gql: githubv4.NewEnterpriseClient(graphqlURL, withStatusErrors(httpClient))}
}

// withStatusErrors returns a copy of httpClient whose non-200 responses become
// *driven.APIError values. The GraphQL library reports them as plain strings,
// which would hide rate limit signals from the retry policy.
func withStatusErrors(httpClient *http.Client) *http.Client {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := *httpClient
	c.Transport = &statusTransport{base: base}
	if c.Timeout == 0 {
		c.Timeout = graphqlTimeout
	}
	return &c
}

type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode == http.StatusOK {
		return resp, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		message = payload.Message
	}

	return nil, apiErrorFromResponse(resp, message)
}

// projectV2 is the board shape shared by the user and organization owners.
type projectV2 struct {
	ID     githubv4.ID
	Fields struct {
		Nodes []struct {
			SingleSelect struct {
				ID      githubv4.ID
				Name    githubv4.String
				Options []struct {
					ID   githubv4.String
					Name githubv4.String
				}
			} `graphql:"... on ProjectV2SingleSelectField"`
		}
	} `graphql:"fields(first: 20)"`
}

// GetBoard resolves a board by owner login and number. The owner may be a
// user or an organization.
func (c *BoardClient) GetBoard(ctx context.Context, owner string, number int) (*driven.Board, error) {
	var q struct {
		RepositoryOwner struct {
			User struct {
				ProjectV2 projectV2 `graphql:"projectV2(number: $number)"`
			} `graphql:"... on User"`
			Organization struct {
				ProjectV2 projectV2 `graphql:"projectV2(number: $number)"`
			} `graphql:"... on Organization"`
		} `graphql:"repositoryOwner(login: $login)"`
	}
	vars := map[string]any{
		"login":  githubv4.String(owner),
		"number": githubv4.Int(number),
	}

	if err := c.gql.Query(ctx, &q, vars); err != nil {
		if isNotResolved(err) {
			return nil, fmt.Errorf("board %d for %s: %w", number, owner, errors.Join(driven.ErrBoardNotFound, err))
		}
		return nil, fmt.Errorf("querying board %d for %s: %w", number, owner, err)
	}

	project := q.RepositoryOwner.User.ProjectV2
	if idString(project.ID) == "" {
		project = q.RepositoryOwner.Organization.ProjectV2
	}
	if idString(project.ID) == "" {
		return nil, fmt.Errorf("board %d for %s: %w", number, owner, driven.ErrBoardNotFound)
	}

	board := &driven.Board{ID: idString(project.ID)}
	for _, node := range project.Fields.Nodes {
		field := node.SingleSelect
		if idString(field.ID) == "" {
			continue
		}
		bf := model.BoardField{ID: idString(field.ID), Name: string(field.Name)}
		for _, opt := range field.Options {
			bf.Options = append(bf.Options, model.BoardOption{ID: string(opt.ID), Name: string(opt.Name)})
		}
		board.Fields = append(board.Fields, bf)
	}

	return board, nil
}

// AddItem adds the content to the board and returns the board item id.
func (c *BoardClient) AddItem(ctx context.Context, projectID, contentID string) (string, error) {
	var m struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID githubv4.ID
			}
		} `graphql:"addProjectV2ItemById(input: $input)"`
	}
	input := githubv4.AddProjectV2ItemByIdInput{
		ProjectID: githubv4.ID(projectID),
		ContentID: githubv4.ID(contentID),
	}

	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return "", fmt.Errorf("adding %s to board %s: %w", contentID, projectID, err)
	}

	itemID := idString(m.AddProjectV2ItemByID.Item.ID)
	if itemID == "" {
		return "", fmt.Errorf("adding %s to board %s: empty item id", contentID, projectID)
	}
	return itemID, nil
}

// ListItems returns the first 100 items on the board.
func (c *BoardClient) ListItems(ctx context.Context, projectID string) ([]model.BoardItem, error) {
	var q struct {
		Node struct {
			ProjectV2 struct {
				Items struct {
					Nodes []struct {
						ID      githubv4.ID
						Content struct {
							Issue struct {
								ID githubv4.ID
							} `graphql:"... on Issue"`
							PullRequest struct {
								ID githubv4.ID
							} `graphql:"... on PullRequest"`
						}
					}
				} `graphql:"items(first: 100)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $projectId)"`
	}
	vars := map[string]any{"projectId": githubv4.ID(projectID)}

	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("listing items of board %s: %w", projectID, err)
	}

	nodes := q.Node.ProjectV2.Items.Nodes
	items := make([]model.BoardItem, 0, len(nodes))
	for _, n := range nodes {
		contentID := idString(n.Content.Issue.ID)
		if contentID == "" {
			contentID = idString(n.Content.PullRequest.ID)
		}
		items = append(items, model.BoardItem{ID: idString(n.ID), ContentID: contentID})
	}
	return items, nil
}

// SetSingleSelect sets a single-select field on a board item.
func (c *BoardClient) SetSingleSelect(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	var m struct {
		UpdateProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID githubv4.ID
			}
		} `graphql:"updateProjectV2ItemFieldValue(input: $input)"`
	}
	input := githubv4.UpdateProjectV2ItemFieldValueInput{
		ProjectID: githubv4.ID(projectID),
		ItemID:    githubv4.ID(itemID),
		FieldID:   githubv4.ID(fieldID),
		Value: githubv4.ProjectV2FieldValue{
			SingleSelectOptionID: githubv4.NewString(githubv4.String(optionID)),
		},
	}

	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return fmt.Errorf("setting field %s on board item %s: %w", fieldID, itemID, err)
	}
	return nil
}

// isNotResolved reports whether a GraphQL error says the requested object
// does not exist.
func isNotResolved(err error) bool {
	return strings.Contains(err.Error(), "Could not resolve to")
}

func idString(id githubv4.ID) string {
	if id == nil {
		return ""
	}
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}
