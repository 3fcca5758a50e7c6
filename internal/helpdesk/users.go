package helpdesk

import (
	"context"
	"net/http"
	"net/url"

	"hde_orchestrator/internal/httpapi"
	"hde_orchestrator/internal/logging"
	"hde_orchestrator/internal/phone"
)

// User is a directory record that may belong to a contact.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SearchUsers runs a single directory search.
func (c *Client) SearchUsers(ctx context.Context, term string) ([]User, error) {
	resp, err := c.api.Get(ctx, "/users/", url.Values{"search": {term}})
	if err != nil {
		return nil, err
	}
	if err := httpapi.Expect(resp, http.StatusOK); err != nil {
		return nil, err
	}

	return decodeCollection[User](resp)
}

// ResolveCandidates searches the directory with every spelling of raw and
// returns the distinct users found, in first-seen order. Every variant is
// queried even after a hit; failed variants are skipped.
func (c *Client) ResolveCandidates(ctx context.Context, raw string) []User {
	variants := phone.SearchVariants(raw)

	seen := make(map[ID]struct{})
	candidates := make([]User, 0)

	for i, variant := range variants {
		if i > 0 {
			httpapi.Pause(ctx, c.variantDelay)
		}

		users, err := c.SearchUsers(ctx, variant)
		if err != nil {
			c.logger.WithFields(logging.Fields{
				"event":   "directory_search_failed",
				"variant": variant,
			}).WithError(err).Debug("skipping directory search variant")
			continue
		}

		for _, user := range users {
			if user.ID == "" {
				continue
			}
			if _, dup := seen[user.ID]; dup {
				continue
			}
			seen[user.ID] = struct{}{}
			candidates = append(candidates, user)
		}
	}

	return candidates
}
