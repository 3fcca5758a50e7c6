// Package helpdesk talks to the HelpDeskEddy API v2: directory search, ticket
// lookup, ticket replies and ticket metadata updates.
package helpdesk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hde_orchestrator/internal/config"
	"hde_orchestrator/internal/httpapi"
	"hde_orchestrator/internal/logging"
)

// ID is a helpdesk record identifier. The API returns ids as JSON numbers but
// some endpoints quote them, so both forms are accepted.
type ID string

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("helpdesk id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as text.
func (id ID) String() string {
	return string(id)
}

// Client is a HelpDeskEddy API client.
type Client struct {
	api              *httpapi.Client
	logger           *logrus.Entry
	typeFieldID      int
	initiatedFieldID int
	variantDelay     time.Duration
}

// NewClient builds a client authenticated with the agent email and API key.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...httpapi.Option) (*Client, error) {
	if strings.TrimSpace(cfg.HDEEmail) == "" || strings.TrimSpace(cfg.HDEAPIKey) == "" {
		return nil, errors.New("helpdesk credentials are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	opts = append([]httpapi.Option{httpapi.WithBasicAuth(cfg.HDEEmail, cfg.HDEAPIKey)}, opts...)
	api, err := httpapi.NewClient(cfg.HDEURL, cfg.HTTPTimeout, opts...)
	if err != nil {
		return nil, fmt.Errorf("init helpdesk client: %w", err)
	}

	return &Client{
		api:              api,
		logger:           logger,
		typeFieldID:      cfg.HDETypeFieldID,
		initiatedFieldID: cfg.HDEInitiatedFieldID,
		variantDelay:     cfg.VariantDelay,
	}, nil
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeCollection normalizes the API's data payload, which is either an
// array or an object keyed by id, into a slice. Object members keep their
// document order.
func decodeCollection[T any](resp httpapi.Response) ([]T, error) {
	var env envelope
	if err := httpapi.DecodeJSON(resp, &env); err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(env.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	shapeErr := func(err error) error {
		return &httpapi.ShapeError{Body: resp.Raw(), Err: err}
	}

	switch raw[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, shapeErr(err)
		}
		return items, nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return nil, shapeErr(err)
		}

		var items []T
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, shapeErr(err)
			}
			var item T
			if err := dec.Decode(&item); err != nil {
				return nil, shapeErr(err)
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, shapeErr(errors.New("data is neither an array nor an object"))
	}
}
