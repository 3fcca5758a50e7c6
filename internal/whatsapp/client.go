// Package whatsapp sends approved template messages through the 1msg
// WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"hde_orchestrator/internal/config"
	"hde_orchestrator/internal/domain"
	"hde_orchestrator/internal/httpapi"
	"hde_orchestrator/internal/logging"
	"hde_orchestrator/internal/phone"
)

const languagePolicy = "deterministic"

// Client is a gateway client bound to one instance.
type Client struct {
	api       *httpapi.Client
	logger    *logrus.Entry
	namespace string
	langCode  string
}

// NewClient builds a client for the configured gateway instance. The token is
// sent as a query parameter on every request.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...httpapi.Option) (*Client, error) {
	instance := strings.TrimSpace(cfg.WAInstanceID)
	token := strings.TrimSpace(cfg.WAToken)
	if instance == "" || token == "" {
		return nil, errors.New("whatsapp instance id and token are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	base := strings.TrimRight(cfg.WAURL, "/") + "/" + url.PathEscape(instance)
	opts = append([]httpapi.Option{httpapi.WithDefaultQuery(url.Values{"token": {token}})}, opts...)
	api, err := httpapi.NewClient(base, cfg.HTTPTimeout, opts...)
	if err != nil {
		return nil, fmt.Errorf("init whatsapp client: %w", err)
	}

	return &Client{
		api:       api,
		logger:    logger,
		namespace: cfg.WANamespace,
		langCode:  cfg.WALangCode,
	}, nil
}

type language struct {
	Policy string `json:"policy"`
	Code   string `json:"code"`
}

type templateRequest struct {
	Template  string   `json:"template"`
	Language  language `json:"language"`
	Namespace string   `json:"namespace"`
	Phone     string   `json:"phone"`
}

type templateResponse struct {
	Sent bool            `json:"sent"`
	ID   json.RawMessage `json:"id"`
}

// SendTemplate sends the named template to raw, normalized to the gateway's
// phone format.
func (c *Client) SendTemplate(ctx context.Context, raw, template string) domain.Delivery {
	payload := templateRequest{
		Template:  template,
		Language:  language{Policy: languagePolicy, Code: c.langCode},
		Namespace: c.namespace,
		Phone:     phone.MessagingFormat(raw),
	}

	id, err := c.send(ctx, payload)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":     "whatsapp_send_failed",
			"phone":     payload.Phone,
			"transport": httpapi.IsTransport(err),
		}).WithError(err).Debug("template not sent")
		return domain.Delivery{Detail: failureDetail(err)}
	}

	return domain.Delivery{Sent: true, Detail: "WA ID: " + id}
}

func (c *Client) send(ctx context.Context, payload templateRequest) (string, error) {
	resp, err := c.api.Post(ctx, "/sendTemplate", payload)
	if err != nil {
		return "", err
	}
	if err := httpapi.Expect(resp, http.StatusOK); err != nil {
		return "", err
	}

	var body templateResponse
	if err := httpapi.DecodeJSON(resp, &body); err != nil {
		return "", err
	}
	if !body.Sent {
		return "", &httpapi.PolicyError{Reason: "Not Sent", Body: resp.Raw()}
	}

	return messageID(body.ID), nil
}

// messageID renders the gateway id, which may be a string or a number.
func messageID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func failureDetail(err error) string {
	var status *httpapi.StatusError
	if errors.As(err, &status) {
		return fmt.Sprintf("Err %d", status.Code)
	}
	return err.Error()
}
