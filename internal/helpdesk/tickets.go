package helpdesk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"hde_orchestrator/internal/domain"
	"hde_orchestrator/internal/httpapi"
	"hde_orchestrator/internal/logging"
)

// Ticket is a helpdesk ticket as returned by the ticket list endpoint.
type Ticket struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	DateUpdated string `json:"date_updated"`
}

// IsTelegramSource reports whether a ticket source names the Telegram channel.
func IsTelegramSource(source string) bool {
	src := strings.ToLower(source)
	return strings.Contains(src, "tlgrm") || strings.Contains(src, "telegram")
}

// ListTickets returns the user's tickets, most recently updated first.
func (c *Client) ListTickets(ctx context.Context, userID ID) ([]Ticket, error) {
	query := url.Values{
		"user_list": {userID.String()},
		"order_by":  {"date_updated"},
		"order_asc": {"desc"},
	}

	resp, err := c.api.Get(ctx, "/tickets/", query)
	if err != nil {
		return nil, err
	}
	if err := httpapi.Expect(resp, http.StatusOK); err != nil {
		return nil, err
	}

	return decodeCollection[Ticket](resp)
}

// FindTelegramTicket returns the first Telegram-sourced ticket of the user in
// API order. Lookup failures are reported as no ticket.
func (c *Client) FindTelegramTicket(ctx context.Context, userID ID) (ID, bool) {
	tickets, err := c.ListTickets(ctx, userID)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "ticket_lookup_failed",
			"user_id": userID.String(),
		}).WithError(err).Debug("ticket lookup failed")
		return "", false
	}

	for _, ticket := range tickets {
		if ticket.ID != "" && IsTelegramSource(ticket.Source) {
			return ticket.ID, true
		}
	}

	return "", false
}

type postRequest struct {
	Text string `json:"text"`
}

// Reply posts text on the ticket, which the helpdesk relays to the
// customer's Telegram chat.
func (c *Client) Reply(ctx context.Context, ticketID ID, text string) domain.Delivery {
	resp, err := c.api.Post(ctx, "/tickets/"+url.PathEscape(ticketID.String())+"/posts/", postRequest{Text: text})
	if err == nil {
		err = httpapi.Expect(resp, http.StatusOK, http.StatusCreated)
	}
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":     "reply_failed",
			"ticket_id": ticketID.String(),
			"transport": httpapi.IsTransport(err),
			"truncated": resp.Truncated,
		}).WithError(err).Debug("ticket reply not posted")

		detail := err.Error()
		if body, ok := httpapi.ResponseBody(err); ok && strings.TrimSpace(body) != "" {
			detail = body
		}
		return domain.Delivery{Detail: detail}
	}

	return domain.Delivery{Sent: true, Detail: resp.Text()}
}

type ticketUpdate struct {
	Tags         []string               `json:"tags"`
	CustomFields map[string]interface{} `json:"custom_fields"`
}

// UpdateTicketMetadata tags the ticket, sets its type field and raises the
// initiated flag. Failures are logged and otherwise ignored.
func (c *Client) UpdateTicketMetadata(ctx context.Context, ticketID ID, tags []string, typeLabel string) {
	if tags == nil {
		tags = []string{}
	}

	payload := ticketUpdate{
		Tags: tags,
		CustomFields: map[string]interface{}{
			strconv.Itoa(c.typeFieldID):      typeLabel,
			strconv.Itoa(c.initiatedFieldID): 1,
		},
	}

	resp, err := c.api.Put(ctx, "/tickets/"+url.PathEscape(ticketID.String())+"/", payload)
	if err == nil {
		err = httpapi.Expect(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	}
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":     "ticket_update_failed",
			"ticket_id": ticketID.String(),
		}).WithError(err).Debug("ticket metadata update failed")
		return
	}

	c.logger.WithFields(logging.Fields{
		"event":     "ticket_updated",
		"ticket_id": ticketID.String(),
	}).Debug("ticket metadata updated")
}
