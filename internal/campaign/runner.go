// Package campaign runs a message campaign over a list of contacts, one
// contact at a time, and records an outcome row for each.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hde_orchestrator/internal/domain"
	"hde_orchestrator/internal/helpdesk"
	"hde_orchestrator/internal/httpapi"
	"hde_orchestrator/internal/logging"
)

const infoSeparator = " | "

// Helpdesk is the ticketing side of a campaign: contact resolution, ticket
// lookup, replies and ticket annotation.
type Helpdesk interface {
	ResolveCandidates(ctx context.Context, raw string) []helpdesk.User
	FindTelegramTicket(ctx context.Context, userID helpdesk.ID) (helpdesk.ID, bool)
	Reply(ctx context.Context, ticketID helpdesk.ID, text string) domain.Delivery
	UpdateTicketMetadata(ctx context.Context, ticketID helpdesk.ID, tags []string, typeLabel string)
}

// Messenger sends WhatsApp templates.
type Messenger interface {
	SendTemplate(ctx context.Context, raw, template string) domain.Delivery
}

// ProgressFunc is invoked after every processed contact with its 1-based
// position.
type ProgressFunc func(done, total int, row domain.OutcomeRow)

// Runner processes contacts sequentially.
type Runner struct {
	desk         Helpdesk
	messenger    Messenger
	logger       *logrus.Entry
	contactDelay time.Duration
}

// NewRunner wires a Runner. contactDelay is the pause after every contact.
func NewRunner(desk Helpdesk, messenger Messenger, contactDelay time.Duration, logger *logrus.Entry) (*Runner, error) {
	if desk == nil || messenger == nil {
		return nil, errors.New("helpdesk and messenger are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Runner{
		desk:         desk,
		messenger:    messenger,
		logger:       logger,
		contactDelay: contactDelay,
	}, nil
}

// Run processes every phone in order and returns exactly one row per phone.
// Individual failures never abort the batch; only an invalid campaign
// configuration is returned as an error, before any contact is touched.
func (r *Runner) Run(ctx context.Context, phones []string, cfg domain.CampaignConfig, progress ProgressFunc) ([]domain.OutcomeRow, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	mode, err := domain.ParseSendMode(string(cfg.SendMode))
	if err != nil {
		return nil, err
	}
	cfg.SendMode = mode
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("campaign config: %w", err)
	}

	rows := make([]domain.OutcomeRow, 0, len(phones))
	for i, raw := range phones {
		row := r.processContact(ctx, raw, cfg)
		rows = append(rows, row)

		r.logger.WithFields(logging.Context{
			Phone: raw,
			Row:   i + 1,
			Event: "contact_processed",
		}.Fields()).WithFields(logging.Fields{
			"hde_id":   row.ResolvedUserID,
			"telegram": row.Telegram,
			"whatsapp": row.WhatsApp,
			"status":   row.Overall,
		}).Info("contact processed")

		if progress != nil {
			progress(i+1, len(phones), row)
		}

		httpapi.Pause(ctx, r.contactDelay)
	}

	return rows, nil
}

func (r *Runner) processContact(ctx context.Context, raw string, cfg domain.CampaignConfig) domain.OutcomeRow {
	row := domain.NewOutcomeRow(raw)

	telegramSent := false
	if cfg.SendMode.TriesTelegram() {
		telegramSent = r.tryTelegram(ctx, raw, cfg, &row)
	}

	if cfg.SendMode == domain.ModeWhatsAppOnly || (cfg.SendMode == domain.ModeAuto && !telegramSent) {
		r.tryWhatsApp(ctx, raw, cfg.TemplateName, &row)
	}

	return row
}

func (r *Runner) tryTelegram(ctx context.Context, raw string, cfg domain.CampaignConfig, row *domain.OutcomeRow) bool {
	candidates := r.desk.ResolveCandidates(ctx, raw)
	if len(candidates) == 0 {
		row.ResolvedUserID = domain.UserNotFound
		return false
	}

	owner, ticketID, found := r.locateTicket(ctx, candidates)
	if !found {
		row.Telegram = domain.StatusNoDialog
		row.ResolvedUserID = candidateList(candidates)
		return false
	}

	row.ResolvedUserID = owner.String()
	delivery := r.desk.Reply(ctx, ticketID, cfg.MessageText)
	if !delivery.Sent {
		row.Telegram = domain.StatusFailed
		row.Info = delivery.Detail
		return false
	}

	row.Telegram = domain.StatusSent
	row.Overall = domain.OverallSuccess
	row.Info = "Ticket #" + ticketID.String()
	r.desk.UpdateTicketMetadata(ctx, ticketID, cfg.Tags, cfg.TicketTypeLabel)

	return true
}

// locateTicket returns the first candidate owning a Telegram ticket.
func (r *Runner) locateTicket(ctx context.Context, candidates []helpdesk.User) (helpdesk.ID, helpdesk.ID, bool) {
	for _, user := range candidates {
		if ticketID, ok := r.desk.FindTelegramTicket(ctx, user.ID); ok {
			return user.ID, ticketID, true
		}
	}
	return "", "", false
}

func (r *Runner) tryWhatsApp(ctx context.Context, raw, template string, row *domain.OutcomeRow) {
	delivery := r.messenger.SendTemplate(ctx, raw, template)
	if delivery.Sent {
		row.WhatsApp = domain.StatusSent
		row.Overall = domain.OverallSuccess
		row.Info = appendInfo(row.Info, delivery.Detail)
		return
	}

	row.WhatsApp = domain.StatusFailed
	row.Info = appendInfo(row.Info, "WA Err: "+delivery.Detail)
}

func appendInfo(info, part string) string {
	if info == "" {
		return part
	}
	return info + infoSeparator + part
}

func candidateList(candidates []helpdesk.User) string {
	ids := make([]string, 0, len(candidates))
	for _, user := range candidates {
		ids = append(ids, user.ID.String())
	}
	return "[" + strings.Join(ids, ", ") + "]"
}
