// Package domain defines the campaign configuration, per-contact outcomes and
// the archived report shared across the orchestrator.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SendMode selects which channels are eligible for every contact of a run.
type SendMode string

const (
	// ModeAuto tries Telegram first and falls back to WhatsApp.
	ModeAuto SendMode = "auto"
	// ModeTelegramOnly never attempts WhatsApp.
	ModeTelegramOnly SendMode = "telegram"
	// ModeWhatsAppOnly skips helpdesk resolution and sends WhatsApp directly.
	ModeWhatsAppOnly SendMode = "whatsapp"
)

// TicketTypePrefix is prepended to the campaign subject to form the value of
// the ticket type custom field.
const TicketTypePrefix = "Рассылка: "

// ParseSendMode resolves a user supplied mode name.
func ParseSendMode(value string) (SendMode, error) {
	switch SendMode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeAuto, "":
		return ModeAuto, nil
	case ModeTelegramOnly, "tg":
		return ModeTelegramOnly, nil
	case ModeWhatsAppOnly, "wa":
		return ModeWhatsAppOnly, nil
	default:
		return "", fmt.Errorf("invalid send mode %q: must be %q, %q or %q", value, ModeAuto, ModeTelegramOnly, ModeWhatsAppOnly)
	}
}

// TriesTelegram reports whether the helpdesk channel is attempted.
func (m SendMode) TriesTelegram() bool {
	return m == ModeAuto || m == ModeTelegramOnly
}

// CampaignConfig holds the run-level settings. It is built once before the
// run starts and never mutated afterwards.
type CampaignConfig struct {
	SendMode        SendMode `bson:"send_mode" json:"send_mode"`
	TicketTypeLabel string   `bson:"ticket_type_label" json:"ticket_type_label"`
	MessageText     string   `bson:"message_text" json:"message_text"`
	Tags            []string `bson:"tags" json:"tags"`
	TemplateName    string   `bson:"template_name" json:"template_name"`
}

// TicketTypeLabel composes the ticket type value for a campaign subject.
func TicketTypeLabel(subject string) string {
	return TicketTypePrefix + strings.TrimSpace(subject)
}

// ParseTags splits a comma separated tag list, dropping blanks.
func ParseTags(value string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(value, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Validate checks that every channel the mode may use has its inputs.
func (c CampaignConfig) Validate() error {
	if _, err := ParseSendMode(string(c.SendMode)); err != nil {
		return err
	}

	if c.SendMode.TriesTelegram() && strings.TrimSpace(c.MessageText) == "" {
		return errors.New("message text is required for telegram delivery")
	}
	if c.SendMode != ModeTelegramOnly && strings.TrimSpace(c.TemplateName) == "" {
		return errors.New("template name is required for whatsapp delivery")
	}

	return nil
}
