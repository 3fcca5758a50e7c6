package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"hde_orchestrator/internal/domain"
)

const (
	defaultMessage  = "Заказ ждёт в пункте выдачи. При длительном хранении невостребованные вещи могут быть утилизированы."
	defaultSubject  = "Забытые вещи"
	defaultTags     = "рассылка"
	defaultTemplate = "poteri"
)

type options struct {
	input      string
	output     string
	mode       string
	message    string
	subject    string
	tags       string
	template   string
	configOnly bool
	dryRun     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("orchestrator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.input, "input", "", "xlsx workbook with phone numbers in column A")
	fs.StringVar(&opts.output, "output", "", "report path (default report_YYYYMMDD_HHMM.xlsx)")
	fs.StringVar(&opts.mode, "mode", string(domain.ModeAuto), "send mode: auto, telegram or whatsapp")
	fs.StringVar(&opts.message, "message", defaultMessage, "text posted to Telegram tickets")
	fs.StringVar(&opts.subject, "subject", defaultSubject, "campaign subject written to the ticket type field")
	fs.StringVar(&opts.tags, "tags", defaultTags, "comma separated ticket tags")
	fs.StringVar(&opts.template, "template", defaultTemplate, "WhatsApp template name")
	fs.BoolVar(&opts.configOnly, "config-only", false, "load and print configuration then exit")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the run parameters and phone count then exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if !opts.configOnly && strings.TrimSpace(opts.input) == "" {
		return options{}, errors.New("--input is required")
	}

	return opts, nil
}

func (o options) campaignConfig() (domain.CampaignConfig, error) {
	mode, err := domain.ParseSendMode(o.mode)
	if err != nil {
		return domain.CampaignConfig{}, err
	}

	cfg := domain.CampaignConfig{
		SendMode:        mode,
		TicketTypeLabel: domain.TicketTypeLabel(o.subject),
		MessageText:     strings.TrimSpace(o.message),
		Tags:            domain.ParseTags(o.tags),
		TemplateName:    strings.TrimSpace(o.template),
	}
	if err := cfg.Validate(); err != nil {
		return domain.CampaignConfig{}, err
	}

	return cfg, nil
}

func describeCampaign(cfg domain.CampaignConfig, phones int) string {
	lines := []string{
		fmt.Sprintf("phones: %d", phones),
		"mode: " + string(cfg.SendMode),
		"ticket type: " + cfg.TicketTypeLabel,
		"telegram text: " + cfg.MessageText,
		"tags: " + strings.Join(cfg.Tags, ", "),
		"whatsapp template: " + cfg.TemplateName,
	}
	return strings.Join(lines, "\n")
}
