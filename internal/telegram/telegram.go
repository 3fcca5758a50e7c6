// Package telegram delivers finished run reports to an operator chat.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"hde_orchestrator/internal/config"
	"hde_orchestrator/internal/domain"
	"hde_orchestrator/internal/logging"
)

type botSender interface {
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

var createBot = func(token string, options ...bot.Option) (botSender, error) {
	return bot.New(token, options...)
}

// Notifier uploads report workbooks to the operator chat.
type Notifier struct {
	bot    botSender
	chatID int64
	logger *logrus.Entry
}

// NewNotifier initializes the bot client without calling getMe, so a bad
// token surfaces on the first send.
func NewNotifier(cfg config.Config, logger *logrus.Entry) (*Notifier, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.TelegramReportChat == 0 {
		return nil, errors.New("telegram report chat is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithSkipGetMe(),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	return &Notifier{
		bot:    tgBot,
		chatID: cfg.TelegramReportChat,
		logger: logger,
	}, nil
}

// SendReport uploads the workbook with a summary caption. When the upload is
// rejected the summary is still sent as plain text and the upload error is
// returned.
func (n *Notifier) SendReport(ctx context.Context, filename string, data []byte, runID string, totals domain.Totals) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if n == nil || n.bot == nil {
		return errors.New("notifier is not initialized")
	}

	summary := Summary(runID, totals)
	_, uploadErr := n.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   n.chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(data)},
		Caption:  summary,
	})
	if uploadErr == nil {
		n.logger.WithFields(logging.Fields{
			"event":   "report_delivered",
			"run_id":  runID,
			"chat_id": n.chatID,
			"file":    filename,
		}).Info("report sent to operator chat")
		return nil
	}

	n.logger.WithFields(logging.Fields{
		"event":   "report_upload_failed",
		"run_id":  runID,
		"chat_id": n.chatID,
	}).WithError(uploadErr).Warn("report upload failed, sending summary only")

	if _, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: n.chatID, Text: summary}); err != nil {
		return fmt.Errorf("send report summary: %w", errors.Join(uploadErr, err))
	}

	return fmt.Errorf("upload report: %w", uploadErr)
}

// Summary renders the run totals for the operator chat.
func Summary(runID string, totals domain.Totals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Campaign run %s\n", runID)
	fmt.Fprintf(&b, "Processed: %d\n", totals.Processed)
	fmt.Fprintf(&b, "Success: %d\n", totals.Succeeded)
	fmt.Fprintf(&b, "Error: %d\n", totals.Failed)
	fmt.Fprintf(&b, "Telegram sent: %d\n", totals.TelegramSent)
	fmt.Fprintf(&b, "WhatsApp sent: %d", totals.WhatsAppSent)
	return b.String()
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram client error")
	}
}
