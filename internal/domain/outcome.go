package domain

// Channel statuses recorded in an OutcomeRow.
const (
	StatusNone     = "-"
	StatusSent     = "Sent"
	StatusFailed   = "Failed"
	StatusNoDialog = "NoDialog"
)

// Overall statuses.
const (
	OverallSuccess = "Success"
	OverallError   = "Error"
)

// UserNotFound marks a contact with no directory match.
const UserNotFound = "not found"

// ReportColumns is the header row of the tabular report.
var ReportColumns = []string{"Phone", "HDE ID", "Telegram", "WhatsApp", "Status", "Info"}

// Delivery is the result of a single channel attempt. External failures are
// folded into Detail instead of being returned as errors.
type Delivery struct {
	Sent   bool
	Detail string
}

// OutcomeRow records what happened to one input contact.
type OutcomeRow struct {
	Phone          string `bson:"phone" json:"phone"`
	ResolvedUserID string `bson:"resolved_user_id" json:"resolved_user_id"`
	Telegram       string `bson:"telegram" json:"telegram"`
	WhatsApp       string `bson:"whatsapp" json:"whatsapp"`
	Overall        string `bson:"overall" json:"overall"`
	Info           string `bson:"info" json:"info"`
}

// NewOutcomeRow returns the initial row for phone before any channel ran.
func NewOutcomeRow(phone string) OutcomeRow {
	return OutcomeRow{
		Phone:          phone,
		ResolvedUserID: StatusNone,
		Telegram:       StatusNone,
		WhatsApp:       StatusNone,
		Overall:        OverallError,
	}
}

// Values returns the row in ReportColumns order.
func (r OutcomeRow) Values() []string {
	return []string{r.Phone, r.ResolvedUserID, r.Telegram, r.WhatsApp, r.Overall, r.Info}
}

// Succeeded reports whether any channel delivered the message.
func (r OutcomeRow) Succeeded() bool {
	return r.Overall == OverallSuccess
}

// Totals summarises a list of rows.
type Totals struct {
	Processed    int `bson:"processed" json:"processed"`
	Succeeded    int `bson:"succeeded" json:"succeeded"`
	Failed       int `bson:"failed" json:"failed"`
	TelegramSent int `bson:"telegram_sent" json:"telegram_sent"`
	WhatsAppSent int `bson:"whatsapp_sent" json:"whatsapp_sent"`
}

// Summarize counts outcomes across rows.
func Summarize(rows []OutcomeRow) Totals {
	totals := Totals{Processed: len(rows)}
	for _, row := range rows {
		if row.Succeeded() {
			totals.Succeeded++
		} else {
			totals.Failed++
		}
		if row.Telegram == StatusSent {
			totals.TelegramSent++
		}
		if row.WhatsApp == StatusSent {
			totals.WhatsAppSent++
		}
	}
	return totals
}
