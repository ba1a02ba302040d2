package services

import (
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/tbourn/bodytemp-bot/internal/domain"
)

// Message keys double as the English text.
const (
	msgFirstReading  = "Hello, %s. Your first body temperature has been recorded."
	msgSameDayUpdate = "Today's body temperature record has been updated."
	msgReading       = "Today's body temperature has been recorded."
	msgDashboard     = "Dashboard: %s"
	msgNotANumber    = "Invalid input. Please enter a number."
	msgTooLow        = "That temperature is too low (are you hibernating?). Please enter a realistic body temperature."
	msgTooHigh       = "That temperature is too high (are you a duck?). Please enter a realistic body temperature."
	msgApology       = "An error occurred during registration. Please contact the operator."
	msgErrorCode     = " Error code:%s"
	msgExecutionID   = "Execution ID:%s"
)

var japanese = map[string]string{
	msgFirstReading:  "%sさん、こんにちは。初回の体温を登録しました。",
	msgSameDayUpdate: "本日分の体温記録を更新しました。",
	msgReading:       "本日分の体温を記録しました。",
	msgDashboard:     "ダッシュボード: %s",
	msgNotANumber:    "入力内容が不正です。数値データを入力してください。",
	msgTooLow:        "体温が低すぎます（もしかして冬眠中ですか？）。現実的な体温の値を入力してください。",
	msgTooHigh:       "体温が高すぎます（もしかしてあなたはアヒルでしょうか？）。現実的な体温の値を入力してください。",
	msgApology:       "登録中にエラーが発生しました。運営まで一報ください。",
	msgErrorCode:     "エラーコード:%s",
	msgExecutionID:   "実行ID:%s",
}

// replyCatalog is built once and only read afterwards.
var replyCatalog = mustReplyCatalog()

func mustReplyCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Japanese))
	for key, ja := range japanese {
		if err := b.SetString(language.Japanese, key, ja); err != nil {
			panic(err)
		}
		if err := b.SetString(language.English, key, key); err != nil {
			panic(err)
		}
	}
	return b
}

// SupportedLocales lists the reply languages with a full catalog.
var SupportedLocales = []language.Tag{language.Japanese, language.English}

// ReplyComposer turns registration outcomes and failures into reply text.
// It holds no mutable state and is safe for concurrent use.
type ReplyComposer struct {
	// DashboardBaseURL, when set, is joined with the anonymized name to form
	// the dashboard link appended to success replies.
	DashboardBaseURL string

	printer *message.Printer
}

// NewReplyComposer returns a composer for locale. Unsupported locales fall
// back to Japanese.
func NewReplyComposer(locale language.Tag, dashboardBaseURL string) *ReplyComposer {
	tag, _, _ := language.NewMatcher(SupportedLocales).Match(locale)
	base, _ := tag.Base()
	tag = language.Make(base.String())
	return &ReplyComposer{
		DashboardBaseURL: strings.TrimSpace(dashboardBaseURL),
		printer:          message.NewPrinter(tag, message.Catalog(replyCatalog)),
	}
}

// Compose picks exactly one confirmation: first reading, same-day update or
// plain reading, in that order of precedence.
func (c *ReplyComposer) Compose(o domain.RegistrationOutcome) string {
	var text string
	switch {
	case o.UserInsertion.Created:
		text = c.printer.Sprintf(msgFirstReading, o.UserInsertion.UserData.Name)
	case o.TemperatureInsertion.Duplicates:
		text = c.printer.Sprintf(msgSameDayUpdate)
	default:
		text = c.printer.Sprintf(msgReading)
	}
	if link := c.DashboardURL(o.UserInsertion.UserData.AnonymizedName); link != "" {
		text += "\n" + c.printer.Sprintf(msgDashboard, link)
	}
	return text
}

// ComposeValidation renders the message for a rejected submission.
func (c *ReplyComposer) ComposeValidation(err *ValidationError) string {
	switch err.Kind {
	case TooLow:
		return c.printer.Sprintf(msgTooLow)
	case TooHigh:
		return c.printer.Sprintf(msgTooHigh)
	default:
		return c.printer.Sprintf(msgNotANumber)
	}
}

// Apology is the base text of every failure reply.
func (c *ReplyComposer) Apology() string {
	return c.printer.Sprintf(msgApology)
}

// ComposeError appends the error code and, when known, the execution id to base.
func (c *ReplyComposer) ComposeError(base, code, executionID string) string {
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString(c.printer.Sprintf(msgErrorCode, code))
	if executionID != "" {
		sb.WriteString("\n")
		sb.WriteString(c.printer.Sprintf(msgExecutionID, executionID))
	}
	return sb.String()
}

// DashboardURL returns the link for anon, or "" when no base URL is set.
func (c *ReplyComposer) DashboardURL(anon string) string {
	if c.DashboardBaseURL == "" || anon == "" {
		return ""
	}
	u, err := url.JoinPath(c.DashboardBaseURL, anon)
	if err != nil {
		return ""
	}
	return u
}
