// Package notification pushes strategy recommendations and errors to
// external surfaces: a Telegram bot and a plain SMTP mailer.
package notification

import (
	"fmt"
	"strings"
	"time"

	"slices"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/recommend"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Settings configures the Telegram surface. Only the listed user IDs may
// talk to the bot or receive pushes.
type Settings struct {
	Token string
	Users []int64
}

// Telegram implements the core.NotifierWithStart interface
type telegram struct {
	settings    Settings
	summary     func() string
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
}

// Option is a function that configures a telegram instance
type Option func(telegram *telegram)

// WithSummaryProvider wires the /summary command to a report generator.
func WithSummaryProvider(fn func() string) Option {
	return func(t *telegram) {
		t.summary = fn
	}
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(settings Settings, options ...Option) (core.NotifierWithStart, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	userMiddleware := createAuthMiddleware(poller, settings)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &telegram{
		client:      client,
		settings:    settings,
		defaultMenu: menu,
	}

	for _, option := range options {
		option(bot)
	}

	registerHandlers(client, bot)

	return bot, nil
}

// createAuthMiddleware creates a middleware to validate authorized users
func createAuthMiddleware(poller *tb.LongPoller, settings Settings) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(settings.Users, int64(u.Message.Sender.ID)) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		helpBtn    = menu.Text("/help")
		summaryBtn = menu.Text("/summary")
	)

	menu.Reply(
		menu.Row(helpBtn, summaryBtn),
	)
}

// setupCommands configures available bot commands
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/summary", Description: "Latest strategy summary"},
	})
}

// registerHandlers registers all command handlers
func registerHandlers(client *tb.Bot, bot *telegram) {
	client.Handle("/help", bot.HelpHandle)
	client.Handle("/summary", bot.SummaryHandle)
}

// Start begins the Telegram bot and notifies all authorized users
func (t *telegram) Start() {
	go t.client.Start()
	t.sendMessageWithOptions("Recommendation bot initialized.", t.defaultMenu)
}

// Notify sends a message to all authorized users
func (t *telegram) Notify(text string) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: user}, text)
		if err != nil {
			log.WithError(err).Error("failed to send notification")
		}
	}
}

// sendMessageWithOptions sends a message to all authorized users with additional options
func (t *telegram) sendMessageWithOptions(text string, options ...interface{}) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: user}, text, options...)
		if err != nil {
			log.WithError(err).Error("failed to send notification with options")
		}
	}
}

// sendMessage sends a message to a specific user
func (t *telegram) sendMessage(to *tb.User, text string, options ...interface{}) {
	_, err := t.client.Send(to, text, options...)
	if err != nil {
		log.WithError(err).Error("failed to send message")
	}
}

// HelpHandle displays available commands
func (t *telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// SummaryHandle sends the latest strategy summary
func (t *telegram) SummaryHandle(m *tb.Message) {
	if t.summary == nil {
		t.sendMessage(m.Sender, "No summary available.")
		return
	}
	t.sendMessage(m.Sender, fmt.Sprintf("`%s`", t.summary()))
}

// OnRecommendation notifies users about a new trade recommendation
func (t *telegram) OnRecommendation(rec recommend.Recommendation) {
	t.Notify(FormatRecommendation(rec))
}

// OnError notifies users about errors
func (t *telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n")
	sb.WriteString("-----\n")
	sb.WriteString(err.Error())

	t.Notify(sb.String())
}

// FormatRecommendation renders one recommendation as a push message.
func FormatRecommendation(rec recommend.Recommendation) string {
	var title string
	switch rec.Action {
	case core.ActionSellPut:
		title = fmt.Sprintf("🎯 SELL PUT - %s", rec.Symbol)
	case core.ActionSellCall:
		title = fmt.Sprintf("📞 SELL COVERED CALL - %s", rec.Symbol)
	case core.ActionBuyHedge:
		title = fmt.Sprintf("🛡 BUY HEDGE PUT - %s", rec.Symbol)
	case core.ActionConvert:
		title = fmt.Sprintf("🔄 CONVERT TO DEEP ITM CALLS - %s", rec.Symbol)
	default:
		title = fmt.Sprintf("%s - %s", rec.Action, rec.Symbol)
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n-----\n")
	fmt.Fprintf(&sb, "Strike: %.2f\n", rec.Strike)
	fmt.Fprintf(&sb, "Expiration: %s (%dd)\n", rec.Expiration.Format("2006-01-02"), rec.DTE)
	fmt.Fprintf(&sb, "Contracts: %d\n", rec.Contracts)
	fmt.Fprintf(&sb, "Price: %.2f\n", rec.Price)
	fmt.Fprintf(&sb, "Expected premium: %.2f\n", rec.ExpectedPremium)
	fmt.Fprintf(&sb, "Confidence: %s\n", rec.Confidence)
	sb.WriteString("-----\n")
	sb.WriteString(rec.Reason)

	return sb.String()
}
