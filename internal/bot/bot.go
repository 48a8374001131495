package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"bucket-list/internal/config"
	"bucket-list/internal/model"
	"bucket-list/internal/service"
	"bucket-list/internal/stats"
	"bucket-list/internal/store"
)

const (
	cbTogglePrefix  = "toggle:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
	cbSettingPrefix = "setting:"
)

const (
	menuLabelList     = "📋 List"
	menuLabelStats    = "📊 Stats"
	menuLabelMemories = "📸 Memories"
	menuLabelSettings = "⚙️ Settings"
)

const helpText = `<b>Summer bucket list</b>
/add [category] text: add an activity (categories: adventure, beach, food, travel, fun, other)
/list [all|completed|pending]: show activities
/done N: toggle completion of activity N
/show N: details of activity N
/notes N text: replace the notes of activity N
/photo N [ref]: attach a photo reference, or remove it when ref is omitted
/locate N lat lon: attach a location
/delete N: remove activity N
/stats, /memories, /settings, /export, /clear`

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// replyError carries a message meant for the user.
type replyError string

func (e replyError) Error() string { return string(e) }

type confirmationAction int

const (
	actionDelete confirmationAction = iota
	actionClear
)

type confirmationRequest struct {
	id     model.ID
	action confirmationAction
}

// Bot is a chat front end over the activity and settings stores.
type Bot struct {
	api        *tgbotapi.BotAPI
	out        sender
	activities *store.ActivityStore
	settings   *store.SettingsStore
	profile    *service.ProfileService
	reports    *service.ReportService
	config     *config.Config
	log        zerolog.Logger

	mu            sync.Mutex
	confirmations map[int64]confirmationRequest
}

func New(cfg *config.Config, activities *store.ActivityStore, settings *store.SettingsStore, profile *service.ProfileService, reports *service.ReportService, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	b := newBot(api, cfg, activities, settings, profile, reports, log)
	b.api = api
	return b, nil
}

func newBot(out sender, cfg *config.Config, activities *store.ActivityStore, settings *store.SettingsStore, profile *service.ProfileService, reports *service.ReportService, log zerolog.Logger) *Bot {
	return &Bot{
		out:           out,
		activities:    activities,
		settings:      settings,
		profile:       profile,
		reports:       reports,
		config:        cfg,
		log:           log,
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot api not initialised")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.HandleUpdate(update)
	}
	return nil
}

// HandleUpdate dispatches one update; errors are logged.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(update.CallbackQuery); err != nil {
			b.log.Error().Err(err).Msg("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(update.Message); err != nil {
			b.log.Error().Err(err).Msg("handle message")
		}
	}
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	return from != nil && (b.config.AllowedUserID == 0 || b.config.AllowedUserID == from.ID)
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) error {
	if !b.allowed(msg.From) {
		return b.sendText(msg.Chat.ID, "Sorry, this bucket list is private.")
	}

	if len(msg.Photo) > 0 {
		return b.handlePhotoMessage(msg)
	}

	if msg.IsCommand() {
		b.log.Info().Int64("user", msg.From.ID).Str("command", msg.Command()).Msg("command")
		return b.handleCommand(msg.Chat.ID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelList:
		return b.handleList(msg.Chat.ID, "")
	case menuLabelStats:
		return b.sendText(msg.Chat.ID, b.reports.Stats(b.activities.Snapshot()))
	case menuLabelMemories:
		return b.sendText(msg.Chat.ID, b.reports.Memories(b.activities.Snapshot()))
	case menuLabelSettings:
		return b.sendSettings(msg.Chat.ID)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Try /add Watch the sunset, or /help.")
}

func (b *Bot) handleCommand(chatID int64, command, args string) error {
	switch command {
	case "start", "help":
		return b.sendText(chatID, helpText)
	case "add":
		return b.handleAdd(chatID, args)
	case "list":
		return b.handleList(chatID, args)
	case "done":
		return b.withActivity(chatID, args, b.toggleAndReply)
	case "show":
		return b.withActivity(chatID, args, func(chatID int64, a model.Activity, _ string) error {
			return b.sendText(chatID, b.reports.Detail(a))
		})
	case "notes":
		return b.withActivity(chatID, args, func(chatID int64, a model.Activity, rest string) error {
			return b.update(chatID, a.ID, model.ActivityPatch{Notes: &rest}, "📝 Notes saved!")
		})
	case "photo":
		return b.withActivity(chatID, args, func(chatID int64, a model.Activity, rest string) error {
			if rest == "" {
				return b.update(chatID, a.ID, model.ActivityPatch{ClearPhoto: true}, "🗑 Photo removed.")
			}
			return b.update(chatID, a.ID, model.ActivityPatch{Photo: &rest}, "📸 Photo attached!")
		})
	case "locate":
		return b.withActivity(chatID, args, b.handleLocate)
	case "delete":
		return b.withActivity(chatID, args, func(chatID int64, a model.Activity, _ string) error {
			return b.askConfirmation(chatID, confirmationRequest{id: a.ID, action: actionDelete},
				fmt.Sprintf("Remove «%s» from your bucket list?", html.EscapeString(a.Text)))
		})
	case "stats":
		return b.sendText(chatID, b.reports.Stats(b.activities.Snapshot()))
	case "memories":
		return b.sendText(chatID, b.reports.Memories(b.activities.Snapshot()))
	case "settings":
		return b.sendSettings(chatID)
	case "export":
		return b.handleExport(chatID)
	case "clear":
		return b.askConfirmation(chatID, confirmationRequest{action: actionClear},
			"This will delete all your activities and reset the app. Are you sure?")
	default:
		return b.sendText(chatID, "Unknown command. /help lists what I can do.")
	}
}

func (b *Bot) handleAdd(chatID int64, args string) error {
	category := model.CategoryOther
	text := args
	if first, rest, ok := strings.Cut(args, " "); ok || first != "" {
		if c := model.Category(strings.ToLower(first)); c.Valid() {
			category = c
			text = rest
		}
	}

	a, err := b.activities.Add(text, category, nil)
	if errors.Is(err, store.ErrValidation) {
		return b.sendText(chatID, "Oops! Please enter an activity: /add beach Build a sandcastle")
	}
	if err != nil {
		return err
	}
	return b.sendText(chatID, fmt.Sprintf("%s Added «%s».", service.CategoryIcon(a.Category), html.EscapeString(a.Text)))
}

func (b *Bot) handleList(chatID int64, args string) error {
	mode, err := stats.ParseMode(args)
	if err != nil {
		return b.sendText(chatID, "Filter must be all, completed or pending.")
	}

	items := b.activities.Snapshot()
	text := b.reports.List(items, mode)

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, a := range stats.SortForDisplay(items) {
		if len(stats.Filter([]model.Activity{a}, mode)) == 0 {
			continue
		}
		label := "✅ " + strconv.Itoa(i+1)
		if a.Completed {
			label = "↩️ " + strconv.Itoa(i+1)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbTogglePrefix+string(a.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+strconv.Itoa(i+1), cbDeletePrefix+string(a.ID)),
		))
	}
	if len(rows) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleLocate(chatID int64, a model.Activity, rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return b.sendText(chatID, "Usage: /locate N latitude longitude")
	}
	lat, err1 := strconv.ParseFloat(parts[0], 64)
	lon, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return b.sendText(chatID, "Latitude and longitude must be valid coordinates.")
	}
	return b.update(chatID, a.ID, model.ActivityPatch{Location: &model.Location{Latitude: lat, Longitude: lon}}, "📍 Location saved!")
}

func (b *Bot) handlePhotoMessage(msg *tgbotapi.Message) error {
	caption := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Caption), "/photo"))
	a, _, err := b.resolve(caption)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Send the photo with the activity number as caption, e.g. 3.")
	}
	largest := msg.Photo[len(msg.Photo)-1]
	ref := "tg:" + largest.FileID
	return b.update(msg.Chat.ID, a.ID, model.ActivityPatch{Photo: &ref}, "📸 Photo attached!")
}

func (b *Bot) handleExport(chatID int64) error {
	var buf bytes.Buffer
	if err := b.profile.Export(&buf); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "bucket-list.json", Bytes: buf.Bytes()})
	doc.Caption = "Your data export"
	_, err := b.out.Send(doc)
	return err
}

func (b *Bot) sendSettings(chatID int64) error {
	s := b.settings.Get()
	row := func(label, key string, on bool) []tgbotapi.InlineKeyboardButton {
		state := "off"
		if on {
			state = "on"
		}
		return tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s: %s", label, state), cbSettingPrefix+key))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(
		row("🔔 Notifications", "notifications", s.Notifications),
		row("⏰ Daily reminder", "dailyReminder", s.DailyReminder),
		row("🌙 Dark mode", "darkMode", s.DarkMode),
	)
	return b.sendWithReplyMarkup(chatID, "⚙️ <b>Settings</b>\nTap a setting to toggle it.", markup)
}

func (b *Bot) toggleSetting(chatID int64, key string) error {
	s := b.settings.Get()
	var patch model.SettingsPatch
	switch key {
	case "notifications":
		v := !s.Notifications
		patch.Notifications = &v
	case "dailyReminder":
		v := !s.DailyReminder
		patch.DailyReminder = &v
	case "darkMode":
		v := !s.DarkMode
		patch.DarkMode = &v
	default:
		return nil
	}
	b.settings.Update(patch)
	return b.sendSettings(chatID)
}

func (b *Bot) toggleAndReply(chatID int64, a model.Activity, _ string) error {
	updated, err := b.activities.ToggleCompletion(a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return b.sendText(chatID, "That activity no longer exists.")
	}
	if err != nil {
		return err
	}
	if updated.Completed {
		return b.sendText(chatID, fmt.Sprintf("🎉 «%s» completed!", html.EscapeString(updated.Text)))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» is pending again.", html.EscapeString(updated.Text)))
}

func (b *Bot) update(chatID int64, id model.ID, patch model.ActivityPatch, okText string) error {
	_, err := b.activities.UpdateFields(id, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return b.sendText(chatID, "That activity no longer exists.")
	case errors.Is(err, store.ErrValidation):
		return b.sendText(chatID, "That value can't be empty.")
	case err != nil:
		return err
	}
	return b.sendText(chatID, okText)
}

// withActivity resolves the leading activity number of args and passes the
// remaining text on.
func (b *Bot) withActivity(chatID int64, args string, fn func(int64, model.Activity, string) error) error {
	a, rest, err := b.resolve(args)
	if err != nil {
		return b.sendText(chatID, html.EscapeString(err.Error()))
	}
	return fn(chatID, a, rest)
}

// resolve maps "N rest" to the N-th activity in display order.
func (b *Bot) resolve(args string) (model.Activity, string, error) {
	first, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	n, err := strconv.Atoi(first)
	if err != nil || n < 1 {
		return model.Activity{}, "", replyError("Give the activity number from /list, e.g. /done 2")
	}
	items := stats.SortForDisplay(b.activities.Snapshot())
	if n > len(items) {
		return model.Activity{}, "", replyError(fmt.Sprintf("There is no activity %d.", n))
	}
	return items[n-1], strings.TrimSpace(rest), nil
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
	if !b.allowed(cb.From) {
		return nil
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	b.log.Info().Int64("user", cb.From.ID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		a, ok := b.activities.Get(model.ID(strings.TrimPrefix(data, cbTogglePrefix)))
		if !ok {
			return b.sendText(chatID, "That activity no longer exists.")
		}
		return b.toggleAndReply(chatID, a, "")
	case strings.HasPrefix(data, cbDeletePrefix):
		a, ok := b.activities.Get(model.ID(strings.TrimPrefix(data, cbDeletePrefix)))
		if !ok {
			return b.sendText(chatID, "That activity no longer exists.")
		}
		return b.askConfirmation(chatID, confirmationRequest{id: a.ID, action: actionDelete},
			fmt.Sprintf("Remove «%s» from your bucket list?", html.EscapeString(a.Text)))
	case strings.HasPrefix(data, cbConfirmPrefix):
		req, ok := b.takeConfirmation(chatID)
		if !ok {
			return nil
		}
		return b.confirm(chatID, req)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.takeConfirmation(chatID)
		return b.sendText(chatID, "↩️ Cancelled.")
	case strings.HasPrefix(data, cbSettingPrefix):
		return b.toggleSetting(chatID, strings.TrimPrefix(data, cbSettingPrefix))
	default:
		return nil
	}
}

func (b *Bot) confirm(chatID int64, req confirmationRequest) error {
	switch req.action {
	case actionDelete:
		if err := b.activities.Remove(req.id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return b.sendText(chatID, "That activity no longer exists.")
			}
			return err
		}
		return b.sendText(chatID, "🗑 Removed.")
	case actionClear:
		b.profile.ClearAllData()
		return b.sendText(chatID, "All data has been cleared.")
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(chatID int64, req confirmationRequest, question string) error {
	b.mu.Lock()
	b.confirmations[chatID] = req
	b.mu.Unlock()

	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", cbConfirmPrefix+"yes"),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancelPrefix+"no"),
	))
	return b.sendWithReplyMarkup(chatID, question, markup)
}

func (b *Bot) takeConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[chatID]
	delete(b.confirmations, chatID)
	return req, ok
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelList),
			tgbotapi.NewKeyboardButton(menuLabelStats),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelMemories),
			tgbotapi.NewKeyboardButton(menuLabelSettings),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
