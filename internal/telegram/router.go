package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Prost0Name/WeatherBot/internal/store"
	"github.com/Prost0Name/WeatherBot/internal/weather"
)

// BotAPI is the slice of *tgbotapi.BotAPI the router actually uses; tests
// substitute a recording fake.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Weather is the provider surface the conversation needs.
type Weather interface {
	CurrentByCity(ctx context.Context, city string) (weather.Current, error)
	CurrentByCoords(ctx context.Context, lat, lon float64) (weather.Current, error)
	Forecast(ctx context.Context, city string) (weather.Forecast, error)
	Series(ctx context.Context, city string) ([]weather.Point, error)
}

// conversation states; one per chat, in memory only.
type convState int

const (
	stateIdle convState = iota
	stateManualCity
	stateSubscriptionCity
	stateSubscriptionTime
)

// session is the per-chat dialog state plus scratch data. Scratch is only
// meaningful while the state that produced it is current; completed and
// failed sub-flows reset to stateIdle.
type session struct {
	state convState

	// pendingCity is the confirmed subscription city while waiting for a time.
	pendingCity string

	// Location scratch, set by a successful location share and cleared by a
	// failed one. "Current location" callback tokens resolve against it.
	lat, lon     float64
	locationCity string
}

// Router wires Telegram updates to handlers and owns all per-chat sessions.
type Router struct {
	bot  BotAPI
	log  *zap.Logger
	repo store.Repo
	wx   Weather

	mu       sync.RWMutex
	sessions map[int64]*session
}

// NewRouter creates a new Telegram router.
func NewRouter(bot BotAPI, log *zap.Logger, repo store.Repo, wx Weather) *Router {
	return &Router{
		bot:      bot,
		log:      log,
		repo:     repo,
		wx:       wx,
		sessions: make(map[int64]*session),
	}
}

// sessionFor returns the session for a chat, creating it lazily.
func (r *Router) sessionFor(chatID int64) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[chatID]
	if !ok {
		s = &session{state: stateIdle}
		r.sessions[chatID] = s
	}
	return s
}

func (r *Router) setState(chatID int64, st convState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[chatID]
	if !ok {
		s = &session{}
		r.sessions[chatID] = s
	}
	s.state = st
}

// HandleUpdate routes a single update to the appropriate handler. No error
// escapes to the polling loop: every failure ends as a user-visible message
// and/or a log entry.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID

		if msg.IsCommand() && msg.Command() == "start" {
			r.handleStart(ctx, msg)
			return
		}

		if msg.Location != nil {
			// Location shares only drive the idle flow, matching the
			// original dialog; mid-flow shares are ignored.
			if r.sessionFor(chatID).state == stateIdle {
				r.handleLocation(ctx, chatID, msg.Location.Latitude, msg.Location.Longitude)
			}
			return
		}

		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return
		}

		switch r.sessionFor(chatID).state {
		case stateManualCity:
			r.handleManualCity(ctx, chatID, text)
		case stateSubscriptionCity:
			r.handleSubscriptionCity(ctx, msg, text)
		case stateSubscriptionTime:
			r.handleSubscriptionTime(ctx, chatID, text)
		default:
			r.handleIdleText(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, upd.CallbackQuery)
	}
}

// handleIdleText dispatches button labels; any other free-form text in the
// idle state is ignored, as the original bot does.
func (r *Router) handleIdleText(ctx context.Context, chatID int64, text string) {
	switch text {
	case btnEnterCity:
		r.sendText(chatID, "Enter a city name:")
		r.setState(chatID, stateManualCity)
	case btnEnableDaily:
		r.sendText(chatID, "Let's set up the daily weather digest. For which city do you want the forecast?")
		r.setState(chatID, stateSubscriptionCity)
	case btnDisableDaily:
		r.handleDisable(ctx, chatID)
	case btnAbout:
		msg := tgbotapi.NewMessage(chatID, aboutText)
		msg.ReplyMarkup = backKeyboard()
		r.send(msg)
	default:
		// No pending flow: ignore free-form text.
	}
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// --- small send helpers ---

func (r *Router) send(c tgbotapi.Chattable) {
	if _, err := r.bot.Send(c); err != nil {
		r.log.Error("send failed", zap.Error(err))
	}
}

func (r *Router) sendText(chatID int64, text string) {
	r.send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) answerCallback(id, text string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		r.log.Warn("answer callback failed", zap.Error(err))
	}
}

func (r *Router) alertCallback(id, text string) {
	if _, err := r.bot.Request(tgbotapi.NewCallbackWithAlert(id, text)); err != nil {
		r.log.Warn("alert callback failed", zap.Error(err))
	}
}
