package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Prost0Name/WeatherBot/internal/chart"
	"github.com/Prost0Name/WeatherBot/internal/domain"
	"github.com/Prost0Name/WeatherBot/internal/store"
	"github.com/Prost0Name/WeatherBot/internal/weather"
)

// handleStart registers the user (idempotently) and shows the welcome screen.
func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	u := &domain.User{TelegramID: chatID}
	if from := msg.From; from != nil {
		u.TelegramID = from.ID
		u.Username = from.UserName
		u.FirstName = from.FirstName
		u.LastName = from.LastName
	}
	if err := r.repo.EnsureUser(ctx, u); err != nil {
		r.log.Error("ensure user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}

	reply := tgbotapi.NewMessage(chatID, welcomeText)
	reply.ReplyMarkup = mainKeyboard()
	r.send(reply)
	r.setState(chatID, stateIdle)
}

// handleLocation resolves weather for shared coordinates. A success caches
// the coordinates and the provider-resolved city name for later "current
// location" callbacks, overwriting any previous share; a failure clears the
// cache so stale data can never leak into a later button press.
func (r *Router) handleLocation(ctx context.Context, chatID int64, lat, lon float64) {
	cur, err := r.wx.CurrentByCoords(ctx, lat, lon)
	if err != nil {
		r.log.Warn("weather by coords failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.mu.Lock()
		if s, ok := r.sessions[chatID]; ok {
			s.lat, s.lon, s.locationCity = 0, 0, ""
		}
		r.mu.Unlock()
		r.sendText(chatID, "😢 Couldn't get the weather for that point.")
		r.setState(chatID, stateIdle)
		return
	}

	r.mu.Lock()
	s, ok := r.sessions[chatID]
	if !ok {
		s = &session{}
		r.sessions[chatID] = s
	}
	s.lat, s.lon, s.locationCity = lat, lon, cur.City
	s.state = stateIdle
	r.mu.Unlock()

	reply := tgbotapi.NewMessage(chatID, weather.FormatCurrentAtLocation(cur))
	reply.ReplyMarkup = weatherKeyboard(locationSentinel)
	r.send(reply)
}

// handleManualCity answers a one-off weather request. Success and failure
// both return to the idle state; the user re-enters the flow via the button.
func (r *Router) handleManualCity(ctx context.Context, chatID int64, city string) {
	cur, err := r.wx.CurrentByCity(ctx, city)
	if err != nil {
		if errors.Is(err, weather.ErrCityNotFound) {
			r.sendText(chatID, fmt.Sprintf("🚫 City %s not found. Try again:", city))
		} else {
			r.log.Warn("weather lookup failed", zap.Error(err), zap.String("city", city))
			r.sendText(chatID, "😢 Couldn't fetch the weather right now. Please try again later.")
		}
		r.setState(chatID, stateIdle)
		return
	}

	reply := tgbotapi.NewMessage(chatID, weather.FormatCurrent(cur))
	reply.ReplyMarkup = weatherKeyboard(cur.City)
	r.send(reply)
	r.setState(chatID, stateIdle)
}

// handleSubscriptionCity validates the city by looking its weather up; a
// successful lookup is the definition of a valid city. A failure keeps the
// user in this step so their progress is not dropped.
func (r *Router) handleSubscriptionCity(ctx context.Context, msg *tgbotapi.Message, city string) {
	chatID := msg.Chat.ID

	if _, err := r.wx.CurrentByCity(ctx, city); err != nil {
		if errors.Is(err, weather.ErrCityNotFound) {
			r.sendText(chatID, fmt.Sprintf("Couldn't find city %s. Check the name and try again.", city))
		} else {
			r.log.Warn("subscription city validation failed", zap.Error(err), zap.String("city", city))
			r.sendText(chatID, "😢 The weather service is unavailable right now. Send the city again in a moment.")
		}
		return
	}

	// The row normally exists since /start; ensure anyway so a hand-typed
	// button press before /start cannot strand the flow.
	u := &domain.User{TelegramID: chatID}
	if from := msg.From; from != nil {
		u.TelegramID = from.ID
		u.Username = from.UserName
		u.FirstName = from.FirstName
		u.LastName = from.LastName
	}
	if err := r.repo.EnsureUser(ctx, u); err != nil {
		r.log.Error("ensure user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Couldn't save your city. Send it again, please.")
		return
	}
	if err := r.repo.SetCity(ctx, chatID, city); err != nil {
		r.log.Error("set city failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Couldn't save your city. Send it again, please.")
		return
	}

	r.mu.Lock()
	if s, ok := r.sessions[chatID]; ok {
		s.pendingCity = city
		s.state = stateSubscriptionTime
	}
	r.mu.Unlock()

	r.sendText(chatID, fmt.Sprintf(
		"Great! City %s is set. Now send the time for the daily digest as HH:MM (e.g. 08:00).", city))
}

// handleSubscriptionTime finishes the subscription. An invalid time keeps
// the user in this step.
func (r *Router) handleSubscriptionTime(ctx context.Context, chatID int64, text string) {
	if !domain.ValidNotificationTime(text) {
		r.sendText(chatID, "Please send the time as HH:MM (e.g. 08:00).")
		return
	}

	if err := r.repo.SetNotification(ctx, chatID, text); err != nil {
		r.log.Error("set notification failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Couldn't save the notification time. Send it again, please.")
		return
	}

	r.mu.Lock()
	city := ""
	if s, ok := r.sessions[chatID]; ok {
		city = s.pendingCity
		s.pendingCity = ""
		s.state = stateIdle
	}
	r.mu.Unlock()

	reply := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"Setup complete! You will receive the weather forecast for %s every day at %s.", city, text))
	reply.ReplyMarkup = startKeyboard()
	r.send(reply)
}

// handleDisable clears both notification fields; the profile row stays.
func (r *Router) handleDisable(ctx context.Context, chatID int64) {
	// A user who never registered has nothing to clear; that is a success.
	if err := r.repo.ClearNotification(ctx, chatID); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Error("clear notification failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Something went wrong while disabling notifications. Please try again later.")
		r.setState(chatID, stateIdle)
		return
	}

	reply := tgbotapi.NewMessage(chatID, "Your daily weather notifications have been disabled.")
	reply.ReplyMarkup = startKeyboard()
	r.send(reply)
	r.setState(chatID, stateIdle)
}

// handleCallback serves inline-button presses. Callbacks never change the
// conversation state.
func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	kind, token := parseCallback(cb.Data)
	switch kind {
	case cbKindAbout:
		r.answerCallback(cb.ID, "")
		r.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID, aboutText, backKeyboard()))

	case cbKindBackToStart:
		r.answerCallback(cb.ID, "")
		r.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID, welcomeText, startKeyboard()))

	case cbKindForecast:
		r.handleForecastCallback(ctx, cb, token)

	case cbKindDetailed:
		r.handleDetailedCallback(ctx, cb, token)

	case cbKindBackToWeather:
		r.handleBackToWeatherCallback(ctx, cb, token)

	default:
		// Unknown callback — ignore silently.
	}
}

// resolveToken maps a callback token to a concrete city. The location
// sentinel resolves against the session's cached share; when nothing is
// cached the press is answered with an alert and ok is false.
func (r *Router) resolveToken(cb *tgbotapi.CallbackQuery, token string) (city string, located bool, ok bool) {
	if token != locationSentinel {
		return token, false, true
	}

	r.mu.RLock()
	s, exists := r.sessions[cb.Message.Chat.ID]
	if exists {
		city = s.locationCity
	}
	r.mu.RUnlock()

	if city == "" {
		r.alertCallback(cb.ID, "Share your location again to get a local forecast.")
		return "", true, false
	}
	return city, true, true
}

func (r *Router) handleForecastCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, token string) {
	city, _, ok := r.resolveToken(cb, token)
	if !ok {
		return
	}

	f, err := r.wx.Forecast(ctx, city)
	if err != nil {
		r.log.Warn("forecast failed", zap.Error(err), zap.String("city", city))
		r.alertCallback(cb.ID, "Couldn't fetch the forecast.")
		return
	}

	r.answerCallback(cb.ID, "")
	r.send(tgbotapi.NewEditMessageTextAndMarkup(
		cb.Message.Chat.ID, cb.Message.MessageID, weather.FormatForecast(f), forecastKeyboard(token)))
}

func (r *Router) handleDetailedCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, token string) {
	city, _, ok := r.resolveToken(cb, token)
	if !ok {
		return
	}

	pts, err := r.wx.Series(ctx, city)
	if err != nil {
		r.log.Warn("forecast series failed", zap.Error(err), zap.String("city", city))
		r.alertCallback(cb.ID, "Couldn't build the chart.")
		return
	}
	png, err := chart.Temperature(city, pts)
	if err != nil {
		r.log.Warn("chart render failed", zap.Error(err), zap.String("city", city))
		r.alertCallback(cb.ID, "Couldn't build the chart.")
		return
	}

	r.answerCallback(cb.ID, "")
	photo := tgbotapi.NewPhoto(cb.Message.Chat.ID, tgbotapi.FileBytes{Name: "chart.png", Bytes: png})
	photo.Caption = fmt.Sprintf("📊 Temperature trend for %s", city)
	photo.ReplyMarkup = graphKeyboard(token)
	r.send(photo)
}

func (r *Router) handleBackToWeatherCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, token string) {
	city, located, ok := r.resolveToken(cb, token)
	if !ok {
		return
	}
	chatID := cb.Message.Chat.ID

	var (
		cur weather.Current
		err error
	)
	if located {
		r.mu.RLock()
		lat, lon := float64(0), float64(0)
		if s, exists := r.sessions[chatID]; exists {
			lat, lon = s.lat, s.lon
		}
		r.mu.RUnlock()
		cur, err = r.wx.CurrentByCoords(ctx, lat, lon)
	} else {
		cur, err = r.wx.CurrentByCity(ctx, city)
	}
	if err != nil {
		r.log.Warn("weather refetch failed", zap.Error(err), zap.String("city", city))
		r.alertCallback(cb.ID, "Couldn't fetch the weather.")
		return
	}

	text := weather.FormatCurrent(cur)
	if located {
		text = weather.FormatCurrentAtLocation(cur)
	}

	r.answerCallback(cb.ID, "")
	r.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID, text, weatherKeyboard(token)))
}
