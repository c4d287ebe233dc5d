package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Prost0Name/WeatherBot/internal/domain"
	"github.com/Prost0Name/WeatherBot/internal/store"
	"github.com/Prost0Name/WeatherBot/internal/weather"
)

// --- fakes ---

type fakeBot struct {
	sent []tgbotapi.Chattable
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// lastText digs the text out of the most recent message or edit.
func (f *fakeBot) lastText(t *testing.T) string {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			return m.Text
		case tgbotapi.EditMessageTextConfig:
			return m.Text
		}
	}
	t.Fatal("no text message sent")
	return ""
}

// lastKeyboard returns the inline keyboard of the most recent message or edit.
func (f *fakeBot) lastKeyboard(t *testing.T) *tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
				return &kb
			}
		case tgbotapi.EditMessageTextConfig:
			if m.ReplyMarkup != nil {
				return m.ReplyMarkup
			}
		}
	}
	return nil
}

func (f *fakeBot) photos() []tgbotapi.PhotoConfig {
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeBot) alerts() []tgbotapi.CallbackConfig {
	var out []tgbotapi.CallbackConfig
	for _, c := range f.sent {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok && cb.ShowAlert {
			out = append(out, cb)
		}
	}
	return out
}

// memRepo is an in-memory store.Repo.
type memRepo struct {
	users map[int64]*domain.User
}

func newMemRepo() *memRepo { return &memRepo{users: make(map[int64]*domain.User)} }

func (m *memRepo) EnsureUser(_ context.Context, u *domain.User) error {
	if _, ok := m.users[u.TelegramID]; ok {
		return nil
	}
	cp := *u
	m.users[u.TelegramID] = &cp
	return nil
}

func (m *memRepo) GetUser(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) SetCity(_ context.Context, id int64, city string) error {
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.City = city
	return nil
}

func (m *memRepo) SetNotification(_ context.Context, id int64, hhmm string) error {
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.NotificationTime = hhmm
	u.NotificationsEnabled = true
	return nil
}

func (m *memRepo) ClearNotification(_ context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.NotificationTime = ""
	u.NotificationsEnabled = false
	return nil
}

func (m *memRepo) ListDue(_ context.Context, hhmm string) ([]domain.User, error) {
	var due []domain.User
	for _, u := range m.users {
		if u.NotificationsEnabled && u.NotificationTime == hhmm {
			due = append(due, *u)
		}
	}
	return due, nil
}

func (m *memRepo) Close() error { return nil }

// stubWeather resolves every known city and records what was asked.
type stubWeather struct {
	knownCity    string
	resolvedCity string // name returned for coordinate lookups
	failCoords   bool
	failAll      bool

	forecastCities []string
}

func (s *stubWeather) CurrentByCity(_ context.Context, city string) (weather.Current, error) {
	if s.failAll {
		return weather.Current{}, weather.ErrProvider
	}
	if s.knownCity != "" && city != s.knownCity {
		return weather.Current{}, weather.ErrCityNotFound
	}
	return weather.Current{City: city, Temperature: 21.5, Description: "clear sky"}, nil
}

func (s *stubWeather) CurrentByCoords(_ context.Context, lat, lon float64) (weather.Current, error) {
	if s.failAll || s.failCoords {
		return weather.Current{}, weather.ErrProvider
	}
	return weather.Current{City: s.resolvedCity, Temperature: 18.0, Description: "few clouds"}, nil
}

func (s *stubWeather) Forecast(_ context.Context, city string) (weather.Forecast, error) {
	if s.failAll {
		return weather.Forecast{}, weather.ErrProvider
	}
	s.forecastCities = append(s.forecastCities, city)
	days := make([]weather.ForecastDay, 5)
	for i := range days {
		days[i] = weather.ForecastDay{Date: "2026-09-0" + string(rune('1'+i)), TempMin: 10, TempMax: 20, Description: "clear sky"}
	}
	return weather.Forecast{City: city, Days: days}, nil
}

func (s *stubWeather) Series(_ context.Context, _ string) ([]weather.Point, error) {
	if s.failAll {
		return nil, weather.ErrProvider
	}
	base := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]weather.Point, 8)
	for i := range pts {
		pts[i] = weather.Point{Time: base.Add(time.Duration(i) * 3 * time.Hour), Temperature: 15 + float64(i)}
	}
	return pts, nil
}

// --- update builders ---

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID, UserName: "tester"},
		Text:      text,
	}}
}

func startUpdate(chatID int64) tgbotapi.Update {
	upd := textUpdate(chatID, "/start")
	upd.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}
	return upd
}

func locationUpdate(chatID int64, lat, lon float64) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID},
		Location:  &tgbotapi.Location{Latitude: lat, Longitude: lon},
	}}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		Data: data,
		From: &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
	}}
}

func newTestRouter(wx Weather) (*Router, *fakeBot, *memRepo) {
	bot := &fakeBot{}
	repo := newMemRepo()
	return NewRouter(bot, zap.NewNop(), repo, wx), bot, repo
}

// --- tests ---

func TestStartThenManualCityFlow(t *testing.T) {
	wx := &stubWeather{knownCity: "Paris"}
	r, bot, repo := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, startUpdate(1))
	if !strings.Contains(bot.lastText(t), "Hi!") {
		t.Fatalf("want welcome, got %q", bot.lastText(t))
	}
	if _, ok := repo.users[1]; !ok {
		t.Fatal("start must register the user")
	}

	r.HandleUpdate(ctx, textUpdate(1, btnEnterCity))
	if !strings.Contains(bot.lastText(t), "Enter a city") {
		t.Fatalf("want city prompt, got %q", bot.lastText(t))
	}

	r.HandleUpdate(ctx, textUpdate(1, "Paris"))
	reply := bot.lastText(t)
	if !strings.Contains(reply, "Paris") || !strings.Contains(reply, "21.5") {
		t.Fatalf("want formatted weather for Paris, got %q", reply)
	}

	kb := bot.lastKeyboard(t)
	if kb == nil || len(kb.InlineKeyboard) == 0 {
		t.Fatal("weather reply must carry a forecast button")
	}
	btn := kb.InlineKeyboard[0][0]
	if btn.CallbackData == nil || *btn.CallbackData != "forecast_Paris" {
		t.Fatalf("want forecast button keyed to Paris, got %v", btn.CallbackData)
	}

	// Pressing the button yields a forecast truncated to 5 dates.
	r.HandleUpdate(ctx, callbackUpdate(1, "forecast_Paris"))
	forecast := bot.lastText(t)
	if !strings.Contains(forecast, "5-day forecast for Paris") {
		t.Fatalf("want forecast text, got %q", forecast)
	}
	if got := strings.Count(forecast, "📆"); got != 5 {
		t.Fatalf("want 5 forecast dates, got %d", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	wx := &stubWeather{knownCity: "Paris"}
	r, _, repo := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, startUpdate(1))
	repo.users[1].City = "Paris"
	repo.users[1].NotificationTime = "08:00"
	repo.users[1].NotificationsEnabled = true

	r.HandleUpdate(ctx, startUpdate(1))
	u := repo.users[1]
	if u.City != "Paris" || u.NotificationTime != "08:00" || !u.NotificationsEnabled {
		t.Fatalf("second /start mutated the profile: %+v", u)
	}
}

func TestLocationFlowUsesCachedResolvedCity(t *testing.T) {
	wx := &stubWeather{resolvedCity: "Paris"}
	r, bot, _ := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, startUpdate(2))
	r.HandleUpdate(ctx, locationUpdate(2, 48.85, 2.35))

	reply := bot.lastText(t)
	if !strings.Contains(reply, "your location") || !strings.Contains(reply, "Paris") {
		t.Fatalf("want located weather for Paris, got %q", reply)
	}

	kb := bot.lastKeyboard(t)
	btn := kb.InlineKeyboard[0][0]
	if btn.CallbackData == nil || *btn.CallbackData != "forecast_"+locationSentinel {
		t.Fatalf("want sentinel forecast token, got %v", btn.CallbackData)
	}

	// The sentinel press must resolve against the cached city, with no
	// re-prompt for city text.
	r.HandleUpdate(ctx, callbackUpdate(2, "forecast_"+locationSentinel))
	if len(wx.forecastCities) != 1 || wx.forecastCities[0] != "Paris" {
		t.Fatalf("want forecast fetched for cached Paris, got %v", wx.forecastCities)
	}
}

func TestLocationShareFailureClearsCache(t *testing.T) {
	wx := &stubWeather{resolvedCity: "Paris"}
	r, bot, _ := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, startUpdate(3))
	r.HandleUpdate(ctx, locationUpdate(3, 48.85, 2.35))

	// Second share fails to resolve; the first share's data must not leak.
	wx.failCoords = true
	r.HandleUpdate(ctx, locationUpdate(3, 52.52, 13.40))

	r.HandleUpdate(ctx, callbackUpdate(3, "forecast_"+locationSentinel))
	if len(wx.forecastCities) != 0 {
		t.Fatalf("stale location cache used: %v", wx.forecastCities)
	}
	if len(bot.alerts()) == 0 {
		t.Fatal("want an alert asking to share location again")
	}
}

func TestSubscriptionFlow(t *testing.T) {
	wx := &stubWeather{knownCity: "Paris"}
	r, bot, repo := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, startUpdate(4))
	r.HandleUpdate(ctx, textUpdate(4, btnEnableDaily))

	r.HandleUpdate(ctx, textUpdate(4, "Paris"))
	if !strings.Contains(bot.lastText(t), "HH:MM") {
		t.Fatalf("want time prompt, got %q", bot.lastText(t))
	}
	if repo.users[4].City != "Paris" {
		t.Fatalf("city must be persisted on validation success: %+v", repo.users[4])
	}

	// Bad time keeps the flow in place.
	r.HandleUpdate(ctx, textUpdate(4, "25:99"))
	if !strings.Contains(bot.lastText(t), "HH:MM") {
		t.Fatalf("want format error, got %q", bot.lastText(t))
	}
	if repo.users[4].NotificationsEnabled {
		t.Fatal("invalid time must not enable notifications")
	}

	r.HandleUpdate(ctx, textUpdate(4, "08:00"))
	u := repo.users[4]
	if !u.NotificationsEnabled || u.NotificationTime != "08:00" || u.City != "Paris" {
		t.Fatalf("subscription incomplete: %+v", u)
	}
	if !strings.Contains(bot.lastText(t), "08:00") || !strings.Contains(bot.lastText(t), "Paris") {
		t.Fatalf("want confirmation, got %q", bot.lastText(t))
	}

	// Disable clears both fields together.
	r.HandleUpdate(ctx, textUpdate(4, btnDisableDaily))
	if u.NotificationsEnabled || u.NotificationTime != "" {
		t.Fatalf("disable must clear both fields: %+v", u)
	}
}

func TestSubscriptionCityFailureRetriesInPlace(t *testing.T) {
	wx := &stubWeather{knownCity: "Paris", failAll: true}
	r, bot, _ := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, startUpdate(5))
	r.HandleUpdate(ctx, textUpdate(5, btnEnableDaily))

	r.HandleUpdate(ctx, textUpdate(5, "Paris"))
	if !strings.Contains(bot.lastText(t), "unavailable") {
		t.Fatalf("want provider apology, got %q", bot.lastText(t))
	}

	// The provider recovers; the same state must accept the retry.
	wx.failAll = false
	r.HandleUpdate(ctx, textUpdate(5, "Paris"))
	if !strings.Contains(bot.lastText(t), "HH:MM") {
		t.Fatalf("retry in place failed, got %q", bot.lastText(t))
	}
}

func TestManualCityFailureResetsToIdle(t *testing.T) {
	wx := &stubWeather{knownCity: "Paris"}
	r, bot, _ := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, startUpdate(6))
	r.HandleUpdate(ctx, textUpdate(6, btnEnterCity))
	r.HandleUpdate(ctx, textUpdate(6, "Nowhere"))
	if !strings.Contains(bot.lastText(t), "not found") {
		t.Fatalf("want not-found message, got %q", bot.lastText(t))
	}

	// Back in idle: plain text is ignored, no weather lookup happens.
	before := len(bot.sent)
	r.HandleUpdate(ctx, textUpdate(6, "Paris"))
	if len(bot.sent) != before {
		t.Fatal("idle free text must be ignored after a failed lookup")
	}
}

func TestCallbackCityWithUnderscore(t *testing.T) {
	wx := &stubWeather{}
	r, _, _ := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, callbackUpdate(7, "forecast_New_York"))
	if len(wx.forecastCities) != 1 || wx.forecastCities[0] != "New_York" {
		t.Fatalf("underscored city mangled: %v", wx.forecastCities)
	}
}

func TestDetailedForecastSendsChart(t *testing.T) {
	wx := &stubWeather{}
	r, bot, _ := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, callbackUpdate(9, "detailed_forecast_Paris"))
	photos := bot.photos()
	if len(photos) != 1 {
		t.Fatalf("want one chart photo, got %d", len(photos))
	}
	fb, ok := photos[0].File.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("want FileBytes upload, got %T", photos[0].File)
	}
	if !strings.HasPrefix(string(fb.Bytes), "\x89PNG") {
		t.Fatal("chart payload is not a PNG")
	}
}

func TestAboutAndBackNavigation(t *testing.T) {
	wx := &stubWeather{}
	r, bot, _ := newTestRouter(wx)
	ctx := context.Background()

	r.HandleUpdate(ctx, callbackUpdate(8, cbAbout))
	if !strings.Contains(bot.lastText(t), "Weather bot") {
		t.Fatalf("want about panel, got %q", bot.lastText(t))
	}

	r.HandleUpdate(ctx, callbackUpdate(8, cbBackToStart))
	if !strings.Contains(bot.lastText(t), "Hi!") {
		t.Fatalf("want welcome back, got %q", bot.lastText(t))
	}
}
