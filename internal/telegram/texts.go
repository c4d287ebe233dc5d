package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reply-keyboard button labels; incoming messages are matched against these.
const (
	btnEnterCity    = "🏙 Enter city"
	btnEnableDaily  = "🔔 Daily notification"
	btnDisableDaily = "❌ Disable daily notification"
	btnAbout        = "ℹ️ About this bot"
)

// Callback tokens. City-carrying tokens embed the city after a known prefix
// and are parsed with TrimPrefix only, so underscores inside city names
// survive the round trip.
const (
	cbAbout       = "about_bot"
	cbBackToStart = "back_to_start"

	prefixForecast      = "forecast_"
	prefixDetailed      = "detailed_forecast_"
	prefixBackToWeather = "back_to_weather_"

	// locationSentinel stands in for the city inside callback tokens when
	// the dialog was entered via a location share; it is resolved against
	// the session's cached location at press time.
	locationSentinel = "@location"
)

const welcomeText = `👋 Hi! I can show you the weather right now and for the days ahead — by city name or by your location.

📍 Share your location, or
🏙 Type a city name

🔔 You can also enable a daily forecast digest.
❌ Disabling it is just as easy.

Pick a button below 👇`

const aboutText = `🌤 Weather bot
Get the current weather and a multi-day forecast in one tap!

📍 Detects weather by shared location or chosen city
📅 5-day forecast
📊 Handy temperature charts

Just share your location or type a city name — the bot does the rest.

🛠 Commands and buttons:
/start — start working with the bot
🏙 Enter city — ask about any place
📍 Share location — weather where you are
🔔 Daily notification — a forecast digest at the time you choose
❌ Disable daily notification — stop the digest at any moment`

// callbackKind tags a parsed callback token.
type callbackKind int

const (
	cbKindUnknown callbackKind = iota
	cbKindAbout
	cbKindBackToStart
	cbKindForecast
	cbKindDetailed
	cbKindBackToWeather
)

// parseCallback splits a callback token into its kind and embedded city (if
// any). Unknown tokens come back as cbKindUnknown and are ignored upstream.
func parseCallback(data string) (callbackKind, string) {
	switch {
	case data == cbAbout:
		return cbKindAbout, ""
	case data == cbBackToStart:
		return cbKindBackToStart, ""
	case strings.HasPrefix(data, prefixDetailed):
		return cbKindDetailed, strings.TrimPrefix(data, prefixDetailed)
	case strings.HasPrefix(data, prefixForecast):
		return cbKindForecast, strings.TrimPrefix(data, prefixForecast)
	case strings.HasPrefix(data, prefixBackToWeather):
		return cbKindBackToWeather, strings.TrimPrefix(data, prefixBackToWeather)
	default:
		return cbKindUnknown, ""
	}
}

// mainKeyboard is the persistent reply keyboard shown after /start.
func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnEnterCity),
			tgbotapi.NewKeyboardButtonLocation("📍 Share location"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnEnableDaily),
			tgbotapi.NewKeyboardButton(btnDisableDaily),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAbout),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func startKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ About this bot", cbAbout),
		),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back", cbBackToStart),
		),
	)
}

// weatherKeyboard is attached to a current-conditions reply; token carries
// the city (or the location sentinel) forward to the forecast handler.
func weatherKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 5-day forecast", prefixForecast+token),
		),
	)
}

func forecastKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Details", prefixDetailed+token),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back to weather", prefixBackToWeather+token),
		),
	)
}

func graphKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back to forecast", prefixForecast+token),
		),
	)
}
