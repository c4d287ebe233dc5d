package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Prost0Name/WeatherBot/internal/store"
	"github.com/Prost0Name/WeatherBot/internal/weather"
)

// Sender is the minimal interface the notifier needs to push a text message.
// telegram.Router implements it (method: SendMessage).
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Weather is the single provider call the daily digest needs.
type Weather interface {
	CurrentByCity(ctx context.Context, city string) (weather.Current, error)
}

// Notifier sweeps subscribers once per interval and sends the daily digest
// to everyone whose stored HH:MM equals the current minute. A sweep that is
// delayed past a minute boundary simply skips that minute; there is no
// catch-up.
type Notifier struct {
	repo     store.Repo
	wx       Weather
	sender   Sender
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// New creates a Notifier with the given sweep interval (normally one minute).
func New(repo store.Repo, wx Weather, sender Sender, log *zap.Logger, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Notifier{
		repo:     repo,
		wx:       wx,
		sender:   sender,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock; tests use it to pin the current minute.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Run executes sweeps until ctx is canceled. Errors never terminate the
// loop: a failed store query or a failed per-user send is logged and the
// notifier waits for the next tick.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("notifier stopping")
			return
		case <-ticker.C:
			n.Sweep(ctx)
		}
	}
}

// Sweep performs one scheduling cycle: match the current minute against
// subscriber preferences and send each due user their weather digest.
func (n *Notifier) Sweep(ctx context.Context) {
	hhmm := n.now().Format("15:04")

	users, err := n.repo.ListDue(ctx, hhmm)
	if err != nil {
		n.log.Error("ListDue failed", zap.Error(err), zap.String("minute", hhmm))
		return
	}

	for _, u := range users {
		if u.City == "" {
			// Enabled without a city should not happen; skip rather than
			// querying the provider with an empty name.
			n.log.Warn("subscriber without city", zap.Int64("chatID", u.TelegramID))
			continue
		}

		cur, err := n.wx.CurrentByCity(ctx, u.City)
		if err != nil {
			n.log.Error("weather fetch failed",
				zap.Error(err),
				zap.Int64("chatID", u.TelegramID),
				zap.String("city", u.City),
			)
			continue
		}

		text := "Your daily weather forecast:\n\n" + weather.FormatCurrent(cur)
		if err := n.sender.SendMessage(u.TelegramID, text); err != nil {
			n.log.Error("send failed", zap.Error(err), zap.Int64("chatID", u.TelegramID))
			continue
		}
		n.log.Info("daily digest sent", zap.Int64("chatID", u.TelegramID), zap.String("city", u.City))
	}
}
