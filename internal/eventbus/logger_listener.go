package eventbus

import (
	"context"

	"github.com/annel0/tilegrid/internal/logging"
)

// StartLoggingListener подписывается на события и пишет их в лог компонента.
// Пустой filter пропускает все события. Функция неблокирующая.
func StartLoggingListener(bus EventBus, logger *logging.Logger, filter Filter) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), filter, func(ctx context.Context, ev *Envelope) {
		logger.Debug("[EventBus] %s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logger.Info("🪵 LoggingListener: подписка на события активирована")
	return sub, nil
}
