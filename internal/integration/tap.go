package integration

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/tracker-sim/tracker-device-sim/internal/config"
	"github.com/tracker-sim/tracker-device-sim/internal/models"
)

// NATSTap publishes every emitted and received frame as JSON so test
// harnesses can observe the simulator without sniffing UDP. 发布失败
// 只记录, 不影响调度.
type NATSTap struct {
	nc *nats.Conn
}

// NewNATSTap connects to the configured NATS server.
func NewNATSTap(cfg *config.NATSConfig) (*NATSTap, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("tracker-device-sim"),
		nats.UserInfo(cfg.Username, cfg.Password),
		nats.ReconnectWait(cfg.ReconnectInterval),
		nats.MaxReconnects(cfg.MaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("事件旁路已连接 NATS")

	return &NATSTap{nc: nc}, nil
}

// Publish sends one event record to device.<imei>.<type>.
func (t *NATSTap) Publish(ev models.EventLog) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("序列化事件失败")
		return
	}

	subject := fmt.Sprintf("device.%s.%s", ev.IMEI, ev.Type)
	if err := t.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("发布事件到 NATS 失败")
	}
}

// Close drains the connection.
func (t *NATSTap) Close() {
	t.nc.Close()
}
