package simulator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tracker-sim/tracker-device-sim/internal/models"
	"github.com/tracker-sim/tracker-device-sim/internal/protocol"
	"github.com/tracker-sim/tracker-device-sim/internal/transport"
)

// receiveLoop 有界等待地轮询下行数据报并分发命令.
// 解码失败等同于没有收到回复, 绝不影响调度.
func (s *Scheduler) receiveLoop(ctx context.Context) {
	defer s.wg.Done()

	buf := make([]byte, transport.MaxDatagram)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := s.transport.TryReceive(buf, receivePoll)
		if err != nil {
			log.Error().Err(err).Msg("接收下行数据报失败")
			// 套接字故障时退避, 避免空转
			select {
			case <-ctx.Done():
				return
			case <-time.After(receivePoll):
			}
			continue
		}
		if n == 0 {
			continue
		}

		cmd, err := protocol.Decode(buf[:n])
		if err != nil {
			log.Debug().Err(err).Int("bytes", n).Msg("丢弃无法解码的数据报")
			continue
		}

		s.dispatch(ctx, cmd)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.Ack:
		if s.resolveWaiter(c.Txn) {
			log.Debug().Uint16("txn", c.Txn).Msg("收到确认")
		} else {
			log.Debug().Uint16("txn", c.Txn).Msg("收到无主确认, 忽略")
		}
		s.state.CountReceived(models.EventTypeAck)
		s.publish(models.EventTypeAck, c.Txn, 0, "")

	case protocol.ConfigRead:
		log.Info().Uint16("txn", c.Txn).Msg("收到配置查询, 上报当前配置")
		s.state.CountReceived(models.EventTypeConfigRead)
		s.publish(models.EventTypeConfigRead, c.Txn, 0, "")
		s.replyConfig(c.Txn)

	case protocol.ConfigWrite:
		log.Info().
			Uint16("txn", c.Txn).
			Uint16("interval", c.Body.Interval).
			Uint16("readings", c.Body.Readings).
			Msg("收到配置写入")
		s.state.CountReceived(models.EventTypeConfigWrite)
		s.publish(models.EventTypeConfigWrite, c.Txn, 0, "")
		s.applyConfigWrite(c.Body)
		s.replyConfig(c.Txn)

	case protocol.UpdateRequest:
		log.Info().
			Uint16("txn", c.Txn).
			Str("component", c.Body.Component).
			Str("url", c.Body.URL).
			Msg("收到升级请求")
		s.state.CountReceived(models.EventTypeUpdateRequest)
		s.publish(models.EventTypeUpdateRequest, c.Txn, 0, c.Body.Component)
		component := c.Body.Component
		if component == "" {
			component = defaultComponent
		}
		s.startUpdate(ctx, c.Txn, component, c.Body.URL)
	}
}

func (s *Scheduler) replyConfig(replyTo uint16) {
	t := s.currentTiming()
	txn, frame, err := s.enc.ConfigReport(s.server,
		int(t.Report/time.Second), int(t.Reading/time.Second), replyTo)
	if err != nil {
		log.Error().Err(err).Msg("编码配置帧失败, 丢弃")
		return
	}
	s.emit(models.EventTypeConfigReport, txn, frame)
}
