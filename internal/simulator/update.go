package simulator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tracker-sim/tracker-device-sim/internal/device"
	"github.com/tracker-sim/tracker-device-sim/internal/models"
	"github.com/tracker-sim/tracker-device-sim/pkg/trackproto"
)

const defaultComponent = "firmware"

// updateLoop 自发升级活动, 每个 updateInterval 开启一次会话
func (s *Scheduler) updateLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.currentTiming().UpdateIvl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.startUpdate(ctx, 0, defaultComponent, "")
		}
	}
}

// startUpdate opens an update session and runs it to resolution in its own
// goroutine. A session already in progress makes the trigger a no-op.
func (s *Scheduler) startUpdate(ctx context.Context, txn uint16, component, url string) {
	t := s.currentTiming()

	session, err := s.state.BeginUpdate(txn, component, url, t.UpdateDur)
	if err != nil {
		if errors.Is(err, device.ErrUpdateInProgress) {
			log.Warn().Str("component", component).Msg("已有升级会话进行中, 忽略本次触发")
			return
		}
		log.Error().Err(err).Msg("开启升级会话失败")
		return
	}

	log.Info().
		Str("session", session.ID.String()).
		Str("component", component).
		Dur("duration", t.UpdateDur).
		Msg("升级会话开始")

	s.wg.Add(1)
	go s.runUpdate(ctx, session, t)
}

func (s *Scheduler) runUpdate(ctx context.Context, session *models.UpdateSession, t timing) {
	defer s.wg.Done()

	s.reportUpdate(session, trackproto.UpdateStarted, "")

	timer := time.NewTimer(session.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// 关停时放弃未完成的会话, 不上报终态
		return
	case <-timer.C:
	}

	outcome := models.UpdateOutcomeSuccess
	state := trackproto.UpdateSuccess
	detail := ""
	if s.sensors.Chance(t.FailureOdd) {
		outcome = models.UpdateOutcomeFailure
		state = trackproto.UpdateFailed
		detail = "Simulated failure"
	}

	if _, err := s.state.ResolveUpdate(outcome); err != nil {
		log.Error().Err(err).Msg("结束升级会话失败")
		return
	}

	log.Info().
		Str("session", session.ID.String()).
		Str("outcome", string(outcome)).
		Msg("升级会话结束")

	s.reportUpdate(session, state, detail)
}

func (s *Scheduler) reportUpdate(session *models.UpdateSession, state trackproto.UpdateState, detail string) {
	txn, frame, err := s.enc.UpdateStatus(session, state, detail)
	if err != nil {
		log.Error().Err(err).Msg("编码升级状态帧失败, 丢弃")
		return
	}
	s.emit(models.EventTypeUpdateStatus, txn, frame)
}
