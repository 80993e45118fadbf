package simulator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tracker-sim/tracker-device-sim/internal/models"
)

// motionLoop 运动活动: 候选状态每个 motionInterval 翻转一次,
// 持续满 motionDuration 才确认并上报. 确认前翻回则不产生事件,
// 因此 M+/M- 永远交替出现.
func (s *Scheduler) motionLoop(ctx context.Context) {
	defer s.wg.Done()

	t := s.currentTiming()
	ticker := time.NewTicker(t.MotionIvl)
	defer ticker.Stop()

	candidate := false
	candidateSince := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			confirmed := s.state.Motion().Active
			if candidate != confirmed && now.Sub(candidateSince) >= t.MotionDur {
				if candidate {
					s.confirmMotionStart(now)
				} else {
					s.confirmMotionStop(now)
				}
			}
			// 翻转候选状态, 重新计时
			candidate = !candidate
			candidateSince = now
		}
	}
}

func (s *Scheduler) confirmMotionStart(now time.Time) {
	if !s.state.EnterMotion(now) {
		return
	}

	txn, frame, err := s.enc.MotionStart(s.state.Location(), s.state.Network())
	if err != nil {
		log.Error().Err(err).Msg("编码运动开始帧失败, 丢弃")
		return
	}
	s.emit(models.EventTypeMotionStart, txn, frame)
}

func (s *Scheduler) confirmMotionStop(now time.Time) {
	episode := now.Sub(s.state.Motion().Since)
	steps := s.sensors.Steps(int(episode / time.Second))

	if !s.state.ExitMotion(now, steps) {
		return
	}

	txn, frame, err := s.enc.MotionStop(s.state.Location(), s.state.Network(),
		s.state.Battery(), s.state.RSSI(), steps)
	if err != nil {
		log.Error().Err(err).Msg("编码运动结束帧失败, 丢弃")
		return
	}
	s.emit(models.EventTypeMotionStop, txn, frame)
}
