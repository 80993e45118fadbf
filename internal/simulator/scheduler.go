package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tracker-sim/tracker-device-sim/internal/config"
	"github.com/tracker-sim/tracker-device-sim/internal/device"
	"github.com/tracker-sim/tracker-device-sim/internal/models"
	"github.com/tracker-sim/tracker-device-sim/internal/protocol"
	"github.com/tracker-sim/tracker-device-sim/pkg/trackproto"
)

// Transport is the send/receive surface the scheduler drives.
type Transport interface {
	Send(b []byte) error
	TryReceive(buf []byte, timeout time.Duration) (int, error)
	Close() error
}

// EventTap observes emitted and received frames. May be nil.
type EventTap interface {
	Publish(models.EventLog)
}

const receivePoll = time.Second

// timing 调度参数, 统一换算成 Duration 方便测试用毫秒驱动
type timing struct {
	Report     time.Duration
	Reading    time.Duration
	MotionIvl  time.Duration
	MotionDur  time.Duration
	UpdateIvl  time.Duration
	UpdateDur  time.Duration
	AckWait    time.Duration
	FailureOdd float64
}

func timingFromConfig(cfg *config.Config) timing {
	return timing{
		Report:     cfg.ReportInterval(),
		Reading:    cfg.ReadingInterval(),
		MotionIvl:  cfg.MotionIvl(),
		MotionDur:  cfg.MotionDur(),
		UpdateIvl:  cfg.UpdateIvl(),
		UpdateDur:  cfg.UpdateDur(),
		AckWait:    cfg.AckWait(),
		FailureOdd: cfg.UpdateFailureRate,
	}
}

// Scheduler drives the simulated device: boot announcement, periodic
// telemetry and sampling, motion confirmation and update sessions. All
// activities share one device.State and one Transport.
type Scheduler struct {
	state     *device.State
	sensors   *device.Sensors
	enc       *protocol.Encoder
	transport Transport
	tap       EventTap

	server string

	mu           sync.Mutex
	timing       timing
	reportReset  chan time.Duration
	readingReset chan time.Duration

	ackMu   sync.Mutex
	waiters map[uint16]chan struct{}

	wg sync.WaitGroup
}

// New creates a scheduler from validated configuration.
func New(cfg *config.Config, st *device.State, sensors *device.Sensors,
	enc *protocol.Encoder, tr Transport, tap EventTap) *Scheduler {
	return newScheduler(cfg.Server, timingFromConfig(cfg), st, sensors, enc, tr, tap)
}

func newScheduler(server string, t timing, st *device.State, sensors *device.Sensors,
	enc *protocol.Encoder, tr Transport, tap EventTap) *Scheduler {
	return &Scheduler{
		state:        st,
		sensors:      sensors,
		enc:          enc,
		transport:    tr,
		tap:          tap,
		server:       server,
		timing:       t,
		reportReset:  make(chan time.Duration, 1),
		readingReset: make(chan time.Duration, 1),
		waiters:      make(map[uint16]chan struct{}),
	}
}

// Run announces the device and drives all activities until the context is
// cancelled. Transmit failures are logged and never abort the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.transport.Close()

	// 接收协程先行, 否则收不到开机确认
	s.wg.Add(1)
	go s.receiveLoop(ctx)

	s.announce(ctx)

	s.wg.Add(2)
	go s.telemetryLoop(ctx)
	go s.samplingLoop(ctx)

	t := s.currentTiming()
	if t.MotionIvl > 0 && t.MotionDur > 0 {
		s.wg.Add(1)
		go s.motionLoop(ctx)
	} else {
		log.Info().Msg("运动模拟未启用")
	}

	if t.UpdateIvl > 0 {
		s.wg.Add(1)
		go s.updateLoop(ctx)
	}

	<-ctx.Done()
	s.wg.Wait()
	log.Info().Msg("调度器已停止")
	return ctx.Err()
}

// announce 启动时先发 P+ 再发 C, 失败不阻止周期活动
func (s *Scheduler) announce(ctx context.Context) {
	txn, frame, err := s.enc.PowerOn(s.state.Network())
	if err != nil {
		log.Error().Err(err).Msg("编码开机帧失败, 跳过开机通告")
	} else if !s.sendAndWait(ctx, models.EventTypePowerOn, txn, frame) {
		log.Warn().Uint16("txn", txn).Msg("开机通告未确认, 继续启动周期活动")
	}

	t := s.currentTiming()
	txn, frame, err = s.enc.ConfigReport(s.server,
		int(t.Report/time.Second), int(t.Reading/time.Second), 0)
	if err != nil {
		log.Error().Err(err).Msg("编码配置帧失败")
		return
	}
	if !s.sendAndWait(ctx, models.EventTypeConfigReport, txn, frame) {
		log.Warn().Uint16("txn", txn).Msg("初始配置上报未确认")
	}
}

// telemetryLoop 遥测活动, 周期可被 W 命令重置
func (s *Scheduler) telemetryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.currentTiming().Report)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.reportReset:
			ticker.Reset(d)
			log.Info().Dur("interval", d).Msg("遥测周期已更新")
		case <-ticker.C:
			s.sendTelemetry()
		}
	}
}

func (s *Scheduler) sendTelemetry() {
	readings := s.state.TakeReadings()
	if len(readings) == 0 {
		// 没有积累的采样时即时取一条, 保证遥测帧非空
		readings = []models.SensorReading{s.takeSample()}
	}

	t := s.currentTiming()
	txn, frame, err := s.enc.Telemetry(s.state.Location(), s.state.Network(),
		readings, s.state.Battery(), s.state.RSSI(), t.Reading)
	if err != nil {
		// 编码失败视为程序缺陷: 记录并丢弃该帧
		log.Error().Err(err).Msg("编码遥测帧失败, 丢弃")
		return
	}

	// 遥测即发即弃, 周期本身就是重试机制
	s.emit(models.EventTypeTelemetry, txn, frame)
}

// samplingLoop 采样活动, 只写状态不发送
func (s *Scheduler) samplingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.currentTiming().Reading)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.readingReset:
			ticker.Reset(d)
			log.Info().Dur("interval", d).Msg("采样周期已更新")
		case <-ticker.C:
			s.takeSample()
		}
	}
}

func (s *Scheduler) takeSample() models.SensorReading {
	reading := models.SensorReading{
		Temperature: s.sensors.Temperature(),
		Humidity:    s.sensors.Humidity(),
		Timestamp:   time.Now(),
	}
	s.state.RecordSample(reading, s.sensors.Location(), s.sensors.Battery())
	return reading
}

// emit 发送一帧, 失败只记录, 不跨活动传播
func (s *Scheduler) emit(t models.EventType, txn uint16, frame []byte) {
	if err := s.transport.Send(frame); err != nil {
		log.Error().Err(err).Str("type", string(t)).Uint16("txn", txn).Msg("发送失败")
	} else {
		log.Info().Str("type", string(t)).Uint16("txn", txn).Int("bytes", len(frame)).Msg("帧已发送")
	}
	s.state.CountSent(t)
	s.publish(t, txn, len(frame), "")
}

// sendAndWait 发送并等待确认, 超时返回 false, 调用方决定是否在意
func (s *Scheduler) sendAndWait(ctx context.Context, t models.EventType, txn uint16, frame []byte) bool {
	ack := s.registerWaiter(txn)
	defer s.dropWaiter(txn)

	s.emit(t, txn, frame)

	wait := s.currentTiming().AckWait
	if wait <= 0 {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ack:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) registerWaiter(txn uint16) chan struct{} {
	s.ackMu.Lock()
	defer s.ackMu.Unlock()
	ch := make(chan struct{}, 1)
	s.waiters[txn] = ch
	return ch
}

func (s *Scheduler) dropWaiter(txn uint16) {
	s.ackMu.Lock()
	defer s.ackMu.Unlock()
	delete(s.waiters, txn)
}

func (s *Scheduler) resolveWaiter(txn uint16) bool {
	s.ackMu.Lock()
	defer s.ackMu.Unlock()
	ch, ok := s.waiters[txn]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		delete(s.waiters, txn)
	}
	return ok
}

func (s *Scheduler) currentTiming() timing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timing
}

// applyConfigWrite 应用服务端下发的周期并重置对应定时器
func (s *Scheduler) applyConfigWrite(body trackproto.ConfigBody) {
	s.mu.Lock()
	if body.Interval > 0 {
		s.timing.Report = time.Duration(body.Interval) * time.Second
		select {
		case s.reportReset <- s.timing.Report:
		default:
		}
	}
	if body.Readings > 0 {
		s.timing.Reading = time.Duration(body.Readings) * time.Second
		select {
		case s.readingReset <- s.timing.Reading:
		default:
		}
	}
	s.mu.Unlock()

	if body.Server != "" && body.Server != s.server {
		// 运行中不迁移套接字, 新地址下次启动生效
		log.Warn().Str("server", body.Server).Msg("忽略服务端地址变更, 重启后生效")
	}
}

func (s *Scheduler) publish(t models.EventType, txn uint16, size int, desc string) {
	if s.tap == nil {
		return
	}
	s.tap.Publish(models.EventLog{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		IMEI:        s.state.Identity().IMEI,
		TxnID:       txn,
		Type:        t,
		Description: desc,
		Bytes:       size,
	})
}
