package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tracker-sim/tracker-device-sim/internal/api"
	"github.com/tracker-sim/tracker-device-sim/internal/config"
	"github.com/tracker-sim/tracker-device-sim/internal/device"
	"github.com/tracker-sim/tracker-device-sim/internal/integration"
	"github.com/tracker-sim/tracker-device-sim/internal/models"
	"github.com/tracker-sim/tracker-device-sim/internal/protocol"
	"github.com/tracker-sim/tracker-device-sim/internal/simulator"
	"github.com/tracker-sim/tracker-device-sim/internal/transport"
)

func main() {
	// 命令行参数
	var configPath = flag.String("config", "config.yaml", "配置文件路径")
	var validateOnly = flag.Bool("validate", false, "仅验证配置文件")
	var showConfig = flag.Bool("show-config", false, "显示配置并退出")

	var server, imei, iccid, code, mcc, mnc, rat string
	var interval, readings int
	var seed int64
	flag.StringVar(&server, "s", "", "服务端地址 host:port")
	flag.StringVar(&server, "server", "", "服务端地址 host:port")
	flag.IntVar(&interval, "i", 0, "上报周期（秒）")
	flag.IntVar(&interval, "interval", 0, "上报周期（秒）")
	flag.IntVar(&readings, "r", 0, "采样周期（秒）")
	flag.IntVar(&readings, "readings", 0, "采样周期（秒）")
	flag.StringVar(&imei, "m", "", "IMEI（15位数字）")
	flag.StringVar(&imei, "imei", "", "IMEI（15位数字）")
	flag.StringVar(&iccid, "iccid", "", "ICCID（可选）")
	flag.StringVar(&code, "c", "", "客户代码（偶数长度十六进制）")
	flag.StringVar(&code, "code", "", "客户代码（偶数长度十六进制）")
	flag.StringVar(&mcc, "mcc", "", "移动国家代码")
	flag.StringVar(&mnc, "mnc", "", "移动网络代码")
	flag.StringVar(&rat, "rat", "", "无线接入技术（如 LTE-M, NB-IoT）")
	flag.Int64Var(&seed, "seed", 0, "随机种子（0=按时间播种）")
	flag.Parse()

	// 设置日志
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// 收集实际提供的命令行覆盖
	ov := collectOverrides(server, interval, readings, imei, iccid, code, mcc, mnc, rat, seed)

	// 加载配置
	cfg, err := config.Load(*configPath, ov)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("加载配置失败")
	}

	// 设置日志级别
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("无效的日志级别，使用info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if *showConfig {
		cfg.PrintConfigSummary()
		return
	}

	if *validateOnly {
		cfg.PrintConfigSummary()
		fmt.Println("✅ 配置文件验证通过")
		return
	}

	log.Info().
		Str("imei", cfg.IMEI).
		Str("server", cfg.Server).
		Msg("Tracker Device Simulator 启动")

	// 随机源, 可播种以复现运行
	rngSeed := cfg.Seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	log.Debug().Int64("seed", rngSeed).Msg("随机种子")

	var lat, lon float64
	mode := models.LocationMode(cfg.Location.Type)
	if cfg.Location.Lat != nil {
		lat = *cfg.Location.Lat
	}
	if cfg.Location.Lon != nil {
		lon = *cfg.Location.Lon
	}

	sensors := device.NewSensors(rand.New(rand.NewSource(rngSeed)), mode, lat, lon)

	state := device.NewState(
		models.DeviceIdentity{IMEI: cfg.IMEI, ICCID: cfg.ICCID},
		models.NetworkContext{
			CustomerCode:    cfg.Code,
			MCC:             cfg.MCC,
			MNC:             cfg.MNC,
			RAT:             cfg.RAT,
			SoftwareVersion: cfg.SoftwareVersion,
			ModemVersion:    cfg.ModemVersion,
		},
		models.LocationSample{Mode: mode, Latitude: lat, Longitude: lon},
	)

	encoder, err := protocol.NewEncoder(cfg.IMEI)
	if err != nil {
		log.Fatal().Err(err).Msg("创建协议编码器失败")
	}

	// 建立 UDP 会话, 失败致命
	session, err := transport.Dial(cfg.Server, cfg.DropRate, rand.New(rand.NewSource(rngSeed+1)))
	if err != nil {
		log.Fatal().Err(err).Str("server", cfg.Server).Msg("建立 UDP 会话失败")
	}

	// 可选事件旁路
	var tap simulator.EventTap
	if cfg.NATS.URL != "" {
		natsTap, err := integration.NewNATSTap(&cfg.NATS)
		if err != nil {
			log.Error().Err(err).Msg("连接 NATS 失败, 事件旁路不可用")
		} else {
			defer natsTap.Close()
			tap = natsTap
		}
	}

	// 可选调试 API
	var debugServer *api.DebugServer
	if cfg.API.Addr != "" {
		debugServer = api.NewDebugServer(cfg, state)
		go func() {
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("调试 API 停止")
			}
		}()
	}

	sched := simulator.New(cfg, state, sensors, encoder, session, tap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("调度器停止")
		}
	}()

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("收到信号，正在关闭...")

	cancel()

	if debugServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := debugServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("关闭调试 API 失败")
		}
	}

	log.Info().Msg("Tracker Device Simulator 已停止")
}

// collectOverrides 只把用户实际提供的参数转成覆盖项
func collectOverrides(server string, interval, readings int, imei, iccid, code, mcc, mnc, rat string, seed int64) config.Overrides {
	var ov config.Overrides
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["s"] || set["server"] {
		ov.Server = &server
	}
	if set["i"] || set["interval"] {
		ov.Interval = &interval
	}
	if set["r"] || set["readings"] {
		ov.Readings = &readings
	}
	if set["m"] || set["imei"] {
		ov.IMEI = &imei
	}
	if set["iccid"] {
		ov.ICCID = &iccid
	}
	if set["c"] || set["code"] {
		ov.Code = &code
	}
	if set["mcc"] {
		ov.MCC = &mcc
	}
	if set["mnc"] {
		ov.MNC = &mnc
	}
	if set["rat"] {
		ov.RAT = &rat
	}
	if set["seed"] {
		ov.Seed = &seed
	}
	return ov
}
