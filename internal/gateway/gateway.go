package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	monitorprom "github.com/hertz-contrib/monitor-prometheus"

	"github.com/orchestrator/core/internal/channel"
	httpchannel "github.com/orchestrator/core/internal/channel/http"
	"github.com/orchestrator/core/internal/channel/lark"
	"github.com/orchestrator/core/internal/channel/telegram"
	"github.com/orchestrator/core/internal/config"
	"github.com/orchestrator/core/internal/core/transportadapter"
	"github.com/orchestrator/core/internal/cronjob"
	"github.com/orchestrator/core/internal/pkg/logs"
	coreprom "github.com/orchestrator/core/internal/pkg/prometheus"
	"github.com/orchestrator/core/internal/provider"
	"github.com/orchestrator/core/internal/provider/anthropic"
	"github.com/orchestrator/core/internal/provider/ark"
	"github.com/orchestrator/core/internal/provider/gemini"
	"github.com/orchestrator/core/internal/provider/ollama"
	"github.com/orchestrator/core/internal/provider/openai"
	"github.com/orchestrator/core/internal/provider/qwen"
)

// defaultMetricsBind is where the Job Manager / Chat Pipeline metrics
// defined in internal/pkg/metrics are scraped from when
// gateway.metrics_bind is left unset.
const defaultMetricsBind = "0.0.0.0:9091"

type Gateway struct {
	core       *core
	msgQueue   *MessageQueue
	httpServer *hzServer.Hertz
	scheduler  *cronjob.Scheduler

	runCtx    context.Context
	runCancel context.CancelFunc

	mu       sync.Mutex
	stopOnce sync.Once
	stopErr  error
}

func NewGateway(cfg config.GatewayConfig) *Gateway {
	bind := cfg.Bind
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	metricsBind := cfg.MetricsBind
	if metricsBind == "" {
		metricsBind = defaultMetricsBind
	}
	metricsTracer := monitorprom.NewServerTracer(metricsBind, "/metrics",
		monitorprom.WithRegistry(coreprom.GetRegistry()),
		monitorprom.WithEnableGoCollector(true))

	hzSvr := hzServer.Default(
		hzServer.WithHostPorts(bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5*time.Second),
		hzServer.WithTracer(metricsTracer),
	)

	gw := &Gateway{
		httpServer: hzSvr,
		msgQueue: newMessageQueue(QueueOptions{
			LaneBuffer:    10,
			MaxConcurrent: cfg.MaxConcurrentSessions,
		}),
	}

	return gw
}

func (gw *Gateway) Start(ctx context.Context) error {
	gw.runCtx, gw.runCancel = context.WithCancel(ctx)

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	if err := gw.msgQueue.Init(gw.runCtx, gw.processMessage); err != nil {
		return fmt.Errorf("init msg queue: %w", err)
	}
	if err := gw.initHTTPServer(gw.runCtx, cfg.Gateway); err != nil {
		return fmt.Errorf("init http server: %w", err)
	}
	if err := gw.initProviders(gw.runCtx, cfg.Providers); err != nil {
		return fmt.Errorf("init providers: %w", err)
	}
	if err := gw.initCore(gw.runCtx, cfg); err != nil {
		return fmt.Errorf("init orchestrator core: %w", err)
	}
	if err := gw.initChannels(gw.runCtx, cfg.Channels); err != nil {
		return fmt.Errorf("init channels: %w", err)
	}
	if err := gw.initCronjob(gw.runCtx, cfg); err != nil {
		return fmt.Errorf("init cronjob: %w", err)
	}

	go gw.httpServer.Spin()

	return nil
}

func (gw *Gateway) Stop(ctx context.Context) error {
	gw.stopOnce.Do(func() {
		if gw.scheduler != nil {
			gw.scheduler.Stop(ctx)
		}

		if gw.runCancel != nil {
			gw.runCancel()
		}

		for _, ch := range channel.List() {
			if err := ch.Stop(ctx); err != nil {
				logs.CtxWarn(ctx, "[gateway] stop channel %s error: %v", ch.ID(), err)
			}
		}

		if err := gw.httpServer.Shutdown(ctx); err != nil {
			logs.CtxWarn(ctx, "[gateway] shutdown http server error: %v", err)
		}

		logs.CtxInfo(ctx, "[gateway] all resources stopped")
	})
	return gw.stopErr
}

func (gw *Gateway) initProviders(ctx context.Context, providers map[string]config.ProviderConfig) error {
	for id, cfg := range providers {
		cfg.ID = id
		p, err := newProvider(ctx, cfg)
		if err != nil {
			logs.CtxError(ctx, "[%s] create provider #%s error: %v", strings.ToUpper(cfg.Type), cfg.ID, err)
			return fmt.Errorf("create provider %s: %w", cfg.ID, err)
		}

		if err = provider.Register(p); err != nil {
			logs.CtxError(ctx, "[%s] register provider #%s error: %v", strings.ToUpper(cfg.Type), cfg.ID, err)
			return fmt.Errorf("register provider %s: %w", cfg.ID, err)
		}

		logs.CtxInfo(ctx, "[%s] register provider #%s success", strings.ToUpper(cfg.Type), cfg.ID)
	}
	return nil
}

func newProvider(ctx context.Context, cfg config.ProviderConfig) (provider.Provider, error) {
	cfgMap := make(map[string]interface{}, len(cfg.Config))
	for k, v := range cfg.Config {
		cfgMap[k] = v
	}

	switch provider.Type(strings.ToLower(strings.TrimSpace(cfg.Type))) {
	case provider.OpenAI:
		return openai.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Anthropic:
		return anthropic.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Gemini:
		return gemini.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Ollama:
		return ollama.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Qwen:
		return qwen.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Ark:
		return ark.NewProvider(ctx, cfg.ID, cfgMap)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

func (gw *Gateway) initChannels(ctx context.Context, channels map[string]config.ChannelConfig) error {
	for id, cfg := range channels {
		cfg.ID = id
		if !cfg.Enabled {
			logs.CtxInfo(ctx, "[gateway] channel #%s is disabled, skipping", id)
			continue
		}

		ch, err := newChannel(id, cfg)
		if err != nil {
			logs.CtxError(ctx, "[gateway] create channel #%s error: %v", id, err)
			return fmt.Errorf("create channel %s: %w", id, err)
		}

		if err = channel.Register(ch); err != nil {
			return fmt.Errorf("register channel %s: %w", id, err)
		}

		// Channels that receive over HTTP mount their endpoints on the
		// gateway's shared server.
		if rp, ok := ch.(channel.RouteProvider); ok {
			for _, route := range rp.Routes() {
				gw.httpServer.Handle(route.Method, route.Path, route.Handler)
			}
		}

		if gw.core == nil {
			logs.CtxWarn(ctx, "[gateway] channel #%s registered but orchestrator core is not running", id)
			continue
		}
		pipeline := gw.attachChannel(ch)
		runChannelPump(ctx, gw.core.transports[ch.ID()], pipeline)

		go func(id string, ch channel.Channel) {
			logs.CtxInfo(ctx, "[gateway] starting channel #%s (%s)", id, ch.Type())
			if err := gw.core.transports[id].Start(ctx); err != nil {
				logs.CtxError(ctx, "[gateway] channel #%s stopped with error: %v", id, err)
			}
		}(id, ch)
	}
	return nil
}

func newChannel(id string, cfg config.ChannelConfig) (channel.Channel, error) {
	switch channel.Type(strings.ToLower(strings.TrimSpace(cfg.Type))) {
	case channel.Telegram:
		return telegram.NewChannel(id, &cfg)
	case channel.Lark:
		return lark.NewChannel(id, &cfg)
	case channel.HTTP:
		return httpchannel.NewChannel(id, &cfg)
	default:
		return nil, fmt.Errorf("unsupported channel type: %s", cfg.Type)
	}
}

func (gw *Gateway) initHTTPServer(ctx context.Context, gateway config.GatewayConfig) error {

	gw.httpServer.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
	return nil

}

// enqueueMsg is the cronjob.Scheduler's EnqueueFunc: every message it
// builds already carries a SessionKey (scheduler.go's message builder),
// so the only job here is handing it to the queue.
func (gw *Gateway) enqueueMsg(ctx context.Context, msg *channel.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	return gw.msgQueue.Enqueue(ctx, msg)
}

// processMessage now only drains cron-originated messages: live channel
// traffic is handled by its own chatpipeline.Pipeline (wired in
// initChannels), which never touches the msgQueue.
func (gw *Gateway) processMessage(ctx context.Context, msg *channel.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	return gw.processCronMessage(ctx, msg)
}

func (gw *Gateway) processCronMessage(ctx context.Context, msg *channel.Message) error {
	if gw.core == nil {
		return fmt.Errorf("orchestrator core not running")
	}

	logs.CtxDebug(ctx, "[cron] -> channel=%s job=%s", msg.ChannelID, msg.Metadata["cron_job_name"])

	// deliver=false: heartbeat replies must be inspected (and possibly
	// suppressed) before anything reaches the channel, so delivery stays
	// on this path rather than the pipeline's.
	chat := transportadapter.QualifyChat(msg.ChannelID, msg.ChatID)
	reply, err := gw.runSerializedTurn(ctx, chat, msg.Content, "cron", false)
	if err != nil {
		return fmt.Errorf("cron job process message failed: %w", err)
	}
	if reply == "" {
		return nil
	}

	// Heartbeat silent: if the reply is HEARTBEAT_OK, do not deliver.
	if strings.TrimSpace(reply) == cronjob.HeartbeatOK {
		logs.CtxDebug(ctx, "[cron] heartbeat OK, nothing to deliver")
		return nil
	}

	if msg.ChannelID == "" {
		return nil
	}
	ch, err := channel.Get(msg.ChannelID)
	if err != nil {
		logs.CtxWarn(ctx, "[cron] delivery channel %s not found: %v", msg.ChannelID, err)
		return nil
	}
	if _, err := ch.SendMessage(ctx, msg.ChatID, reply); err != nil {
		return fmt.Errorf("cron job send reply via channel %s failed: %w", msg.ChannelID, err)
	}
	return nil
}

func (gw *Gateway) initCronjob(ctx context.Context, cfg *config.Config) error {
	if cfg.Cronjob.Enabled != nil && !*cfg.Cronjob.Enabled {
		logs.CtxInfo(ctx, "[gateway] cronjob disabled, skipping")
		return nil
	}

	// Install the scheduler globally so the cron tool can reach it from
	// worker tool calls, then keep a handle for shutdown.
	cronjob.Init(cfg.Cronjob, gw.enqueueMsg)
	gw.scheduler = cronjob.Default()

	// Register a built-in heartbeat job for every agent.
	for id, agCfg := range cfg.Agents {
		hbJob := cronjob.NewHeartbeatJob(id, agCfg.Workspace, 0)
		if err := gw.scheduler.AddJob(hbJob, false); err != nil {
			logs.CtxWarn(ctx, "[gateway] register heartbeat for agent %s: %v", id, err)
		}
	}

	return gw.scheduler.Start(ctx)
}

