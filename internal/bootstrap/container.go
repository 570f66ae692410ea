package bootstrap

import (
	"context"
	"time"

	"research-chat-be/internal/config"
	"research-chat-be/internal/constant"
	"research-chat-be/internal/controller"
	"research-chat-be/internal/handler"
	"research-chat-be/internal/pkg/logger"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/repository/memory"
	"research-chat-be/internal/repository/unitofwork"
	"research-chat-be/internal/service"
	"research-chat-be/internal/websocket"
	"research-chat-be/pkg/events"
	"research-chat-be/pkg/llm/factory"
	pktNats "research-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController
	ContextController      controller.IContextController
	CatalogController      controller.ICatalogController
	PresetController       controller.IPresetController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	PresetFeedHandler *handler.PresetFeedHandler
	WebSocketHub      *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires every dependency. NATS and Redis are optional: without them
// events are dropped and preset changes are only pushed to this instance.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	detailsCache := memory.NewDetailsCache(time.Duration(cfg.Chat.DetailsCacheTTLMn) * time.Minute)
	auth := serverutils.NewJwtMiddleware(cfg.Auth.JwtSecret)

	c := &Container{Logger: sysLogger}

	// 2. In-process job bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// 3. LLM
	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  llmBaseURL(cfg.Ai),
		APIKey:   cfg.Ai.HuggingFaceAPIKey,
	})
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	// 4. Infrastructure
	var eventPublisher events.Publisher = events.NopPublisher{}
	natsPub, err := pktNats.NewPublisher(ctx, cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable, domain events disabled", map[string]interface{}{"error": err.Error()})
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb = redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		sysLogger.Warn("BOOTSTRAP", "Redis unavailable, preset feed stays local", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		rdb = nil
	} else {
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	// WebSocket Hub
	feedLogger := logger.NewIsolatedLogger(cfg.App.FeedLogFilePath)
	wsHub := websocket.NewHub(rdb, feedLogger)
	go wsHub.Run(ctx)
	presetFeedHandler := handler.NewPresetFeedHandler(wsHub, cfg.Auth.JwtSecret, feedLogger)

	var presetNotifier service.PresetNotifier = service.NewHubPresetNotifier(wsHub)
	if natsPub != nil {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, func(subject string, err error) {
			sysLogger.Error("NATS", "Event handler failed", map[string]interface{}{"subject": subject, "error": err.Error()})
		})
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			c.closers = append(c.closers, natsSub.Close)
			if err := natsSub.Subscribe(ctx, constant.EventPresetChanged, "preset-feed", presetFeedHandler.HandlePresetEvent); err != nil {
				sysLogger.Warn("BOOTSTRAP", "Preset feed consumer not started", map[string]interface{}{"error": err.Error()})
			} else {
				presetNotifier = service.NewBusPresetNotifier(natsPub, presetNotifier, sysLogger)
			}

			activity := handler.NewActivityHandler(sysLogger)
			for _, eventType := range []string{constant.EventConversationCreated, constant.EventConversationDeleted, constant.EventMessageSent} {
				if err := natsSub.Subscribe(ctx, eventType, "activity-"+eventType, activity.Handle); err != nil {
					sysLogger.Warn("BOOTSTRAP", "Activity consumer not started", map[string]interface{}{"event": eventType, "error": err.Error()})
				}
			}
		}
	}

	// 5. Services
	publisherService := service.NewPublisherService(pubSub, cfg.Chat.TitleTopic)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Chat.TitleTopic, uowFactory, llmProvider, sysLogger)

	contextService := service.NewContextService(uowFactory, detailsCache, sysLogger)
	conversationService := service.NewConversationService(
		uowFactory,
		contextService,
		llmProvider,
		publisherService,
		eventPublisher,
		sysLogger,
		service.ConversationServiceOptions{
			MaxMessageLength: cfg.Chat.MaxMessageLength,
			HistoryWindow:    cfg.Chat.HistoryWindow,
		},
	)
	catalogService := service.NewCatalogService(uowFactory)
	presetService := service.NewPresetService(uowFactory, llmProvider, presetNotifier, sysLogger)

	// 6. Controllers
	c.ConversationController = controller.NewConversationController(conversationService, auth, sysLogger)
	c.ContextController = controller.NewContextController(contextService, auth)
	c.CatalogController = controller.NewCatalogController(catalogService, auth)
	c.PresetController = controller.NewPresetController(presetService, auth)
	c.PresetFeedHandler = presetFeedHandler
	c.WebSocketHub = wsHub

	return c, nil
}

// Close releases bus and cache connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func llmBaseURL(cfg config.AIConfig) string {
	if cfg.LLMProvider == "huggingface" {
		return cfg.HuggingFaceBaseURL
	}
	return cfg.OllamaBaseURL
}
