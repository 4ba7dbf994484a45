package app

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/config"
	"github.com/sswpa/box-office/internal/cache"
	"github.com/sswpa/box-office/internal/gateway"
	"github.com/sswpa/box-office/internal/mailer"
	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/mq"
	"github.com/sswpa/box-office/internal/repository"
	"github.com/sswpa/box-office/internal/service/domain"
	"github.com/sswpa/box-office/internal/service/workflow"
)

type App struct {
	Config *config.Config

	DB     *gorm.DB
	Cache  *cache.RedisCache
	Logger *zap.Logger
	MQConn *amqp.Connection

	RecitalRepo    repository.RecitalRepo
	TicketTypeRepo repository.TicketTypeRepo
	OrderRepo      repository.OrderRepo

	RecitalService domain.RecitalService
	CatalogService domain.CatalogService
	OrderService   domain.OrderService
	PaymentService domain.PaymentService

	CheckoutWorkflow     *workflow.CheckoutWorkflow
	SweepWorkflow        *workflow.SweepWorkflow
	NotificationWorkflow *workflow.NotificationWorkflow

	sweepCancel context.CancelFunc
}

func New(cfg *config.Config, db *gorm.DB, redisCache *cache.RedisCache,
	mqConn *amqp.Connection, logger *zap.Logger) *App {
	recitalRepo := repository.NewRecitalRepoGorm(db)
	ticketTypeRepo := repository.NewTicketTypeRepoGorm(db)
	orderRepo := repository.NewOrderRepoGorm(db)

	var credentials gateway.CredentialProvider
	if cfg.Square.AccessTokenFile != "" {
		credentials = gateway.NewFileCredentials(cfg.Square.AccessTokenFile)
	} else {
		credentials = gateway.NewStaticCredentials(cfg.Square.AccessToken)
	}
	squareClient := gateway.NewSquareClient(cfg.Square.BaseURL, credentials, cfg.Square.Timeout)

	recitalService := domain.NewRecitalService(db, recitalRepo, redisCache, logger)
	catalogService := domain.NewCatalogService(db, ticketTypeRepo, recitalService,
		redisCache, cfg.OrderExpiry, logger)
	orderService := domain.NewOrderService(db, orderRepo, ticketTypeRepo, cfg.OrderExpiry, logger)
	paymentService := domain.NewPaymentService(squareClient, cfg.Currency, logger)

	var publisher mq.Publisher
	if mqConn != nil {
		publisher = mq.NewChannelPublisher(mqConn)
	}

	checkoutWorkflow := workflow.NewCheckoutWorkflow(recitalService, orderService,
		paymentService, publisher, cfg.OrderExpiry, logger)
	sweepWorkflow := workflow.NewSweepWorkflow(orderService, cfg.SweepInterval, logger)
	notificationWorkflow := workflow.NewNotificationWorkflow(orderService, recitalService,
		mailer.New(cfg.SMTP, logger), logger)

	return &App{
		Config:               cfg,
		DB:                   db,
		Cache:                redisCache,
		Logger:               logger,
		MQConn:               mqConn,
		RecitalRepo:          recitalRepo,
		TicketTypeRepo:       ticketTypeRepo,
		OrderRepo:            orderRepo,
		RecitalService:       recitalService,
		CatalogService:       catalogService,
		OrderService:         orderService,
		PaymentService:       paymentService,
		CheckoutWorkflow:     checkoutWorkflow,
		SweepWorkflow:        sweepWorkflow,
		NotificationWorkflow: notificationWorkflow,
	}
}

func (app *App) Init() error {
	if err := app.DB.AutoMigrate(
		&model.Recital{},
		&model.TicketType{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		return err
	}

	if app.MQConn != nil {
		if err := mq.InitQueues(app.MQConn, app.Config.OrderExpiry); err != nil {
			return err
		}
		if err := app.NotificationWorkflow.Start(app.MQConn); err != nil {
			return err
		}
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	app.sweepCancel = cancel
	return app.SweepWorkflow.Start(sweepCtx, app.MQConn)
}

func (app *App) Close() error {
	if app.sweepCancel != nil {
		app.sweepCancel()
	}
	if app.MQConn != nil {
		app.MQConn.Close()
	}
	sqlDB, err := app.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
