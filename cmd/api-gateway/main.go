// @title EV Swap Station Gateway API
// @version 1.0
// @description Station operations gateway for drivers, staff and admins.
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tdnguyen-dev/evswap-station/internal/common/cache"
	"github.com/tdnguyen-dev/evswap-station/internal/common/config"
	"github.com/tdnguyen-dev/evswap-station/internal/common/database"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/metrics"
	"github.com/tdnguyen-dev/evswap-station/internal/common/qrcode"
	"github.com/tdnguyen-dev/evswap-station/internal/common/tracing"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	authService "github.com/tdnguyen-dev/evswap-station/internal/service/auth"
	inventoryService "github.com/tdnguyen-dev/evswap-station/internal/service/inventory"
	paymentService "github.com/tdnguyen-dev/evswap-station/internal/service/payment"
	planService "github.com/tdnguyen-dev/evswap-station/internal/service/plan"
	reservationService "github.com/tdnguyen-dev/evswap-station/internal/service/reservation"
	revenueService "github.com/tdnguyen-dev/evswap-station/internal/service/revenue"
	swapService "github.com/tdnguyen-dev/evswap-station/internal/service/swap"
	vehicleService "github.com/tdnguyen-dev/evswap-station/internal/service/vehicle"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/mqtt"
	"github.com/tdnguyen-dev/evswap-station/pkg/oss"
	"github.com/tdnguyen-dev/evswap-station/pkg/sms"
	"github.com/tdnguyen-dev/evswap-station/pkg/vnpay"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.GetLogger().Sync() }()

	db, err := database.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("init database", logger.Err(err))
	}
	defer database.Close()

	if err := db.AutoMigrate(&models.User{}, &models.Payment{}, &models.OperationLog{}); err != nil {
		logger.Fatal("migrate database", logger.Err(err))
	}

	redisClient, err := cache.Init(&cfg.Redis)
	if err != nil {
		logger.Fatal("init redis", logger.Err(err))
	}
	defer cache.Close()

	if cfg.Metrics.Enabled {
		metrics.Init("evswap_station")
	}

	tracer, err := tracing.Init(&tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("init tracing", logger.Err(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}()

	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            cfg.JWT.Secret,
		AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
		RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
		Issuer:            cfg.JWT.Issuer,
	})

	coreClient := coreapi.New(&coreapi.Config{
		BaseURL:      cfg.CoreAPI.BaseURL,
		Timeout:      cfg.CoreAPI.TimeoutDuration(),
		ServiceToken: cfg.CoreAPI.ServiceToken,
		UserAgent:    cfg.Server.Name,
	}, logger.GetLogger())

	vnpayClient := vnpay.NewClient(&vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PayURL:     cfg.VNPay.PayURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
		IsSandbox:  cfg.VNPay.IsSandbox,
	})

	uploader := newUploader(cfg)
	smsSender := newSMSSender(cfg)

	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	opLogRepo := repository.NewOperationLogRepository(db)

	authSvc := authService.NewAuthService(userRepo, jwtManager, redisClient, smsSender, cfg.Crypto.BcryptCost)
	coreClient.OnAuthExpired(authSvc.HandleCoreAuthExpired)

	qrGenerator := qrcode.NewGenerator(qrcode.WithSize(cfg.Business.Reservation.QRCodeSize))
	reservationSvc := reservationService.NewReservationService(coreClient, qrGenerator, cfg.Business.Reservation.CheckInWindowMinutes)
	inventorySvc := inventoryService.NewInventoryService(coreClient, redisClient, opLogRepo)
	swapSvc := swapService.NewSwapService(coreClient, inventorySvc, paymentRepo, opLogRepo, smsSender,
		cfg.Business.Swap.MaxPayloadVariants, cfg.Business.Swap.NotifyOnComplete)
	revenueSvc := revenueService.NewRevenueService(swapSvc)
	paymentSvc := paymentService.NewPaymentService(db, paymentRepo, opLogRepo, coreClient, vnpayClient)
	vehicleSvc := vehicleService.NewVehicleService(coreClient, uploader,
		cfg.Business.Vehicle.ScanMinConfidence, cfg.Business.Vehicle.MaxPhotoSizeMB)
	planSvc := planService.NewPlanService(coreClient, cfg.Business.Plan.PopularPlanID)

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	mqttClient := startTelemetry(rootCtx, cfg, inventorySvc)
	if mqttClient != nil {
		defer mqttClient.Disconnect()
	}
	go sweepPendingPayments(rootCtx, paymentSvc,
		cfg.Business.Payment.SweepIntervalDuration(), cfg.Business.Payment.PendingExpireDuration())

	router := NewRouter(&RouterDeps{
		Config:       cfg,
		JWTManager:   jwtManager,
		AuthSvc:      authSvc,
		Reservation:  reservationSvc,
		Inventory:    inventorySvc,
		Swap:         swapSvc,
		Revenue:      revenueSvc,
		Payment:      paymentSvc,
		Vehicle:      vehicleSvc,
		Plan:         planSvc,
		Redis:        redisClient,
		HealthChecks: NewHealthChecker(db, redisClient),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting",
			logger.String("name", cfg.Server.Name),
			logger.Int("port", cfg.Server.Port),
			logger.String("mode", cfg.Server.Mode),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", logger.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.Err(err))
	}
	logger.Info("server stopped")
}

// newUploader picks the photo storage backend. Anything but a fully
// configured aliyun provider falls back to the in-memory mock, which keeps
// local development free of cloud credentials.
func newUploader(cfg *config.Config) oss.Uploader {
	if cfg.OSS.Provider == "aliyun" && cfg.OSS.AccessKeyID != "" {
		uploader, err := oss.NewAliyunUploader(&oss.AliyunConfig{
			Endpoint:        cfg.OSS.Endpoint,
			AccessKeyID:     cfg.OSS.AccessKeyID,
			AccessKeySecret: cfg.OSS.AccessKeySecret,
			BucketName:      cfg.OSS.Bucket,
			Domain:          cfg.OSS.CustomDomain,
			BasePath:        cfg.OSS.UploadDir,
		})
		if err != nil {
			logger.Fatal("init oss uploader", logger.Err(err))
		}
		return uploader
	}
	logger.Warn("using mock photo uploader")
	return oss.NewMockUploader()
}

// newSMSSender picks the SMS backend.
func newSMSSender(cfg *config.Config) sms.Sender {
	if cfg.SMS.Provider == "aliyun" && cfg.SMS.AccessKeyID != "" {
		sender, err := sms.NewAliyunSender(&sms.AliyunConfig{
			AccessKeyID:     cfg.SMS.AccessKeyID,
			AccessKeySecret: cfg.SMS.AccessKeySecret,
			SignName:        cfg.SMS.SignName,
		})
		if err != nil {
			logger.Fatal("init sms sender", logger.Err(err))
		}
		return sender
	}
	logger.Warn("using mock sms sender")
	return sms.NewMockSender()
}

// sweepPendingPayments periodically expires pending payments whose gateway
// callback never arrived.
func sweepPendingPayments(ctx context.Context, svc *paymentService.PaymentService, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ExpirePending(ctx, olderThan); err != nil {
				logger.Error("expire pending payments", logger.Err(err))
			}
		}
	}
}

// startTelemetry connects to the cabinet broker and wires telemetry into the
// inventory service. Telemetry is an overlay; a broker outage degrades the
// inventory view but never blocks startup.
func startTelemetry(ctx context.Context, cfg *config.Config, handler mqtt.TelemetryHandler) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	client := mqtt.NewClient(&mqtt.Config{
		Broker:        cfg.MQTT.Broker,
		Port:          cfg.MQTT.Port,
		ClientID:      cfg.MQTT.ClientIDPrefix + uuid.NewString(),
		Username:      cfg.MQTT.Username,
		Password:      cfg.MQTT.Password,
		CleanSession:  true,
		QoS:           cfg.MQTT.QoS,
		KeepAlive:     cfg.MQTT.KeepAlive,
		AutoReconnect: cfg.MQTT.AutoReconnect,
	})
	if err := client.Connect(); err != nil {
		logger.Error("mqtt connect failed, telemetry disabled", logger.Err(err))
		return nil
	}

	ingest := mqtt.NewTelemetryIngest(client, handler)
	if err := ingest.Start(ctx); err != nil {
		logger.Error("telemetry subscribe failed", logger.Err(err))
		client.Disconnect()
		return nil
	}

	logger.Info("telemetry ingest started", logger.String("broker", cfg.MQTT.Broker))
	return client
}
