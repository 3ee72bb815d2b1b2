package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"taskflow/internal/config"
	"taskflow/internal/handler"
	"taskflow/internal/metrics"
	"taskflow/internal/middleware"
	"taskflow/internal/notification"
	"taskflow/internal/permission"
	"taskflow/internal/repository"
	"taskflow/internal/repository/memory"
	"taskflow/internal/repository/migrations"
	"taskflow/internal/service"
	"taskflow/internal/workflow"
)

type Server struct {
	Engine   *gin.Engine
	DB       *gorm.DB
	Config   *config.Config
	Registry *prometheus.Registry

	logger logrus.FieldLogger
}

type employeeStore interface {
	service.Directory
	handler.EmployeeRepository
}

type inboxStore interface {
	notification.Store
	handler.Inbox
}

type stores struct {
	tasks     service.TaskStore
	employees employeeStore
	inbox     inboxStore
}

func Init(cfg *config.Config, logger logrus.FieldLogger) (*Server, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("svc", "server")

	s := &Server{Config: cfg, Registry: prometheus.NewRegistry(), logger: logger}
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, err := s.openStores()
	if err != nil {
		return nil, err
	}

	catalog, err := workflow.LoadCatalog(cfg.WorkflowTemplatesFile)
	if err != nil {
		return nil, fmt.Errorf("❌ failed to load workflow templates: %w", err)
	}
	logger.Infof("✅ Loaded %d workflow templates", catalog.Len())

	recorder := metrics.NewPrometheusRecorder(s.Registry)

	dispatcher, err := notification.NewDispatcher(notification.DispatcherConfig{
		Store:       st.inbox,
		Metrics:     recorder,
		Logger:      logger,
		MaxFailures: cfg.NotifyBreakerFailures,
		OpenTimeout: cfg.NotifyBreakerTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create notification dispatcher: %w", err)
	}

	svc, err := service.NewTaskService(service.ServiceConfig{
		Store:     st.tasks,
		Notifier:  dispatcher,
		Directory: st.employees,
		Metrics:   recorder,
		Evaluator: permission.Evaluator{AdminBypass: cfg.AdminBypass},
		Catalog:   catalog,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task service: %w", err)
	}

	s.Engine = s.routes(
		handler.NewEmployeeHandler(st.employees, cfg.JWTSecret, cfg.JWTTTL),
		handler.NewTaskHandler(svc, logger),
		handler.NewInboxHandler(st.inbox),
	)
	return s, nil
}

func (s *Server) openStores() (stores, error) {
	cfg := s.Config
	if cfg.StoreDriver == config.StoreDriverMemory {
		s.logger.Warn("⚠️  Using the in-memory store, data is lost on restart")
		return stores{
			tasks:     memory.NewTaskStore(),
			employees: memory.NewDirectory(),
			inbox:     memory.NewInbox(),
		}, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return stores{}, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	s.DB = db
	s.logger.Info("✅ Connected to database")

	if cfg.MigrateOnStart {
		sqlDB, err := db.DB()
		if err != nil {
			return stores{}, fmt.Errorf("could not get sql connection: %w", err)
		}
		m, err := migrations.NewMigrator(sqlDB, s.logger)
		if err != nil {
			return stores{}, err
		}
		if err := m.Up(); err != nil {
			return stores{}, fmt.Errorf("❌ migrations failed: %w", err)
		}
	}

	return stores{
		tasks:     repository.NewTaskRepository(db),
		employees: repository.NewEmployeeRepository(db),
		inbox:     repository.NewNotificationRepository(db),
	}, nil
}

func (s *Server) routes(employees *handler.EmployeeHandler, tasks *handler.TaskHandler, inbox *handler.InboxHandler) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public routes
	r.POST("/register", employees.Register)
	r.POST("/login", employees.Login)

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(s.Config.JWTSecret))
	{
		// Task routes
		authorized.POST("/tasks", tasks.Create)
		authorized.GET("/tasks/:id", tasks.GetByID)
		authorized.PUT("/tasks/:id/status", tasks.UpdateStatus)
		authorized.POST("/tasks/:id/comments", tasks.AddComment)
		authorized.POST("/tasks/:id/recurrences", tasks.CreateRecurring)

		// Workflow routes
		authorized.POST("/tasks/:id/workflow", tasks.InitializeWorkflow)
		authorized.POST("/tasks/:id/workflow/advance", tasks.AdvanceWorkflow)
		authorized.POST("/tasks/:id/workflow/steps/:step/action", tasks.StepAction)
		authorized.POST("/tasks/:id/workflow/steps/:step/documents", tasks.AddStepDocuments)

		// Tracking and billing routes
		authorized.PUT("/tasks/:id/progress", tasks.UpdateProgress)
		authorized.POST("/tasks/:id/milestones/:index/complete", tasks.CompleteMilestone)
		authorized.GET("/tasks/:id/estimate", tasks.Estimate)
		authorized.POST("/tasks/:id/time-entries", tasks.AddTimeEntry)
		authorized.PUT("/tasks/:id/billing", tasks.UpdateBilling)
		authorized.GET("/tasks/:id/billing", tasks.BillingSummary)

		// Inbox routes
		authorized.GET("/notifications", inbox.List)
		authorized.POST("/notifications/:id/read", inbox.MarkRead)
	}
	return r
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				s.logger.Info("🛑 Shutting down server...")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				s.logger.Infof("🚀 Server running on port %s", s.Config.ServerPort)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("❌ failed to listen: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					s.logger.Errorf("❌ Server forced to shutdown: %s", err)
				}
			},
		)
	}

	err := g.Run()
	s.close()
	if err != nil {
		return err
	}
	s.logger.Info("✅ Server exited properly")
	return nil
}

func (s *Server) close() {
	if s.DB == nil {
		return
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		s.logger.WithError(err).Warn("could not close database")
	}
}
