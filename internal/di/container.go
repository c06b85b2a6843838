// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"io"
	"sync"

	"metronix/internal/cache"
	"metronix/internal/config"
	"metronix/internal/database"
	"metronix/internal/observability"
	"metronix/internal/services"
	"metronix/internal/storage"
	contextutils "metronix/internal/utils"

	"gorm.io/gorm"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetComplaintService() (services.ComplaintServiceInterface, error)
	GetReportingService() (services.ReportingServiceInterface, error)
	GetDepartmentService() (services.DepartmentServiceInterface, error)
	GetNotificationService() (services.NotificationServiceInterface, error)
	GetTokenService() (services.TokenServiceInterface, error)
	GetEmailService() (services.EmailServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureAdminUser(ctx context.Context) error
	SeedDepartments(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	gormDB        *gorm.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize opens the database, runs migrations and wires every service
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.gormDB, err = database.OpenGorm(db)
	if err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to open gorm session")
	}

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetComplaintService returns the complaint lifecycle service
func (sc *ServiceContainer) GetComplaintService() (services.ComplaintServiceInterface, error) {
	return GetServiceAs[services.ComplaintServiceInterface](sc, "complaint")
}

// GetReportingService returns the reporting service
func (sc *ServiceContainer) GetReportingService() (services.ReportingServiceInterface, error) {
	return GetServiceAs[services.ReportingServiceInterface](sc, "reporting")
}

// GetDepartmentService returns the department service
func (sc *ServiceContainer) GetDepartmentService() (services.DepartmentServiceInterface, error) {
	return GetServiceAs[services.DepartmentServiceInterface](sc, "department")
}

// GetNotificationService returns the notification service
func (sc *ServiceContainer) GetNotificationService() (services.NotificationServiceInterface, error) {
	return GetServiceAs[services.NotificationServiceInterface](sc, "notification")
}

// GetTokenService returns the bearer token service
func (sc *ServiceContainer) GetTokenService() (services.TokenServiceInterface, error) {
	return GetServiceAs[services.TokenServiceInterface](sc, "token")
}

// GetEmailService returns the email service
func (sc *ServiceContainer) GetEmailService() (services.EmailServiceInterface, error) {
	return GetServiceAs[services.EmailServiceInterface](sc, "email")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs the shutdown funcs in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err, nil)
			errs = append(errs, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	store, err := storage.NewLocalStore(sc.cfg.Uploads)
	if err != nil {
		return err
	}

	reportCache := cache.New(ctx, sc.cfg.Redis, sc.logger)
	if closer, ok := reportCache.(io.Closer); ok {
		sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error { return closer.Close() })
	}

	metrics, err := observability.NewLifecycleMetrics(nil)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to register lifecycle metrics")
	}

	tokenService, err := services.NewTokenService(sc.cfg)
	if err != nil {
		return err
	}
	sc.services["token"] = tokenService

	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	emailService := services.CreateEmailService(sc.cfg, sc.logger)
	sc.services["email"] = emailService

	notificationService := services.NewNotificationService(sc.db, emailService, sc.cfg, sc.logger, metrics)
	sc.services["notification"] = notificationService

	sc.services["department"] = services.NewDepartmentService(sc.gormDB, sc.logger)

	sc.services["complaint"] = services.NewComplaintService(
		sc.db, sc.cfg, userService, notificationService, store, reportCache, metrics, sc.logger)

	sc.services["reporting"] = services.NewReportingService(
		sc.db, sc.cfg, userService, notificationService, reportCache, sc.logger)

	return nil
}

// EnsureAdminUser creates the configured admin user if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	if sc.cfg.Server.AdminEmail == "" {
		sc.logger.Warn(ctx, "No admin email configured, skipping admin bootstrap")
		return nil
	}

	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureAdminUserExists(ctx, sc.cfg.Server.AdminName, sc.cfg.Server.AdminEmail, sc.cfg.Server.AdminPassword)
}

// SeedDepartments creates the default departments when enabled and none exist
func (sc *ServiceContainer) SeedDepartments(ctx context.Context) error {
	if !sc.cfg.Server.SeedDepartments {
		return nil
	}

	departmentService, err := sc.GetDepartmentService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get department service")
	}

	created, err := departmentService.SeedDefaultDepartments(ctx)
	if err != nil {
		return err
	}
	if created > 0 {
		sc.logger.Info(ctx, "Seeded default departments", map[string]interface{}{"count": created})
	}
	return nil
}
