package handlers

import (
	"net/http"
	"path"
	"strings"
	"time"

	"metronix/internal/config"
	"metronix/internal/middleware"
	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services"
	"metronix/internal/storage"
	"metronix/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceName identifies the server in traces and /v1/version
const ServiceName = "metronix-server"

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	complaintService services.ComplaintServiceInterface,
	reportingService services.ReportingServiceInterface,
	departmentService services.DepartmentServiceInterface,
	tokenService services.TokenServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	if cfg.IsTest {
		gin.SetMode(gin.TestMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(requestLogger(logger))

	// Health check is registered before tracing and sessions
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	router.Use(observability.GinMiddlewareWithErrorHandling(ServiceName)...)

	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = len(cfg.Server.CORSOrigins) > 0
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug || cfg.IsTest {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug || cfg.IsTest
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	authHandler := NewAuthHandler(userService, tokenService, cfg, logger)
	complaintHandler := NewComplaintHandler(complaintService, cfg, logger)
	solverHandler := NewSolverHandler(complaintService, logger)
	adminHandler := NewAdminHandler(userService, complaintService, reportingService, departmentService, cfg, logger)

	var tokens middleware.TokenParser
	if tokenService != nil {
		tokens = tokenService
	}
	requireAuth := middleware.RequireAuth(tokens)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Info(ServiceName))
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.ValidateJSONBody("LoginRequest", logger), authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/status", authHandler.Status)
			auth.POST("/signup", middleware.ValidateJSONBody("SignupRequest", logger), authHandler.Signup)
			auth.POST("/token", middleware.ValidateJSONBody("LoginRequest", logger), authHandler.Token)
		}

		v1.GET("/complaints/:id", requireAuth, complaintHandler.GetComplaint)
		v1.POST("/complaints/:id/notes", requireAuth,
			middleware.RequireRole(models.RoleSolver, models.RoleAdmin),
			middleware.ValidateJSONBody("NoteRequest", logger),
			complaintHandler.AddNote)

		citizen := v1.Group("/citizen")
		citizen.Use(requireAuth, middleware.RequireRole(models.RoleCitizen))
		{
			citizen.POST("/complaints", complaintHandler.SubmitComplaint)
			citizen.GET("/complaints", complaintHandler.ListMyComplaints)
		}

		solver := v1.Group("/solver")
		solver.Use(requireAuth, middleware.RequireRole(models.RoleSolver))
		{
			solver.GET("/queues", solverHandler.GetQueues)
			solver.POST("/complaints/:id/actions", middleware.ValidateJSONBody("SolverActionRequest", logger), solverHandler.PerformAction)
		}

		admin := v1.Group("/admin")
		admin.Use(requireAuth, middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/complaints", adminHandler.ListComplaints)
			admin.PATCH("/complaints/:id", middleware.ValidateJSONBody("AdminOverrideRequest", logger), adminHandler.OverrideComplaint)
			admin.GET("/dashboard", adminHandler.GetDashboard)
			admin.GET("/analytics", adminHandler.GetAnalytics)
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", middleware.ValidateJSONBody("CreateUserRequest", logger), adminHandler.CreateUser)
			admin.GET("/departments", adminHandler.ListDepartments)
			admin.POST("/departments", middleware.ValidateJSONBody("CreateDepartmentRequest", logger), adminHandler.CreateDepartment)
			admin.GET("/reference", adminHandler.GetReferenceData)
			admin.GET("/daily-summary", adminHandler.GetDailySummary)
			admin.POST("/daily-summary/send", middleware.ValidateJSONBody("DailySummarySendRequest", logger), adminHandler.SendDailySummary)
		}
	}

	registerUploads(router, cfg.Uploads)

	router.NoRoute(func(c *gin.Context) {
		middleware.StandardizeHTTPError(c, http.StatusNotFound, "Not found", "")
	})

	routeListing := NewRouteListingHandler(ServiceName)
	routeListing.CollectRoutes(router)
	router.GET("/", routeListing.GetRouteListingJSON)

	return router
}

// uploadsCSP stops anything served from the upload dir from running script
const uploadsCSP = "default-src 'none'; img-src 'self'; sandbox"

// registerUploads serves stored image attachments read-only. Directory listings
// and files without an image extension are refused.
func registerUploads(router *gin.Engine, cfg config.UploadsConfig) {
	if cfg.Dir == "" || cfg.URLPrefix == "" {
		return
	}
	prefix := "/" + strings.Trim(cfg.URLPrefix, "/")
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Dir)))
	handler := otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || !storage.IsImageExt(storage.NormalizeExt(path.Ext(r.URL.Path))) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", uploadsCSP)
		files.ServeHTTP(w, r)
	}), "uploads")

	router.GET(prefix+"/*filepath", gin.WrapH(handler))
	router.HEAD(prefix+"/*filepath", gin.WrapH(handler))
}

// requestLogger logs every request at a level chosen by the response status
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
