package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/dispatch"
	"rollcall/internal/faceclient"
	"rollcall/internal/facestore"
	"rollcall/internal/gallery"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/ledger"
	"rollcall/internal/notify"
	"rollcall/internal/queue"
	"rollcall/internal/rfid"
	"rollcall/internal/roster"
	"rollcall/internal/store"
	"rollcall/internal/verify"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	cal, demoUIDs, err := config.Schedule(cfg.ScheduleFile)
	if err != nil {
		log.Fatalf("schedule invalid: %v", err)
	}

	var db *store.DB
	if cfg.StoreBackend == "postgres" {
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:mail")
	}

	var registry roster.Store
	var galleryStore gallery.Store
	var sheetStore ledger.Store
	if cfg.StoreBackend == "postgres" {
		registry = roster.NewPostgres(db.Client)
		galleryStore = gallery.NewPostgres(db.Client)
		sheetStore = ledger.NewPostgres(db.Client)
	} else {
		registry = roster.NewMemory()
		galleryStore = gallery.NewMemory()
		sheetStore = ledger.NewMemory()
	}

	var crops gallery.CropStore
	if cfg.CropBackend == "cloudinary" {
		crops = facestore.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary crop store configured:", cfg.CloudinaryCloudName)
	} else {
		crops, err = facestore.NewDisk(cfg.FacesDir)
		if err != nil {
			log.Fatalf("faces dir: %v", err)
		}
	}

	embedder := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	if err := embedder.Health(context.Background()); err != nil {
		log.Printf("warning: face service not reachable: %v", err)
	}

	faces := gallery.NewService(galleryStore, embedder, crops, gallery.DefaultThreshold)
	sheets := ledger.NewService(sheetStore, registry)
	pipeline := verify.New(cal, registry, faces, sheets, notify.Async{Q: q})

	var reader rfid.Reader
	if cfg.DemoMode {
		reader = rfid.NewDemo(demoUIDs)
	} else {
		serialReader := rfid.NewSerial(cfg.SerialPort, cfg.BaudRate)
		defer serialReader.Close()
		reader = serialReader
	}

	// The dispatcher normally lives in the worker; with a memory queue there
	// is no worker, so run it here too.
	if cfg.QueueBackend == "memory" {
		var mailer notify.Mailer = notify.LogMailer{}
		if cfg.MailBackend == "smtp" {
			mailer = notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
		}
		d := dispatch.New(cal, sheets, dispatch.NewMemoryFlags(), mailer, cfg.ReportsDir, cfg.DispatchInterval)
		go d.Run(context.Background())
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := cfg.QueueBackend == "memory" || redisClient.Healthy(c.Request.Context())
		dbHealthy := cfg.StoreBackend != "postgres" || db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.GET("/v1/session", func(c *gin.Context) {
		sess, ok := pipeline.ActiveSession()
		if !ok {
			c.JSON(http.StatusOK, gin.H{"active": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"active":       true,
			"subject":      sess.Subject.Key,
			"subject_name": sess.Subject.Name,
			"start_time":   sess.Subject.Start.String(),
			"window_start": sess.WindowStart.Format("15:04:05"),
			"window_end":   sess.WindowEnd.Format("15:04:05"),
		})
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.DeviceID == "" {
			req.DeviceID = uuid.NewString()
		}

		tokens, err := auth.Issue(req.DeviceID, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"device_id":     req.DeviceID,
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.KioskAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/scan", func(c *gin.Context) {
		sess, ok := pipeline.ActiveSession()
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"rfid": "", "message": "Attendance closed"})
			return
		}
		uid, err := reader.Read(c.Request.Context(), sess.Subject.Key)
		if errors.Is(err, rfid.ErrNoTag) {
			c.JSON(http.StatusOK, gin.H{"rfid": "", "message": "No tag found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"rfid": "", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rfid": uid, "message": scanMessage(cfg.DemoMode, uid)})
	})

	authGroup.POST("/faces", func(c *gin.Context) {
		var req struct {
			TokenID string `json:"token_id" binding:"required"`
			Image   string `json:"image" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "RFID missing"})
			return
		}
		image, ok := decodeImage(req.Image)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Image data missing"})
			return
		}

		err := pipeline.CaptureFace(c.Request.Context(), req.TokenID, image)
		switch {
		case errors.Is(err, verify.ErrSessionClosed):
			c.JSON(http.StatusForbidden, gin.H{"message": "Registration closed"})
		case errors.Is(err, verify.ErrTokenTaken), errors.Is(err, gallery.ErrAlreadyRegistered):
			c.JSON(http.StatusBadRequest, gin.H{"message": "RFID already registered"})
		case errors.Is(err, gallery.ErrNoFace):
			c.JSON(http.StatusOK, gin.H{"message": "No face detected"})
		case errors.Is(err, gallery.ErrDuplicateFace):
			c.JSON(http.StatusOK, gin.H{"message": "Face already registered"})
		case err != nil:
			log.Printf("face capture failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"message": "Face processing failed"})
		default:
			c.JSON(http.StatusOK, gin.H{"message": "Face captured"})
		}
	})

	authGroup.POST("/students", func(c *gin.Context) {
		var req struct {
			TokenID string `json:"token_id" binding:"required"`
			Roll    string `json:"roll" binding:"required"`
			Name    string `json:"name" binding:"required"`
			Email   string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "All fields required"})
			return
		}

		st, err := pipeline.RegisterStudent(c.Request.Context(), req.TokenID, req.Roll, req.Name, req.Email)
		switch {
		case errors.Is(err, verify.ErrSessionClosed):
			c.JSON(http.StatusForbidden, gin.H{"message": "Registration closed"})
		case errors.Is(err, verify.ErrTokenTaken):
			c.JSON(http.StatusBadRequest, gin.H{"message": "RFID already registered"})
		case err != nil:
			log.Printf("registration failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		default:
			c.JSON(http.StatusOK, gin.H{"message": st.Name + " registered"})
		}
	})

	authGroup.POST("/verify", func(c *gin.Context) {
		var req struct {
			TokenID string `json:"token_id" binding:"required"`
			Image   string `json:"image" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "RFID missing"})
			return
		}
		image, ok := decodeImage(req.Image)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Image data missing"})
			return
		}

		res, err := pipeline.Verify(c.Request.Context(), req.TokenID, image)
		if err != nil {
			log.Printf("verification failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Verification failed"})
			return
		}
		status := http.StatusOK
		if res.Status == verify.StatusSessionClosed {
			status = http.StatusForbidden
		}
		c.JSON(status, res)
	})

	authGroup.GET("/students", func(c *gin.Context) {
		subjectKey := c.Query("subject")
		if _, ok := cal.Subject(subjectKey); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown subject"})
			return
		}
		students, err := registry.List(c.Request.Context(), subjectKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		subjectKey := c.Query("subject")
		if _, ok := cal.Subject(subjectKey); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown subject"})
			return
		}
		day := c.Query("day")
		if day == "" {
			day = ledger.DayKey(time.Now())
		}
		entries, err := sheets.Day(c.Request.Context(), subjectKey, day)
		if errors.Is(err, ledger.ErrNoSheet) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no day sheet"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": subjectKey, "day": day, "entries": entries})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// scanMessage labels demo reads so an operator can tell a canned uid from a
// real hardware scan.
func scanMessage(demo bool, uid string) string {
	if demo {
		return "RFID (demo): " + uid
	}
	return "RFID: " + uid
}

// decodeImage accepts the browser's data URL form ("data:image/...;base64,")
// and returns the raw image bytes.
func decodeImage(data string) ([]byte, bool) {
	if !strings.HasPrefix(data, "data:image") {
		return nil, false
	}
	_, b64, ok := strings.Cut(data, ",")
	if !ok {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
