package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"anonqa/pkg/api"
	"anonqa/pkg/models"
	"anonqa/pkg/notify"
	"anonqa/pkg/store"

	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)
	log.Println("Starting application...")

	// Load optional .env before reading configuration
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Initialize the database
	dbPath := envOr("DB_PATH", "./anonqa.db")
	db, err := models.InitDB(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Create tables
	if err := db.CreateTables(); err != nil {
		log.Fatal(err)
	}

	// Initialize session store with a strong key
	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		sessionKey = "your-secret-key-replace-in-production"
		log.Println("Warning: Using default session key. Set SESSION_KEY environment variable in production.")
	}

	sessionStore := sessions.NewCookieStore([]byte(sessionKey))

	// Configure session store; the cookie only carries the anonymous voter id
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 365, // votes are remembered for a year
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-replace-in-production"
		log.Println("Warning: Using default JWT secret. Set JWT_SECRET environment variable in production.")
	}

	auth := &api.Authenticator{
		Secret:            []byte(jwtSecret),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}
	if !auth.Enabled() {
		log.Println("Admin access is disabled. Set ADMIN_EMAIL and ADMIN_PASSWORD_HASH to enable moderation endpoints.")
	}

	// Content policy: comma-separated banned words, empty by default
	policy := store.NewWordListPolicy(splitList(os.Getenv("BANNED_WORDS"))...)

	// Report notifications go to email when SMTP is configured, the log otherwise
	var notifier notify.Notifier
	if host := os.Getenv("SMTP_HOST"); host != "" {
		notifier = &notify.SMTPNotifier{
			Host:     host,
			Port:     envOr("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_USER"),
			To:       envOr("REPORT_EMAIL", os.Getenv("SMTP_USER")),
		}
		log.Println("Report notifications will be emailed via SMTP")
	} else {
		notifier = notify.LogNotifier{}
		log.Println("SMTP not configured; report notifications go to the log")
	}

	questionStore := models.NewStore(db, models.WithContentPolicy(policy))
	handler := api.New(questionStore, sessionStore, auth, notifier)

	// Start the server
	addr := envOr("ADDR", ":8080")
	log.Printf("Starting server on %s", addr)
	if err := http.ListenAndServe(addr, handler.Router()); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
