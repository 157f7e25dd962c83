package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinzhu/copier"

	"github.com/chatmesh/chatauth/pkg/loginflow"
	"github.com/chatmesh/chatauth/pkg/notification"
	"github.com/chatmesh/chatauth/pkg/sessions"
	"github.com/chatmesh/chatauth/pkg/token"
	"github.com/chatmesh/chatauth/pkg/twofactor"
	twofactorapi "github.com/chatmesh/chatauth/pkg/twofactor/api"
	"github.com/chatmesh/chatauth/pkg/user"
	"github.com/chatmesh/chatauth/pkg/userevents"
)

type AppConfig struct {
	Host string `env:"CHATAUTH_HOST" env-default:"localhost"`
	Port uint16 `env:"CHATAUTH_PORT" env-default:"4000"`
}

type DbConfig struct {
	Host     string `env:"CHATAUTH_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"CHATAUTH_PG_PORT" env-default:"5432"`
	Database string `env:"CHATAUTH_PG_DATABASE" env-default:"chatauth_db"`
	User     string `env:"CHATAUTH_PG_USER" env-default:"chatauth"`
	Password string `env:"CHATAUTH_PG_PASSWORD" env-default:"pwd"`
}

func (d DbConfig) toURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Database)
}

type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

type TwoFactorConfig struct {
	Persistence string `env:"TWOFACTOR_PERSISTENCE" env-default:"memory"`
	DataDir     string `env:"TWOFACTOR_DATA_DIR" env-default:"./data/twofactor"`
	Issuer      string `env:"TWOFACTOR_ISSUER" env-default:"chatmesh"`
}

type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@chatmesh.example"`
}

type Config struct {
	AppConfig       AppConfig
	DbConfig        DbConfig
	JwtConfig       JwtConfig
	TwoFactorConfig TwoFactorConfig
	EmailConfig     EmailConfig
}

func main() {
	config := Config{}
	cleanenv.ReadEnv(&config)

	repoConfig := twofactor.RepositoryConfig{DataDir: config.TwoFactorConfig.DataDir}
	if config.TwoFactorConfig.Persistence == "postgres" {
		pool, err := pgxpool.New(context.Background(), config.DbConfig.toURL())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", config.DbConfig.Database, "host", config.DbConfig.Host, "err", err)
			os.Exit(-1)
		}
		repoConfig.Pool = pool
	}

	repo, err := twofactor.NewSecretRepository(config.TwoFactorConfig.Persistence, repoConfig)
	if err != nil {
		slog.Error("Failed creating secret repository", "persistence", config.TwoFactorConfig.Persistence, "err", err)
		os.Exit(-1)
	}

	sessionRepo := sessions.NewInMemRepository()

	dispatcher := userevents.NewDispatcher()
	dispatcher.Subscribe(func(userID uuid.UUID, diff userevents.Diff) {
		slog.Info("User changed", "userID", userID, "diff", diff)
	})

	notificationManager := notification.NewManager()
	if config.EmailConfig.Enabled {
		var smtpConfig notification.SMTPConfig
		copier.Copy(&smtpConfig, &config.EmailConfig)
		emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
		if err != nil {
			slog.Error("Failed creating email notifier", "host", config.EmailConfig.Host, "err", err)
			os.Exit(-1)
		}
		notificationManager.RegisterNotifier(notification.EmailChannel, emailNotifier)
	}

	userService := user.NewService(user.NewInMemRepository())

	twoFactorService := twofactor.NewService(
		repo,
		twofactor.WithSessions(sessionRepo),
		twofactor.WithUserEvents(dispatcher),
		twofactor.WithNotifications(notificationManager, userService.GetEmail),
		twofactor.WithIssuer(config.TwoFactorConfig.Issuer),
	)

	flowService := loginflow.NewService(&loginflow.ServiceDependencies{
		TwoFactorService: twoFactorService,
		Recorder:         userService,
		Events:           dispatcher,
	})

	tokenService := token.NewService(token.NewJwtConfig(config.JwtConfig.JwtSecret))

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtConfig.JwtSecret), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))

		r.Mount("/2fa", twofactorapi.Routes(twofactorapi.NewHandle(twoFactorService)))

		r.Post("/login/verify", func(w http.ResponseWriter, r *http.Request) {
			var request loginflow.Request
			if err := render.DecodeJSON(r.Body, &request); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "unable to parse body"})
				return
			}
			result := flowService.ProcessLogin(r.Context(), request)
			if !result.Success {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, result)
				return
			}

			sessionToken, err := tokenService.CreateToken(result.UserID.String())
			if err != nil {
				slog.Error("Failed to create session token", "userID", result.UserID, "err", err)
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "failed to create session token"})
				return
			}
			err = sessionRepo.Add(r.Context(), result.UserID, sessions.LoginToken{
				Hash:      sessionToken.Hash,
				Type:      sessions.TokenTypeResume,
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				slog.Error("Failed to record session token", "userID", result.UserID, "err", err)
			}

			render.JSON(w, r, map[string]interface{}{
				"success": true,
				"user_id": result.UserID,
				"token":   sessionToken.Value,
				"expiry":  sessionToken.Expiry,
			})
		})
	})

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Host, config.AppConfig.Port)
	slog.Info("Starting chatauth", "addr", addr, "persistence", config.TwoFactorConfig.Persistence)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}
