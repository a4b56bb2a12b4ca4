package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/authware/rbac-starter/internal/config"
	"github.com/authware/rbac-starter/internal/database"
	"github.com/authware/rbac-starter/internal/handler"
	"github.com/authware/rbac-starter/internal/queue"
	"github.com/authware/rbac-starter/internal/repository"
	"github.com/authware/rbac-starter/internal/router"
	"github.com/authware/rbac-starter/internal/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when unavailable; limiter fails open

	// Mail worker runs for the life of the process and reconnects on
	// broker failures by itself.
	go func() {
		if err := queue.StartMailConsumer(); err != nil {
			log.Printf("mail-consumer stopped: %v", err)
		}
	}()

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	perms := repository.NewPermissionRepo(db)
	resets := repository.NewResetTokenRepo(db)

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTLMin, cfg.ResetTTLMin)

	if err := ensureAdmin(cfg, users, roles); err != nil {
		log.Fatalf("admin bootstrap: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.Register(e, router.Deps{
		Issuer: issuer,
		Users:  users,
		RLCfg:  rlCfg,
		Redis:  rdb,
		Auth:   handler.NewAuthHandler(cfg, issuer, users, roles, resets),
		User:   handler.NewUserHandler(users),
		RBAC:   handler.NewRBACHandler(roles, perms),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// ensureAdmin creates the bootstrap admin account when
// CREATE_DEFAULT_ADMIN is set and no user with the configured email
// exists yet. The seed migration guarantees the admin role is present.
func ensureAdmin(cfg config.Config, users *repository.UserRepo, roles *repository.RoleRepo) error {
	if !cfg.CreateAdmin {
		return nil
	}
	if cfg.AdminEmail == "" || cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	role, err := roles.GetByName(ctx, "admin")
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}

	id, err := users.Create(ctx, cfg.AdminEmail, cfg.AdminUsername, hash, role.ID)
	if err != nil {
		// Lost a race against another instance booting; the account exists.
		if errors.Is(err, repository.ErrEmailExists) || errors.Is(err, repository.ErrUsernameExists) {
			return nil
		}
		return err
	}
	log.Printf("created default admin account id=%d email=%s", id, cfg.AdminEmail)
	return nil
}
