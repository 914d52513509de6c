// Command authkit-smoke runs the full token and lock lifecycle against a
// Redis instance and reports counters. It is an operational smoke check:
// point it at a deployment with REDIS_ADDR, or run it with no configuration
// to exercise an embedded miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/redis/go-redis/v9"

	authkit "github.com/taskify-stack/authkit"
	"github.com/taskify-stack/authkit/lock"
	"github.com/taskify-stack/authkit/token"
)

type smokeConfig struct {
	RedisAddr  string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:""`
	Secret     string        `yaml:"secret" env:"AUTHKIT_SECRET" env-default:"authkit-smoke-secret"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"AUTHKIT_ACCESS_TTL" env-default:"30m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"AUTHKIT_REFRESH_TTL" env-default:"168h"`
	Subjects   int           `yaml:"subjects" env:"AUTHKIT_SUBJECTS" env-default:"5"`
	LockTTL    time.Duration `yaml:"lock_ttl" env:"AUTHKIT_LOCK_TTL" env-default:"10s"`
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "optional YAML config path; environment variables are read either way")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfg smokeConfig
	var err error
	if configPath != "" {
		err = cleanenv.ReadConfig(configPath, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		logger.Error("config load failed", slog.Any("err", err))
		os.Exit(2)
	}
	if cfg.Subjects <= 0 {
		logger.Error("subjects must be > 0")
		os.Exit(2)
	}

	addr := cfg.RedisAddr
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Error("failed to start miniredis", slog.Any("err", err))
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		logger.Info("using embedded miniredis", slog.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() {
		_ = client.Close()
		if cleanup != nil {
			cleanup()
		}
	}()

	svcCfg := authkit.Config{
		Token: authkit.TokenConfig{
			Secret:     []byte(cfg.Secret),
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Metrics: authkit.MetricsConfig{Enabled: true},
		Audit:   authkit.AuditConfig{Enabled: true, BufferSize: 256, DropIfFull: true},
	}

	service, err := authkit.New().
		WithConfig(svcCfg).
		WithRedis(client).
		WithLogger(logger).
		WithAuditSink(authkit.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		logger.Error("service build failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer service.Close()

	ctx := context.Background()
	if err := run(ctx, service, lock.New(client), cfg, logger); err != nil {
		logger.Error("smoke run failed", slog.Any("err", err))
		os.Exit(1)
	}

	snapshot := service.MetricsSnapshot()
	for id, value := range snapshot.Counters {
		fmt.Printf("metric %s = %d\n", id, value)
	}
	logger.Info("smoke run passed")
}

func run(ctx context.Context, service *authkit.Service, mutex *lock.Mutex, cfg smokeConfig, logger *slog.Logger) error {
	for i := 0; i < cfg.Subjects; i++ {
		subject := fmt.Sprintf("smoke-user-%d", i)

		access, err := service.IssueAccessToken(subject, map[string]any{"role": "smoke"})
		if err != nil {
			return fmt.Errorf("issue access for %s: %w", subject, err)
		}
		if !service.Verify(ctx, access, token.TypeAccess) {
			return fmt.Errorf("fresh access token for %s did not verify", subject)
		}
		if service.Verify(ctx, access, token.TypeRefresh) {
			return fmt.Errorf("access token for %s verified as refresh", subject)
		}

		first, err := service.IssueRefreshToken(ctx, subject)
		if err != nil {
			return fmt.Errorf("issue first refresh for %s: %w", subject, err)
		}
		second, err := service.IssueRefreshToken(ctx, subject)
		if err != nil {
			return fmt.Errorf("issue second refresh for %s: %w", subject, err)
		}

		// the first refresh token was superseded by the second
		if _, err := service.Refresh(ctx, first); err == nil {
			return fmt.Errorf("superseded refresh token for %s was accepted", subject)
		}
		renewed, err := service.Refresh(ctx, second)
		if err != nil {
			return fmt.Errorf("refresh with registered token for %s: %w", subject, err)
		}
		if !service.Verify(ctx, renewed, token.TypeAccess) {
			return fmt.Errorf("renewed access token for %s did not verify", subject)
		}

		if err := service.Revoke(ctx, access); err != nil {
			return fmt.Errorf("revoke access for %s: %w", subject, err)
		}
		if service.Verify(ctx, access, token.TypeAccess) {
			return fmt.Errorf("revoked access token for %s still verifies", subject)
		}

		if err := service.RevokeAllForSubject(ctx, subject); err != nil {
			return fmt.Errorf("revoke subject %s: %w", subject, err)
		}
		if _, err := service.Refresh(ctx, second); err == nil {
			return fmt.Errorf("refresh for %s succeeded after subject revocation", subject)
		}
	}

	identifier, err := mutex.Acquire(ctx, "smoke", cfg.LockTTL, 3, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if _, err := mutex.Acquire(ctx, "smoke", cfg.LockTTL, 2, 10*time.Millisecond); err == nil {
		return fmt.Errorf("held lock was acquired twice")
	}
	if err := mutex.Release(ctx, "smoke", "not-the-owner"); err == nil {
		return fmt.Errorf("release with wrong identifier succeeded")
	}
	if err := mutex.Release(ctx, "smoke", identifier); err != nil {
		return fmt.Errorf("lock release: %w", err)
	}

	stats := mutex.Snapshot()
	logger.Info("lock stats",
		slog.Uint64("acquired", stats.Acquired),
		slog.Uint64("contended", stats.Contended),
		slog.Uint64("not_owned", stats.NotOwned))

	return nil
}
