//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactsbook/apiserver/config"
	"github.com/contactsbook/apiserver/internal/auth"
	"github.com/contactsbook/apiserver/internal/db"
	"github.com/contactsbook/apiserver/internal/logging"
	"github.com/contactsbook/apiserver/internal/server"
)

const (
	serverPort = 18080
	jwtSecret  = "e2e-secret"
)

var (
	baseURL string
	cfg     config.Config
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv(map[string]string{
		"ENV":              "local",
		"SERVER_PORT":      fmt.Sprint(serverPort),
		"PUBLIC_BASE_URL":  fmt.Sprintf("http://localhost:%d/", serverPort),
		"JWT_SECRET":       jwtSecret,
		"BCRYPT_COST":      "4",
		"MQ_BACKEND":       "memory",
		"STORAGE_BACKEND":  "minio",
		"MINIO_ACCESS_KEY": "minioadmin",
		"MINIO_SECRET_KEY": "minioadmin",
	})
	cfg, err = config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres", "redis", "minio"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := server.New(ctx, cfg, logging.New(cfg.Env, "warn"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	baseURL = fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func TestSessionLifecycle(t *testing.T) {
	email := fmt.Sprintf("alice+%d@example.com", time.Now().UnixNano())

	status, body := call(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "alice1",
		"email":    email,
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, _ = call(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "alice1",
		"email":    email,
		"password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, body = login(t, email, "secret1")
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Email not confirmed")

	codec, err := auth.NewCodec(jwtSecret, cfg.JWT.Algorithm)
	require.NoError(t, err)
	emailToken, err := codec.CreateEmailToken(email)
	require.NoError(t, err)

	status, body = call(t, http.MethodGet, "/auth/confirmed_email/"+emailToken, "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "Email confirmed")

	status, body = call(t, http.MethodGet, "/auth/confirmed_email/"+emailToken, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "already confirmed")

	status, body = login(t, email, "secret1")
	require.Equal(t, http.StatusOK, status, body)
	var pair tokenPair
	require.NoError(t, json.Unmarshal([]byte(body), &pair))
	assert.Equal(t, "bearer", pair.TokenType)

	status, body = call(t, http.MethodGet, "/users/me/", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, email)

	status, _ = call(t, http.MethodGet, "/auth/refresh_token", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = call(t, http.MethodGet, "/auth/refresh_token", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	var rotated tokenPair
	require.NoError(t, json.Unmarshal([]byte(body), &rotated))

	// Replaying the pre-rotation token revokes the session.
	status, _ = call(t, http.MethodGet, "/auth/refresh_token", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, http.MethodGet, "/auth/refresh_token", rotated.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = login(t, email, "secret1")
	require.Equal(t, http.StatusOK, status, body)
	require.NoError(t, json.Unmarshal([]byte(body), &pair))

	status, _ = call(t, http.MethodPost, "/auth/logout", pair.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, http.MethodGet, "/auth/refresh_token", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestContactsLifecycle(t *testing.T) {
	token := confirmedUser(t)

	today := time.Now()
	status, body := call(t, http.MethodPost, "/main/contact", token, map[string]string{
		"name":     "Bob",
		"surname":  "Builder",
		"email":    "bob@example.com",
		"phone":    "+380501234567",
		"birthday": time.Date(1990, today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		"notes":    "neighbour",
	})
	require.Equal(t, http.StatusCreated, status, body)
	var created struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))

	status, _ = call(t, http.MethodPost, "/main/contact", token, map[string]string{
		"name":     "Other",
		"surname":  "Person",
		"email":    "other@example.com",
		"phone":    "+380501234567",
		"birthday": "1985-01-01",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, body = call(t, http.MethodGet, "/main/contact/BUILD", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "bob@example.com")

	status, _ = call(t, http.MethodGet, "/main/contact/nobody", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, http.MethodGet, "/main/contacts/HB", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "bob@example.com")

	status, _ = call(t, http.MethodDelete, fmt.Sprintf("/main/contact/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, http.MethodDelete, fmt.Sprintf("/main/contact/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodGet, "/main/api/healthchecker", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func confirmedUser(t *testing.T) string {
	t.Helper()
	email := fmt.Sprintf("bob+%d@example.com", time.Now().UnixNano())

	status, body := call(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "bobby",
		"email":    email,
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, body)

	codec, err := auth.NewCodec(jwtSecret, cfg.JWT.Algorithm)
	require.NoError(t, err)
	emailToken, err := codec.CreateEmailToken(email)
	require.NoError(t, err)
	status, _ = call(t, http.MethodGet, "/auth/confirmed_email/"+emailToken, "", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = login(t, email, "secret1")
	require.Equal(t, http.StatusOK, status, body)
	var pair tokenPair
	require.NoError(t, json.Unmarshal([]byte(body), &pair))
	return pair.AccessToken
}

func login(t *testing.T, email, password string) (int, string) {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return send(t, req)
}

func call(t *testing.T, method, path, token string, payload any) (int, string) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, req)
}

func send(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func setEnv(values map[string]string) {
	for key, value := range values {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

func waitForPostgres(ctx context.Context) error {
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose", "-f", composeFile}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", wd)
		}
		dir = parent
	}
}
