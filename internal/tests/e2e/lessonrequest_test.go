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
	"github.com/picourse/apiserver/config"
	"github.com/picourse/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
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

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestLessonRequestLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	stamp := time.Now().UnixNano()
	password := "testpass123!"

	subjectID, err := ensureSubject("Mathematics")
	if err != nil {
		t.Fatalf("ensure subject: %v", err)
	}

	tutor, err := registerUser(t, baseURL, fmt.Sprintf("tutor_%d@example.com", stamp), password, "tutor")
	if err != nil {
		t.Fatalf("register tutor: %v", err)
	}
	student, err := registerUser(t, baseURL, fmt.Sprintf("student_%d@example.com", stamp), password, "student")
	if err != nil {
		t.Fatalf("register student: %v", err)
	}

	if err := assignSubjects(t, baseURL, tutor.Tokens.Access, []int{subjectID}); err != nil {
		t.Fatalf("assign subjects: %v", err)
	}

	created, err := createLessonRequest(t, baseURL, student.Tokens.Access, tutor.User.ID, subjectID)
	if err != nil {
		t.Fatalf("create lesson request: %v", err)
	}
	if created.Status != "pending" {
		t.Fatalf("expected pending status, got %q", created.Status)
	}
	if created.StudentID != student.User.ID {
		t.Fatalf("expected student %d on the request, got %d", student.User.ID, created.StudentID)
	}

	mine, err := listLessonRequests(t, baseURL, student.Tokens.Access, "")
	if err != nil {
		t.Fatalf("list student requests: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != created.ID {
		t.Fatalf("expected the created request in the student list, got %+v", mine)
	}

	// The student may not transition status.
	if status, _ := updateStatus(t, baseURL, student.Tokens.Access, created.ID, "accepted"); status != http.StatusForbidden {
		t.Fatalf("expected 403 for student status update, got %d", status)
	}

	status, updated := updateStatus(t, baseURL, tutor.Tokens.Access, created.ID, "accepted")
	if status != http.StatusOK {
		t.Fatalf("expected 200 for tutor accept, got %d", status)
	}
	if updated.Status != "accepted" {
		t.Fatalf("expected accepted status, got %q", updated.Status)
	}

	accepted, err := listLessonRequests(t, baseURL, tutor.Tokens.Access, "accepted")
	if err != nil {
		t.Fatalf("list accepted requests: %v", err)
	}
	if len(accepted) != 1 || accepted[0].ID != created.ID {
		t.Fatalf("expected the accepted request in the tutor list, got %+v", accepted)
	}
}

type lessonRequestResponse struct {
	ID        int64  `json:"id"`
	TutorID   int    `json:"tutor"`
	StudentID int    `json:"student"`
	Status    string `json:"status"`
}

type registerResponse struct {
	User struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
}

func registerUser(t *testing.T, baseURL, email, password, role string) (registerResponse, error) {
	t.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
		"role":     role,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return registerResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/register", bytes.NewReader(body))
	if err != nil {
		return registerResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return registerResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return registerResponse{}, fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return registerResponse{}, err
	}
	if parsed.Tokens.Access == "" {
		return registerResponse{}, fmt.Errorf("missing access token in register response")
	}
	return parsed, nil
}

func assignSubjects(t *testing.T, baseURL, token string, subjectIDs []int) error {
	t.Helper()

	payload := map[string]any{
		"profile": map[string]any{"subjects": subjectIDs},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPatch, baseURL+"/me", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("assign subjects status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func createLessonRequest(t *testing.T, baseURL, token string, tutorID, subjectID int) (lessonRequestResponse, error) {
	t.Helper()

	payload := map[string]any{
		"tutor":            tutorID,
		"subject":          subjectID,
		"start_time":       time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"duration_minutes": 60,
		"note":             "quadratic equations",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return lessonRequestResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/lesson-requests", bytes.NewReader(body))
	if err != nil {
		return lessonRequestResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return lessonRequestResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return lessonRequestResponse{}, fmt.Errorf("create status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed lessonRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return lessonRequestResponse{}, err
	}
	return parsed, nil
}

func listLessonRequests(t *testing.T, baseURL, token, status string) ([]lessonRequestResponse, error) {
	t.Helper()

	target := baseURL + "/lesson-requests"
	if status != "" {
		target += "?status=" + status
	}
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed []lessonRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func updateStatus(t *testing.T, baseURL, token string, id int64, status string) (int, lessonRequestResponse) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		t.Fatalf("marshal status update: %v", err)
	}

	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/lesson-requests/%d", baseURL, id), bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build status update: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("send status update: %v", err)
	}
	defer resp.Body.Close()

	var parsed lessonRequestResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			t.Fatalf("decode status update: %v", err)
		}
	}
	return resp.StatusCode, parsed
}

func ensureSubject(name string) (int, error) {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id int
	err = db.QueryRowContext(ctx,
		`INSERT INTO subjects (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`, name).Scan(&id)
	return id, err
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
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
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
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

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "picourse")
	_ = os.Setenv("DB_PASSWORD", "picourse")
	_ = os.Setenv("DB_NAME", "picourse_db")
	_ = os.Setenv("DB_USE_SSL", "false")
}

func startServer() (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
