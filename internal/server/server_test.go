package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/config"
	"taskflow/internal/handler"
	"taskflow/internal/model"
	"taskflow/internal/server"
)

const templates = `
templates:
  - name: single-review
    autoAdvance: true
    steps:
      - name: Review
        type: review
        assigneeId: 3
`

func newServer(t *testing.T) *server.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "workflows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(templates), 0o600))

	s, err := server.Init(&config.Config{
		ServerPort:            "0",
		JWTSecret:             "test-secret",
		JWTTTL:                time.Hour,
		StoreDriver:           config.StoreDriverMemory,
		WorkflowTemplatesFile: path,
		NotifyBreakerFailures: 3,
		NotifyBreakerTimeout:  time.Second,
	}, nil)
	require.NoError(t, err)
	return s
}

func call(t *testing.T, s *server.Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	if body != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	return resp
}

func register(t *testing.T, s *server.Server, name, email string) handler.AuthResponse {
	t.Helper()
	resp := call(t, s, "POST", "/register", "", handler.RegisterRequest{Name: name, Email: email, Password: "password123"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var auth handler.AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &auth))
	return auth
}

func decodeTask(t *testing.T, resp *httptest.ResponseRecorder) handler.TaskResponse {
	t.Helper()
	var task handler.TaskResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &task), resp.Body.String())
	return task
}

func TestServer_ApprovalFlow(t *testing.T) {
	s := newServer(t)

	assigner := register(t, s, "Olga Markova", "olga@example.com")
	assignee := register(t, s, "Pavel Orlov", "pavel@example.com")
	reviewer := register(t, s, "Irina Belova", "irina@example.com")
	require.Equal(t, int64(3), reviewer.User.ID)

	// Назначаем задачу
	resp := call(t, s, "POST", "/tasks", assigner.Token, map[string]any{
		"title":      "Quarterly report",
		"assigneeId": assignee.User.ID,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	task := decodeTask(t, resp)
	assert.Equal(t, model.StatusNew, task.Status)
	assert.Equal(t, "Pavel Orlov", task.AssigneeName)
	base := "/tasks/" + task.ID

	// Посторонний не видит задачу
	outsider := register(t, s, "Anton Volkov", "anton@example.com")
	resp = call(t, s, "GET", base, outsider.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = call(t, s, "PUT", base+"/status", assignee.Token, map[string]any{"status": "in-progress"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = call(t, s, "POST", base+"/workflow", assigner.Token, map[string]any{"template": "single-review"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	task = decodeTask(t, resp)
	assert.Equal(t, model.StatusPendingApproval, task.Status)
	require.NotNil(t, task.Workflow)
	assert.Equal(t, "Irina Belova", task.Workflow.Sequence[0].AssigneeName)

	// Только исполнитель шага может его одобрить
	resp = call(t, s, "POST", base+"/workflow/steps/1/action", assignee.Token, map[string]any{"action": "approve"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = call(t, s, "POST", base+"/workflow/steps/1/action", reviewer.Token, map[string]any{"action": "approve"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	task = decodeTask(t, resp)
	assert.Equal(t, model.StatusApproved, task.Status)

	// Повторное действие над шагом отклоняется
	resp = call(t, s, "POST", base+"/workflow/steps/1/action", reviewer.Token, map[string]any{"action": "approve"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = call(t, s, "GET", "/notifications", assignee.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var inbox []handler.NotificationResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &inbox))
	titles := make([]string, 0, len(inbox))
	for _, n := range inbox {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "New task assigned")
	assert.Contains(t, titles, "Task approved")

	resp = call(t, s, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `taskflow_status_transitions_total{from="pending-approval",to="approved"} 1`)
	assert.Contains(t, resp.Body.String(), `taskflow_notifications_total{result="sent"}`)
}

func TestServer_PublicRoutes(t *testing.T) {
	s := newServer(t)

	resp := call(t, s, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = call(t, s, "GET", "/tasks/00000000-0000-0000-0000-000000000000", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	register(t, s, "Olga Markova", "olga@example.com")
	resp = call(t, s, "POST", "/login", "", handler.LoginRequest{Email: "olga@example.com", Password: "password123"})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestInit_BadTemplates(t *testing.T) {
	_, err := server.Init(&config.Config{
		JWTSecret:             "test-secret",
		StoreDriver:           config.StoreDriverMemory,
		WorkflowTemplatesFile: filepath.Join(t.TempDir(), "missing.yaml"),
	}, nil)

	assert.Error(t, err)
}
