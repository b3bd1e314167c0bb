package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/image-analysis/internal/auth"
	"github.com/example/image-analysis/internal/repository"
	"github.com/example/image-analysis/internal/storage"
	"github.com/example/image-analysis/internal/usecase"
)

const (
	testJWTSecret = "test-secret"
	testMaxUpload = 1 << 20
)

type fakeGateway struct {
	existsResults []bool
	getData       string
}

func (f *fakeGateway) Put(ctx context.Context, loc storage.Location, data []byte, contentType string) error {
	return nil
}

func (f *fakeGateway) Get(ctx context.Context, loc storage.Location) ([]byte, error) {
	return []byte(f.getData), nil
}

func (f *fakeGateway) Exists(ctx context.Context, loc storage.Location) (bool, error) {
	if len(f.existsResults) == 0 {
		return false, nil
	}
	found := f.existsResults[0]
	f.existsResults = f.existsResults[1:]
	return found, nil
}

func (f *fakeGateway) Close() error { return nil }

type fakeRepository struct {
	findLog *repository.AnalysisLog
}

func (f *fakeRepository) SaveLog(ctx context.Context, log *repository.AnalysisLog) error { return nil }

func (f *fakeRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.AnalysisLog, error) {
	if f.findLog == nil {
		return nil, errors.New("not found")
	}
	return f.findLog, nil
}

func (f *fakeRepository) AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error) {
	return &repository.MetricsAggregation{TotalCount: 2, SuccessCount: 1}, nil
}

type fakeCache struct{}

func (fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (fakeCache) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("cache miss")
}

func newTestRouter(t *testing.T, gw *fakeGateway, repo *fakeRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.MaxMultipartMemory = testMaxUpload

	uc := usecase.NewAnalysisUseCase(gw, repo, fakeCache{}, zap.NewNop(), usecase.Config{
		DefaultBucket: "analysis-bucket",
		MaxAttempts:   3,
		PollInterval:  time.Millisecond,
	})
	RegisterRoutes(router, uc, auth.JWTMiddleware(testJWTSecret, ""), testMaxUpload)
	return router
}

func TestAnalyzeRequiresAuthentication(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{}, &fakeRepository{})

	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestAnalyzeRejectsMissingImage(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{}, &fakeRepository{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("note", "no image here")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestAnalyzeRejectsLargeUpload(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{}, &fakeRepository{})

	body, contentType := buildMultipartBody(t, "big.png", "image/png", bytes.Repeat([]byte("a"), testMaxUpload+1))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestAnalyzeRejectsUnsupportedContentType(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{}, &fakeRepository{})

	body, contentType := buildMultipartBody(t, "anim.gif", "image/gif", []byte("gif bytes"))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestAnalyzeReturnsResultWhenWorkerDelivers(t *testing.T) {
	gw := &fakeGateway{
		existsResults: []bool{false, true},
		getData:       `{"FaceDetails":[]}`,
	}
	router := newTestRouter(t, gw, &fakeRepository{})

	body, contentType := buildMultipartBody(t, "face.png", "image/png", []byte("png bytes"))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}

	var payload struct {
		RequestID string         `json:"request_id"`
		Outcome   string         `json:"outcome"`
		Result    map[string]any `json:"result"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.RequestID == "" {
		t.Fatal("expected a request id")
	}
	if _, ok := payload.Result["FaceDetails"]; !ok {
		t.Fatalf("expected FaceDetails in result, got %v", payload.Result)
	}
}

func TestAnalyzeReturnsTimeoutWhenWorkerIsSilent(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{}, &fakeRepository{})

	body, contentType := buildMultipartBody(t, "slow.png", "image/png", []byte("png bytes"))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected status %d, got %d", http.StatusGatewayTimeout, resp.Code)
	}
}

func TestResultReturnsPersistedRecord(t *testing.T) {
	repo := &fakeRepository{findLog: &repository.AnalysisLog{
		RequestID: "req-1",
		UserID:    "user-123",
		Outcome:   "success",
		Success:   true,
		Result:    `{"FaceDetails":[]}`,
	}}
	router := newTestRouter(t, &fakeGateway{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/result/req-1", nil)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}

	var payload struct {
		RequestID string         `json:"request_id"`
		Result    map[string]any `json:"result"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.RequestID != "req-1" {
		t.Fatalf("expected request id req-1, got %s", payload.RequestID)
	}
	if _, ok := payload.Result["FaceDetails"]; !ok {
		t.Fatalf("expected decoded result document, got %v", payload.Result)
	}
}

func TestHealthIsOpen(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{}, &fakeRepository{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func buildMultipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write multipart data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return body, writer.FormDataContentType()
}
