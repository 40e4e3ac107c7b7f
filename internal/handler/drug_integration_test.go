package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/tracerx/tracerx/internal/domain"
	"github.com/tracerx/tracerx/internal/ledger"
	"github.com/tracerx/tracerx/internal/service"
	"github.com/tracerx/tracerx/internal/transport"
	"go.uber.org/zap"
)

func TestDrugIntegration_UploadBatch(t *testing.T) {
	t.Parallel()

	tokenizer := &stubTokenizerService{
		registerFn: func(ctx context.Context, submission *domain.BatchSubmission) (string, error) {
			if err := submission.Validate(); err != nil {
				return "", err
			}
			if submission.BatchID == "BATCH-TAKEN" {
				return "", fmt.Errorf("%w: registration already in flight", domain.ErrConflict)
			}
			return "0.0.1001", nil
		},
	}

	app := newDrugTestApp(t, tokenizer, &stubVerifierService{})

	validBody := `{"drugName":"Paracetamol","batchId":"BATCH123456","manufacturer":"Acme","expiry":"2026-01-01"}`
	resp, body := performRequest(t, app, http.MethodPost, "/api/drugs/upload", validBody)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["success"] != true {
		t.Fatalf("success = %v, want true", parsed["success"])
	}
	if parsed["tokenId"] != "0.0.1001" {
		t.Fatalf("tokenId = %v, want 0.0.1001", parsed["tokenId"])
	}

	missingBatchBody := `{"drugName":"Paracetamol","batchId":"","manufacturer":"Acme","expiry":"2026-01-01"}`
	resp, _ = performRequest(t, app, http.MethodPost, "/api/drugs/upload", missingBatchBody)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing batchId", resp.StatusCode)
	}

	conflictBody := `{"drugName":"Paracetamol","batchId":"BATCH-TAKEN","manufacturer":"Acme","expiry":"2026-01-01"}`
	resp, _ = performRequest(t, app, http.MethodPost, "/api/drugs/upload", conflictBody)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409 for in-flight registration", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/api/drugs/upload", "{not json")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed body", resp.StatusCode)
	}
}

func TestDrugIntegration_UploadBatchFailureModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "indeterminate mint maps to gateway timeout",
			err:        fmt.Errorf("mint outcome indeterminate: %w", &ledger.LedgerError{Status: "TIMEOUT", Indeterminate: true}),
			wantStatus: fiber.StatusGatewayTimeout,
		},
		{
			name: "partial failure maps to internal error",
			err: &service.PartialFailureError{
				BatchID: "BATCH123456",
				TokenID: "0.0.1001",
				Cause:   errors.New("registry unavailable"),
			},
			wantStatus: fiber.StatusInternalServerError,
		},
		{
			name:       "ledger rejection maps to internal error",
			err:        fmt.Errorf("mint rejected: %w", &ledger.LedgerError{Status: "INVALID_TOKEN_SYMBOL"}),
			wantStatus: fiber.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tokenizer := &stubTokenizerService{
				registerFn: func(ctx context.Context, submission *domain.BatchSubmission) (string, error) {
					return "", tt.err
				},
			}

			app := newDrugTestApp(t, tokenizer, &stubVerifierService{})

			body := `{"drugName":"Paracetamol","batchId":"BATCH123456","manufacturer":"Acme","expiry":"2026-01-01"}`
			resp, respBody := performRequest(t, app, http.MethodPost, "/api/drugs/upload", body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tt.wantStatus, string(respBody))
			}

			var parsed map[string]any
			if err := json.Unmarshal(respBody, &parsed); err != nil {
				t.Fatalf("json unmarshal error = %v", err)
			}
			if _, ok := parsed["error"]; !ok {
				t.Fatalf("body = %s, want error field", string(respBody))
			}
		})
	}
}

func TestDrugIntegration_VerifyBatch(t *testing.T) {
	t.Parallel()

	tokenID := "0.0.1001"
	registeredAt := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	verifier := &stubVerifierService{
		verifyFn: func(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
			switch batchID {
			case "BATCH123456":
				return &domain.BatchRecord{
					BatchID:      "BATCH123456",
					DrugName:     "Paracetamol",
					Manufacturer: "Acme",
					Expiry:       "2026-01-01",
					TokenID:      &tokenID,
					Status:       domain.StatusRecorded,
					UpdatedAt:    registeredAt,
				}, nil
			case "BATCH-PENDING":
				record := &domain.BatchRecord{BatchID: batchID, Status: domain.StatusPending}
				return record, fmt.Errorf("%w: batch %q has status %s", domain.ErrNotRecorded, batchID, record.Status)
			default:
				return nil, domain.ErrNotFound
			}
		},
	}

	app := newDrugTestApp(t, &stubTokenizerService{}, verifier)

	resp, body := performRequest(t, app, http.MethodGet, "/api/drugs/verify/BATCH123456", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["batchId"] != "BATCH123456" {
		t.Fatalf("batchId = %v, want BATCH123456", parsed["batchId"])
	}
	if parsed["tokenId"] != "0.0.1001" {
		t.Fatalf("tokenId = %v, want 0.0.1001", parsed["tokenId"])
	}
	if parsed["status"] != domain.StatusRecorded.String() {
		t.Fatalf("status = %v, want RECORDED", parsed["status"])
	}

	resp, body = performRequest(t, app, http.MethodGet, "/api/drugs/verify/UNKNOWN", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown batch", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["error"] != "Batch not found" {
		t.Fatalf("error = %v, want %q", parsed["error"], "Batch not found")
	}

	resp, body = performRequest(t, app, http.MethodGet, "/api/drugs/verify/BATCH-PENDING", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unrecorded batch", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["error"] != "Batch not found" {
		t.Fatalf("error = %v, want %q", parsed["error"], "Batch not found")
	}
	if parsed["status"] != domain.StatusPending.String() {
		t.Fatalf("status = %v, want PENDING indicator", parsed["status"])
	}
}

func TestHealthIntegration_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sql.OpenDB(stubConnector{}), newStubRedisClient(nil))

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 200 when dependencies healthy", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 503 when dependencies down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
	})
}

type stubTokenizerService struct {
	registerFn func(ctx context.Context, submission *domain.BatchSubmission) (string, error)
}

func (s *stubTokenizerService) RegisterBatch(ctx context.Context, submission *domain.BatchSubmission) (string, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, submission)
	}
	return "", errors.New("not implemented")
}

type stubVerifierService struct {
	verifyFn func(ctx context.Context, batchID string) (*domain.BatchRecord, error)
}

func (s *stubVerifierService) VerifyBatch(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, batchID)
	}
	return nil, domain.ErrNotFound
}

func newDrugTestApp(t *testing.T, tokenizer TokenizerService, verifier VerifierService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterDrugRoutes(app, tokenizer, verifier); err != nil {
		t.Fatalf("RegisterDrugRoutes() error = %v", err)
	}

	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") {
			if h.pingErr != nil {
				cmd.SetErr(h.pingErr)
				return h.pingErr
			}
			cmd.SetErr(nil)
			return nil
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
