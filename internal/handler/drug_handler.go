package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tracerx/tracerx/internal/domain"
	"github.com/tracerx/tracerx/internal/ledger"
	"github.com/tracerx/tracerx/internal/service"
)

type TokenizerService interface {
	RegisterBatch(ctx context.Context, submission *domain.BatchSubmission) (string, error)
}

type VerifierService interface {
	VerifyBatch(ctx context.Context, batchID string) (*domain.BatchRecord, error)
}

type DrugHandler struct {
	tokenizer TokenizerService
	verifier  VerifierService
}

func NewDrugHandler(tokenizer TokenizerService, verifier VerifierService) (*DrugHandler, error) {
	if tokenizer == nil {
		return nil, fmt.Errorf("tokenizer service is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier service is required")
	}
	return &DrugHandler{tokenizer: tokenizer, verifier: verifier}, nil
}

func RegisterDrugRoutes(router fiber.Router, tokenizer TokenizerService, verifier VerifierService) error {
	h, err := NewDrugHandler(tokenizer, verifier)
	if err != nil {
		return err
	}

	drugs := router.Group("/api/drugs")
	drugs.Post("/upload", h.UploadBatch)
	drugs.Get("/verify/:batchId", h.VerifyBatch)

	return nil
}

type uploadBatchRequest struct {
	DrugName     string `json:"drugName"`
	BatchID      string `json:"batchId"`
	Manufacturer string `json:"manufacturer"`
	Expiry       string `json:"expiry"`
}

type uploadBatchResponse struct {
	Success bool   `json:"success"`
	TokenID string `json:"tokenId"`
}

type verifyBatchResponse struct {
	BatchID       string     `json:"batchId"`
	DrugName      string     `json:"drugName"`
	Manufacturer  string     `json:"manufacturer"`
	Expiry        string     `json:"expiry"`
	TokenID       string     `json:"tokenId"`
	TransactionID *string    `json:"transactionId,omitempty"`
	Status        string     `json:"status"`
	RegisteredAt  *time.Time `json:"registeredAt,omitempty"`
}

func (h *DrugHandler) UploadBatch(c *fiber.Ctx) error {
	var req uploadBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	submission := &domain.BatchSubmission{
		DrugName:     req.DrugName,
		BatchID:      req.BatchID,
		Manufacturer: req.Manufacturer,
		Expiry:       req.Expiry,
	}

	tokenID, err := h.tokenizer.RegisterBatch(c.UserContext(), submission)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(uploadBatchResponse{
		Success: true,
		TokenID: tokenID,
	})
}

func (h *DrugHandler) VerifyBatch(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))

	record, err := h.verifier.VerifyBatch(c.UserContext(), batchID)
	if err != nil {
		// A batch that exists but is not yet RECORDED is not verifiable, but
		// callers can see the registration is in progress.
		if errors.Is(err, domain.ErrNotRecorded) && record != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":  "Batch not found",
				"status": record.Status.String(),
			})
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toVerifyResponse(record))
}

func toVerifyResponse(record *domain.BatchRecord) verifyBatchResponse {
	if record == nil {
		return verifyBatchResponse{}
	}

	resp := verifyBatchResponse{
		BatchID:       record.BatchID,
		DrugName:      record.DrugName,
		Manufacturer:  record.Manufacturer,
		Expiry:        record.Expiry,
		TransactionID: record.TransactionID,
		Status:        record.Status.String(),
	}
	if record.TokenID != nil {
		resp.TokenID = *record.TokenID
	}
	if !record.UpdatedAt.IsZero() {
		registeredAt := record.UpdatedAt
		resp.RegisteredAt = &registeredAt
	}
	return resp
}

func toHTTPError(err error) error {
	var partial *service.PartialFailureError

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Batch not found")
	case errors.Is(err, domain.ErrNotRecorded):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.As(err, &partial):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	case ledger.IsIndeterminate(err):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return err
	}
}
