package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/image-analysis/internal/auth"
	"github.com/example/image-analysis/internal/usecase"
)

// RegisterRoutes wires the HTTP handlers to the Gin router. maxUploadBytes
// caps the multipart image size before the body is read into memory; the
// use case re-validates against its own policy.
func RegisterRoutes(router *gin.Engine, uc *usecase.AnalysisUseCase, authMiddleware gin.HandlerFunc, maxUploadBytes int64) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/", authMiddleware)

	protected.POST("/analyze", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		if file.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds the upload limit"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		req := usecase.AnalysisRequest{
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Image:       data,
			Credentials: credentialScope(c),
		}

		requestID, outcome := uc.SubmitImage(c.Request.Context(), userID, req)
		if outcome.Kind != usecase.OutcomeSuccess {
			c.JSON(outcome.HTTPStatus(), gin.H{
				"request_id": requestID,
				"outcome":    outcome.Kind,
				"error":      outcome.Reason,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": requestID,
			"outcome":    outcome.Kind,
			"result":     outcome.Result,
		})
	})

	protected.GET("/result/:id", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		requestID := c.Param("id")
		log, err := uc.GetResult(c.Request.Context(), userID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		var result any
		if log.Result != "" {
			// Stored as the raw result document; decode for the response body.
			_ = json.Unmarshal([]byte(log.Result), &result)
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": log.RequestID,
			"user_id":    log.UserID,
			"filename":   log.Filename,
			"outcome":    log.Outcome,
			"success":    log.Success,
			"result":     result,
			"created_at": log.CreatedAt,
		})
	})

	protected.GET("/metrics", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// credentialScope reads the optional caller-supplied identity form fields.
// Any one of them present selects the custom scope; the use case enforces
// that all four are set.
func credentialScope(c *gin.Context) *usecase.CredentialScope {
	scope := usecase.CredentialScope{
		AccessKeyID: c.PostForm("access_key_id"),
		SecretKey:   c.PostForm("secret_access_key"),
		Region:      c.PostForm("region"),
		Bucket:      c.PostForm("bucket"),
	}
	if scope == (usecase.CredentialScope{}) {
		return nil
	}
	return &scope
}
