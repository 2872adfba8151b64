package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"consult-worker/apperrors"
	"consult-worker/constant"
	"consult-worker/dto"
	"consult-worker/service"
)

func addRecordingRoutes(ctx context.Context, r *gin.Engine, recordings service.RecordingService) {
	group := r.Group("/api/v1/recordings")

	group.POST("", func(c *gin.Context) {
		var req dto.StartRecordingRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		recordingId, err := recordings.Start(requestCtx(ctx, c), req)
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(http.StatusCreated, dto.StartRecordingResponse{RecordingId: recordingId})
	})

	group.PUT("/:id/chunks/:seq", func(c *gin.Context) {
		sequence, err := strconv.Atoi(c.Param("seq"))
		if err != nil || sequence < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chunk sequence number"})
			return
		}
		data, err := chunkBody(c)
		if err != nil || len(data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty chunk body"})
			return
		}
		if err := recordings.UploadChunk(requestCtx(ctx, c), c.Param("id"), sequence, data); err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "stored"})
	})

	group.POST("/:id/stop", func(c *gin.Context) {
		var req dto.StopRecordingRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		capability := capabilityFromHeaders(c)
		jobId, err := recordings.Stop(requestCtx(ctx, c), c.Param("id"), capability, req.Session)
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"jobId": jobId.String()})
	})

	group.GET("/:id/results", func(c *gin.Context) {
		results, err := recordings.Results(requestCtx(ctx, c), c.Param("id"))
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})

	group.DELETE("/:id", func(c *gin.Context) {
		if err := recordings.Delete(requestCtx(ctx, c), c.Param("id")); err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	group.GET("", func(c *gin.Context) {
		status := constant.RecordingStatus(strings.ToUpper(c.Query("status")))
		list, err := recordings.List(requestCtx(ctx, c), status)
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})
}

// chunkBody accepts audio either as a multipart "chunk" file or as the
// raw request body.
func chunkBody(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("chunk")
		if err != nil {
			return nil, err
		}
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

// capabilityFromHeaders picks the owner tokens off the request; the
// OAuth exchange itself happens in the auth collaborator, not here.
func capabilityFromHeaders(c *gin.Context) dto.Capability {
	capability := dto.Capability{
		RefreshToken: c.GetHeader("X-Refresh-Token"),
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		capability.AccessToken = strings.TrimPrefix(header, "Bearer ")
	}
	return capability
}

func requestCtx(base context.Context, c *gin.Context) context.Context {
	return zerolog.Ctx(base).WithContext(c.Request.Context())
}

func writeError(ctx context.Context, c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": "not_ready"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
