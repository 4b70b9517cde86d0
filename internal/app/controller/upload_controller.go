package controller

import (
	"net/http"

	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/aabhushan/aabhushan-backend/internal/storage"
	"github.com/gin-gonic/gin"
)

const maxUploadSize = 5 * 1024 * 1024 // 5 MB

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

var uploadFolders = map[string]string{
	"products":   storage.FolderProducts,
	"categories": storage.FolderCategories,
	"reviews":    storage.FolderReviews,
}

type UploadController struct {
	s3Storage *storage.S3Storage
}

func NewUploadController(s3Storage *storage.S3Storage) *UploadController {
	return &UploadController{s3Storage: s3Storage}
}

type presignUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required"`
	Folder      string `json:"folder" binding:"required"`
}

// PresignUpload hands the client a short-lived PUT URL so the image
// bytes go straight to the bucket.
// POST /api/v1/uploads/presign
func (ctrl *UploadController) PresignUpload(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req presignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "filename, content_type, size and folder are required")
		return
	}

	folder, ok := uploadFolders[req.Folder]
	if !ok {
		errors.BadRequest(c, errors.ValidationInvalidInput, "folder must be one of products, categories, reviews")
		return
	}

	if err := ctrl.s3Storage.ValidateContentType(req.ContentType, allowedImageTypes); err != nil {
		errors.BadRequest(c, errors.UploadInvalidFileType, "Only JPEG, PNG and WebP images are accepted")
		return
	}

	if err := ctrl.s3Storage.ValidateFileSize(req.Size, maxUploadSize); err != nil {
		errors.BadRequest(c, errors.UploadFileTooLarge, "Images must be 5 MB or smaller")
		return
	}

	presigned, err := ctrl.s3Storage.PresignUpload(req.Filename, req.ContentType, folder)
	if err != nil {
		log.Error("Failed to presign upload", err, map[string]interface{}{
			"folder": folder,
		})
		errors.RespondWithError(c, http.StatusInternalServerError, errors.UploadFailed, "Could not prepare the upload")
		return
	}

	log.Info("Upload presigned", map[string]interface{}{
		"folder": folder,
		"key":    presigned.Key,
	})

	c.JSON(http.StatusOK, presigned)
}
