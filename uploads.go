package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
	"github.com/mmdatafocus/easytask_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("easytask-backend")

const maxUploadSizeBytes int64 = 10 * 1024 * 1024

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// uploadHandler ingests a whole spreadsheet in one batch. The original file
// is archived to GCS after a successful batch when a bucket is configured;
// archiving failures are logged, never surfaced.
func uploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		if !requireSession(c) {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read file"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read file"})
			return
		}

		rows, err := workflow.ParseUploadRows(fileHeader.Filename, data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(rows) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no usable rows found"})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "ingest-batch")
		result, err := workflow.IngestBatch(ctx, rows, models.FlagSourceExcel)
		span.End()
		if err != nil {
			if errors.Is(err, utils.ErrorDuplicateKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "a concurrent upload changed these records, please retry"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if utils.GetStorageProvider() == utils.StorageProviderGCS {
			objectName := path.Join("uploads", utils.GenerateUniqueFilename()+path.Ext(fileHeader.Filename))
			if err := utils.ArchiveUploadToGCS(c.Request.Context(), objectName, data, fileHeader.Header.Get("Content-Type")); err != nil {
				logger.WithFields(logrus.Fields{
					"field":    "uploadHandler",
					"filename": fileHeader.Filename,
					"object":   objectName,
				}).Warn("failed to archive upload: " + err.Error())
			}
		}

		c.JSON(http.StatusOK, result)
	}
}

func exportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}

		f, err := workflow.BuildExportFile(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		filename := fmt.Sprintf("students-export-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Header("Content-Type", xlsxContentType)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "uploads.go", "exportHandler", "Write export", nil, err)
		}
	}
}
