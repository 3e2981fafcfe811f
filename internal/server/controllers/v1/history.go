package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/USA-RedDragon/crashgate/internal/db/models"
	v1 "github.com/USA-RedDragon/crashgate/internal/server/apimodels/v1"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func pagination(c *gin.Context) (int, int, bool) {
	limit, offset := defaultPageSize, 0
	var err error
	if value := c.Query("limit"); value != "" {
		limit, err = strconv.Atoi(value)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return 0, 0, false
		}
		limit = min(limit, maxPageSize)
	}
	if value := c.Query("offset"); value != "" {
		offset, err = strconv.Atoi(value)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func GETUploads(c *gin.Context) {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok {
		slog.Error("Failed to get db from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	database := c.Query("database")

	uploads, err := models.ListUploadRecords(db, database, limit, offset)
	if err != nil {
		slog.Error("Failed to list uploads", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	total, err := models.CountUploadRecords(db, database)
	if err != nil {
		slog.Error("Failed to count uploads", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}

	c.JSON(http.StatusOK, v1.GETUploadsResponse{Total: total, Uploads: uploads})
}

func GETUpload(c *gin.Context) {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok {
		slog.Error("Failed to get db from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a number"})
		return
	}

	upload, err := models.FindUploadRecordByID(db, uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		return
	} else if err != nil {
		slog.Error("Failed to find upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	c.JSON(http.StatusOK, upload)
}

func GETReports(c *gin.Context) {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok {
		slog.Error("Failed to get db from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	reports, err := models.ListReports(db, c.Query("submitted") == "true", limit, offset)
	if err != nil {
		slog.Error("Failed to list reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	c.JSON(http.StatusOK, v1.GETReportsResponse{Reports: reports})
}

func GETReport(c *gin.Context) {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok {
		slog.Error("Failed to get db from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}

	report, err := models.FindReportByReportID(db, c.Param("report_id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		return
	} else if err != nil {
		slog.Error("Failed to find report", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	c.JSON(http.StatusOK, report)
}
