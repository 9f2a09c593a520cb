package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
)

type createLinkRequest struct {
	DurationHours int `json:"duration_hours" binding:"required"`
}

func createLookupLinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}

		var req createLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_hours is required"})
			return
		}

		link, err := models.CreateLookupLink(c.Request.Context(), sessionUserId(c.Request.Context()), req.DurationHours)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

func listLookupLinksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}
		links, err := models.ListLookupLinks(c.Request.Context(), sessionUserId(c.Request.Context()))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"links": links})
	}
}

type toggleLinkRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func toggleLookupLinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		var req toggleLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
			return
		}

		link, err := models.ToggleLookupLink(c.Request.Context(), sessionUserId(c.Request.Context()), id, *req.Active)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

func deleteLookupLinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteLookupLink(c.Request.Context(), sessionUserId(c.Request.Context()), id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type publicLookupRequest struct {
	Token       string `json:"token" binding:"required"`
	IndexNumber string `json:"index_number" binding:"required"`
}

// publicLookupHandler serves the student-facing count check. Invalid tokens
// and unknown index numbers get the same flat answers; nothing in the
// response distinguishes "never existed" from "expired" or "disabled".
func publicLookupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req publicLookupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and index_number are required"})
			return
		}

		if _, err := models.ValidateLookupToken(c.Request.Context(), strings.TrimSpace(req.Token)); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "this link is invalid or has expired"})
			return
		}

		student, err := models.LookupStudentByIndexNumber(c.Request.Context(), strings.TrimSpace(req.IndexNumber))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no record found for that index number"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"index_number":     student.IndexNumber,
			"name":             utils.DereferencePtr(student.Name, ""),
			"assignment_count": student.AssignmentCount,
		})
	}
}
