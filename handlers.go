package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
	"github.com/mmdatafocus/easytask_backend/workflow"
)

// requireSession rejects unauthenticated requests. SessionMiddleware has
// already resolved the token; a missing username means no valid session.
func requireSession(c *gin.Context) bool {
	if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

// requireLecturer gates the destructive surfaces: student edits, flag
// resolution, export, and lookup link management.
func requireLecturer(c *gin.Context) bool {
	if !requireSession(c) {
		return false
	}
	role, _ := utils.GetUserRoleFromContext(c.Request.Context())
	if role != string(models.UserRoleLecturer) {
		c.JSON(http.StatusForbidden, gin.H{"error": "lecturer role required"})
		return false
	}
	return true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

// meHandler returns the session user's own profile.
func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		username, _ := utils.GetUsernameFromContext(c.Request.Context())
		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user.PrepareGive()
		c.JSON(http.StatusOK, user)
	}
}

type manualEntryRequest struct {
	IndexNumber string `json:"index_number" binding:"required"`
	Name        string `json:"name"`
}

func createEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}

		var req manualEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index_number is required"})
			return
		}

		result, err := workflow.IngestManual(c.Request.Context(), req.IndexNumber, req.Name)
		if err != nil {
			if errors.Is(err, utils.ErrorDuplicateKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "a concurrent submission changed this record, please retry"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listStudentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		students, err := models.ListStudents(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	}
}

func getStudentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		student, err := models.GetStudentById(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

func updateStudentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		var input models.EditStudent
		if err := c.ShouldBindJSON(&input); err != nil {
			if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		// Fast-fail; the transactional re-check in UpdateStudent is the backstop.
		if err := utils.ValidateUnique[models.Student](c.Request.Context(), "index_number", input.IndexNumber, id); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "index number is already taken"})
			return
		}

		student, err := models.UpdateStudent(c.Request.Context(), id, input)
		if err != nil {
			switch {
			case errors.Is(err, utils.ErrorRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			case errors.Is(err, utils.ErrorDuplicateKey):
				c.JSON(http.StatusConflict, gin.H{"error": "index number is already taken"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

func deleteStudentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteStudent(c.Request.Context(), id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func listFlaggedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		flags, err := models.ListUnresolvedFlags(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"flagged": flags})
	}
}

func getFlaggedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		flag, err := models.GetFlaggedRecordById(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "flagged record not found"})
			return
		}
		c.JSON(http.StatusOK, flag)
	}
}

type resolveRequest struct {
	Action          models.ResolutionAction `json:"action" binding:"required"`
	Name            string                  `json:"name"`
	TargetStudentId int                     `json:"target_student_id"`
}

func resolveFlaggedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLecturer(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		if req.Action == models.ResolutionActionMerge && req.TargetStudentId > 0 {
			if err := utils.ValidateResourceId[models.Student](c.Request.Context(), req.TargetStudentId); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "target student not found"})
				return
			}
		}

		result, err := workflow.ResolveFlag(c.Request.Context(), id, req.Action, workflow.ResolveOptions{
			Name:            req.Name,
			TargetStudentId: req.TargetStudentId,
		})
		if err != nil {
			switch {
			case errors.Is(err, workflow.ErrFlagNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, utils.ErrorDuplicateKey):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// statsHandler backs the dashboard header counts.
func statsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		ctx := c.Request.Context()

		students, err := utils.ResourceCountWhere[models.Student](ctx, "1 = 1")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		pending, err := utils.ResourceCountWhere[models.FlaggedRecord](ctx, "resolved = ?", false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resolved, err := utils.ResourceCountWhere[models.FlaggedRecord](ctx, "resolved = ?", true)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"students":       students,
			"pending_flags":  pending,
			"resolved_flags": resolved,
		})
	}
}

// sessionUserId is a convenience for handlers that scope rows to the caller.
func sessionUserId(ctx context.Context) int {
	id, _ := utils.GetUserIdFromContext(ctx)
	return id
}
