package middleware

import (
	"net/http"
	"strings"

	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Keys used to carry the caller's group and actor
const (
	GroupIDKey     = "group_id"
	GroupHeaderKey = "X-Group-ID"
	ActorKey       = "actor"
	ActorHeaderKey = "X-Actor"
)

// GroupConfig holds configuration for the group middleware
type GroupConfig struct {
	// SkipPaths are paths that don't require a group (e.g., health check)
	SkipPaths []string
	// DefaultActor is recorded when the caller sends no X-Actor header
	DefaultActor string
}

// DefaultGroupConfig returns default group middleware configuration
func DefaultGroupConfig() GroupConfig {
	return GroupConfig{
		SkipPaths:    []string{"/health", "/healthz", "/ready", "/metrics"},
		DefaultActor: "api",
	}
}

// Group requires every request to name its group with X-Group-ID.
// Every query and write downstream is scoped to that group.
func Group() gin.HandlerFunc {
	return GroupWithConfig(DefaultGroupConfig())
}

// GroupWithConfig returns the group middleware with custom configuration
func GroupWithConfig(cfg GroupConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		raw := strings.TrimSpace(c.GetHeader(GroupHeaderKey))
		if raw == "" {
			respondMissingGroup(c, "Group identification required")
			return
		}
		if len(raw) > MaxGroupIDLength {
			respondMissingGroup(c, "Invalid group ID format")
			return
		}
		groupID, err := uuid.Parse(raw)
		if err != nil || groupID == uuid.Nil {
			respondMissingGroup(c, "Invalid group ID format")
			return
		}

		actor := strings.TrimSpace(c.GetHeader(ActorHeaderKey))
		if actor == "" {
			actor = cfg.DefaultActor
		}

		c.Set(GroupIDKey, groupID)
		c.Set(ActorKey, actor)
		ctx := logger.WithGroupID(c.Request.Context(), groupID.String())
		ctx = logger.WithActor(ctx, actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetGroupID returns the group set by the group middleware
func GetGroupID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(GroupIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// GetActor returns the actor set by the group middleware
func GetActor(c *gin.Context) string {
	return c.GetString(ActorKey)
}

func respondMissingGroup(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeMissingGroup,
		message,
		logger.GetRequestID(c.Request.Context()),
	))
}
