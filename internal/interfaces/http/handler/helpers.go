package handler

import (
	"time"

	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// dateLayout is the wire format for calendar dates
const dateLayout = time.DateOnly

// parseUUIDParam reads a path parameter as a UUID, answering 400 on failure
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// parsePeriod parses a YYYY-MM value already checked by the period validator
func (h *BaseHandler) parsePeriod(c *gin.Context, field, raw string) (valueobject.Period, bool) {
	p, err := valueobject.ParsePeriod(raw)
	if err != nil {
		h.ValidationError(c, field, "Must be a period in the format YYYY-MM")
		return valueobject.Period{}, false
	}
	return p, true
}

// parseOptionalDate parses a YYYY-MM-DD value; empty yields the zero time
func (h *BaseHandler) parseOptionalDate(c *gin.Context, field, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		h.ValidationError(c, field, "Must be a date in the format "+dateLayout)
		return time.Time{}, false
	}
	return t, true
}

// parseOptionalUUID parses an optional query value
func (h *BaseHandler) parseOptionalUUID(c *gin.Context, field, raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.ValidationError(c, field, "Invalid UUID format")
		return nil, false
	}
	return &id, true
}

// groupOrAbort resolves the caller's group, answering 400 when absent
func (h *BaseHandler) groupOrAbort(c *gin.Context) (uuid.UUID, bool) {
	groupID, err := getGroupID(c)
	if err != nil {
		h.MissingGroup(c)
		return uuid.Nil, false
	}
	return groupID, true
}
