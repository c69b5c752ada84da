// Package handler defines the HTTP handlers of the pricing and finance API.
package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ekurt/tour-operator-core/internal/model"
)

// getOrgContext extracts the organization and user identity placed on the
// context by the auth middleware.  Every data access is scoped by the
// organization id; a request without one is unauthorized, never
// half-scoped.
func getOrgContext(c echo.Context) (model.OrgContext, error) {
	orgID, err := contextUint(c, "org_id")
	if err != nil {
		return model.OrgContext{}, err
	}
	userID, err := contextUint(c, "user_id")
	if err != nil {
		return model.OrgContext{}, err
	}
	return model.OrgContext{OrgID: orgID, UserID: userID}, nil
}

func contextUint(c echo.Context, key string) (uint64, error) {
	v := c.Get(key)
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid " + key + " in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseDate accepts a YYYY-MM-DD business date.
func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
