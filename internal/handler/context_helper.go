package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/middleware"
	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

func currentClaims(c *gin.Context) (*models.JWTClaims, error) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func requestScope(c *gin.Context) models.TenantScope {
	return middleware.Scope(c)
}

// periodFromQuery reads month/year query parameters, defaulting to the
// current month when both are absent.
func periodFromQuery(c *gin.Context) (models.Period, error) {
	monthStr := c.Query("month")
	yearStr := c.Query("year")
	if monthStr == "" && yearStr == "" {
		return models.PeriodOf(time.Now().UTC()), nil
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return models.Period{}, appErrors.Clone(appErrors.ErrValidation, "month must be a number")
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return models.Period{}, appErrors.Clone(appErrors.ErrValidation, "year must be a number")
	}
	period, err := models.NewPeriod(month, year)
	if err != nil {
		return models.Period{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return period, nil
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if value, err := strconv.Atoi(c.Query(key)); err == nil {
		return value
	}
	return fallback
}

func boolQuery(c *gin.Context, key string) *bool {
	switch c.Query(key) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
