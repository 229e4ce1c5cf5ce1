package settings

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Settings feed report headers on every dashboard, so reads are open to
	// all staff roles.
	api.GET("/settings", h.GetSettings)
	api.GET("/settings/logo", h.GetLogo)

	write := api.Group("", auth.RequireRole("admin"))
	write.PUT("/settings", h.PutSettings)
	write.PUT("/settings/logo", h.PutLogo)
}

func (h *Handler) GetSettings(c echo.Context) error {
	values, err := h.svc.GetAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"settings": values})
}

func (h *Handler) PutSettings(c echo.Context) error {
	var values map[string]string
	if err := c.Bind(&values); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetAll(c.Request().Context(), values); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetLogo(c echo.Context) error {
	logo, err := h.svc.GetLogo(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no logo configured")
	}
	return c.Blob(http.StatusOK, logo.ContentType, logo.Data)
}

func (h *Handler) PutLogo(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetLogo(c.Request().Context(), data, c.Request().Header.Get(echo.HeaderContentType)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
