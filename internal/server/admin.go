package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andreysafonov/vestnik/internal/content"
)

// AdminStore is the slice of the store the admin API needs.
type AdminStore interface {
	content.SettingsRepository
	Status(ctx context.Context) (map[string]int, error)
	AddChannel(ctx context.Context, username string) error
	RemoveChannel(ctx context.Context, username string) error
	ListChannels(ctx context.Context) ([]string, error)
}

// JobRunner triggers registered scheduled jobs by name.
type JobRunner interface {
	Names() []string
	RunNow(ctx context.Context, name string) error
}

// AdminHandler exposes the operator surface: status, manual theme
// override, channel registry and manual job triggers.
type AdminHandler struct {
	Store AdminStore
	Jobs  JobRunner
}

// Register mounts the admin endpoints; the caller applies authentication.
func (h *AdminHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/status", h.status)
	g.PUT("/theme", h.setTheme)
	g.GET("/channels", h.listChannels)
	g.POST("/channels", h.addChannel)
	g.DELETE("/channels/:username", h.removeChannel)
	g.GET("/jobs", h.listJobs)
	g.POST("/jobs/:name/run", h.runJob)
}

func (h *AdminHandler) status(c echo.Context) error {
	ctx := c.Request().Context()
	counts, err := h.Store.Status(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	theme, err := h.Store.GetSetting(ctx, content.SettingWeeklyTheme)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tables":       counts,
		"weekly_theme": theme,
	})
}

func (h *AdminHandler) setTheme(c echo.Context) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	ctx := c.Request().Context()
	if err := h.Store.SetSetting(ctx, content.SettingWeeklyTheme, req.Title); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.SetSetting(ctx, content.SettingWeeklyThemeDescription, req.Description); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) listChannels(c echo.Context) error {
	channels, err := h.Store.ListChannels(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string][]string{"channels": channels})
}

func (h *AdminHandler) addChannel(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}
	if err := h.Store.AddChannel(c.Request().Context(), req.Username); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

func (h *AdminHandler) removeChannel(c echo.Context) error {
	if err := h.Store.RemoveChannel(c.Request().Context(), c.Param("username")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"jobs": h.Jobs.Names()})
}

func (h *AdminHandler) runJob(c echo.Context) error {
	if err := h.Jobs.RunNow(c.Request().Context(), c.Param("name")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}
