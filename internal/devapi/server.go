// Package devapi serves the planning REST API on top of any planning.Backend.
// It stands in for the hosted API in development and integration tests.
package devapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
	"fleemy/internal/planning/remote"
)

// Config for the development API.
type Config struct {
	// Token, when set, must be sent as a bearer token.
	Token string
	// AllowOrigins lists CORS origins; empty allows any origin.
	AllowOrigins []string
}

type api struct {
	backend planning.Backend
	logger  *log.Logger
}

const uidKey = "uid"

// NewRouter builds the gin engine.
func NewRouter(backend planning.Backend, cfg Config, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.Discard()
	}
	gin.SetMode(gin.ReleaseMode)
	a := &api{backend: backend, logger: logger.WithComponent(log.ComponentDevAPI)}

	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", remote.UserHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	} else {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	}
	r.Use(cors.New(corsCfg))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	p := r.Group("/planning")
	p.Use(bearerAuth(cfg.Token), requireUser())
	p.GET("/week/:year/:week", a.loadWeek)
	p.GET("/month/:year/:month", a.loadMonth)
	p.GET("/earnings/:year/:week", a.earnings)
	p.POST("/events", a.createEvent)
	p.PUT("/events/:id", a.updateEvent)
	p.DELETE("/events/:id", a.deleteEvent)
	p.POST("/tasks", a.createTask)
	p.PUT("/tasks/:id", a.updateTask)
	p.DELETE("/tasks/:id", a.deleteTask)
	return r
}

func (a *api) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.DebugContext(c.Request.Context(), "devapi request",
			log.FieldMethod, c.Request.Method,
			log.FieldPath, c.Request.URL.Path,
			log.FieldStatusCode, c.Writer.Status(),
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, remote.ErrorDTO{Detail: "invalid token"})
			return
		}
		c.Next()
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(remote.UserHeader))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, remote.ErrorDTO{Detail: "missing " + remote.UserHeader})
			return
		}
		c.Set(uidKey, uid)
		c.Next()
	}
}

// fail writes err in the error shape the REST client understands.
func (a *api) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsNetwork(err):
		status = http.StatusServiceUnavailable
	default:
		a.logger.ErrorContext(c.Request.Context(), "devapi request failed", log.FieldPath, c.Request.URL.Path, log.FieldError, err)
	}
	c.AbortWithStatusJSON(status, remote.ErrorDTO{Detail: err.Error()})
}

func pathInt(c *gin.Context, name string, min, max int) (int, error) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < min || n > max {
		return 0, &core.ValidationError{Field: name, Reason: "out of range: " + c.Param(name)}
	}
	return n, nil
}

func yearWeek(c *gin.Context) (calendar.YearWeek, error) {
	year, err := pathInt(c, "year", 1970, 9999)
	if err != nil {
		return calendar.YearWeek{}, err
	}
	week, err := pathInt(c, "week", 1, calendar.WeeksInYear(year))
	if err != nil {
		return calendar.YearWeek{}, err
	}
	return calendar.YearWeek{Year: year, Week: week}, nil
}

func toPeriodDTO(p planning.Period) remote.PeriodDTO {
	out := remote.PeriodDTO{
		Events: make([]remote.EventDTO, 0, len(p.Events)),
		Tasks:  make([]remote.TaskDTO, 0, len(p.Tasks)),
	}
	for _, e := range p.Events {
		out.Events = append(out.Events, remote.EventToDTO(e))
	}
	for _, t := range p.Tasks {
		out.Tasks = append(out.Tasks, remote.TaskToDTO(t))
	}
	return out
}

func (a *api) loadWeek(c *gin.Context) {
	yw, err := yearWeek(c)
	if err != nil {
		a.fail(c, err)
		return
	}
	p, err := a.backend.LoadWeek(c.Request.Context(), c.GetString(uidKey), yw)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toPeriodDTO(p))
}

func (a *api) loadMonth(c *gin.Context) {
	year, err := pathInt(c, "year", 1970, 9999)
	if err != nil {
		a.fail(c, err)
		return
	}
	month, err := pathInt(c, "month", 1, 12)
	if err != nil {
		a.fail(c, err)
		return
	}
	p, err := a.backend.LoadMonth(c.Request.Context(), c.GetString(uidKey), year, time.Month(month))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toPeriodDTO(p))
}

func (a *api) earnings(c *gin.Context) {
	yw, err := yearWeek(c)
	if err != nil {
		a.fail(c, err)
		return
	}
	rev, err := a.backend.GetEarnings(c.Request.Context(), c.GetString(uidKey), yw)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.RevenueToDTO(rev))
}

func (a *api) bindEvent(c *gin.Context) (core.CalendarEvent, bool) {
	var dto remote.EventDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, remote.ErrorDTO{Detail: err.Error()})
		return core.CalendarEvent{}, false
	}
	e, err := dto.ToEvent()
	if err != nil {
		a.fail(c, err)
		return core.CalendarEvent{}, false
	}
	e.UID = c.GetString(uidKey)
	e.ID = c.Param("id")
	return e, true
}

func (a *api) createEvent(c *gin.Context) {
	e, ok := a.bindEvent(c)
	if !ok {
		return
	}
	saved, err := a.backend.CreateEvent(c.Request.Context(), e)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, remote.EventToDTO(saved))
}

func (a *api) updateEvent(c *gin.Context) {
	e, ok := a.bindEvent(c)
	if !ok {
		return
	}
	saved, err := a.backend.UpdateEvent(c.Request.Context(), e)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.EventToDTO(saved))
}

func (a *api) deleteEvent(c *gin.Context) {
	if err := a.backend.DeleteEvent(c.Request.Context(), c.GetString(uidKey), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) bindTask(c *gin.Context) (core.WeeklyTask, bool) {
	var dto remote.TaskDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, remote.ErrorDTO{Detail: err.Error()})
		return core.WeeklyTask{}, false
	}
	t, err := dto.ToTask()
	if err != nil {
		a.fail(c, err)
		return core.WeeklyTask{}, false
	}
	t.UID = c.GetString(uidKey)
	t.ID = c.Param("id")
	return t, true
}

func (a *api) createTask(c *gin.Context) {
	t, ok := a.bindTask(c)
	if !ok {
		return
	}
	saved, err := a.backend.CreateTask(c.Request.Context(), t)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, remote.TaskToDTO(saved))
}

func (a *api) updateTask(c *gin.Context) {
	t, ok := a.bindTask(c)
	if !ok {
		return
	}
	saved, err := a.backend.UpdateTask(c.Request.Context(), t)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.TaskToDTO(saved))
}

func (a *api) deleteTask(c *gin.Context) {
	if err := a.backend.DeleteTask(c.Request.Context(), c.GetString(uidKey), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
