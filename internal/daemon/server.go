package daemon

import (
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bimvault/internal/repository"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	runner *Runner
	runs   *repository.RunRepository
	port   int
	stopCh chan struct{}
}

func NewServer(runner *Runner, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		runner: runner,
		runs:   repository.NewRunRepository(),
		port:   port,
		stopCh: make(chan struct{}, 1),
	}
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/history", s.handleHistory)
	s.echo.POST("/run", s.handleRun)
	s.echo.POST("/stop", s.handleStop)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.runner.State().Snapshot())
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	runs, err := s.runs.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleRun(c echo.Context) error {
	if !s.runner.Trigger(model.TriggerAPI) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "a run is already queued"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "run queued"})
}

func (s *Server) handleStop(c echo.Context) error {
	s.stopCh <- struct{}{}

	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}
