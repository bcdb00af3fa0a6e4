package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tapedeck/internal/library"
	"tapedeck/internal/processing"
	"tapedeck/internal/queue"
	"tapedeck/internal/review"
)

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (s *Server) listJobs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	list, err := s.jobs.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	views := make([]JobView, 0, len(list))
	for _, job := range list {
		view, err := jobView(job)
		if err != nil {
			return err
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) getJob(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	job, err := s.jobs.Status(c.Request().Context(), id)
	if err != nil {
		return err
	}
	view, err := jobView(job)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) cancelJob(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	job, err := s.jobs.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	view, err := jobView(job)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) submit(c echo.Context, payload queue.Payload) error {
	job, err := s.jobs.Submit(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, Accepted{JobID: job.ID})
}

func (s *Server) submitIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return s.submit(c, queue.IngestFilePayload{Filename: req.Filename, TapeID: req.TapeID})
}

func (s *Server) submitIngestAll(c echo.Context) error {
	return s.submit(c, queue.IngestAllPayload{})
}

func (s *Server) submitProcess(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	return s.submit(c, queue.ProcessMediaPayload{TapeID: id})
}

func (s *Server) submitExport(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req exportRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return err
		}
	}
	return s.submit(c, queue.ExportSegmentsPayload{TapeID: id, Force: req.Force})
}

func (s *Server) acceptSuggestions(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var outcome processing.AcceptOutcome
	err = s.project.WithSession(c.Request().Context(), func(sess *library.Session) error {
		outcome, err = s.project.Processing.AcceptSuggestions(c.Request().Context(), sess, id)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"segments": outcome.Segments,
		"promoted": outcome.Promoted,
		"message":  outcome.Message,
	})
}

func (s *Server) ignoreSuggestions(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var ignored int64
	err = s.project.WithSession(c.Request().Context(), func(sess *library.Session) error {
		n, err := s.project.Processing.IgnoreSuggestions(c.Request().Context(), sess, id)
		ignored = n
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ignored": ignored})
}

func (s *Server) listInbox(c echo.Context) error {
	files, err := s.project.Ingest.ListInbox(c.Request().Context(), s.project.DB)
	if err != nil {
		return err
	}
	views := make([]InboxView, 0, len(files))
	for _, f := range files {
		views = append(views, inboxView(f))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) listReview(c echo.Context) error {
	filter := library.ReviewFilter{
		Status: library.ReviewStatus(c.QueryParam("status")),
		Type:   library.ReviewType(c.QueryParam("type")),
	}
	if raw := c.QueryParam("tape_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid tape_id")
		}
		filter.TapeID = id
	}
	items, err := s.project.Reviews.List(c.Request().Context(), s.project.DB, filter)
	if err != nil {
		return err
	}
	views := make([]ReviewView, 0, len(items))
	for _, item := range items {
		views = append(views, reviewView(item))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) resolveReview(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	err = s.project.WithSession(c.Request().Context(), func(sess *library.Session) error {
		return s.project.Reviews.Resolve(c.Request().Context(), sess, id)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "status": library.ReviewResolved})
}

func (s *Server) retryBackup(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var outcome review.RetryOutcome
	err = s.project.WithSession(c.Request().Context(), func(sess *library.Session) error {
		outcome, err = s.project.Reviews.RetryBackup(c.Request().Context(), sess, id)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  outcome.Status,
		"message": outcome.Message,
		"path":    outcome.Path,
	})
}
