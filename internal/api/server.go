// Package api exposes projects, plans, markers and documents over REST.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"path"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"

	"github.com/pdf360/planview/internal/catalog"
	"github.com/pdf360/planview/internal/files"
	"github.com/pdf360/planview/internal/logging"
	"github.com/pdf360/planview/internal/markers"
	"github.com/pdf360/planview/internal/storage"
)

// Dependencies holds everything the REST handlers call into.
type Dependencies struct {
	Catalog *catalog.Catalog
	Markers *markers.Service
	Files   *files.Store
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

type handler struct {
	deps Dependencies
}

// New builds the fiber app with every route registered
func New(deps Dependencies) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handler{deps: deps}

	app := fiber.New(fiber.Config{
		AppName:      "planview",
		BodyLimit:    64 * 1024 * 1024,
		UnescapePath: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"*"},
		AllowMethods: []string{"*"},
	}))
	app.Use(requestLogger(deps.Logger))

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	app.Get("/health/ready", h.ready)

	api := app.Group("/api")

	api.Get("/projects", h.listProjects)
	api.Post("/projects", h.createProject)
	api.Get("/projects/:id", h.getProject)
	api.Patch("/projects/:id", h.renameProject)
	api.Delete("/projects/:id", h.deleteProject)
	api.Get("/projects/:id/folders", h.listFolders)
	api.Post("/projects/:id/folders", h.createFolder)
	api.Get("/projects/:id/plans", h.listPlans)
	api.Post("/projects/:id/plans", h.addPlan)

	api.Get("/plans/:id", h.getPlan)
	api.Delete("/plans/:id", h.deletePlan)
	api.Get("/plans/:id/document", h.planDocument)
	api.Get("/plans/:id/markers", h.listMarkers)
	api.Post("/plans/:id/markers", h.addMarker)

	api.Put("/markers/:id/position", h.moveMarker)
	api.Delete("/markers/:id", h.deleteMarker)
	api.Get("/markers/:id/images", h.listImages)
	api.Post("/markers/:id/images", h.addImage)
	api.Delete("/images/:id", h.deleteImage)

	api.Get("/files", h.listFiles)
	api.Get("/files/*", h.getFile)

	return app
}

// requestLogger tags the request context with an id that every record logged for it carries
func requestLogger(log *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.SetContext(logging.WithAttrs(c.Context(), slog.String("requestId", id)))

		start := time.Now()
		err := c.Next()
		log.DebugContext(c.Context(), "HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)
		return err
	}
}

// fail maps domain errors to HTTP status codes
func (h *handler) fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, files.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidName), errors.Is(err, files.ErrInvalidPath):
		status = fiber.StatusBadRequest
	default:
		h.deps.Logger.ErrorContext(c.Context(), "Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func idParam(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func (h *handler) ready(c fiber.Ctx) error {
	if h.deps.Ready != nil {
		if err := h.deps.Ready(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// Projects

type projectRequest struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

func (h *handler) listProjects(c fiber.Ctx) error {
	list, err := h.deps.Catalog.ListProjects(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

func (h *handler) createProject(c fiber.Ctx) error {
	var req projectRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	p, err := h.deps.Catalog.CreateProject(c.Context(), req.Name, req.Folder)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *handler) getProject(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	p, err := h.deps.Catalog.GetProject(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *handler) renameProject(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req projectRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.deps.Catalog.RenameProject(c.Context(), id, req.Name); err != nil {
		return h.fail(c, err)
	}
	p, err := h.deps.Catalog.GetProject(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *handler) deleteProject(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.deps.Catalog.DeleteProject(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) listFolders(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	names, err := h.deps.Catalog.Subfolders(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(names)
}

func (h *handler) createFolder(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	folder, err := h.deps.Catalog.CreateSubfolder(c.Context(), id, req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"path": folder})
}

// Plans

func (h *handler) listPlans(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	list, err := h.deps.Catalog.ListPlans(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

func (h *handler) addPlan(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file required in multipart/form-data")
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer f.Close()

	plan, err := h.deps.Catalog.AddPlan(c.Context(), id, c.FormValue("title"), c.FormValue("subfolder"), catalog.Document{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     f,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

func (h *handler) getPlan(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	plan, err := h.deps.Catalog.GetPlan(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(plan)
}

func (h *handler) deletePlan(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.deps.Catalog.DeletePlan(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) planDocument(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	plan, data, err := h.deps.Catalog.OpenPlan(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	contentType := plan.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

// Markers

func (h *handler) listMarkers(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if _, err := h.deps.Catalog.GetPlan(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	list, err := h.deps.Markers.ListMarkers(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

func (h *handler) upload(c fiber.Ctx) (markers.Upload, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return markers.Upload{}, nil, errors.New("file required in multipart/form-data")
	}
	f, err := fh.Open()
	if err != nil {
		return markers.Upload{}, nil, err
	}
	return markers.Upload{
		FileName:  fh.Filename,
		Content:   f,
		Subfolder: c.FormValue("subfolder"),
	}, func() { _ = f.Close() }, nil
}

func (h *handler) addMarker(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	up, done, err := h.upload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	defer done()

	m, err := h.deps.Markers.AddMarker(c.Context(), id, c.FormValue("title"), up)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (h *handler) moveMarker(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.X == nil || req.Y == nil {
		return badRequest(c, "x and y required")
	}
	if err := h.deps.Markers.UpdateMarkerPosition(c.Context(), id, *req.X, *req.Y); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) deleteMarker(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.deps.Markers.DeleteMarker(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) listImages(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	list, err := h.deps.Markers.ListMarkerImages(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

func (h *handler) addImage(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	up, done, err := h.upload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	defer done()

	img, err := h.deps.Markers.AddMarkerImage(c.Context(), id, up)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(img)
}

func (h *handler) deleteImage(c fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.deps.Markers.DeleteMarkerImage(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Documents

func (h *handler) listFiles(c fiber.Ctx) error {
	entries, err := h.deps.Files.List(c.Query("folder"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entries)
}

func (h *handler) getFile(c fiber.Ctx) error {
	p := c.Params("*")
	data, err := h.deps.Files.ReadFile(p)
	if err != nil {
		return h.fail(c, err)
	}
	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}
