package web

import (
	"github.com/gofiber/fiber/v3"
)

// Register mounts every API route on the app.
func Register(app *fiber.App, handlers *APIHandlers) {
	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	e := app.Group("/executions")
	e.Post("/", handlers.StartExecution)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/stop", handlers.StopExecution)
	e.Post("/:id/retry", handlers.RetryExecution)

	app.Post("/webhooks/*", handlers.TriggerWebhook)

	app.Get("/health", handlers.HealthCheck)
}
