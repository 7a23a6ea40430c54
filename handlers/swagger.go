package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints:
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docvault — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the public API surface.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docvault", "version": "v0.1.0" },
  "paths": {
    "/api/auth/register": {
      "post": { "summary": "Create an account", "responses": { "201": { "description": "account created, tokens returned" }, "409": { "description": "email already registered" } } }
    },
    "/api/auth/login": {
      "post": { "summary": "Password login", "responses": { "200": { "description": "tokens returned" }, "401": { "description": "invalid credentials" } } }
    },
    "/api/auth/refresh": {
      "post": { "summary": "Refresh access token", "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh token" } } }
    },
    "/api/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/documents": {
      "get": { "summary": "List documents visible to the caller", "responses": { "200": { "description": "paginated documents" } } },
      "post": { "summary": "Upload a document (multipart)", "responses": { "201": { "description": "document created" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document", "responses": { "200": { "description": "document" }, "403": { "description": "not the owner" }, "404": { "description": "unknown id" } } },
      "patch": { "summary": "Update title, description or metadata", "responses": { "200": { "description": "updated document" } } },
      "delete": { "summary": "Delete a document and its content", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/documents/{id}/download": {
      "get": { "summary": "Download the stored content", "responses": { "200": { "description": "file stream" } } }
    },
    "/api/ingestion": {
      "get": { "summary": "List ingestion processes visible to the caller", "responses": { "200": { "description": "paginated processes" } } },
      "post": { "summary": "Start an ingestion process for a document", "responses": { "201": { "description": "process created in pending state" }, "409": { "description": "document already has an active process" } } }
    },
    "/api/ingestion/{id}": {
      "get": { "summary": "Get an ingestion process", "responses": { "200": { "description": "process" } } }
    },
    "/api/ingestion/{id}/cancel": {
      "post": { "summary": "Cancel an active ingestion process", "responses": { "200": { "description": "process marked failed with cancellation message" }, "409": { "description": "process already finished" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
