package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>healthapi — Swagger</title>
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

// Minimal OpenAPI document describing the clinic and auth endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "healthapi", "version": "v0.1.0" },
  "paths": {
    "/api/medical-records": {
      "post": { "summary": "Create a medical record and its rendered document", "responses": { "201": { "description": "record created" }, "404": { "description": "doctor or patient not found" } } },
      "get": { "summary": "List all medical records", "responses": { "200": { "description": "records" } } }
    },
    "/api/medical-records/{id}": {
      "get": { "summary": "Get a medical record", "responses": { "200": { "description": "record" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update a medical record (may re-point doctor/patient; regenerates the document)", "responses": { "200": { "description": "updated record" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a medical record, its links and its document", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/medical-records/doctors/{doctorId}": {
      "get": { "summary": "List records by doctor", "responses": { "200": { "description": "records" }, "404": { "description": "doctor not found" } } }
    },
    "/api/medical-records/patients/{patientId}": {
      "get": { "summary": "List records by patient", "responses": { "200": { "description": "records" }, "404": { "description": "patient not found" } } }
    },
    "/api/doctors": {
      "post": { "summary": "Add a doctor (multipart: doctor JSON + avatar file)", "responses": { "201": { "description": "doctor created" } } },
      "get": { "summary": "List doctors", "responses": { "200": { "description": "doctors" } } }
    },
    "/api/doctors/{id}": {
      "get": { "summary": "Get a doctor", "responses": { "200": { "description": "doctor" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update a doctor's profile", "responses": { "200": { "description": "updated doctor" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a doctor and its avatar", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/doctors/{id}/avatar": {
      "put": { "summary": "Replace a doctor's avatar (multipart file)", "responses": { "200": { "description": "doctor" }, "404": { "description": "not found" } } }
    },
    "/api/patients": {
      "post": { "summary": "Add a patient (multipart: patient JSON + avatar file)", "responses": { "201": { "description": "patient created" } } },
      "get": { "summary": "List patients", "responses": { "200": { "description": "patients" } } }
    },
    "/api/patients/{id}": {
      "get": { "summary": "Get a patient", "responses": { "200": { "description": "patient" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update a patient's profile", "responses": { "200": { "description": "updated patient" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a patient and its avatar", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/patients/{id}/avatar": {
      "put": { "summary": "Replace a patient's avatar (multipart file)", "responses": { "200": { "description": "patient" }, "404": { "description": "not found" } } }
    },
    "/auth/login": {
      "post": {
        "summary": "Exchange authorization code / login",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"mode":{"type":"string"},"username":{"type":"string"},"password":{"type":"string"},"code":{"type":"string"},"redirect_uri":{"type":"string"}}}}}},
        "responses": { "200": { "description": "tokens returned" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/api/v1/me": {
      "get": { "summary": "Get user info", "responses": { "200": { "description": "user or claims" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
