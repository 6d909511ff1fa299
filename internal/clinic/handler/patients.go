package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medclinic/healthapi/internal/clinic/service"
)

// PatientHandler exposes the patient API, mirroring the doctor side.
type PatientHandler struct {
	svc *service.PatientService
}

// RegisterPatientRoutes mounts the patient endpoints on r.
func RegisterPatientRoutes(r gin.IRouter, svc *service.PatientService) {
	h := &PatientHandler{svc: svc}
	g := r.Group("/api/patients")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/avatar", h.UpdateAvatar)
}

func (h *PatientHandler) Create(c *gin.Context) {
	var req service.PatientRequest
	if err := json.Unmarshal([]byte(c.PostForm("patient")), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, err := formUpload(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.AddPatient(c.Request.Context(), req, file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PatientHandler) List(c *gin.Context) {
	ps, err := h.svc.ReadPatients(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (h *PatientHandler) Get(c *gin.Context) {
	p, err := h.svc.ReadPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PatientHandler) Update(c *gin.Context) {
	var req service.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.UpdatePatient(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PatientHandler) Delete(c *gin.Context) {
	if err := h.svc.DeletePatient(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PatientHandler) UpdateAvatar(c *gin.Context) {
	file, err := formUpload(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.UpdateAvatar(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
