package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/medclinic/healthapi/internal/clinic/service"
)

// RecordHandler exposes the medical record API.
type RecordHandler struct {
	svc *service.RecordService
}

// RegisterRecordRoutes mounts the medical record endpoints on r.
func RegisterRecordRoutes(r gin.IRouter, svc *service.RecordService) {
	h := &RecordHandler{svc: svc}
	g := r.Group("/api/medical-records")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/doctors/:doctorId", h.ListByDoctor)
	g.GET("/patients/:patientId", h.ListByPatient)
}

func (h *RecordHandler) Create(c *gin.Context) {
	var req service.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.AddRecord(c.Request.Context(), req.DoctorID, req.PatientID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *RecordHandler) List(c *gin.Context) {
	recs, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *RecordHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *RecordHandler) Update(c *gin.Context) {
	var req service.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.UpdateRecord(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecordHandler) ListByDoctor(c *gin.Context) {
	recs, err := h.svc.ListByDoctor(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *RecordHandler) ListByPatient(c *gin.Context) {
	recs, err := h.svc.ListByPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// writeError maps service errors to HTTP responses. Partial failures after
// a mutation started still surface as errors so callers never see a
// silently inconsistent success.
func writeError(c *gin.Context, err error) {
	var nf *clinic.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
