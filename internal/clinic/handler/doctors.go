package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medclinic/healthapi/internal/clinic/service"
)

// DoctorHandler exposes the doctor API. Creation and avatar replacement are
// multipart: a JSON part with the profile plus a file part with the image.
type DoctorHandler struct {
	svc *service.DoctorService
}

// RegisterDoctorRoutes mounts the doctor endpoints on r.
func RegisterDoctorRoutes(r gin.IRouter, svc *service.DoctorService) {
	h := &DoctorHandler{svc: svc}
	g := r.Group("/api/doctors")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/avatar", h.UpdateAvatar)
}

func (h *DoctorHandler) Create(c *gin.Context) {
	var req service.DoctorRequest
	if err := json.Unmarshal([]byte(c.PostForm("doctor")), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, err := formUpload(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.svc.AddDoctor(c.Request.Context(), req, file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *DoctorHandler) List(c *gin.Context) {
	ds, err := h.svc.ReadDoctors(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (h *DoctorHandler) Get(c *gin.Context) {
	d, err := h.svc.ReadDoctor(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DoctorHandler) Update(c *gin.Context) {
	var req service.DoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.svc.UpdateDoctor(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DoctorHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteDoctor(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DoctorHandler) UpdateAvatar(c *gin.Context) {
	file, err := formUpload(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.svc.UpdateAvatar(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// formUpload reads the named multipart file part into memory.
func formUpload(c *gin.Context, name string) (*service.Upload, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, err
	}
	return readUpload(fh)
}

func readUpload(fh *multipart.FileHeader) (*service.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
