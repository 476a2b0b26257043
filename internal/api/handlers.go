package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/pkg/printformat"
)

// handleGetPrinter reports the printer link
func (s *Server) handleGetPrinter(c *gin.Context) {
	present := true
	if s.monitor != nil {
		present = s.monitor.Available()
	}
	c.JSON(http.StatusOK, gin.H{
		"name":    s.link.Name(),
		"present": present,
		"stats":   s.link.Stats(),
	})
}

// handleGetPorts lists printer candidates
func (s *Server) handleGetPorts(c *gin.Context) {
	ports, err := s.opts.ListPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

func (s *Server) handlePrintText(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	s.submit(c, job.Text{Content: req.Text})
}

func (s *Server) handlePrintQR(c *gin.Context) {
	var req struct {
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}
	s.submit(c, job.QRCode{Payload: req.Payload})
}

func (s *Server) handlePrintBarcode(c *gin.Context) {
	var req struct {
		Symbology string `json:"symbology" binding:"required"`
		Payload   string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbology and payload are required"})
		return
	}

	sym, err := job.ParseSymbology(req.Symbology)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "error_kind": "invalid_payload"})
		return
	}
	s.submit(c, job.Barcode{Symbology: sym, Payload: req.Payload})
}

// handlePrintImage accepts a multipart upload (file, caption) or JSON
// {file_id, caption}
func (s *Server) handlePrintImage(c *gin.Context) {
	if isMultipart(c) {
		fileID, ok := s.saveUpload(c)
		if !ok {
			return
		}
		s.submit(c, job.Image{Source: fileID, Caption: c.PostForm("caption")})
		return
	}

	var req struct {
		FileID  string `json:"file_id" binding:"required"`
		Caption string `json:"caption"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file or file_id is required"})
		return
	}
	s.submit(c, job.Image{Source: req.FileID, Caption: req.Caption})
}

// handlePrintSticker accepts a multipart upload (file, animated) or JSON
// {file_id, animated}
func (s *Server) handlePrintSticker(c *gin.Context) {
	if isMultipart(c) {
		fileID, ok := s.saveUpload(c)
		if !ok {
			return
		}
		s.submit(c, job.Sticker{Source: fileID, Animated: cast.ToBool(c.PostForm("animated"))})
		return
	}

	var req struct {
		FileID   string `json:"file_id" binding:"required"`
		Animated bool   `json:"animated"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file or file_id is required"})
		return
	}
	s.submit(c, job.Sticker{Source: req.FileID, Animated: req.Animated})
}

// handlePrintDocument accepts a print document
func (s *Server) handlePrintDocument(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := printformat.Parse(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	j, err := doc.ToJob()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "error_kind": "invalid_payload"})
		return
	}
	s.submit(c, j)
}

// handleGetJobs returns all print jobs
func (s *Server) handleGetJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.queue.GetAllJobs()})
}

// handleGetJob returns a specific print job
func (s *Server) handleGetJob(c *gin.Context) {
	rec := s.queue.GetJob(c.Param("id"))
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(req.Command)
	if !result.Success {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   result.Error,
		})
		return
	}

	response := gin.H{"success": true}
	if result.Message != "" {
		response["message"] = result.Message
	}
	for k, v := range result.Data {
		response[k] = v
	}
	c.JSON(http.StatusOK, response)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// saveUpload stores the "file" form field and returns its identifier. On
// failure the response has been written.
func (s *Server) saveUpload(c *gin.Context) (string, bool) {
	if s.store == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploads are not enabled"})
		return "", false
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", false
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	defer f.Close()

	id, err := s.store.Save(f, filepath.Ext(header.Filename))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	s.logger.Debug("upload saved", zap.String("file_id", id), zap.Int64("bytes", header.Size))
	return id, true
}
