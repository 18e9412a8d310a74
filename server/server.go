// Package server exposes plate recognition over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/pipeline"
	"github.com/wudi/platekit/plate"
	"github.com/wudi/platekit/preprocess"
)

// MaxUploadBytes caps request images.
const MaxUploadBytes = 16 << 20

const requestIDHeader = "X-Request-ID"

// Recognizer is the pipeline as seen by the handlers.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (pipeline.Outcome, error)
}

// Server wires the handlers to a Recognizer and a Parser.
type Server struct {
	recognizer Recognizer
	parser     *plate.Parser
	logger     observability.Logger
	maxUpload  int64
}

// New returns a Server. A nil parser uses the built-in city registry.
func New(rec Recognizer, parser *plate.Parser, logger observability.Logger) *Server {
	if parser == nil {
		parser = plate.NewParser()
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Server{recognizer: rec, parser: parser, logger: logger, maxUpload: MaxUploadBytes}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())
	r.MaxMultipartMemory = s.maxUpload

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	v1 := r.Group("/api/v1/plates")
	{
		v1.POST("/recognize", s.recognizeJSON)
		v1.POST("/recognize/file", s.recognizeFile)
		v1.POST("/parse", s.parse)
	}
	return r
}

type recognizeRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
}

type recognizeResponse struct {
	RequestID      string  `json:"request_id"`
	PlateNumber    *string `json:"plate_number"`
	City           *string `json:"city"`
	PlateCharacter *string `json:"plate_character"`
	CarNumber      *string `json:"car_number"`
	Confidence     float64 `json:"confidence"`
	Accepted       bool    `json:"accepted"`
}

type parseRequest struct {
	Text string `json:"text"`
}

type parseResponse struct {
	RequestID      string  `json:"request_id"`
	Normalized     string  `json:"normalized"`
	City           *string `json:"city"`
	PlateCharacter *string `json:"plate_character"`
	CarNumber      *string `json:"car_number"`
}

func (s *Server) recognizeJSON(c *gin.Context) {
	limit := int64(base64.StdEncoding.EncodedLen(int(s.maxUpload))) + 1024
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, errors.New("request body exceeds upload limit"))
			return
		}
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	data, err := decodeBase64(req.ImageBase64)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	s.recognize(c, data)
}

func (s *Server) recognizeFile(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if fh.Size > s.maxUpload {
		s.fail(c, http.StatusRequestEntityTooLarge, errors.New("image exceeds upload limit"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	s.recognize(c, data)
}

func (s *Server) recognize(c *gin.Context, data []byte) {
	out, err := s.recognizer.Recognize(c.Request.Context(), data)
	switch {
	case errors.Is(err, preprocess.ErrEmptyImage), errors.Is(err, preprocess.ErrUndecodable),
		errors.Is(err, preprocess.ErrImageTooLarge):
		s.fail(c, http.StatusBadRequest, err)
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, recognizeResponse{
		RequestID:      requestID(c),
		PlateNumber:    optional(out.PlateNumber),
		City:           optional(out.City),
		PlateCharacter: optional(out.PlateCharacter),
		CarNumber:      optional(out.CarNumber),
		Confidence:     out.Confidence,
		Accepted:       out.Accepted,
	})
}

func (s *Server) parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	b := s.parser.Parse(req.Text)
	c.JSON(http.StatusOK, parseResponse{
		RequestID:      requestID(c),
		Normalized:     plate.Normalize(req.Text),
		City:           optional(b.City),
		PlateCharacter: optional(b.Character),
		CarNumber:      optional(b.Number),
	})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			observability.String("request_id", requestID(c)),
			observability.Error("error", err))
	}
	c.AbortWithStatusJSON(status, gin.H{"request_id": requestID(c), "error": err.Error()})
}

// requestID reuses a caller-supplied X-Request-ID or mints a UUID.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			observability.String("request_id", requestID(c)),
			observability.String("method", c.Request.Method),
			observability.String("path", c.FullPath()),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("elapsed", time.Since(start)),
		)
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDHeader)
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("image_base64 is not valid base64")
	}
	return data, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
