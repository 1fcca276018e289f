package server

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chaos-io/rembg-batch/batch"
	"github.com/chaos-io/rembg-batch/logger"
	"github.com/chaos-io/rembg-batch/util"
)

const maxUploadSize = 32 << 20

var ErrBusy = errors.New("a batch run is already in progress")

type Server struct {
	batch     *batch.Batch
	inputDir  string
	outputDir string
	log       *logrus.Entry

	// 同一时间只跑一个批处理
	running sync.Mutex
}

func New(b *batch.Batch, inputDir, outputDir string, log *logrus.Entry) *Server {
	return &Server{
		batch:     b,
		inputDir:  inputDir,
		outputDir: outputDir,
		log:       log,
	}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadSize
	r.Use(s.requestLogger(), gin.Recovery())

	r.GET("/", s.index)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	api := r.Group("/api")
	api.POST("/remove", s.remove)
	api.POST("/batch", s.runBatch)
	return r
}

// ListenAndServe 直到 ctx 结束后优雅退出
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "rembg-batch API is running",
		"endpoints": gin.H{
			"remove": "POST /api/remove (multipart field \"file\")",
			"batch":  "POST /api/batch",
		},
	})
}

func (s *Server) remove(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\""})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		_ = f.Close()
	}()

	img, err := util.DecodeImage(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := logger.WithLogEntry(c.Request.Context(), s.log.WithField("file", fh.Filename))
	out, err := s.batch.RemoveImage(ctx, img)
	if err != nil {
		s.log.WithError(err).WithField("file", fh.Filename).Error("remove failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := util.EncodePNG(&buf, out); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// RunBatch 执行一次批处理, 已有批处理在跑时返回 ErrBusy
func (s *Server) RunBatch(ctx context.Context) (*batch.Summary, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	return s.batch.Run(logger.WithLogEntry(ctx, s.log), s.inputDir, s.outputDir)
}

func (s *Server) runBatch(c *gin.Context) {
	summary, err := s.RunBatch(c.Request.Context())
	if errors.Is(err, ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Info("request")
	}
}
