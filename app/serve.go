package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/lixiaoqing/t2t/nlp/decoder"
	"github.com/lixiaoqing/t2t/nlp/format/bracket"

	"github.com/gin-gonic/gin"
	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const REQUEST_ID_HEADER = "X-Request-ID"

var serveAddr string

type TranslateRequest struct {
	Tree       string `json:"tree" binding:"required"`
	NBest      int    `json:"nbest"`
	Derivation bool   `json:"derivation"`
}

type TranslateResponse struct {
	RequestID   string          `json:"request_id"`
	Translation string          `json:"translation"`
	NBest       []decoder.Entry `json:"nbest,omitempty"`
	Derivation  []string        `json:"derivation,omitempty"`
}

// Server answers translation requests with a loaded decoder
type Server struct {
	Batch *decoder.Batch
	Log   *slog.Logger

	// upper bound on the n-best size a request may ask for
	MaxNBest int
}

func requestID(c *gin.Context) {
	id := c.GetHeader(REQUEST_ID_HEADER)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(REQUEST_ID_HEADER, id)
	c.Next()
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID)
	router.GET("/healthz", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/v1/translate", s.Translate)
	return router
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Translate(c *gin.Context) {
	id := c.GetString("request_id")
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "request_id": id})
		return
	}
	// batches skip malformed lines, a request gets told
	if _, err := bracket.Parse(req.Tree); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tree: " + err.Error(), "request_id": id})
		return
	}
	nbest := req.NBest
	if nbest <= 0 {
		nbest = 1
	}
	if s.MaxNBest > 0 && nbest > s.MaxNBest {
		nbest = s.MaxNBest
	}
	batch := *s.Batch
	batch.Derivations = req.Derivation
	batch.Log = s.Log.With("request_id", id)
	t, err := batch.TranslateLine(c.Request.Context(), req.Tree, nbest)
	if err != nil {
		batch.Log.Error("translation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "translation failed", "request_id": id})
		return
	}
	c.JSON(http.StatusOK, TranslateResponse{
		RequestID:   id,
		Translation: t.Text,
		NBest:       t.NBest,
		Derivation:  t.Derivation,
	})
}

func Serve(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"c", "addr"}); err != nil {
		return err
	}
	runID := uuid.New()
	logger := NewLogger(os.Stderr).With("run", runID.String())
	config, err := LoadConfig()
	if err != nil {
		return err
	}
	ConfigOut(config, logger)
	shutdown, err := SetupTracing(traceExporter, runID)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	dec, err := LoadDecoder(config, logger)
	if err != nil {
		return err
	}
	cache, closeCache, err := OpenCache(logger)
	if err != nil {
		return err
	}
	defer closeCache()

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		Batch:    &decoder.Batch{Decoder: dec, Cache: cache, Log: logger},
		Log:      logger,
		MaxNBest: config.BeamSize,
	}
	srv := &http.Server{Addr: serveAddr, Handler: s.Router()}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.Info("serving translations", "addr", serveAddr)
	select {
	case err := <-errc:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func ServeCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       Serve,
		UsageLine: "serve <file options> [arguments]",
		Short:     "serve translations over HTTP",
		Long: `
serve translations over HTTP

	$ ./t2t serve -c config.ini [-addr :8080] [options]

	POST /v1/translate {"tree": "( IP ... )", "nbest": 5, "derivation": true}
	GET  /healthz
	GET  /metrics

`,
		Flag: *flag.NewFlagSet("serve", flag.ExitOnError),
	}
	modelFlags(&cmd.Flag)
	cmd.Flag.StringVar(&serveAddr, "addr", ":8080", "Listen address")
	return cmd
}
