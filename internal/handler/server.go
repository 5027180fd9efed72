// Package handler wires gin routes onto the application service layer,
// grounded on the teacher's internal/handler package (handler structs
// wrapping a service, gin.H response shapes, Swagger doc comments).
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vantageplatform/vantage-core/internal/application/service/chatpath"
	"github.com/vantageplatform/vantage-core/internal/application/service/fact"
	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/application/service/identity"
	"github.com/vantageplatform/vantage-core/internal/application/service/policy"
	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	"github.com/vantageplatform/vantage-core/internal/application/service/telemetry"
	"github.com/vantageplatform/vantage-core/internal/config"
	"github.com/vantageplatform/vantage-core/internal/handler/middleware"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// Server bundles every application-layer service a handler needs. One
// Server instance backs every request (spec.md §5 "stateless per request",
// shared singleton collaborators).
type Server struct {
	DB *gorm.DB

	Threads   interfaces.ThreadRepository
	Cards     interfaces.CardRepository
	Facts     interfaces.FactRepository
	Traces    interfaces.AnswerTraceRepository
	Vectors   interfaces.VectorStore

	Retrieval *retrieval.Service
	Gravity   *gravity.Service
	Identity  *identity.Service
	Policy    *policy.Service
	Telemetry *telemetry.Service
	Fact      *fact.Service

	RAGQuery         *chatpath.Service
	VantageCfg       config.VantageConfig
	VoiceToken       string
	VoiceUpstreamURL string
	AdminJWTSecret   string
}

// NewServer assembles a Server from the already-constructed collaborators;
// cmd/server/main.go is the only caller.
func NewServer(db *gorm.DB, threads interfaces.ThreadRepository, cards interfaces.CardRepository, facts interfaces.FactRepository, traces interfaces.AnswerTraceRepository, vectors interfaces.VectorStore, retr *retrieval.Service, grav *gravity.Service, ident *identity.Service, pol *policy.Service, telem *telemetry.Service, factSvc *fact.Service, ragQuery *chatpath.Service, vantageCfg config.VantageConfig, providerCfg config.ProviderConfig) *Server {
	return &Server{
		DB: db, Threads: threads, Cards: cards, Facts: facts, Traces: traces, Vectors: vectors,
		Retrieval: retr, Gravity: grav, Identity: ident, Policy: pol, Telemetry: telem, Fact: factSvc,
		RAGQuery: ragQuery, VantageCfg: vantageCfg,
		VoiceToken: providerCfg.VoiceWSToken, VoiceUpstreamURL: providerCfg.VoiceRealtimeURL,
		AdminJWTSecret: providerCfg.AdminJWTSecret,
	}
}

// Router builds the gin engine with middleware and every spec.md §6 route
// wired, in the order gin matches them.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())

	r.GET("/healthz", s.Healthz)
	r.GET("/readyz", s.Readyz)

	r.POST("/log", s.PostLog)

	r.POST("/threads/new", s.CreateThread)
	r.GET("/threads/list/:user_id", s.ListThreads)
	r.GET("/threads/:id/messages", s.ThreadMessages)
	r.POST("/threads/:id/rename", s.RenameThread)
	r.POST("/threads/:id/archive", s.ArchiveThread)
	r.DELETE("/threads/:id", s.DeleteThread)

	r.POST("/retrieve", s.Retrieve)
	r.POST("/retrieve_memory", s.RetrieveMemory)
	r.POST("/memory_feedback", s.MemoryFeedback)

	r.POST("/gravity/rebuild", s.GravityRebuild)
	r.POST("/vb_desire/rebuild", s.VBDesireRebuild)
	r.GET("/temporal/:user_id", s.Temporal)

	r.GET("/cards/:user_id", s.ListCards)
	r.POST("/cards/:user_id", s.UpsertCard)
	r.DELETE("/cards/:user_id/:card_id", s.DeleteCard)

	r.GET("/user/:id/export", s.ExportUser)
	r.DELETE("/user/:id/data", s.DeleteUserData)
	r.DELETE("/user/:id/recent", s.DeleteUserRecent)

	r.POST("/rag/query", s.RAGQueryHandler)
	r.POST("/vantage/query", s.RAGQueryHandler)
	r.POST("/rag/feedback", s.RAGFeedbackHandler)
	r.POST("/vantage/feedback", s.RAGFeedbackHandler)

	admin := middleware.AdminAuth(s.AdminJWTSecret)
	r.GET("/vantage/rag_policy", s.GetRAGPolicy)
	r.POST("/vantage/rag_policy", admin, s.PostRAGPolicy)

	r.POST("/telemetry/event", admin, s.PostTelemetryEvent)
	r.GET("/metrics/timeseries", s.GetMetricsTimeseries)

	r.GET("/ws/voice", s.VoiceRelay)

	return r
}

// Healthz is a bare liveness probe (spec.md §6 "GET /healthz, /readyz:
// liveness + readiness (DB)").
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz additionally checks the database connection.
func (s *Server) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.DB.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// resolveCanonicalUser canonicalizes an inbound (vantage_id, user_id) pair
// through the identity service, falling back to the alias itself if
// identity resolution is unavailable or errors (spec.md §1 "identity
// resolution is the identity function until a mapping is recorded").
func (s *Server) resolveCanonicalUser(ctx context.Context, vantageID, aliasUserID string) string {
	if s.Identity == nil || aliasUserID == "" {
		return aliasUserID
	}
	canonical, err := s.Identity.Resolve(ctx, vantageID, aliasUserID)
	if err != nil {
		return aliasUserID
	}
	return canonical
}
