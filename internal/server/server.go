// Package server exposes the chat and knowledge base operations over
// HTTP.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ragchat/ragchat/internal/chat"
	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/ingest"
	"github.com/ragchat/ragchat/internal/logger"
	"github.com/ragchat/ragchat/internal/stream"
)

const previewLength = 200

// Server wires the engine, the ingestion pipeline and the store into an
// HTTP API.
type Server struct {
	engine      *chat.Engine
	pipeline    *ingest.Pipeline
	store       core.VectorStore
	embedModel  string
	frontendURL string
}

// New creates a Server.
func New(engine *chat.Engine, pipeline *ingest.Pipeline, store core.VectorStore, embedModel, frontendURL string) *Server {
	return &Server{
		engine:      engine,
		pipeline:    pipeline,
		store:       store,
		embedModel:  embedModel,
		frontendURL: frontendURL,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.cors())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/model-info", s.handleModelInfo)
	r.GET("/stats", s.handleStats)

	r.POST("/chat", s.handleChat)
	r.POST("/chat/stream", s.handleChatStream)
	r.POST("/upload-pdf", s.handleUploadPDF)
	r.POST("/add-website", s.handleAddWebsite)

	r.GET("/documents", s.handleListDocuments)
	r.DELETE("/documents/batch", s.handleDeleteBatch)
	r.DELETE("/documents/:id", s.handleDeleteDocument)
	r.DELETE("/delete-by-source", s.handleDeleteBySource)
	r.DELETE("/clear-knowledge-base", s.handleClear)

	return r
}

func (s *Server) cors() gin.HandlerFunc {
	origin := s.frontendURL
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	p := s.engine.Provider()
	c.JSON(http.StatusOK, gin.H{
		"message":     "RAG Chatbot API is running",
		"ai_provider": p.Name(),
		"model":       p.Model(),
		"status":      "healthy",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "chatbot_ready": true})
}

func (s *Server) handleModelInfo(c *gin.Context) {
	count, err := s.store.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	p := s.engine.Provider()
	c.JSON(http.StatusOK, gin.H{
		"ai_provider":        p.Name(),
		"model":              p.Model(),
		"embedding_model":    s.embedModel,
		"database_documents": count,
	})
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	answer, err := s.engine.Answer(c.Request.Context(), req.Message)
	if err != nil {
		// Sentinel conditions are answers, not faults.
		if errors.Is(err, chat.ErrEmptyKnowledgeBase) || errors.Is(err, chat.ErrNoRelevantContext) {
			c.JSON(http.StatusOK, gin.H{"response": chat.UserMessage(err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": answer})
}

func (s *Server) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	enc := stream.NewEncoder(c.Writer)
	err := s.engine.AnswerStream(c.Request.Context(), req.Message, enc.Encode)
	if err != nil {
		logger.WebWarn("Chat stream aborted: %v", err)
	}
}

func (s *Server) handleUploadPDF(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing file upload"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only PDF files are allowed"})
		return
	}

	tmpDir, err := os.MkdirTemp("", "ragchat-upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	if _, err := s.pipeline.IngestPDF(c.Request.Context(), tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully processed PDF: %s", file.Filename),
		"status":  "success",
	})
}

type websiteRequest struct {
	URL      string `json:"url" binding:"required"`
	MaxPages int    `json:"max_pages"`
}

func (s *Server) handleAddWebsite(c *gin.Context) {
	var req websiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if _, err := s.pipeline.IngestWebsite(c.Request.Context(), req.URL, req.MaxPages); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully processed website: %s", req.URL),
		"status":  "success",
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_chunks": stats.TotalChunks,
		"sources":      stats.PerType,
	})
}

type documentView struct {
	ID             string `json:"id"`
	Source         string `json:"source"`
	Type           string `json:"type"`
	ContentPreview string `json:"content_preview"`
	ChunkIndex     int    `json:"chunk_index"`
	URL            string `json:"url,omitempty"`
}

func (s *Server) handleListDocuments(c *gin.Context) {
	chunks, err := s.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	documents := make([]documentView, 0, len(chunks))
	grouped := make(map[string][]documentView)
	for _, chunk := range chunks {
		preview := chunk.Text
		if len(preview) > previewLength {
			preview = preview[:previewLength] + "..."
		}
		doc := documentView{
			ID:             chunk.ID,
			Source:         chunk.Source,
			Type:           string(chunk.Type),
			ContentPreview: preview,
			ChunkIndex:     chunk.ChunkIndex,
			URL:            chunk.URL,
		}
		documents = append(documents, doc)
		grouped[chunk.Source] = append(grouped[chunk.Source], doc)
	}

	c.JSON(http.StatusOK, gin.H{
		"documents":         documents,
		"grouped_documents": grouped,
		"total_count":       len(documents),
	})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	_, ok, err := s.store.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found"})
		return
	}

	if err := s.store.Delete(ctx, []string{id}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Document %s deleted successfully", id),
		"status":  "success",
	})
}

func (s *Server) handleDeleteBatch(c *gin.Context) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No document IDs provided"})
		return
	}

	ctx := c.Request.Context()
	existing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok, err := s.store.Get(ctx, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		} else if ok {
			existing = append(existing, id)
		}
	}

	if len(existing) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No documents found to delete", "status": "success"})
		return
	}
	if err := s.store.Delete(ctx, existing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Deleted %d documents successfully", len(existing)),
		"status":  "success",
	})
}

func (s *Server) handleDeleteBySource(c *gin.Context) {
	sourceType := c.Query("source_type")
	if sourceType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "source_type query parameter is required"})
		return
	}

	deleted, err := s.store.DeleteByType(c.Request.Context(), core.SourceType(strings.ToLower(sourceType)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("No documents found of type %s", sourceType),
			"status":  "success",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Deleted %d documents of type %s", deleted, sourceType),
		"status":  "success",
	})
}

func (s *Server) handleClear(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Knowledge base cleared successfully",
		"status":  "success",
	})
}
