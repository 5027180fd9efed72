// Package chatpath implements component L: the chat query endpoint flow
// (identity/policy bypass, greeting bypass, retrieve+compose+chat+persist)
// and the feedback classification path, grounded on
// original_source/rag_engine/app.py's /rag/query and /rag/feedback
// handlers and vantage_router.py's decision wiring.
package chatpath

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/application/service/persona"
	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	"github.com/vantageplatform/vantage-core/internal/application/service/vantage"
	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

const (
	personalTopKDefault  = 8
	personalTopKAfterMix = 3
	corpusTopKDefault    = 5
)

// bypassIdentityPhrases are the identity/policy control-surface phrases
// that skip retrieval and persona composition entirely (spec.md §4.L step 2).
var bypassIdentityPhrases = []string{
	"echo model id", "echo decision", "echo threadctx",
	"what model are you", "what is your model",
}

// greetingPhrases mark a pure re-entry greeting (spec.md §4.L step 3).
var greetingPhrases = []string{"hi", "hello", "hey", "yo", "sup", "good morning", "good evening", "good afternoon"}

// Service wires retrieval, persona composition, the vantage decision
// engine, the chat provider, and answer-trace persistence into one query
// flow.
type Service struct {
	Retrieval *retrieval.Service
	Persona   *persona.Service
	Gravity   *gravity.Service
	Chat      interfaces.ChatProvider
	Threads   interfaces.ThreadRepository
	Traces    interfaces.AnswerTraceRepository

	Model               string
	PersonalMemory      bool
	RitualBypass        bool
	GreetingBypass      bool
	EnforceClarifyShape bool
	ReentryPrefix       bool
}

// Result is what the /rag/query and /vantage/query handlers return.
type Result struct {
	AnswerID  string
	Text      string
	MemoryIDs []string
}

// Query runs the full chat path for one inbound message (spec.md §4.L).
func (s *Service) Query(ctx context.Context, userID, threadID, vantageID, message string, limits vantage.Limits, routing vantage.Routing) (*Result, error) {
	userID = strings.TrimSpace(userID)
	vid := strings.TrimSpace(vantageID)
	if vid == "" {
		vid = "default"
	}

	if s.RitualBypass && (retrieval.IsBypassQuery(message) || isIdentityPolicyBypass(message)) {
		return s.respondWithoutMemory(ctx, userID, threadID, vid, message)
	}

	if s.GreetingBypass && isPureGreeting(message) {
		return s.respondMinimal(ctx, userID, threadID, vid, message)
	}

	sd := vantage.ExtractSDFeatures(message, "")
	params := vantage.DeriveParams(sd, limits)
	decision := vantage.Decide(sd, params, routing)
	overlay := vantage.BuildOverlayText(params, decision)

	personalK := personalTopKDefault
	corpusK := corpusTopKDefault
	var composed retrieval.Composed
	var err error
	if s.PersonalMemory && s.Retrieval != nil {
		composed, err = s.Retrieval.Retrieve(ctx, userID, vid, message, personalK, corpusK, 0)
		if err != nil {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		if len(composed.Personal) > personalTopKAfterMix {
			composed.Personal = composed.Personal[:personalTopKAfterMix]
		}
	}

	misalignment := 0.0
	if s.Gravity != nil && userID != "" {
		if weights, _ := s.Gravity.LoadGravityProfile(ctx, userID); len(weights) > 0 {
			misalignment = gravity.ComputeMisalignment(retrieval.InferQueryTags(message), weights)
		}
	}

	if s.ReentryPrefix && s.Threads != nil && userID != "" {
		if prefix := s.temporalReentryPrefix(ctx, userID); prefix != "" {
			message = prefix + message
		}
	}

	systemPrompt := s.BasePromptFor(ctx, userID, composed, overlay, misalignment)

	answerText, err := s.Chat.Chat(ctx, s.Model, []interfaces.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: message},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	answerText = vantage.EnforceSurface(answerText, params)

	if s.EnforceClarifyShape && decision.ResponseClass == vantage.Clarify {
		answerText = enforceClarifyShape(answerText, decision.MaxClarifyQuestions)
	}

	memoryIDs := make([]string, 0, len(composed.Personal))
	for _, h := range composed.Personal {
		memoryIDs = append(memoryIDs, h.ID)
	}

	answerID := idgen.New()
	trace := &types.AnswerTrace{
		AnswerID:       answerID,
		UserID:         userID,
		VantageID:      vid,
		ModelID:        s.Model,
		AnswerText:     answerText,
		AnswerTextHash: sha256Hex(answerText),
		MemoryIDs:      types.JSONStringSlice(memoryIDs),
		CreatedAt:      time.Now().UTC(),
	}
	if threadID != "" {
		trace.ThreadID = &threadID
	}
	if s.Traces != nil {
		if err := s.Traces.Insert(ctx, trace); err != nil {
			return nil, fmt.Errorf("persist answer trace: %w", err)
		}
	}

	result := &Result{AnswerID: answerID, Text: answerText, MemoryIDs: memoryIDs}
	cacheResult(userID, threadID, vid, result)
	return result, nil
}

// BasePromptFor delegates to the persona composer, falling back to a bare
// overlay-only prompt if persona composition is unavailable.
func (s *Service) BasePromptFor(ctx context.Context, userID string, composed retrieval.Composed, overlay string, misalignment float64) string {
	if s.Persona == nil {
		return overlay
	}
	prompt, err := s.Persona.BuildSystemPrompt(ctx, userID, composed, overlay, misalignment)
	if err != nil {
		return overlay
	}
	return prompt
}

func (s *Service) respondWithoutMemory(ctx context.Context, userID, threadID, vantageID, message string) (*Result, error) {
	systemPrompt := s.BasePromptFor(ctx, userID, retrieval.Composed{}, "", 0)
	answerText, err := s.Chat.Chat(ctx, s.Model, []interfaces.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: message},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	answerID := idgen.New()
	trace := &types.AnswerTrace{
		AnswerID:       answerID,
		UserID:         userID,
		VantageID:      vantageID,
		ModelID:        s.Model,
		AnswerText:     answerText,
		AnswerTextHash: sha256Hex(answerText),
		MemoryIDs:      types.JSONStringSlice{},
		CreatedAt:      time.Now().UTC(),
	}
	if threadID != "" {
		trace.ThreadID = &threadID
	}
	if s.Traces != nil {
		if err := s.Traces.Insert(ctx, trace); err != nil {
			return nil, fmt.Errorf("persist answer trace: %w", err)
		}
	}
	return &Result{AnswerID: answerID, Text: answerText}, nil
}

func isIdentityPolicyBypass(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	for _, p := range bypassIdentityPhrases {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}

// respondMinimal handles the pure re-entry greeting bypass: no persona
// block, no memory injection, no overlay (spec.md §4.L step 3).
func (s *Service) respondMinimal(ctx context.Context, userID, threadID, vantageID, message string) (*Result, error) {
	answerText, err := s.Chat.Chat(ctx, s.Model, []interfaces.ChatMessage{
		{Role: "system", Content: "You are a helpful, direct assistant."},
		{Role: "user", Content: message},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	answerID := idgen.New()
	trace := &types.AnswerTrace{
		AnswerID:       answerID,
		UserID:         userID,
		VantageID:      vantageID,
		ModelID:        s.Model,
		AnswerText:     answerText,
		AnswerTextHash: sha256Hex(answerText),
		MemoryIDs:      types.JSONStringSlice{},
		CreatedAt:      time.Now().UTC(),
	}
	if threadID != "" {
		trace.ThreadID = &threadID
	}
	if s.Traces != nil {
		if err := s.Traces.Insert(ctx, trace); err != nil {
			return nil, fmt.Errorf("persist answer trace: %w", err)
		}
	}
	return &Result{AnswerID: answerID, Text: answerText}, nil
}

func isPureGreeting(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	m = strings.Trim(m, "!.? ")
	if m == "" {
		return false
	}
	for _, g := range greetingPhrases {
		if m == g {
			return true
		}
	}
	return false
}

// enforceClarifyShape strips non-question content from a CLARIFY answer,
// keeping at most maxQuestions question sentences (spec.md §4.I
// "the post-generation enforcer strips non-question content").
func enforceClarifyShape(text string, maxQuestions int) string {
	if maxQuestions <= 0 {
		maxQuestions = 1
	}
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n'
	})
	var questions []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.HasSuffix(s, "?") {
			questions = append(questions, s)
		}
	}
	if len(questions) == 0 {
		return text
	}
	if len(questions) > maxQuestions {
		questions = questions[:maxQuestions]
	}
	return strings.Join(questions, "\n")
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
