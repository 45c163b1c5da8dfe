package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
	"github.com/fyrsmithlabs/spiralmind/internal/knowledge"
)

type learnInput struct {
	Concept     string `json:"concept" jsonschema:"Concept name, case-insensitive"`
	Explanation string `json:"explanation" jsonschema:"Explanation to add to the concept"`
}

type learnOutput struct {
	Concept   string `json:"concept" jsonschema:"Normalized concept name"`
	Persisted bool   `json:"persisted" jsonschema:"False if the explanation is only held in memory"`
}

type recallInput struct {
	Concept string `json:"concept" jsonschema:"Concept to recall"`
}

type recallOutput struct {
	Concept string `json:"concept" jsonschema:"Normalized concept name"`
	Answer  string `json:"answer" jsonschema:"Explanation followed by connected concepts"`
}

type relatedInput struct {
	Concept string `json:"concept" jsonschema:"Concept whose neighbours to list; need not be stored"`
}

type relatedOutput struct {
	Concept string   `json:"concept" jsonschema:"Normalized concept name"`
	Related []string `json:"related" jsonschema:"Stored concepts sharing a word with the input"`
}

type askInput struct {
	Message   string `json:"message" jsonschema:"Utterance such as 'define gravity' or 'what is an orbit'"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Conversation to continue; defaults to this server's session"`
}

type askOutput struct {
	Response  string `json:"response" jsonschema:"Reply text"`
	Kind      string `json:"kind" jsonschema:"How the utterance was handled"`
	Concept   string `json:"concept,omitempty" jsonschema:"Concept the reply is about"`
	SessionID string `json:"session_id" jsonschema:"Session id to pass on follow-ups"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "concept_learn",
		Description: "Teach spiralmind an explanation for a concept and link it to overlapping concepts",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args learnInput) (*mcp.CallToolResult, learnOutput, error) {
		out, err := instrument(ctx, s, "concept_learn", func() (learnOutput, error) {
			return s.learn(ctx, args)
		})
		if err != nil {
			return nil, learnOutput{}, err
		}
		return textResult("Learned: %s", out.Concept), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "concept_recall",
		Description: "Recall what spiralmind knows about a concept, expanded with connected concepts",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args recallInput) (*mcp.CallToolResult, recallOutput, error) {
		out, err := instrument(ctx, s, "concept_recall", func() (recallOutput, error) {
			return s.recall(ctx, args)
		})
		if err != nil {
			return nil, recallOutput{}, err
		}
		return textResult("%s", out.Answer), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "concept_related",
		Description: "List stored concepts that share a word with the given concept",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args relatedInput) (*mcp.CallToolResult, relatedOutput, error) {
		out, err := instrument(ctx, s, "concept_related", func() (relatedOutput, error) {
			return s.related(args)
		})
		if err != nil {
			return nil, relatedOutput{}, err
		}
		return textResult("Found %d related concepts", len(out.Related)), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask",
		Description: "Chat with spiralmind: define X, what is X, 'X - meaning', or a free-form follow-up",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, askOutput, error) {
		out, err := instrument(ctx, s, "ask", func() (askOutput, error) {
			return s.ask(ctx, args), nil
		})
		if err != nil {
			return nil, askOutput{}, err
		}
		return textResult("%s", out.Response), out, nil
	})
}

// instrument records invocation metrics around fn.
func instrument[T any](ctx context.Context, s *Server, tool string, fn func() (T, error)) (T, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	out, err := fn()
	s.metrics.DecrementActive(ctx, tool)
	s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
	if err != nil {
		s.logger.Debug("tool failed", zap.String("tool", tool), zap.Error(err))
	}
	return out, err
}

func textResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

func (s *Server) learn(ctx context.Context, args learnInput) (learnOutput, error) {
	err := s.store.Learn(ctx, args.Concept, args.Explanation)
	if err != nil && !errors.Is(err, knowledge.ErrPersistence) {
		return learnOutput{}, fmt.Errorf("learn %q: %w", args.Concept, err)
	}
	if err != nil {
		s.logger.Warn("learned concept not persisted", zap.Error(err))
	}
	return learnOutput{
		Concept:   concept.Normalize(args.Concept).String(),
		Persisted: err == nil,
	}, nil
}

func (s *Server) recall(ctx context.Context, args recallInput) (recallOutput, error) {
	answer, err := s.store.Recall(ctx, args.Concept)
	if err != nil {
		return recallOutput{}, fmt.Errorf("recall %q: %w", args.Concept, err)
	}
	return recallOutput{
		Concept: concept.Normalize(args.Concept).String(),
		Answer:  answer,
	}, nil
}

func (s *Server) related(args relatedInput) (relatedOutput, error) {
	c := concept.Normalize(args.Concept)
	if c.IsZero() {
		return relatedOutput{}, knowledge.ErrEmptyConcept
	}

	found := s.store.FindRelated(c.String())
	related := make([]string, len(found))
	for i, r := range found {
		related[i] = r.String()
	}
	return relatedOutput{Concept: c.String(), Related: related}, nil
}

func (s *Server) ask(ctx context.Context, args askInput) askOutput {
	sessionID := strings.TrimSpace(args.SessionID)
	if sessionID == "" {
		sessionID = s.defaultSession()
	}

	resp := s.router.Submit(ctx, sessionID, args.Message)
	if args.SessionID == "" {
		s.rememberSession(resp.SessionID)
	}

	return askOutput{
		Response:  resp.Text,
		Kind:      string(resp.Kind),
		Concept:   resp.Concept,
		SessionID: resp.SessionID,
	}
}
