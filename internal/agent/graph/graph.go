package graph

import (
	"context"
	"fmt"

	"github.com/toefl-tutor-core/server/internal/agent/graph/conversations"
	"github.com/toefl-tutor-core/server/internal/agent/graph/nodes"
	"github.com/toefl-tutor-core/server/internal/agent/model"
	"github.com/toefl-tutor-core/server/internal/knowledge"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

// Runner is a thin wrapper to execute one traversal per user query.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// Config holds everything needed to compose the tutor graph end-to-end.
type Config struct {
	Store     knowledge.Store
	Sessions  *conversations.MessagesManager
	Engine    model.EngineConfig
	Retrieval model.RetrievalConfig
	Prompt    model.TutorPromptConfig
}

type tutorRunner struct {
	def      *Definition
	engine   *Engine
	sessions *conversations.MessagesManager
}

// BuildTutorGraph wires the tutor nodes into a compiled definition and
// returns a Runner that threads session history through each traversal.
func BuildTutorGraph(cfg Config) (Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("embedding store is nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("sessions manager is nil")
	}

	def, err := buildTutorDefinition(cfg)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Tutor graph built successfully")
	return &tutorRunner{
		def:      def,
		engine:   NewEngine(cfg.Engine.MaxSteps),
		sessions: cfg.Sessions,
	}, nil
}

// buildTutorDefinition declares the traversal:
//
//	intake -> retrieve -> respond   (examples retrieved)
//	                   \-> fallback (nothing retrieved)
func buildTutorDefinition(cfg Config) (*Definition, error) {
	promptCfg := cfg.Prompt

	builder := NewBuilder().
		AddNode(nodes.NodeIntake, nodes.NewIntakeNode()).
		AddNode(nodes.NodeRetrieve, nodes.NewRetrievalNode(cfg.Store, cfg.Retrieval.TopK)).
		AddTerminalNode(nodes.NodeRespond, nodes.NewRespondNode(&promptCfg)).
		AddTerminalNode(nodes.NodeFallback, nodes.NewFallbackNode(&promptCfg)).
		SetEntry(nodes.NodeIntake).
		AddEdge(nodes.NodeIntake, nodes.NodeRetrieve).
		AddBranch(nodes.NodeRetrieve, nodes.NodeRespond, nodes.HasRetrievedExamples).
		AddEdge(nodes.NodeRetrieve, nodes.NodeFallback)

	def, err := builder.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile tutor graph: %w", err)
	}
	return def, nil
}

func (r *tutorRunner) Invoke(ctx context.Context, in model.QueryInput) (string, error) {
	state, err := r.sessions.LoadState(ctx, in.SessionID)
	if err != nil {
		return "", fmt.Errorf("load session state: %w", err)
	}
	state = state.WithScratch(nodes.ScratchUserInput, in.Query)

	final, err := r.engine.Run(ctx, r.def, state)
	if err != nil {
		return "", err
	}

	if final.Response != "" {
		if err := r.sessions.SaveExchange(ctx, in.SessionID, in.Query, final.Response); err != nil {
			// The user still gets their reply; only persistence failed.
			logx.Error().Err(err).Str("session_id", in.SessionID).Msg("Failed to persist exchange")
		}
	}
	return final.Response, nil
}
