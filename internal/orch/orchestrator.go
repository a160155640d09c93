// Package orch wires configuration, clients, persistence, and the team
// supervisor into the workflow entry points: start, status, cancel, resume.
package orch

import (
	"context"
	"fmt"
	"sync"

	"devteam/pkg/agent"
	"devteam/pkg/agent/llmimpl"
	"devteam/pkg/config"
	"devteam/pkg/logx"
	"devteam/pkg/metrics"
	"devteam/pkg/proto"
	"devteam/pkg/routing"
	"devteam/pkg/specialist"
	"devteam/pkg/team"
	"devteam/pkg/utils"
	"devteam/pkg/workspace"
)

// Store is the persistence surface the orchestrator needs.
// Satisfied by persistence.DatabaseOperations.
type Store interface {
	team.Store
	GetWorkflow(id string) (*proto.WorkflowSnapshot, error)
	ListWorkflows(limit int) ([]*proto.WorkflowSnapshot, error)
}

// Orchestrator manages workflow lifecycles.
type Orchestrator struct {
	cfg      config.Config
	store    Store
	router   routing.Policy
	invoker  team.Invoker
	recorder *metrics.Recorder
	logger   *logx.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// Options assembles an Orchestrator from its collaborators. Router and
// Invoker are injectable for tests; NewFromConfig builds the real ones.
type Options struct {
	Config   config.Config
	Store    Store
	Router   routing.Policy
	Invoker  team.Invoker
	Recorder *metrics.Recorder
}

// New creates an orchestrator from explicit collaborators.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:      opts.Config,
		store:    opts.Store,
		router:   opts.Router,
		invoker:  opts.Invoker,
		recorder: opts.Recorder,
		logger:   logx.NewLogger("orch"),
		running:  make(map[string]context.CancelFunc),
	}
}

// NewFromConfig builds the full production wiring: provider clients per
// role, the routing policy, the specialist adapter, and the workspace.
func NewFromConfig(cfg config.Config, store Store, recorder *metrics.Recorder) (*Orchestrator, error) {
	managerClient, err := llmimpl.NewRetryingClient(cfg.Agents.Manager.Provider, cfg.Agents.Manager.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager client: %w", err)
	}

	clients := make(map[proto.Actor]agent.LLMClient, 3)
	for role, rc := range map[proto.Actor]config.RoleConfig{
		proto.ActorBA:     cfg.Agents.BA,
		proto.ActorDev:    cfg.Agents.Dev,
		proto.ActorTester: cfg.Agents.Tester,
	} {
		client, err := llmimpl.NewRetryingClient(rc.Provider, rc.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", role, err)
		}
		clients[role] = client
	}

	ws, err := workspace.NewManager(cfg.Storage.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	tokens, err := utils.NewTokenCounter()
	if err != nil {
		return nil, err
	}

	invoker := specialist.NewAdapter(specialist.Options{
		Clients:       clients,
		Workspace:     ws,
		Tokens:        tokens,
		MaxValidation: cfg.Workflow.MaxValidationRetries,
		StepTimeout:   cfg.Workflow.StepTimeout(),
		PromptBudget:  cfg.Workflow.PromptTokenBudget,
		Recorder:      recorder,
	})

	router := routing.NewLLMPolicy(managerClient, cfg.Workflow.MaxValidationRetries, recorder)

	return New(Options{
		Config:   cfg,
		Store:    store,
		Router:   router,
		Invoker:  invoker,
		Recorder: recorder,
	}), nil
}

// StartWorkflow runs a workflow to its next stopping point: completion,
// failure, or suspension on clarifying questions. A maxIterations of zero or
// less uses the configured default.
func (o *Orchestrator) StartWorkflow(ctx context.Context, userRequest, projectID string, maxIterations int) (*proto.WorkflowSnapshot, error) {
	state, err := o.newWorkflow(userRequest, projectID, maxIterations)
	if err != nil {
		return nil, err
	}
	sup := o.newSupervisor(state)

	runCtx, cancel := context.WithCancel(ctx)
	o.register(state.ID(), cancel)
	defer o.unregister(state.ID())

	return sup.Run(runCtx)
}

// StartWorkflowAsync starts a workflow in the background and returns its ID
// immediately. The pending record is persisted before return, so
// GetWorkflowStatus on the returned ID always finds it. Poll with
// GetWorkflowStatus.
func (o *Orchestrator) StartWorkflowAsync(userRequest, projectID string, maxIterations int) (string, error) {
	state, err := o.newWorkflow(userRequest, projectID, maxIterations)
	if err != nil {
		return "", err
	}
	sup := o.newSupervisor(state)

	runCtx, cancel := context.WithCancel(context.Background())
	o.register(state.ID(), cancel)

	go func() {
		defer o.unregister(state.ID())
		if _, err := sup.Run(runCtx); err != nil {
			o.logger.Error("Background workflow %s aborted: %v", state.ID(), err)
		}
	}()

	return state.ID(), nil
}

// newWorkflow builds the workflow state and persists its pending record.
func (o *Orchestrator) newWorkflow(userRequest, projectID string, maxIterations int) (*team.WorkflowState, error) {
	if userRequest == "" {
		return nil, fmt.Errorf("empty user request")
	}
	if maxIterations <= 0 {
		maxIterations = o.cfg.Workflow.MaxIterations
	}

	state := team.NewWorkflowState(userRequest, projectID, maxIterations)
	if err := o.store.CreateWorkflow(state.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to create workflow record: %w", err)
	}
	return state, nil
}

// GetWorkflowStatus returns the persisted record for a workflow.
func (o *Orchestrator) GetWorkflowStatus(id string) (*proto.WorkflowSnapshot, error) {
	return o.store.GetWorkflow(id)
}

// ListWorkflows returns recent workflow records.
func (o *Orchestrator) ListWorkflows(limit int) ([]*proto.WorkflowSnapshot, error) {
	return o.store.ListWorkflows(limit)
}

// Cancel requests cancellation of a running workflow. The supervisor honors
// it at its next loop boundary.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	cancel, ok := o.running[id]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("workflow %s is not running", id)
	}
	cancel()
	o.logger.Info("Cancellation requested for workflow %s", id)
	return nil
}

// Resume reopens a workflow suspended on clarifying questions, feeding it
// the user's answer, and drives it to its next stopping point.
func (o *Orchestrator) Resume(ctx context.Context, id, answer string) (*proto.WorkflowSnapshot, error) {
	if answer == "" {
		return nil, fmt.Errorf("empty clarification answer")
	}

	snapshot, err := o.store.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	if snapshot.Status != proto.StatusWaitingForClarification {
		return nil, fmt.Errorf("workflow %s is not waiting for clarification (status %s)",
			id, snapshot.Status)
	}

	state := team.RestoreWorkflowState(snapshot)
	sup := o.newSupervisor(state)

	runCtx, cancel := context.WithCancel(ctx)
	o.register(id, cancel)
	defer o.unregister(id)

	return sup.Resume(runCtx, answer)
}

func (o *Orchestrator) newSupervisor(state *team.WorkflowState) *team.Supervisor {
	return team.NewSupervisor(state, team.SupervisorOptions{
		Router:              o.router,
		Invoker:             o.invoker,
		Store:               o.store,
		MaxTransientRetries: o.cfg.Workflow.MaxTransientRetries,
		RetryBackoff:        o.cfg.Workflow.RetryBackoff(),
		Recorder:            o.recorder,
	})
}

func (o *Orchestrator) register(id string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running[id] = cancel
}

func (o *Orchestrator) unregister(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, id)
}
