package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"devteam/internal/orch"
	"devteam/pkg/config"
	"devteam/pkg/logx"
	"devteam/pkg/metrics"
	"devteam/pkg/persistence"
	"devteam/pkg/proto"
)

func main() {
	var configPath string
	var request string
	var projectID string
	var resumeID string
	var answer string
	var listWorkflows bool
	var maxIterations int
	flag.StringVar(&configPath, "config", "", "Path to config file (YAML)")
	flag.StringVar(&request, "request", "", "User request to run a workflow for")
	flag.StringVar(&projectID, "project", "", "Project identifier (defaults to the workflow ID)")
	flag.StringVar(&resumeID, "resume", "", "ID of a suspended workflow to resume")
	flag.StringVar(&answer, "answer", "", "Clarification answer for -resume")
	flag.BoolVar(&listWorkflows, "list", false, "List recent workflow records and exit")
	flag.IntVar(&maxIterations, "max-iterations", 0, "Iteration budget for this run (0 uses the configured default)")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}

	logger := logx.NewLogger("main")

	if err := persistence.Initialize(cfg.Storage.DatabasePath); err != nil {
		log.Fatalf("Failed to initialize persistence: %v", err)
	}
	defer func() {
		if err := persistence.Close(); err != nil {
			logger.Error("Failed to close database: %v", err)
		}
	}()
	store := persistence.Ops()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, nil); err != nil {
				logger.Error("Metrics server stopped: %v", err)
			}
		}()
		logger.Info("Metrics exposed on %s/metrics", cfg.Metrics.ListenAddr)
	}

	if listWorkflows {
		snapshots, err := store.ListWorkflows(20)
		if err != nil {
			log.Fatalf("Failed to list workflows: %v", err)
		}
		for _, s := range snapshots {
			fmt.Printf("%s  %-26s  iter %d/%d  %s\n",
				s.ID, s.Status, s.IterationCount, s.MaxIterations, s.UserRequest)
		}
		return
	}

	orchestrator, err := orch.NewFromConfig(cfg, store, recorder)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// SIGINT/SIGTERM cancel the run; the supervisor honors it at the next
	// loop boundary and records a clean terminal state.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var snapshot *proto.WorkflowSnapshot
	switch {
	case resumeID != "":
		if answer == "" {
			log.Fatal("-resume requires -answer")
		}
		snapshot, err = orchestrator.Resume(ctx, resumeID, answer)
	case request != "":
		snapshot, err = orchestrator.StartWorkflow(ctx, request, projectID, maxIterations)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Workflow aborted: %v", err)
	}

	printOutcome(snapshot)
	if snapshot.Status == proto.StatusFailed {
		os.Exit(1)
	}
}

func printOutcome(snapshot *proto.WorkflowSnapshot) {
	switch snapshot.Status {
	case proto.StatusCompleted:
		fmt.Println(snapshot.FinalResponse)
	case proto.StatusWaitingForClarification:
		fmt.Printf("Workflow %s needs clarification:\n", snapshot.ID)
		for _, q := range snapshot.ClarifyingQuestions {
			fmt.Printf("- %s\n", q)
		}
		fmt.Printf("Answer with: -resume %s -answer \"...\"\n", snapshot.ID)
	case proto.StatusFailed:
		fmt.Printf("Workflow %s failed (%s): %s\n",
			snapshot.ID, snapshot.FailureReason, snapshot.ErrorMessage)
	default:
		data, _ := json.MarshalIndent(snapshot, "", "  ")
		fmt.Println(string(data))
	}
}
