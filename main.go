package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/timewave/sql-runner/internal/config"
	"github.com/timewave/sql-runner/internal/dbclient"
	"github.com/timewave/sql-runner/internal/grouping"
	"github.com/timewave/sql-runner/internal/logger"
	"github.com/timewave/sql-runner/internal/record"
	"github.com/timewave/sql-runner/internal/runner"
)

// Job is one invocation as supplied by the host: the selected operation, the
// step parameters, and the input records. Parameters apply to every row;
// per-row values may be layered on by a custom resolver when embedding the
// runner as a library.
type Job struct {
	Operation  runner.Operation  `json:"operation"`
	Parameters map[string]string `json:"parameters"`
	Items      []record.Record   `json:"items"`
}

// Resolver adapts the job's static parameter map to the per-row resolver
// interface of the grouper.
func (j *Job) Resolver() grouping.ParamResolver {
	return func(name string, rowIndex int) (string, error) {
		return j.Parameters[name], nil
	}
}

func loadJob(args []string) (*Job, error) {
	var reader io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open job file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var job Job
	decoder := json.NewDecoder(reader)
	decoder.UseNumber()
	if err := decoder.Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func main() {

	// Load configuration
	configLoader := config.New(logger.NewLogger("Config"))
	cfg, err := config.Load(configLoader)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize global log level from config
	logger.InitGlobalLogLevel(cfg.LogLevel)

	job, err := loadJob(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load job: %v", err)
	}

	// Create root context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for OS signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %s", sig)
		cancel()
	}()

	conn := dbclient.NewPostgres(cfg.Database.PostgresConnectionString)
	r := runner.New(conn, runner.Config{
		ChunkSize:      cfg.Operation.ChunkSize,
		ContinueOnFail: cfg.Operation.ContinueOnFail,
	})

	out, err := r.Run(ctx, job.Operation, job.Items, job.Resolver())
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
