// Command clone runs a single worker process: one of the four specialist
// clones (analyzer, architect, tester, communicator) or the coordinator
// (Omega), selected by the CLONE_ROLE environment variable.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloneforge/internal/artifact"
	"cloneforge/internal/config"
	"cloneforge/internal/coordinator"
	"cloneforge/internal/evidence"
	"cloneforge/internal/llmbackend"
	"cloneforge/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("clone: %v", err)
	}
}

func run() error {
	role, err := resolveRole()
	if err != nil {
		return err
	}

	cfg, err := config.Load(!roleIsTestDeployment())
	if err != nil {
		return err
	}

	store, err := buildArtifactStore(cfg)
	if err != nil {
		return err
	}

	fileSink := evidence.NewFileSink(cfg.WorkspaceRoot+"/audit", cfg.AuditRetentionDays)
	sink, err := buildEvidenceSink(cfg, fileSink)
	if err != nil {
		return err
	}
	recorder := evidence.NewRecorder(sink)

	stopRetention := make(chan struct{})
	defer close(stopRetention)
	fileSink.StartRetentionTicker(24*time.Hour, cfg.AuditRetentionDays, stopRetention)

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	identity := worker.NewIdentity(role, specializationFor(role), cfg.Port)
	w := worker.New(identity, backend, store, recorder)

	var httpServer interface {
		Start() error
		Shutdown(context.Context) error
	}
	if role == worker.RoleCoordinator {
		registry := coordinator.NewRegistry()
		applyRegistryOverrides(registry)
		c := coordinator.New(w, registry, recorder)
		httpServer = coordinator.NewServer(fmt.Sprintf(":%d", cfg.Port), c)
	} else {
		httpServer = worker.NewServer(fmt.Sprintf(":%d", cfg.Port), w)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}

func resolveRole() (worker.Role, error) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("CLONE_ROLE")))
	switch worker.Role(raw) {
	case worker.RoleCoordinator, worker.RoleAnalyzer, worker.RoleArchitect, worker.RoleTester, worker.RoleCommunicator:
		return worker.Role(raw), nil
	case "":
		return "", errors.New("CLONE_ROLE environment variable is required")
	default:
		return "", fmt.Errorf("unrecognized CLONE_ROLE: %q", raw)
	}
}

func specializationFor(role worker.Role) string {
	switch role {
	case worker.RoleAnalyzer:
		return "code-analysis"
	case worker.RoleArchitect:
		return "architecture-design"
	case worker.RoleTester:
		return "test-generation"
	case worker.RoleCommunicator:
		return "documentation"
	default:
		return "orchestration"
	}
}

// roleIsTestDeployment lets CLONE_TEST_MODE force the permissive
// (non-production) config path even outside of `go test`.
func roleIsTestDeployment() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("CLONE_TEST_MODE")), "true")
}

func buildBackend(cfg *config.Config) (llmbackend.LLMBackend, error) {
	if cfg.TestMode {
		return llmbackend.NewTestModeBackend(""), nil
	}
	base, err := llmbackend.NewGeminiBackend(context.Background(), llmbackend.Config{APIKey: cfg.LLMAPIKey})
	if err != nil {
		return nil, err
	}
	return llmbackend.Wrap(base, llmbackend.WithLogging(nil), llmbackend.RateLimit(5, 5)), nil
}

// buildArtifactStore selects the content backend (local filesystem by
// default, S3-compatible when ARTIFACT_S3_ENDPOINT is set) and, when
// POSTGRES_DSN is set, mirrors the manifest index into Postgres so a
// fleet of worker processes can share one index. Only the S3 backend is
// wrapped in a read-through LRU cache: local reads re-verify the checksum
// against the bytes on disk every time, and a cache in front of them
// would mask on-disk corruption.
func buildArtifactStore(cfg *config.Config) (artifact.Store, error) {
	if !cfg.S3.Enabled {
		fileStore, err := artifact.NewFileStore(cfg.WorkspaceRoot)
		if err != nil {
			return nil, err
		}
		return mirrorIndex(cfg, fileStore)
	}

	s3Cfg := artifact.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		UseSSL:    cfg.S3.UseSSL,
	}
	s3Store, err := artifact.NewS3Store(s3Cfg, cfg.WorkspaceRoot+"/manifests")
	if err != nil {
		return nil, err
	}
	store, err := mirrorIndex(cfg, s3Store)
	if err != nil {
		return nil, err
	}
	return artifact.NewCachedStore(store, 256)
}

func mirrorIndex(cfg *config.Config, store artifact.Store) (artifact.Store, error) {
	if cfg.PostgresDSN == "" {
		return store, nil
	}
	index, err := artifact.NewPostgresIndex(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return artifact.NewMirroredStore(store, index), nil
}

// buildEvidenceSink fans writes out to the local day-rotated log and,
// when POSTGRES_DSN is set, a Postgres table as well.
func buildEvidenceSink(cfg *config.Config, fileSink *evidence.FileSink) (evidence.Sink, error) {
	if cfg.PostgresDSN == "" {
		return fileSink, nil
	}
	pgSink, err := evidence.NewPostgresSink(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return evidence.NewMultiSink(fileSink, pgSink), nil
}

// applyRegistryOverrides reads CLONE_PEER_<ROLE> environment variables
// (e.g. CLONE_PEER_ANALYZER=http://analyzer:3002) to override the default
// localhost topology, needed for multi-host deployments.
func applyRegistryOverrides(registry *coordinator.Registry) {
	for _, role := range []worker.Role{worker.RoleAnalyzer, worker.RoleArchitect, worker.RoleTester, worker.RoleCommunicator} {
		key := "CLONE_PEER_" + strings.ToUpper(string(role))
		if url := strings.TrimSpace(os.Getenv(key)); url != "" {
			registry.RegisterCloneAt(role, url)
		}
	}
}
