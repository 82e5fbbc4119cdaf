// Package deploy runs the deployment pipeline: ensure the repository,
// publish the image, ensure the cluster and log group, render the task
// definition, then reconcile the service. Steps run strictly in order and
// the first failure aborts the run; every step is itself idempotent, so
// re-running after a fix is always safe. There is no rollback.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/reconcile"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/taskdef"
)

// RenderedDescriptorName is the file the rendered task definition is
// written to under the state dir. It is consumed by registration in the
// same run and kept afterwards as a record of what was deployed.
const RenderedDescriptorName = "taskdef.rendered.json"

type provisioner interface {
	EnsureRepository(ctx context.Context, name string) (bool, error)
	EnsureCluster(ctx context.Context, name string) (bool, error)
	EnsureLogGroup(ctx context.Context, name string) (bool, error)
}

type publisher interface {
	Publish(ctx context.Context, contextDir string, refs []string) error
}

type reconciler interface {
	Reconcile(ctx context.Context, doc *taskdef.Document) (reconcile.Outcome, error)
}

// Options control a single pipeline run.
type Options struct {
	BuildContext string // Docker build context directory
	StateDir     string // Where the rendered descriptor is written
	SkipBuild    bool   // Reuse the already-pushed image
}

// Pipeline wires the deployment steps together.
type Pipeline struct {
	cfg    config.Config
	prov   provisioner
	pub    publisher
	rec    reconciler
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a pipeline.
func New(cfg config.Config, prov provisioner, pub publisher, rec reconciler, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, prov: prov, pub: pub, rec: rec, logger: logger, now: time.Now}
}

// Run executes the full deployment sequence.
func (p *Pipeline) Run(ctx context.Context, opts Options) (reconcile.Outcome, error) {
	created, err := p.prov.EnsureRepository(ctx, p.cfg.Repository)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	p.step("ensure repository", created)

	if opts.SkipBuild {
		p.logger.Info().Msg("skipping image build and push")
	} else {
		tag := p.now().UTC().Format("20060102-150405")
		refs := []string{p.cfg.ImageRef(tag), p.cfg.ImageRef("latest")}
		if err := p.pub.Publish(ctx, opts.BuildContext, refs); err != nil {
			return reconcile.Outcome{}, err
		}
		p.logger.Info().Str("tag", tag).Msg("image published")
	}

	created, err = p.prov.EnsureCluster(ctx, p.cfg.Cluster)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	p.step("ensure cluster", created)

	created, err = p.prov.EnsureLogGroup(ctx, p.cfg.LogGroup)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	p.step("ensure log group", created)

	doc, err := p.renderDescriptor(opts.StateDir)
	if err != nil {
		return reconcile.Outcome{}, err
	}

	outcome, err := p.rec.Reconcile(ctx, doc)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	p.logger.Info().
		Str("service", p.cfg.Service).
		Str("task_definition", outcome.TaskDefinitionARN).
		Str("action", string(outcome.Action)).
		Msg("service reconciled")
	return outcome, nil
}

// renderDescriptor writes the rendered task definition under stateDir and
// returns the decoded document.
func (p *Pipeline) renderDescriptor(stateDir string) (*taskdef.Document, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", stateDir, err)
	}
	path := filepath.Join(stateDir, RenderedDescriptorName)
	if err := taskdef.WriteRendered(p.cfg, path); err != nil {
		return nil, err
	}
	p.logger.Info().Str("path", path).Msg("rendered task definition")
	return taskdef.Load(p.cfg)
}

func (p *Pipeline) step(name string, created bool) {
	if created {
		p.logger.Info().Str("step", name).Msg("resource created")
	} else {
		p.logger.Debug().Str("step", name).Msg("resource already present")
	}
}
