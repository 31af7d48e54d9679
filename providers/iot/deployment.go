package iot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
)

var jobIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const (
	keyJobDocument = "job.document"
	keyJobID       = "job.id"
	keyJobArn      = "job.arn"
)

// FleetDeployment rolls a job document out to a group of devices.
type FleetDeployment struct {
	client Client
	opts   Options
}

func NewFleetDeployment(c Client, opts Options) *FleetDeployment {
	return &FleetDeployment{client: c, opts: opts}
}

type deploymentConfig struct {
	ID          string
	Targets     []string
	Template    string
	Bindings    map[string]string
	Selection   TargetSelection
	Description string
}

func parseDeployment(p ir.Properties) (deploymentConfig, error) {
	cfg := deploymentConfig{
		ID:          p.String("DeploymentName"),
		Targets:     p.Strings("TargetArns"),
		Description: p.String("Description"),
		Selection:   TargetSelection(strings.ToUpper(p.StringOr("TargetSelection", string(TargetContinuous)))),
	}
	if t := p.String("TargetArn"); t != "" {
		cfg.Targets = append([]string{t}, cfg.Targets...)
	}

	var errs []error
	var err error
	cfg.Template, err = p.Document("JobDocument")
	errs = append(errs, err)
	cfg.Bindings, err = p.StringMap("DocumentBindings")
	errs = append(errs, err)
	return cfg, errors.Join(errs...)
}

func (k *FleetDeployment) Name() string { return KindFleetDeployment }

func (k *FleetDeployment) Validate(props ir.Properties) error {
	id, err := props.Require("DeploymentName")
	if err != nil {
		return err
	}
	if !jobIDPattern.MatchString(id) {
		return fmt.Errorf("DeploymentName %q must be 1-64 letters, digits, '-' or '_'", id)
	}
	cfg, err := parseDeployment(props)
	if err != nil {
		return err
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("%w: TargetArn", ir.ErrMissingProperty)
	}
	if strings.TrimSpace(cfg.Template) == "" {
		return fmt.Errorf("%w: JobDocument", ir.ErrMissingProperty)
	}
	switch cfg.Selection {
	case TargetContinuous, TargetSnapshot:
	default:
		return fmt.Errorf("unknown TargetSelection %q", cfg.Selection)
	}
	return nil
}

func (k *FleetDeployment) CreateSteps(ev *ir.Event) []engine.Step {
	cfg, _ := parseDeployment(ev.Properties)

	return []engine.Step{
		k.opts.step("render-job-document", func(ctx context.Context, sc *engine.Scratch) error {
			bindings := map[string]string{
				"DeploymentName": cfg.ID,
				"Region":         k.client.Region(),
			}
			for name, v := range cfg.Bindings {
				bindings[name] = v
			}
			doc, err := engine.RenderDocument(cfg.Template, bindings)
			if err != nil {
				return fmt.Errorf("failed to render job document: %w", err)
			}
			sc.Set(keyJobDocument, doc)
			return nil
		}),
		k.opts.step("create-job", func(ctx context.Context, sc *engine.Scratch) error {
			job, err := k.client.CreateJob(ctx, JobSpec{
				ID:              cfg.ID,
				Targets:         cfg.Targets,
				Document:        sc.Get(keyJobDocument),
				Description:     cfg.Description,
				TargetSelection: cfg.Selection,
			})
			if errors.Is(err, ErrAlreadyExists) {
				job, err = k.client.DescribeJob(ctx, cfg.ID)
				// Job ids stay taken until the job is deleted, so a
				// cancelled or finished job is not this rollout.
				if err == nil && !job.Active() {
					return fmt.Errorf("job %s already exists with status %s", cfg.ID, job.Status)
				}
			}
			if err != nil {
				return fmt.Errorf("failed to create job %s: %w", cfg.ID, err)
			}
			sc.Set(keyJobID, job.ID)
			sc.Set(keyJobArn, job.ARN)
			return nil
		}),
	}
}

func (k *FleetDeployment) Identity(sc *engine.Scratch) string {
	return sc.Get(keyJobID)
}

func (k *FleetDeployment) Outputs(ctx context.Context, ev *ir.Event, sc *engine.Scratch) (map[string]string, error) {
	return map[string]string{
		"JobId":  sc.Get(keyJobID),
		"JobArn": sc.Get(keyJobArn),
	}, nil
}

// Teardown cancels the job. Devices that already applied it keep the
// deployed software; cancellation completes asynchronously.
func (k *FleetDeployment) Teardown(ev *ir.Event) engine.Teardown {
	id := ev.PriorIdentity
	primary := k.opts.step("cancel-job", func(ctx context.Context, sc *engine.Scratch) error {
		return k.client.CancelJob(ctx, id, true)
	})
	return engine.Teardown{Primary: &primary}
}
