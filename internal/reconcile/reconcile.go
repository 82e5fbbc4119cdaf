// Package reconcile registers task definition revisions and converges the
// ECS service onto them. Create and update are deliberately asymmetric: a
// create carries the full service specification, an update only repoints
// the task definition, so a redeploy can never reset scaling or
// networking on an existing service.
package reconcile

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/taskdef"
)

const serviceMissing = "MISSING"

type ecsAPI interface {
	RegisterTaskDefinition(ctx context.Context, in *awsecs.RegisterTaskDefinitionInput, optFns ...func(*awsecs.Options)) (*awsecs.RegisterTaskDefinitionOutput, error)
	DescribeServices(ctx context.Context, in *awsecs.DescribeServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error)
	CreateService(ctx context.Context, in *awsecs.CreateServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.CreateServiceOutput, error)
	UpdateService(ctx context.Context, in *awsecs.UpdateServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.UpdateServiceOutput, error)
}

// Action says which way the reconciler converged the service.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Outcome reports the result of one reconcile pass.
type Outcome struct {
	TaskDefinitionARN string
	Action            Action
}

// Reconciler converges the analyzer service onto new task definition
// revisions.
type Reconciler struct {
	ecs    ecsAPI
	cfg    config.Config
	logger zerolog.Logger
}

// New creates a reconciler.
func New(ecsClient ecsAPI, cfg config.Config, logger zerolog.Logger) *Reconciler {
	return &Reconciler{ecs: ecsClient, cfg: cfg, logger: logger}
}

// RegisterRevision registers the rendered document as a new task
// definition revision and returns its ARN. Revisions are immutable; every
// deploy produces a new one.
func (r *Reconciler) RegisterRevision(ctx context.Context, doc *taskdef.Document) (string, error) {
	out, err := r.ecs.RegisterTaskDefinition(ctx, doc.ToRegisterInput())
	if err != nil {
		return "", fmt.Errorf("register task definition %s: %w", doc.Family, err)
	}
	if out.TaskDefinition == nil {
		return "", fmt.Errorf("register task definition %s: empty response", doc.Family)
	}
	arn := aws.ToString(out.TaskDefinition.TaskDefinitionArn)
	r.logger.Info().Str("task_definition", arn).Msg("registered task definition revision")
	return arn, nil
}

// Reconcile registers doc as a new revision and creates or updates the
// service to reference it.
func (r *Reconciler) Reconcile(ctx context.Context, doc *taskdef.Document) (Outcome, error) {
	arn, err := r.RegisterRevision(ctx, doc)
	if err != nil {
		return Outcome{}, err
	}

	desc, err := r.ecs.DescribeServices(ctx, &awsecs.DescribeServicesInput{
		Cluster:  aws.String(r.cfg.Cluster),
		Services: []string{r.cfg.Service},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("describe service %s: %w", r.cfg.Service, err)
	}

	if ServiceAbsent(desc) {
		if err := r.create(ctx, arn); err != nil {
			return Outcome{}, err
		}
		return Outcome{TaskDefinitionARN: arn, Action: ActionCreated}, nil
	}

	if err := r.update(ctx, arn); err != nil {
		return Outcome{}, err
	}
	return Outcome{TaskDefinitionARN: arn, Action: ActionUpdated}, nil
}

// ServiceAbsent decides the create-or-update branch from a describe
// response. A service is absent when the control plane reports a MISSING
// failure or when the only record of it is INACTIVE (deleted services
// linger in that state). Anything else means the service exists.
func ServiceAbsent(out *awsecs.DescribeServicesOutput) bool {
	for _, s := range out.Services {
		if aws.ToString(s.Status) == "ACTIVE" || aws.ToString(s.Status) == "DRAINING" {
			return false
		}
	}
	for _, f := range out.Failures {
		if aws.ToString(f.Reason) == serviceMissing {
			return true
		}
	}
	return len(out.Services) == 0 || allInactive(out.Services)
}

func allInactive(services []ecstypes.Service) bool {
	for _, s := range services {
		if aws.ToString(s.Status) != "INACTIVE" {
			return false
		}
	}
	return true
}

func (r *Reconciler) create(ctx context.Context, taskDefARN string) error {
	r.logger.Info().Str("service", r.cfg.Service).Msg("creating service")
	_, err := r.ecs.CreateService(ctx, &awsecs.CreateServiceInput{
		Cluster:        aws.String(r.cfg.Cluster),
		ServiceName:    aws.String(r.cfg.Service),
		TaskDefinition: aws.String(taskDefARN),
		DesiredCount:   aws.Int32(1),
		LaunchType:     ecstypes.LaunchTypeFargate,
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        []string{r.cfg.SubnetID},
				SecurityGroups: []string{r.cfg.SecurityGroupID},
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create service %s: %w", r.cfg.Service, err)
	}
	return nil
}

func (r *Reconciler) update(ctx context.Context, taskDefARN string) error {
	r.logger.Info().Str("service", r.cfg.Service).Msg("updating service")
	// Only the task definition moves; desired count and networking are
	// left untouched on purpose.
	_, err := r.ecs.UpdateService(ctx, &awsecs.UpdateServiceInput{
		Cluster:        aws.String(r.cfg.Cluster),
		Service:        aws.String(r.cfg.Service),
		TaskDefinition: aws.String(taskDefARN),
	})
	if err != nil {
		return fmt.Errorf("update service %s: %w", r.cfg.Service, err)
	}
	return nil
}
