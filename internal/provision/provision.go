// Package provision ensures the deployment's supporting resources exist:
// the ECR repository, the ECS cluster, and the CloudWatch log group. Each
// ensure is create-if-absent and safe to repeat. Absence is detected via
// typed service errors or explicit MISSING markers; any other error
// (authorization, transport) propagates and never triggers a create.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/rs/zerolog"
)

const clusterMissing = "MISSING"

type ecrAPI interface {
	DescribeRepositories(ctx context.Context, in *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, in *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
}

type ecsAPI interface {
	DescribeClusters(ctx context.Context, in *awsecs.DescribeClustersInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeClustersOutput, error)
	CreateCluster(ctx context.Context, in *awsecs.CreateClusterInput, optFns ...func(*awsecs.Options)) (*awsecs.CreateClusterOutput, error)
}

type logsAPI interface {
	DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
}

// Driver provisions the fixed set of supporting resources.
type Driver struct {
	ecr    ecrAPI
	ecs    ecsAPI
	logs   logsAPI
	logger zerolog.Logger
}

// NewDriver creates a provisioning driver.
func NewDriver(ecrClient ecrAPI, ecsClient ecsAPI, logsClient logsAPI, logger zerolog.Logger) *Driver {
	return &Driver{ecr: ecrClient, ecs: ecsClient, logs: logsClient, logger: logger}
}

// EnsureRepository creates the ECR repository if it does not exist.
// Returns whether a create was issued.
func (d *Driver) EnsureRepository(ctx context.Context, name string) (bool, error) {
	_, err := d.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	if err == nil {
		d.logger.Debug().Str("repository", name).Msg("repository exists")
		return false, nil
	}

	var notFound *ecrtypes.RepositoryNotFoundException
	if !errors.As(err, &notFound) {
		return false, fmt.Errorf("describe repository %s: %w", name, err)
	}

	d.logger.Info().Str("repository", name).Msg("creating repository")
	if _, err := d.ecr.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(name),
	}); err != nil {
		return false, fmt.Errorf("create repository %s: %w", name, err)
	}
	return true, nil
}

// EnsureCluster creates the ECS cluster if it does not exist. A cluster
// that was deleted reports status INACTIVE and is treated as absent.
func (d *Driver) EnsureCluster(ctx context.Context, name string) (bool, error) {
	out, err := d.ecs.DescribeClusters(ctx, &awsecs.DescribeClustersInput{
		Clusters: []string{name},
	})
	if err != nil {
		return false, fmt.Errorf("describe cluster %s: %w", name, err)
	}

	for _, c := range out.Clusters {
		if aws.ToString(c.ClusterName) == name && aws.ToString(c.Status) == "ACTIVE" {
			d.logger.Debug().Str("cluster", name).Msg("cluster exists")
			return false, nil
		}
	}
	for _, f := range out.Failures {
		if aws.ToString(f.Reason) != clusterMissing {
			return false, fmt.Errorf("describe cluster %s: %s", name, aws.ToString(f.Reason))
		}
	}

	d.logger.Info().Str("cluster", name).Msg("creating cluster")
	if _, err := d.ecs.CreateCluster(ctx, &awsecs.CreateClusterInput{
		ClusterName: aws.String(name),
	}); err != nil {
		return false, fmt.Errorf("create cluster %s: %w", name, err)
	}
	return true, nil
}

// EnsureLogGroup creates the CloudWatch log group if it does not exist.
// DescribeLogGroups matches by prefix and paginates, so every page is
// scanned for an exact name match before concluding absence.
func (d *Driver) EnsureLogGroup(ctx context.Context, name string) (bool, error) {
	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(d.logs, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("describe log group %s: %w", name, err)
		}
		for _, g := range out.LogGroups {
			if aws.ToString(g.LogGroupName) == name {
				d.logger.Debug().Str("log_group", name).Msg("log group exists")
				return false, nil
			}
		}
	}

	d.logger.Info().Str("log_group", name).Msg("creating log group")
	if _, err := d.logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
	}); err != nil {
		return false, fmt.Errorf("create log group %s: %w", name, err)
	}
	return true, nil
}
