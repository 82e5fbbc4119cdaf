// Package preflight verifies the deployment's external preconditions
// before anything is mutated: resolvable credentials for the right
// account, a reachable Docker engine, and the existence of the EFS
// filesystem, subnet, and security group the service will reference.
package preflight

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/docker/docker/api/types"
	"github.com/rs/zerolog"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
)

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type efsAPI interface {
	DescribeFileSystems(ctx context.Context, in *efs.DescribeFileSystemsInput, optFns ...func(*efs.Options)) (*efs.DescribeFileSystemsOutput, error)
}

type ec2API interface {
	DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

type pinger interface {
	Ping(ctx context.Context) (types.Ping, error)
}

// Check is one named preflight result.
type Check struct {
	Name string
	Err  error
}

// OK reports whether the check passed.
func (c Check) OK() bool { return c.Err == nil }

// Checker runs the preflight checks.
type Checker struct {
	sts    stsAPI
	efs    efsAPI
	ec2    ec2API
	engine pinger
	cfg    config.Config
	logger zerolog.Logger
}

// New creates a checker. engine may be nil when the run will not touch
// the Docker engine (for example render-only invocations).
func New(stsClient stsAPI, efsClient efsAPI, ec2Client ec2API, engine pinger, cfg config.Config, logger zerolog.Logger) *Checker {
	return &Checker{sts: stsClient, efs: efsClient, ec2: ec2Client, engine: engine, cfg: cfg, logger: logger}
}

// Run executes every check and returns all results. The caller decides
// whether any failure is fatal.
func (c *Checker) Run(ctx context.Context) []Check {
	checks := []Check{
		{Name: "aws credentials", Err: c.checkIdentity(ctx)},
		{Name: "efs filesystem", Err: c.checkFileSystem(ctx)},
		{Name: "subnet", Err: c.checkSubnet(ctx)},
		{Name: "security group", Err: c.checkSecurityGroup(ctx)},
	}
	if c.engine != nil {
		checks = append(checks, Check{Name: "docker engine", Err: c.checkEngine(ctx)})
	}
	for _, ck := range checks {
		if ck.Err != nil {
			c.logger.Warn().Str("check", ck.Name).Str("detail", describe(ck.Err)).Msg("preflight check failed")
		}
	}
	return checks
}

// FirstError returns the first failed check as an error, or nil.
func FirstError(checks []Check) error {
	for _, ck := range checks {
		if ck.Err != nil {
			return fmt.Errorf("preflight %s: %w", ck.Name, ck.Err)
		}
	}
	return nil
}

func (c *Checker) checkIdentity(ctx context.Context) error {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("resolve caller identity: %w", err)
	}
	if got := aws.ToString(out.Account); got != c.cfg.AccountID {
		return fmt.Errorf("credentials belong to account %s, configured account is %s", got, c.cfg.AccountID)
	}
	return nil
}

func (c *Checker) checkFileSystem(ctx context.Context) error {
	_, err := c.efs.DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{
		FileSystemId: aws.String(c.cfg.FileSystemID),
	})
	if err != nil {
		return fmt.Errorf("filesystem %s: %w", c.cfg.FileSystemID, err)
	}
	return nil
}

func (c *Checker) checkSubnet(ctx context.Context) error {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		SubnetIds: []string{c.cfg.SubnetID},
	})
	if err != nil {
		return fmt.Errorf("subnet %s: %w", c.cfg.SubnetID, err)
	}
	if len(out.Subnets) == 0 {
		return fmt.Errorf("subnet %s not found", c.cfg.SubnetID)
	}
	return nil
}

func (c *Checker) checkSecurityGroup(ctx context.Context) error {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{c.cfg.SecurityGroupID},
	})
	if err != nil {
		return fmt.Errorf("security group %s: %w", c.cfg.SecurityGroupID, err)
	}
	if len(out.SecurityGroups) == 0 {
		return fmt.Errorf("security group %s not found", c.cfg.SecurityGroupID)
	}
	return nil
}

func (c *Checker) checkEngine(ctx context.Context) error {
	if _, err := c.engine.Ping(ctx); err != nil {
		return fmt.Errorf("docker engine unreachable: %w", err)
	}
	return nil
}

// describe extracts the service error code when one is present, so the
// log line says AccessDeniedException instead of a whole wrapped chain.
func describe(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return err.Error()
}
