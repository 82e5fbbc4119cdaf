package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/taskdef"
)

type fakeECS struct {
	revision      int
	emptyRegister bool
	services      []ecstypes.Service
	failures      []ecstypes.Failure
	createInput   *awsecs.CreateServiceInput
	updateInput   *awsecs.UpdateServiceInput
}

func (f *fakeECS) RegisterTaskDefinition(ctx context.Context, in *awsecs.RegisterTaskDefinitionInput, optFns ...func(*awsecs.Options)) (*awsecs.RegisterTaskDefinitionOutput, error) {
	if f.emptyRegister {
		return &awsecs.RegisterTaskDefinitionOutput{}, nil
	}
	f.revision++
	arn := fmt.Sprintf("arn:aws:ecs:us-east-1:123456789012:task-definition/%s:%d", aws.ToString(in.Family), f.revision)
	return &awsecs.RegisterTaskDefinitionOutput{
		TaskDefinition: &ecstypes.TaskDefinition{TaskDefinitionArn: aws.String(arn)},
	}, nil
}

func (f *fakeECS) DescribeServices(ctx context.Context, in *awsecs.DescribeServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error) {
	return &awsecs.DescribeServicesOutput{Services: f.services, Failures: f.failures}, nil
}

func (f *fakeECS) CreateService(ctx context.Context, in *awsecs.CreateServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.CreateServiceOutput, error) {
	f.createInput = in
	return &awsecs.CreateServiceOutput{}, nil
}

func (f *fakeECS) UpdateService(ctx context.Context, in *awsecs.UpdateServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.UpdateServiceOutput, error) {
	f.updateInput = in
	return &awsecs.UpdateServiceOutput{}, nil
}

func testConfig() config.Config {
	return config.Config{
		AccountID:       "123456789012",
		Region:          "us-east-1",
		FileSystemID:    "fs-0abc123",
		SubnetID:        "subnet-0abc123",
		SecurityGroupID: "sg-0abc123",
		Repository:      "weather-flight-analyzer",
		Cluster:         "weather-flight-analyzer",
		LogGroup:        "/ecs/weather-flight-analyzer",
		Service:         "weather-flight-analyzer",
		Family:          "weather-flight-analyzer",
	}
}

func testDoc(t *testing.T) *taskdef.Document {
	t.Helper()
	doc, err := taskdef.Load(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestReconcile_MissingServiceCreates(t *testing.T) {
	ecsF := &fakeECS{failures: []ecstypes.Failure{{Reason: aws.String("MISSING")}}}
	r := New(ecsF, testConfig(), zerolog.Nop())

	outcome, err := r.Reconcile(context.Background(), testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Action != ActionCreated {
		t.Fatalf("action: %s", outcome.Action)
	}
	if ecsF.updateInput != nil {
		t.Fatal("update must not run on the create path")
	}

	in := ecsF.createInput
	if in == nil {
		t.Fatal("create was not called")
	}
	if aws.ToInt32(in.DesiredCount) != 1 {
		t.Fatalf("desired count: %v", in.DesiredCount)
	}
	if in.LaunchType != ecstypes.LaunchTypeFargate {
		t.Fatalf("launch type: %v", in.LaunchType)
	}
	vpc := in.NetworkConfiguration.AwsvpcConfiguration
	if len(vpc.Subnets) != 1 || vpc.Subnets[0] != "subnet-0abc123" {
		t.Fatalf("subnets: %v", vpc.Subnets)
	}
	if len(vpc.SecurityGroups) != 1 || vpc.SecurityGroups[0] != "sg-0abc123" {
		t.Fatalf("security groups: %v", vpc.SecurityGroups)
	}
	if vpc.AssignPublicIp != ecstypes.AssignPublicIpEnabled {
		t.Fatalf("assign public ip: %v", vpc.AssignPublicIp)
	}
	if aws.ToString(in.TaskDefinition) != outcome.TaskDefinitionARN {
		t.Fatalf("task definition: %v", in.TaskDefinition)
	}
}

func TestReconcile_ActiveServiceUpdates(t *testing.T) {
	ecsF := &fakeECS{services: []ecstypes.Service{{
		ServiceName: aws.String("weather-flight-analyzer"),
		Status:      aws.String("ACTIVE"),
	}}}
	r := New(ecsF, testConfig(), zerolog.Nop())

	outcome, err := r.Reconcile(context.Background(), testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Action != ActionUpdated {
		t.Fatalf("action: %s", outcome.Action)
	}
	if ecsF.createInput != nil {
		t.Fatal("create must not run on the update path")
	}

	in := ecsF.updateInput
	if in == nil {
		t.Fatal("update was not called")
	}
	if aws.ToString(in.TaskDefinition) != outcome.TaskDefinitionARN {
		t.Fatalf("task definition: %v", in.TaskDefinition)
	}
	// Scaling and networking must stay untouched on redeploy.
	if in.DesiredCount != nil {
		t.Fatalf("update must not carry a desired count, got %v", in.DesiredCount)
	}
	if in.NetworkConfiguration != nil {
		t.Fatal("update must not carry a network configuration")
	}
}

func TestReconcile_InactiveServiceCreates(t *testing.T) {
	ecsF := &fakeECS{services: []ecstypes.Service{{
		ServiceName: aws.String("weather-flight-analyzer"),
		Status:      aws.String("INACTIVE"),
	}}}
	r := New(ecsF, testConfig(), zerolog.Nop())

	outcome, err := r.Reconcile(context.Background(), testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Action != ActionCreated {
		t.Fatalf("action: %s", outcome.Action)
	}
}

func TestReconcile_EveryDeployRegistersNewRevision(t *testing.T) {
	ecsF := &fakeECS{services: []ecstypes.Service{{Status: aws.String("ACTIVE")}}}
	r := New(ecsF, testConfig(), zerolog.Nop())

	first, err := r.Reconcile(context.Background(), testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Reconcile(context.Background(), testDoc(t))
	if err != nil {
		t.Fatal(err)
	}
	if first.TaskDefinitionARN == second.TaskDefinitionARN {
		t.Fatal("revisions must be immutable; a redeploy registers a new one")
	}
}

func TestReconcile_EmptyRegisterResponse(t *testing.T) {
	// An endpoint that answers RegisterTaskDefinition with an empty body
	// must produce an error, not a panic.
	ecsF := &fakeECS{emptyRegister: true}
	r := New(ecsF, testConfig(), zerolog.Nop())

	_, err := r.Reconcile(context.Background(), testDoc(t))
	if err == nil {
		t.Fatal("expected error for empty register response")
	}
	if ecsF.createInput != nil || ecsF.updateInput != nil {
		t.Fatal("service must not be touched when registration fails")
	}
}

func TestServiceAbsent(t *testing.T) {
	cases := []struct {
		name string
		out  *awsecs.DescribeServicesOutput
		want bool
	}{
		{"missing failure", &awsecs.DescribeServicesOutput{
			Failures: []ecstypes.Failure{{Reason: aws.String("MISSING")}},
		}, true},
		{"empty response", &awsecs.DescribeServicesOutput{}, true},
		{"active", &awsecs.DescribeServicesOutput{
			Services: []ecstypes.Service{{Status: aws.String("ACTIVE")}},
		}, false},
		{"draining", &awsecs.DescribeServicesOutput{
			Services: []ecstypes.Service{{Status: aws.String("DRAINING")}},
		}, false},
		{"inactive only", &awsecs.DescribeServicesOutput{
			Services: []ecstypes.Service{{Status: aws.String("INACTIVE")}},
		}, true},
	}
	for _, tc := range cases {
		if got := ServiceAbsent(tc.out); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
