// Package taskdef owns the task definition template: rendering it against
// the deployment configuration and converting the result into an ECS
// RegisterTaskDefinition call.
package taskdef

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/render"
)

//go:embed template.json
var template string

// Document is the rendered task definition, mirroring the JSON layout of
// an ECS register-task-definition input document.
type Document struct {
	Family                  string                `json:"family"`
	RequiresCompatibilities []string              `json:"requiresCompatibilities"`
	NetworkMode             string                `json:"networkMode"`
	CPU                     string                `json:"cpu"`
	Memory                  string                `json:"memory"`
	ExecutionRoleArn        string                `json:"executionRoleArn"`
	ContainerDefinitions    []ContainerDefinition `json:"containerDefinitions"`
	Volumes                 []Volume              `json:"volumes"`
}

// ContainerDefinition is a single container entry in the document.
type ContainerDefinition struct {
	Name             string            `json:"name"`
	Image            string            `json:"image"`
	Essential        bool              `json:"essential"`
	Command          []string          `json:"command"`
	LogConfiguration *LogConfiguration `json:"logConfiguration,omitempty"`
	MountPoints      []MountPoint      `json:"mountPoints,omitempty"`
}

// LogConfiguration is the container log driver configuration.
type LogConfiguration struct {
	LogDriver string            `json:"logDriver"`
	Options   map[string]string `json:"options"`
}

// MountPoint attaches a task volume to a container path.
type MountPoint struct {
	SourceVolume  string `json:"sourceVolume"`
	ContainerPath string `json:"containerPath"`
	ReadOnly      bool   `json:"readOnly"`
}

// Volume is a task-level volume definition.
type Volume struct {
	Name                   string                  `json:"name"`
	EFSVolumeConfiguration *EFSVolumeConfiguration `json:"efsVolumeConfiguration,omitempty"`
}

// EFSVolumeConfiguration backs a volume with an EFS filesystem.
type EFSVolumeConfiguration struct {
	FileSystemID  string `json:"fileSystemId"`
	RootDirectory string `json:"rootDirectory"`
}

// Values returns the placeholder values the template is rendered with.
func Values(cfg config.Config) map[string]string {
	return map[string]string{
		"ACCOUNT_ID":        cfg.AccountID,
		"AWS_REGION":        cfg.Region,
		"EFS_ID":            cfg.FileSystemID,
		"SUBNET_ID":         cfg.SubnetID,
		"SECURITY_GROUP_ID": cfg.SecurityGroupID,
		"REPOSITORY":        cfg.Repository,
		"LOG_GROUP":         cfg.LogGroup,
		"FAMILY":            cfg.Family,
	}
}

// Rendered returns the rendered template text.
func Rendered(cfg config.Config) (string, error) {
	return render.Render(template, Values(cfg))
}

// Load renders the template against cfg and decodes it.
func Load(cfg config.Config) (*Document, error) {
	out, err := Rendered(cfg)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		return nil, fmt.Errorf("decode rendered task definition: %w", err)
	}
	if doc.Family == "" {
		return nil, fmt.Errorf("rendered task definition has no family")
	}
	if len(doc.ContainerDefinitions) == 0 {
		return nil, fmt.Errorf("rendered task definition has no container definitions")
	}
	return &doc, nil
}

// WriteRendered renders the template and writes the descriptor to path for
// the registration step to consume.
func WriteRendered(cfg config.Config, path string) error {
	return render.RenderFile(template, Values(cfg), path)
}

// ToRegisterInput converts the document into an ECS API call.
func (d *Document) ToRegisterInput() *awsecs.RegisterTaskDefinitionInput {
	var compat []ecstypes.Compatibility
	for _, c := range d.RequiresCompatibilities {
		compat = append(compat, ecstypes.Compatibility(c))
	}

	var containers []ecstypes.ContainerDefinition
	for _, c := range d.ContainerDefinitions {
		def := ecstypes.ContainerDefinition{
			Name:      aws.String(c.Name),
			Image:     aws.String(c.Image),
			Essential: aws.Bool(c.Essential),
			Command:   c.Command,
		}
		if c.LogConfiguration != nil {
			def.LogConfiguration = &ecstypes.LogConfiguration{
				LogDriver: ecstypes.LogDriver(c.LogConfiguration.LogDriver),
				Options:   c.LogConfiguration.Options,
			}
		}
		for _, m := range c.MountPoints {
			def.MountPoints = append(def.MountPoints, ecstypes.MountPoint{
				SourceVolume:  aws.String(m.SourceVolume),
				ContainerPath: aws.String(m.ContainerPath),
				ReadOnly:      aws.Bool(m.ReadOnly),
			})
		}
		containers = append(containers, def)
	}

	var volumes []ecstypes.Volume
	for _, v := range d.Volumes {
		vol := ecstypes.Volume{Name: aws.String(v.Name)}
		if v.EFSVolumeConfiguration != nil {
			vol.EfsVolumeConfiguration = &ecstypes.EFSVolumeConfiguration{
				FileSystemId:  aws.String(v.EFSVolumeConfiguration.FileSystemID),
				RootDirectory: aws.String(v.EFSVolumeConfiguration.RootDirectory),
			}
		}
		volumes = append(volumes, vol)
	}

	input := &awsecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(d.Family),
		RequiresCompatibilities: compat,
		NetworkMode:             ecstypes.NetworkMode(d.NetworkMode),
		Cpu:                     aws.String(d.CPU),
		Memory:                  aws.String(d.Memory),
		ContainerDefinitions:    containers,
		Volumes:                 volumes,
	}
	if d.ExecutionRoleArn != "" {
		input.ExecutionRoleArn = aws.String(d.ExecutionRoleArn)
	}
	return input
}
