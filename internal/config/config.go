package config

import (
	"fmt"
	"os"
)

// Config holds all deployment parameters. It is populated once from the
// environment in FromEnv and passed explicitly from there on; nothing
// below the CLI layer reads ambient process state.
type Config struct {
	AccountID       string // AWS account ID
	Region          string // AWS region
	FileSystemID    string // EFS filesystem holding the data directories
	SubnetID        string // Subnet for the service's awsvpc configuration
	SecurityGroupID string // Security group for the service

	Repository string // ECR repository name
	Cluster    string // ECS cluster name
	LogGroup   string // CloudWatch Logs group
	Service    string // ECS service name
	Family     string // Task definition family

	EndpointURL string // Custom endpoint URL for simulator mode
}

// FromEnv loads configuration from environment variables. Resource names
// default to the analyzer's conventions and can be overridden.
func FromEnv() Config {
	return Config{
		AccountID:       os.Getenv("AWS_ACCOUNT_ID"),
		Region:          os.Getenv("AWS_REGION"),
		FileSystemID:    os.Getenv("EFS_ID"),
		SubnetID:        os.Getenv("SUBNET_ID"),
		SecurityGroupID: os.Getenv("SECURITY_GROUP_ID"),
		Repository:      envOrDefault("WFA_REPOSITORY", "weather-flight-analyzer"),
		Cluster:         envOrDefault("WFA_CLUSTER", "weather-flight-analyzer"),
		LogGroup:        envOrDefault("WFA_LOG_GROUP", "/ecs/weather-flight-analyzer"),
		Service:         envOrDefault("WFA_SERVICE", "weather-flight-analyzer"),
		Family:          envOrDefault("WFA_FAMILY", "weather-flight-analyzer"),
		EndpointURL:     os.Getenv("WFA_ENDPOINT_URL"),
	}
}

// Validate checks that every required parameter is present. It is called
// before any external call is attempted.
func (c Config) Validate() error {
	required := []struct {
		value string
		env   string
	}{
		{c.AccountID, "AWS_ACCOUNT_ID"},
		{c.Region, "AWS_REGION"},
		{c.FileSystemID, "EFS_ID"},
		{c.SubnetID, "SUBNET_ID"},
		{c.SecurityGroupID, "SECURITY_GROUP_ID"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("required environment variable %s is not set", r.env)
		}
	}
	return nil
}

// RegistryHost returns the account's ECR registry hostname.
func (c Config) RegistryHost() string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", c.AccountID, c.Region)
}

// ImageRef returns the fully qualified image reference for a tag.
func (c Config) ImageRef(tag string) string {
	return fmt.Sprintf("%s/%s:%s", c.RegistryHost(), c.Repository, tag)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
