package config

import "testing"

func validConfig() Config {
	return Config{
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

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_MissingEachRequired(t *testing.T) {
	clear := []struct {
		name string
		mod  func(*Config)
	}{
		{"AWS_ACCOUNT_ID", func(c *Config) { c.AccountID = "" }},
		{"AWS_REGION", func(c *Config) { c.Region = "" }},
		{"EFS_ID", func(c *Config) { c.FileSystemID = "" }},
		{"SUBNET_ID", func(c *Config) { c.SubnetID = "" }},
		{"SECURITY_GROUP_ID", func(c *Config) { c.SecurityGroupID = "" }},
	}
	for _, tc := range clear {
		cfg := validConfig()
		tc.mod(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AWS_ACCOUNT_ID", "123456789012")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("EFS_ID", "fs-123")
	t.Setenv("SUBNET_ID", "subnet-123")
	t.Setenv("SECURITY_GROUP_ID", "sg-123")

	cfg := FromEnv()
	if cfg.AccountID != "123456789012" || cfg.Region != "eu-west-1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Repository != "weather-flight-analyzer" {
		t.Fatalf("expected default repository, got %q", cfg.Repository)
	}
	if cfg.LogGroup != "/ecs/weather-flight-analyzer" {
		t.Fatalf("expected default log group, got %q", cfg.LogGroup)
	}
}

func TestFromEnv_NameOverrides(t *testing.T) {
	t.Setenv("WFA_CLUSTER", "staging")
	t.Setenv("WFA_SERVICE", "analyzer-staging")

	cfg := FromEnv()
	if cfg.Cluster != "staging" || cfg.Service != "analyzer-staging" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestRegistryHostAndImageRef(t *testing.T) {
	cfg := validConfig()
	host := cfg.RegistryHost()
	if host != "123456789012.dkr.ecr.us-east-1.amazonaws.com" {
		t.Fatalf("unexpected registry host %q", host)
	}
	ref := cfg.ImageRef("latest")
	if ref != host+"/weather-flight-analyzer:latest" {
		t.Fatalf("unexpected image ref %q", ref)
	}
}
