// Package registry publishes the analyzer image: it authenticates to ECR
// with a short-lived token, builds the image from the packaged build
// context, tags it with a stable version tag plus latest, and pushes both.
package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rs/zerolog"
)

type ecrAPI interface {
	GetAuthorizationToken(ctx context.Context, in *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

type engineAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
}

// Publisher builds and pushes the analyzer image.
type Publisher struct {
	ecr    ecrAPI
	engine engineAPI
	logger zerolog.Logger
}

// NewPublisher creates a publisher backed by ECR and a Docker engine.
func NewPublisher(ecrClient ecrAPI, engine engineAPI, logger zerolog.Logger) *Publisher {
	return &Publisher{ecr: ecrClient, engine: engine, logger: logger}
}

// Login obtains a short-lived ECR credential. The authorization token is
// base64-encoded "user:password".
func (p *Publisher) Login(ctx context.Context) (dockerregistry.AuthConfig, error) {
	out, err := p.ecr.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return dockerregistry.AuthConfig{}, fmt.Errorf("ecr auth: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return dockerregistry.AuthConfig{}, fmt.Errorf("ecr auth: no authorization data returned")
	}
	data := out.AuthorizationData[0]
	user, pass, err := DecodeAuthToken(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return dockerregistry.AuthConfig{}, fmt.Errorf("ecr auth: %w", err)
	}
	return dockerregistry.AuthConfig{
		Username:      user,
		Password:      pass,
		ServerAddress: aws.ToString(data.ProxyEndpoint),
	}, nil
}

// Publish builds the image from contextDir tagged with refs[0], aliases
// the remaining refs onto it, and pushes every ref. Aliasing after a
// successful build mirrors the usual build/tag/push sequence and means a
// push can never reference an image that failed to build.
func (p *Publisher) Publish(ctx context.Context, contextDir string, refs []string) error {
	if len(refs) == 0 {
		return fmt.Errorf("publish: no image refs given")
	}

	auth, err := p.Login(ctx)
	if err != nil {
		return err
	}

	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("tar build context %s: %w", contextDir, err)
	}
	defer buildCtx.Close()

	p.logger.Info().Str("context", contextDir).Str("tag", refs[0]).Msg("building image")
	resp, err := p.engine.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       refs[:1],
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	if err := drainStream(resp.Body); err != nil {
		return fmt.Errorf("image build: %w", err)
	}

	for _, ref := range refs[1:] {
		if err := p.engine.ImageTag(ctx, refs[0], ref); err != nil {
			return fmt.Errorf("tag %s: %w", ref, err)
		}
	}

	encodedAuth, err := EncodeAuthConfig(auth)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		p.logger.Info().Str("ref", ref).Msg("pushing image")
		rc, err := p.engine.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: encodedAuth})
		if err != nil {
			return fmt.Errorf("push %s: %w", ref, err)
		}
		err = drainStream(rc)
		if err != nil {
			return fmt.Errorf("push %s: %w", ref, err)
		}
	}
	return nil
}

// DecodeAuthToken splits an ECR authorization token into its user and
// password halves.
func DecodeAuthToken(token string) (user, pass string, err error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("decode authorization token: %w", err)
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("authorization token is not user:password")
	}
	return parts[0], parts[1], nil
}

// EncodeAuthConfig encodes engine credentials for the X-Registry-Auth
// header.
func EncodeAuthConfig(auth dockerregistry.AuthConfig) (string, error) {
	buf, err := json.Marshal(auth)
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// drainStream consumes an engine JSON message stream and surfaces any
// embedded error message as an error.
func drainStream(rc io.ReadCloser) error {
	defer rc.Close()
	return jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil)
}
