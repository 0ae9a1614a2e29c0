package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// Client wraps the Pub/Sub v2 client for the payment event stream.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub payments topic is required")
)

// NewClient connects to Pub/Sub and verifies the payments topic. With
// CreateTopic set, a missing topic is created instead of failing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: gcp.ProjectID, cfg: cfg}

	created, err := c.ensureTopic(ctx, cfg.PaymentsTopic, cfg.CreateTopic)
	if err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":         cfg.PaymentsTopic,
			"topic_created": created,
		}), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions prefers inline credentials over a key file; with neither,
// application default credentials (or the emulator host) apply.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func (c *Client) ensureTopic(ctx context.Context, name string, create bool) (bool, error) {
	fullName := TopicResourceName(c.projectID, name)
	if fullName == "" {
		return false, errNoTopic
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	switch {
	case err == nil:
		return false, nil
	case status.Code(err) != codes.NotFound:
		return false, fmt.Errorf("checking topic %q: %w", name, err)
	case !create:
		return false, fmt.Errorf("topic %q does not exist", name)
	}

	_, err = c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: fullName})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return false, fmt.Errorf("creating topic %q: %w", name, err)
	}
	return err == nil, nil
}

// Publisher returns a batching publisher for the given topic id or resource
// name, tuned by the configured delay and count thresholds. Callers own the
// handle and must Stop it.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := TopicResourceName(c.projectID, name)
	if fullName == "" {
		return nil
	}
	p := c.client.Publisher(fullName)
	applyPublishSettings(&p.PublishSettings, c.cfg)
	return p
}

func applyPublishSettings(settings *pubsub.PublishSettings, cfg config.PubSubConfig) {
	if cfg.DelayThreshold > 0 {
		settings.DelayThreshold = cfg.DelayThreshold
	}
	if cfg.CountThreshold > 0 {
		settings.CountThreshold = cfg.CountThreshold
	}
}

// Ping verifies connectivity by looking up the payments topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.ensureTopic(ctx, c.cfg.PaymentsTopic, false)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// TopicResourceName expands a bare topic id into projects/<p>/topics/<id>.
func TopicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}
