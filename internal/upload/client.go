package upload

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

type Response struct {
	StatusCode int
	Body       string
}

// Transport sends one image to the dataset service.
type Transport interface {
	Upload(ctx context.Context, name, split string, content io.Reader) (Response, error)
}

const (
	DefaultBaseURL = "https://api.roboflow.com"
	DefaultTimeout = 30 * time.Second
)

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Project string
	Timeout time.Duration
}

// DatasetClient uploads images to a project in the dataset service:
// POST {base}/dataset/{project}/upload?name=..&split=.. with the image in
// the multipart "file" field.
type DatasetClient struct {
	client  *resty.Client
	project string
}

var _ Transport = (*DatasetClient)(nil)

func NewDatasetClient(cfg ClientConfig) *DatasetClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey)

	return &DatasetClient{client: client, project: cfg.Project}
}

func (c *DatasetClient) Endpoint() string {
	return fmt.Sprintf("/dataset/%s/upload", url.PathEscape(c.project))
}

func (c *DatasetClient) Upload(ctx context.Context, name, split string, content io.Reader) (Response, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"name":  name,
			"split": split,
		}).
		SetFileReader("file", name, content).
		Post(c.Endpoint())
	if err != nil {
		return Response{}, fmt.Errorf("error uploading %s: %w", name, err)
	}

	return Response{StatusCode: res.StatusCode(), Body: res.String()}, nil
}
