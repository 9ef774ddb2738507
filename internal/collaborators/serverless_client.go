package collaborators

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrServiceNotFound names the missing-service condition. GetService does
// not return it: a service that does not exist yet comes back as a
// ServiceInfo with Exists false and a nil error, which is what the
// pipeline's create-or-update step checks (spec §4.4 "idempotent service
// creation").
var ErrServiceNotFound = errors.New("collaborators: service not found")

// RESTServerlessClient implements ServerlessClient against a managed
// serverless platform's REST surface (spec §6 "Cloud serverless
// collaborator").
type RESTServerlessClient struct {
	rc      *restClient
	project string
	region  string
}

func NewRESTServerlessClient(baseURL, project, region string, httpClient *http.Client, tokenFunc func(context.Context) (string, error)) *RESTServerlessClient {
	return &RESTServerlessClient{
		rc:      newRESTClient(baseURL, httpClient, tokenFunc),
		project: project,
		region:  region,
	}
}

func (c *RESTServerlessClient) servicePath(name string) string {
	return fmt.Sprintf("/v2/projects/%s/locations/%s/services/%s", c.project, c.region, name)
}

func (c *RESTServerlessClient) GetService(ctx context.Context, name string) (*ServiceInfo, error) {
	var resp struct {
		URI string `json:"uri"`
	}
	httpResp, err := c.rc.do(ctx, http.MethodGet, c.servicePath(name), nil, &resp)
	if err != nil {
		if httpResp != nil && httpResp.StatusCode == http.StatusNotFound {
			return &ServiceInfo{Name: name, Exists: false}, nil
		}
		return nil, fmt.Errorf("collaborators: get service: %w", err)
	}
	return &ServiceInfo{Name: name, URL: resp.URI, Exists: true}, nil
}

func (c *RESTServerlessClient) CreateService(ctx context.Context, spec ServiceSpec) (*ServiceInfo, error) {
	body := serviceBody(spec)
	var resp struct {
		URI string `json:"uri"`
	}
	path := fmt.Sprintf("/v2/projects/%s/locations/%s/services?serviceId=%s", c.project, c.region, spec.Name)
	_, err := c.rc.do(ctx, http.MethodPost, path, body, &resp)
	if err != nil {
		return nil, fmt.Errorf("collaborators: create service: %w", err)
	}
	return &ServiceInfo{Name: spec.Name, URL: resp.URI, Exists: true}, nil
}

func (c *RESTServerlessClient) UpdateService(ctx context.Context, spec ServiceSpec) (*ServiceInfo, error) {
	body := serviceBody(spec)
	var resp struct {
		URI string `json:"uri"`
	}
	_, err := c.rc.do(ctx, http.MethodPatch, c.servicePath(spec.Name), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("collaborators: update service: %w", err)
	}
	return &ServiceInfo{Name: spec.Name, URL: resp.URI, Exists: true}, nil
}

func (c *RESTServerlessClient) FetchLogs(ctx context.Context, name string, limit int) ([]string, error) {
	var resp struct {
		Lines []string `json:"lines"`
	}
	path := fmt.Sprintf("%s/logs?limit=%d", c.servicePath(name), limit)
	_, err := c.rc.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("collaborators: fetch service logs: %w", err)
	}
	return resp.Lines, nil
}

func serviceBody(spec ServiceSpec) map[string]any {
	return map[string]any{
		"template": map[string]any{
			"containers": []map[string]any{{
				"image": spec.ImageTag,
				"ports": []map[string]any{{"containerPort": spec.Port}},
				"env":   envList(spec.EnvVars),
				"resources": map[string]any{
					"limits": map[string]string{"cpu": spec.Resources.CPU, "memory": spec.Resources.Memory},
				},
			}},
			"scaling": map[string]any{
				"minInstanceCount": spec.Resources.MinInstances,
				"maxInstanceCount": spec.Resources.MaxInstances,
			},
			"containerConcurrency": spec.Resources.Concurrency,
		},
		"labels": spec.Labels,
	}
}

func envList(vars map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, map[string]string{"name": k, "value": v})
	}
	return out
}
