package collaborators

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// RESTCloudBuildClient implements CloudBuildClient against a managed build
// service's REST surface (spec §6 "Cloud build collaborator").
type RESTCloudBuildClient struct {
	rc         *restClient
	project    string
	region     string
	registry   string
	bucketName string
}

// NewRESTCloudBuildClient builds a client scoped to one project/region/
// registry/staging-bucket quadruple.
func NewRESTCloudBuildClient(baseURL, project, region, registry, bucketName string, httpClient *http.Client, tokenFunc func(context.Context) (string, error)) *RESTCloudBuildClient {
	return &RESTCloudBuildClient{
		rc:         newRESTClient(baseURL, httpClient, tokenFunc),
		project:    project,
		region:     region,
		registry:   registry,
		bucketName: bucketName,
	}
}

func (c *RESTCloudBuildClient) EnsureSourceBucket(ctx context.Context) error {
	var info struct {
		Name string `json:"name"`
	}
	_, err := c.rc.do(ctx, http.MethodGet, "/storage/v1/b/"+c.bucketName, nil, &info)
	if err == nil {
		return nil
	}
	_, err = c.rc.do(ctx, http.MethodPost, "/storage/v1/b?project="+c.project, map[string]string{"name": c.bucketName}, nil)
	return err
}

func (c *RESTCloudBuildClient) UploadBlob(ctx context.Context, objectName string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("collaborators: read blob: %w", err)
	}
	path := fmt.Sprintf("/upload/storage/v1/b/%s/o?uploadType=media&name=%s", c.bucketName, objectName)
	_, err = c.rc.do(ctx, http.MethodPost, path, raw, nil)
	return err
}

func (c *RESTCloudBuildClient) SubmitBuild(ctx context.Context, sourceObject, imageTag string) (*BuildOperation, error) {
	req := map[string]any{
		"source": map[string]any{
			"storageSource": map[string]string{"bucket": c.bucketName, "object": sourceObject},
		},
		"steps": []map[string]any{
			{"name": "gcr.io/cloud-builders/docker", "args": []string{"build", "-t", imageTag, "."}},
		},
		"images": []string{imageTag},
	}

	var resp struct {
		Name string `json:"name"`
	}
	_, err := c.rc.do(ctx, http.MethodPost, fmt.Sprintf("/v1/projects/%s/builds", c.project), req, &resp)
	if err != nil {
		return nil, fmt.Errorf("collaborators: submit build: %w", err)
	}
	return &BuildOperation{ID: resp.Name}, nil
}

func (c *RESTCloudBuildClient) PollOperation(ctx context.Context, operationID string) (*BuildOperation, error) {
	var resp struct {
		Done   bool `json:"done"`
		Status string `json:"status"`
		Results struct {
			Images []struct {
				Name string `json:"name"`
			} `json:"images"`
		} `json:"results"`
	}
	_, err := c.rc.do(ctx, http.MethodGet, "/v1/"+operationID, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("collaborators: poll build: %w", err)
	}

	op := &BuildOperation{ID: operationID, Done: resp.Done}
	if resp.Done {
		if resp.Status != "SUCCESS" {
			op.Error = "build finished with status " + resp.Status
		} else if len(resp.Results.Images) > 0 {
			op.ImageTag = resp.Results.Images[0].Name
		}
	}
	return op, nil
}

func (c *RESTCloudBuildClient) FetchLogs(ctx context.Context, operationID string) ([]string, error) {
	var resp struct {
		LogLines []string `json:"logLines"`
	}
	_, err := c.rc.do(ctx, http.MethodGet, "/v1/"+operationID+"/log", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("collaborators: fetch build logs: %w", err)
	}
	return resp.LogLines, nil
}
