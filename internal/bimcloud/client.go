package bimcloud

import (
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// sortNewest orders criterion results by server timestamp, newest first.
var sortNewest = url.Values{"sort-by": {"$time"}, "sort-direction": {"desc"}}

type Client struct {
	manager    string
	clientID   string
	sessionID  string
	httpClient *http.Client
}

type session struct {
	ID     string `json:"session-id"`
	UserID string `json:"user-id"`
}

type ServerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// New authorizes against the manager with the oauth2 password grant and
// opens a management session. Either failing means no run can happen.
func New(ctx context.Context, manager, clientID, username, password string) (*Client, error) {
	conf := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  manager + "/management/client/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	token, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize against manager: %w", err)
	}

	c := &Client{
		manager:    manager,
		clientID:   clientID,
		httpClient: oauth2.NewClient(ctx, conf.TokenSource(ctx, token)),
	}

	var s session
	credentials := map[string]string{
		"username":  username,
		"password":  password,
		"client-id": clientID,
	}
	if err := c.post(ctx, "/management/latest/create-session", nil, credentials, &s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	c.sessionID = s.ID

	logger.Log.Debug("bimcloud session opened", zap.String("session", s.ID))
	return c, nil
}

// CloseSession releases the management session. Best effort at run end.
func (c *Client) CloseSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}

	params := url.Values{"session-id": {c.sessionID}}
	return c.post(ctx, "/management/latest/close-session", params, nil, nil)
}

func (c *Client) GetResources(ctx context.Context, criterion Criterion) ([]model.Resource, error) {
	var resources []model.Resource
	err := c.post(ctx, "/management/client/get-resources-by-criterion", sortNewest, criterion, &resources)
	return resources, err
}

func (c *Client) GetResourcesByID(ctx context.Context, ids []string) ([]model.Resource, error) {
	var resources []model.Resource
	err := c.post(ctx, "/management/client/get-resources-by-id-list", sortNewest, ids, &resources)
	return resources, err
}

func (c *Client) GetResourceBackups(ctx context.Context, ids []string, criterion Criterion) ([]model.Backup, error) {
	if criterion == nil {
		criterion = Criterion{}
	}

	var backups []model.Backup
	body := map[string]any{"ids": ids, "criterion": criterion}
	err := c.post(ctx, "/management/client/get-resource-backups-by-criterion", sortNewest, body, &backups)
	return backups, err
}

func (c *Client) CreateResourceBackup(ctx context.Context, resourceID, backupType, backupName string) (model.Job, error) {
	params := url.Values{
		"resource-id": {resourceID},
		"backup-type": {backupType},
		"backup-name": {backupName},
	}

	var job model.Job
	err := c.post(ctx, "/management/latest/create-resource-backup", params, nil, &job)
	return job, err
}

func (c *Client) DeleteResourceBackup(ctx context.Context, resourceID, backupID string) error {
	params := url.Values{"resource-id": {resourceID}, "backup-id": {backupID}}
	return c.delete(ctx, "/management/latest/delete-resource-backup", params)
}

func (c *Client) GetJobs(ctx context.Context, criterion Criterion) ([]model.Job, error) {
	var jobs []model.Job
	err := c.post(ctx, "/management/client/get-jobs-by-criterion", sortNewest, criterion, &jobs)
	return jobs, err
}

func (c *Client) InsertResourceBackupSchedule(ctx context.Context, schedule model.Schedule) error {
	return c.post(ctx, "/management/client/insert-resource-backup-schedule", nil, schedule, nil)
}

func (c *Client) GetResourceBackupSchedules(ctx context.Context, criterion Criterion) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := c.post(ctx, "/management/client/get-resource-backup-schedules-by-criterion", nil, criterion, &schedules)
	return schedules, err
}

// DeleteResourceBackupSchedule removes one schedule. Schedules are
// resources on the server side, so the endpoint takes the schedule id
// as resource-id.
func (c *Client) DeleteResourceBackupSchedule(ctx context.Context, scheduleID string) error {
	params := url.Values{"resource-id": {scheduleID}}
	return c.delete(ctx, "/management/latest/delete-resource-backup-schedule", params)
}

func (c *Client) GetModelServers(ctx context.Context) ([]ServerInfo, error) {
	var servers []ServerInfo
	err := c.get(ctx, "/management/client/get-model-servers", nil, &servers)
	return servers, err
}

// DownloadBackup streams a backup file through the open session. The
// caller owns the returned body. Size is -1 when the server does not
// announce a content length.
func (c *Client) DownloadBackup(ctx context.Context, resourceID, backupID string) (io.ReadCloser, int64, error) {
	params := url.Values{
		"session-id":  {c.sessionID},
		"resource-id": {resourceID},
		"backup-id":   {backupID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/management/client/download-backup", params), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to download backup: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("manager returned status %d: %s", resp.StatusCode, string(raw))
	}

	return resp.Body, resp.ContentLength, nil
}

func (c *Client) post(ctx context.Context, path string, params url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, params), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, params), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) delete(ctx context.Context, path string, params url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(path, params), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, nil)
}

func (c *Client) endpoint(path string, params url.Values) string {
	target := c.manager + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	return target
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("manager returned status %d: %s", resp.StatusCode, string(raw))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
