package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Murmur.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue adds URLs as fresh jobs.
func (c *Client) Enqueue(urls []string) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.client.Call("Murmur.Enqueue", EnqueueRequest{URLs: urls}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs returns jobs optionally filtered by statuses.
func (c *Client) Jobs(statuses []string) (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call("Murmur.Jobs", JobListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe returns details for a single job.
func (c *Client) Describe(id int64) (*JobDescribeResponse, error) {
	var resp JobDescribeResponse
	if err := c.client.Call("Murmur.Describe", JobDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs a full-text transcript query.
func (c *Client) Search(query string, limit int) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.client.Call("Murmur.Search", SearchRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause suspends a running job.
func (c *Client) Pause(id int64) (*ControlResponse, error) {
	var resp ControlResponse
	if err := c.client.Call("Murmur.Pause", ControlRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume continues a paused job.
func (c *Client) Resume(id int64) (*ControlResponse, error) {
	var resp ControlResponse
	if err := c.client.Call("Murmur.Resume", ControlRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Kill terminates a job, optionally deleting its artifacts.
func (c *Client) Kill(id int64, deleteArtifacts bool) (*ControlResponse, error) {
	var resp ControlResponse
	req := ControlRequest{ID: id, DeleteArtifacts: deleteArtifacts}
	if err := c.client.Call("Murmur.Kill", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry clones failed jobs back to queued.
func (c *Client) Retry(ids []int64) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.client.Call("Murmur.Retry", RetryRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearDone removes completed jobs.
func (c *Client) ClearDone() (*ClearDoneResponse, error) {
	var resp ClearDoneResponse
	if err := c.client.Call("Murmur.ClearDone", ClearDoneRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearFailed removes failed jobs.
func (c *Client) ClearFailed() (*ClearFailedResponse, error) {
	var resp ClearFailedResponse
	if err := c.client.Call("Murmur.ClearFailed", ClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health retrieves ledger diagnostics.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.client.Call("Murmur.Health", HealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Murmur.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Murmur.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
