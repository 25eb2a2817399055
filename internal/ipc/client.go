package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"loom/internal/workflows"
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
	if err := c.client.Call("Loom.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateAudio queues an audio generation task.
func (c *Client) GenerateAudio(cfg workflows.AudioConfig) (*GenerateResponse, error) {
	var resp GenerateResponse
	req := GenerateAudioRequest{Config: cfg}
	if err := c.client.Call("Loom.GenerateAudio", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateImage queues an image generation task.
func (c *Client) GenerateImage(cfg workflows.ImageConfig, initImagePath string) (*GenerateResponse, error) {
	var resp GenerateResponse
	req := GenerateImageRequest{Config: cfg, InitImagePath: initImagePath}
	if err := c.client.Call("Loom.GenerateImage", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateVideo queues a video generation task.
func (c *Client) GenerateVideo(cfg workflows.VideoConfig, initImagePath string) (*GenerateResponse, error) {
	var resp GenerateResponse
	req := GenerateVideoRequest{Config: cfg, InitImagePath: initImagePath}
	if err := c.client.Call("Loom.GenerateVideo", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns tasks optionally filtered by status names.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{Statuses: statuses}
	if err := c.client.Call("Loom.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single task.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	req := QueueDescribeRequest{ID: id}
	if err := c.client.Call("Loom.QueueDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueCancel cancels a task by id.
func (c *Client) QueueCancel(id string) (*QueueCancelResponse, error) {
	var resp QueueCancelResponse
	req := QueueCancelRequest{ID: id}
	if err := c.client.Call("Loom.QueueCancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearCompleted removes terminal tasks from the daemon registry.
func (c *Client) QueueClearCompleted() (*QueueClearCompletedResponse, error) {
	var resp QueueClearCompletedResponse
	if err := c.client.Call("Loom.QueueClearCompleted", QueueClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryList returns archived terminal tasks, newest first.
func (c *Client) HistoryList(limit int) (*HistoryListResponse, error) {
	var resp HistoryListResponse
	req := HistoryListRequest{Limit: limit}
	if err := c.client.Call("Loom.HistoryList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnhancePrompt rewrites a prompt through the text-generation runtime.
func (c *Client) EnhancePrompt(prompt, mediaKind string) (*EnhancePromptResponse, error) {
	var resp EnhancePromptResponse
	req := EnhancePromptRequest{Prompt: prompt, MediaKind: mediaKind}
	if err := c.client.Call("Loom.EnhancePrompt", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail reads daemon log lines starting at the given offset.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Loom.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests daemon shutdown.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Loom.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Loom.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
