package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"
)

// RemoteConfig parameterizes the HTTP layout-model backend.
type RemoteConfig struct {
	Endpoint       string
	Model          string
	RequestTimeout time.Duration
	PoolSize       int
	AcquireTimeout time.Duration
}

type remoteRequest struct {
	Model string `json:"model,omitempty"`
	Image string `json:"image"`
}

type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
	Error      string            `json:"error,omitempty"`
}

type remoteDetection struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type remoteClient struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

func newRemoteClient(cfg RemoteConfig) *remoteClient {
	return &remoteClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

func (c *remoteClient) detect(ctx context.Context, img image.Image) ([]Detection, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}

	reqData, err := json.Marshal(remoteRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/detect", bytes.NewReader(reqData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("model error: %s", result.Error)
	}

	detections := make([]Detection, 0, len(result.Detections))
	for _, d := range result.Detections {
		detections = append(detections, Detection{
			Label:      d.Label,
			Confidence: d.Confidence,
			Box:        image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height),
		})
	}
	return detections, nil
}

func (c *remoteClient) close() {
	c.httpClient.CloseIdleConnections()
}

// RemoteDetector serves concurrent page workers from a fixed pool of HTTP
// clients so the model sidecar never sees more in-flight requests than the
// pool size.
type RemoteDetector struct {
	clients chan *remoteClient
	acquire time.Duration
}

// NewRemoteDetector pre-creates the whole pool.
func NewRemoteDetector(cfg RemoteConfig) *RemoteDetector {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}

	d := &RemoteDetector{
		clients: make(chan *remoteClient, cfg.PoolSize),
		acquire: cfg.AcquireTimeout,
	}
	for i := 0; i < cfg.PoolSize; i++ {
		d.clients <- newRemoteClient(cfg)
	}
	return d
}

func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	client, err := d.get(ctx)
	if err != nil {
		return nil, err
	}
	defer d.put(client)
	return client.detect(ctx, img)
}

func (d *RemoteDetector) get(ctx context.Context) (*remoteClient, error) {
	select {
	case client := <-d.clients:
		return client, nil
	case <-time.After(d.acquire):
		return nil, fmt.Errorf("timeout waiting for available model client")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *RemoteDetector) put(client *remoteClient) {
	select {
	case d.clients <- client:
	default:
	}
}

func (d *RemoteDetector) Close() error {
	close(d.clients)
	for client := range d.clients {
		client.close()
	}
	return nil
}
