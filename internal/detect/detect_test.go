package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterThresholdInclusive(t *testing.T) {
	detections := []Detection{
		{Label: "title", Confidence: 0.9},
		{Label: "plain text", Confidence: 0.2},
		{Label: "figure", Confidence: 0.19999},
	}

	kept := Filter(detections, 0.2)
	require.Len(t, kept, 2)
	assert.Equal(t, "title", kept[0].Label)
	assert.Equal(t, "plain text", kept[1].Label)
}

func TestFilterZeroThresholdKeepsAll(t *testing.T) {
	detections := []Detection{{Confidence: 0}, {Confidence: 0.01}}
	assert.Len(t, Filter(detections, 0), 2)
}

func testRaster() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 20, 10))
}

func TestRemoteDetectorParsesWire(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req remoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		_, err = png.Decode(bytes.NewReader(raw))
		require.NoError(t, err)

		json.NewEncoder(w).Encode(remoteResponse{
			Detections: []remoteDetection{
				{X: 10, Y: 20, Width: 100, Height: 50, Label: "title", Confidence: 0.93},
				{X: 0, Y: 80, Width: 40, Height: 40, Label: "table", Confidence: 0.41},
			},
		})
	}))
	defer server.Close()

	detector := NewRemoteDetector(RemoteConfig{Endpoint: server.URL, Model: "layout-v2", PoolSize: 1})
	defer detector.Close()

	detections, err := detector.Detect(context.Background(), testRaster())
	require.NoError(t, err)
	assert.Equal(t, "/detect", gotPath)
	require.Len(t, detections, 2)
	assert.Equal(t, "title", detections[0].Label)
	assert.Equal(t, 0.93, detections[0].Confidence)
	assert.Equal(t, image.Rect(10, 20, 110, 70), detections[0].Box)
	assert.Equal(t, image.Rect(0, 80, 40, 120), detections[1].Box)
}

func TestRemoteDetectorModelError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	detector := NewRemoteDetector(RemoteConfig{Endpoint: server.URL, PoolSize: 1})
	defer detector.Close()

	_, err := detector.Detect(context.Background(), testRaster())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestRemoteDetectorBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	detector := NewRemoteDetector(RemoteConfig{Endpoint: server.URL, PoolSize: 1})
	defer detector.Close()

	_, err := detector.Detect(context.Background(), testRaster())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestRemoteDetectorPoolExhaustion(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		json.NewEncoder(w).Encode(remoteResponse{})
	}))
	defer server.Close()
	defer close(release)

	detector := NewRemoteDetector(RemoteConfig{
		Endpoint:       server.URL,
		PoolSize:       1,
		AcquireTimeout: 50 * time.Millisecond,
	})
	defer detector.Close()

	go detector.Detect(context.Background(), testRaster())
	<-entered

	_, err := detector.Detect(context.Background(), testRaster())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting")
}

func TestRemoteDetectorContextCancelled(t *testing.T) {
	detector := NewRemoteDetector(RemoteConfig{Endpoint: "http://unused", PoolSize: 1})
	defer detector.Close()

	// Drain the pool so acquisition blocks on the context.
	client := <-detector.clients

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := detector.Detect(ctx, testRaster())
	assert.ErrorIs(t, err, context.Canceled)

	detector.clients <- client
}

func TestMapLayoutBlocks(t *testing.T) {
	blocks := []types.Block{
		{
			BlockType:  types.BlockTypeLayoutTitle,
			Confidence: aws.Float32(87.5),
			Geometry: &types.Geometry{
				BoundingBox: &types.BoundingBox{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.25},
			},
		},
		{
			// Plain OCR lines carry no layout information.
			BlockType:  types.BlockTypeLine,
			Confidence: aws.Float32(99),
			Geometry: &types.Geometry{
				BoundingBox: &types.BoundingBox{Left: 0, Top: 0, Width: 1, Height: 1},
			},
		},
		{
			BlockType:  types.BlockTypeLayoutFooter,
			Confidence: aws.Float32(60),
			Geometry: &types.Geometry{
				BoundingBox: &types.BoundingBox{Left: 0, Top: 0.9, Width: 1, Height: 0.1},
			},
		},
		{
			BlockType: types.BlockTypeLayoutFigure,
		},
	}

	detections := mapLayoutBlocks(blocks, 1000, 800)
	require.Len(t, detections, 2)

	assert.Equal(t, "title", detections[0].Label)
	assert.InDelta(t, 0.875, detections[0].Confidence, 1e-6)
	assert.Equal(t, image.Rect(100, 160, 600, 360), detections[0].Box)

	assert.Equal(t, "abandoned region", detections[1].Label)
	assert.Equal(t, image.Rect(0, 720, 1000, 800), detections[1].Box)
}

func TestFactoryUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "tesseract"}, nil)
	assert.Error(t, err)
}
