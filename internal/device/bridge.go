package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"visitagent/internal/models"
)

// The UI shell exposes device hardware over a loopback HTTP bridge. The
// agent never touches GPS or camera directly; everything goes through here.

type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt" // not yet asked
)

type Bridge struct {
	base   string
	client *http.Client
}

func NewBridge(baseURL string, timeout time.Duration) *Bridge {
	return &Bridge{
		base:   baseURL,
		client: &http.Client{Timeout: timeout},
	}
}

type permissionResp struct {
	State PermissionState `json:"state"`
}

// Permission reports the current state of a permission without prompting.
func (b *Bridge) Permission(ctx context.Context, scope models.PermissionScope) (PermissionState, error) {
	var out permissionResp
	if err := b.getJSON(ctx, fmt.Sprintf("/permissions/%s", scope), &out); err != nil {
		return "", err
	}
	return out.State, nil
}

// RequestPermission raises the system prompt and returns the user's answer.
func (b *Bridge) RequestPermission(ctx context.Context, scope models.PermissionScope) (PermissionState, error) {
	var out permissionResp
	if err := b.postJSON(ctx, fmt.Sprintf("/permissions/%s/request", scope), &out); err != nil {
		return "", err
	}
	return out.State, nil
}

type fixResp struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Fix requests a single balanced-accuracy position reading.
func (b *Bridge) Fix(ctx context.Context) (models.GeoPoint, error) {
	var out fixResp
	if err := b.getJSON(ctx, "/location/fix?accuracy=balanced", &out); err != nil {
		return models.GeoPoint{}, err
	}
	return models.GeoPoint{
		Latitude:  out.Latitude,
		Longitude: out.Longitude,
		Accuracy:  out.Accuracy,
		TakenAt:   time.Now(),
	}, nil
}

type cameraStatusResp struct {
	Ready  bool   `json:"ready"`
	Facing string `json:"facing"`
}

// CameraReady reports whether the camera hardware is usable right now.
func (b *Bridge) CameraReady(ctx context.Context) (bool, error) {
	var out cameraStatusResp
	if err := b.getJSON(ctx, "/camera/status", &out); err != nil {
		return false, err
	}
	return out.Ready, nil
}

// Shutter takes a single still and returns the JPEG bytes. The bridge is
// responsible for mirroring when a front-facing sensor is active.
func (b *Bridge) Shutter(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+"/camera/shutter", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shutter: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shutter: bridge returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bridge) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path, nil)
	if err != nil {
		return err
	}
	return b.doJSON(req, out)
}

func (b *Bridge) postJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, nil)
	if err != nil {
		return err
	}
	return b.doJSON(req, out)
}

func (b *Bridge) doJSON(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
