package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/vehicle-registry/api"
	"github.com/ruteri/vehicle-registry/interfaces"
)

const maxResponseSize = 16 << 20

// envelope mirrors interfaces.Result with the payload left undecoded.
type envelope struct {
	OK      bool                    `json:"ok"`
	Data    json.RawMessage         `json:"data"`
	Message string                  `json:"message"`
	Error   *interfaces.ResultError `json:"error"`
}

// RegistryClient talks to a vehicle registry HTTP server.
type RegistryClient struct {
	// ServerAddr is the base URL of the registry server
	ServerAddr string

	httpClient *http.Client
}

// NewRegistryClient creates a client for serverAddr. httpClient may be nil.
func NewRegistryClient(serverAddr string, httpClient *http.Client) *RegistryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &RegistryClient{
		ServerAddr: strings.TrimRight(serverAddr, "/"),
		httpClient: httpClient,
	}
}

// Register implements interfaces.VehicleRegistry.
func (c *RegistryClient) Register(ctx context.Context, registration interfaces.Registration, caller interfaces.Address) (*interfaces.Receipt, error) {
	var receipt interfaces.Receipt
	err := c.do(ctx, http.MethodPost, vehiclePath(registration, "register"), api.RegisterRequest{Caller: caller}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Transfer implements interfaces.VehicleRegistry.
func (c *RegistryClient) Transfer(ctx context.Context, registration interfaces.Registration, newOwner interfaces.Address, caller interfaces.Address) (*interfaces.Receipt, error) {
	var receipt interfaces.Receipt
	body := api.TransferRequest{Caller: caller, NewOwner: newOwner}
	if err := c.do(ctx, http.MethodPost, vehiclePath(registration, "transfer"), body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// AddServiceRecord implements interfaces.VehicleRegistry.
func (c *RegistryClient) AddServiceRecord(ctx context.Context, registration interfaces.Registration, serviceDetails string, caller interfaces.Address) (*interfaces.Receipt, error) {
	var receipt interfaces.Receipt
	body := api.ServiceRequest{Caller: caller, ServiceDetails: serviceDetails}
	if err := c.do(ctx, http.MethodPost, vehiclePath(registration, "service"), body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetInfo implements interfaces.VehicleRegistry.
func (c *RegistryClient) GetInfo(ctx context.Context, caller interfaces.Address) (*interfaces.Receipt, error) {
	path := "/api/info"
	if caller != "" {
		path += "?caller=" + url.QueryEscape(caller.String())
	}
	var receipt interfaces.Receipt
	if err := c.do(ctx, http.MethodGet, path, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Vehicle returns the record of registration along with static data when the
// server has a lookup service configured.
func (c *RegistryClient) Vehicle(ctx context.Context, registration interfaces.Registration) (*api.VehicleResponse, error) {
	var resp api.VehicleResponse
	if err := c.do(ctx, http.MethodGet, vehiclePath(registration, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Record implements interfaces.RecordReader.
func (c *RegistryClient) Record(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	resp, err := c.Vehicle(ctx, registration)
	if err != nil {
		return nil, err
	}
	return resp.Record, nil
}

// History implements interfaces.HistoryProvider.
func (c *RegistryClient) History(ctx context.Context, registration interfaces.Registration) (*interfaces.History, error) {
	var history interfaces.History
	if err := c.do(ctx, http.MethodGet, vehiclePath(registration, "history"), nil, &history); err != nil {
		return nil, err
	}
	if history.Events == nil {
		history.Events = []interfaces.HistoryEvent{}
	}
	return &history, nil
}

// ExportSnapshot asks the server to archive the current history of
// registration and returns the snapshot's content id.
func (c *RegistryClient) ExportSnapshot(ctx context.Context, registration interfaces.Registration) (*api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	if err := c.do(ctx, http.MethodPost, vehiclePath(registration, "history/snapshots"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Snapshot fetches an archived history snapshot.
func (c *RegistryClient) Snapshot(ctx context.Context, id interfaces.ContentID) (*interfaces.History, error) {
	var history interfaces.History
	if err := c.do(ctx, http.MethodGet, "/api/history/snapshots/"+id.String(), nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// ServiceTypes returns the server's service-type catalogue.
func (c *RegistryClient) ServiceTypes(ctx context.Context) ([]string, error) {
	var resp api.ServiceTypesResponse
	if err := c.do(ctx, http.MethodGet, "/api/service-types", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ServiceTypes, nil
}

func vehiclePath(registration interfaces.Registration, suffix string) string {
	path := "/api/vehicles/" + url.PathEscape(registration.String())
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

func (c *RegistryClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("could not read response of %s: %w", path, err)
	}

	var result envelope
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("%s returned non-envelope response %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !result.OK {
		return errorFromResult(result.Error, resp.StatusCode)
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("could not parse response of %s: %w", path, err)
	}
	return nil
}

// errorFromResult restores the RegistryError a server reported.
func errorFromResult(resErr *interfaces.ResultError, status int) error {
	if resErr == nil {
		return fmt.Errorf("request failed with status %d", status)
	}
	return &interfaces.RegistryError{
		Kind:         resErr.Kind,
		Op:           resErr.Operation,
		Registration: resErr.Registration,
		Reason:       strings.TrimPrefix(resErr.Message, "Error: "),
	}
}
