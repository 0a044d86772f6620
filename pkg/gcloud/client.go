// Package gcloud builds authenticated Google API services from a service
// account key.
package gcloud

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested for the service account. drive.file limits Drive access to
// files the service itself created.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveFileScope}

// Client owns the authenticated transport shared by the Sheets and Drive services.
type Client struct {
	opts []option.ClientOption
}

// NewFromFile reads a service account key and prepares a client.
func NewFromFile(ctx context.Context, credentialsFile string) (*Client, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return NewFromJSON(ctx, credentialsJSON)
}

// NewFromJSON prepares a client from an in-memory service account key.
func NewFromJSON(ctx context.Context, credentialsJSON []byte) (*Client, error) {
	cfg, err := google.JWTConfigFromJSON(credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("configure JWT from credentials: %w", err)
	}
	return &Client{opts: []option.ClientOption{option.WithHTTPClient(cfg.Client(ctx))}}, nil
}

// NewWithOptions is used when the transport is provided by the caller, for
// example an emulator endpoint in tests.
func NewWithOptions(opts ...option.ClientOption) *Client {
	return &Client{opts: opts}
}

// Sheets returns a Sheets API v4 service.
func (c *Client) Sheets(ctx context.Context) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("create Google Sheets API client: %w", err)
	}
	return svc, nil
}

// Drive returns a Drive API v3 service.
func (c *Client) Drive(ctx context.Context) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("create Google Drive API client: %w", err)
	}
	return svc, nil
}
