package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// DecryptReport is one recorded visit to the decrypt link.
type DecryptReport struct {
	GUID       string    `json:"guid"`
	ReceivedAt time.Time `json:"received_at"`
	SourceIP   string    `json:"source_ip,omitempty"`
	Email      string    `json:"email,omitempty"`
}

// ReportDecrypt records a decrypt report for guid, as following the link in
// a decrypted message does.
func (c *Client) ReportDecrypt(ctx context.Context, guid string) error {
	status, body, err := c.send(ctx, http.MethodGet, "/api/v1/decrypt/submit?"+url.Values{"guid": {guid}}.Encode(), "", nil)
	if err != nil {
		return err
	}
	return decodeOK(status, body, nil)
}

// ListDecryptReports returns every stored report. Requires admin credentials.
func (c *Client) ListDecryptReports(ctx context.Context) ([]DecryptReport, error) {
	var resp struct {
		Reports []DecryptReport `json:"reports"`
	}
	if err := c.admin(ctx, http.MethodGet, "/api/v1/admin/decrypt/reports", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reports, nil
}
