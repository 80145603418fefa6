package cloudflare

import (
	"context"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/httpclient"
)

// r2 talks to Cloudflare's R2 bucket management endpoints directly
// via the C2 HTTP client rather than cloudflare-go: that library's R2
// support only covers bucket CRUD, not the CORS configuration this
// adapter also needs, so one client style covers both instead of
// mixing two.
type r2Client struct {
	http      *httpclient.Client
	accountID string
}

func (c *Client) r2() *r2Client {
	return &r2Client{http: httpclient.New("https://api.cloudflare.com/client/v4", c.apiToken), accountID: c.accountID}
}

type corsRule struct {
	Allowed struct {
		Methods []string `json:"methods"`
		Origins []string `json:"origins"`
	} `json:"allowed"`
}

// EnsureBucket creates an R2 bucket if it doesn't already exist.
func (c *Client) EnsureBucket(ctx context.Context, name string) error {
	r2 := c.r2()
	var existing struct {
		Result struct {
			Name string `json:"name"`
		} `json:"result"`
	}
	err := r2.http.Get(ctx, "/accounts/"+r2.accountID+"/r2/buckets/"+name, nil, &existing)
	if err == nil && existing.Result.Name == name {
		return nil
	}

	body := map[string]string{"name": name}
	if err := r2.http.Post(ctx, "/accounts/"+r2.accountID+"/r2/buckets", body, nil); err != nil {
		if apiErr, ok := err.(*httpclient.ApiError); ok && (apiErr.Status == 409 || apiErr.Status == 422) {
			return nil
		}
		return errors.Wrapf(err, "cloudflare: create r2 bucket %s", name)
	}
	return nil
}

// ConfigureCORS applies a CORS policy to an R2 bucket, used for
// public storage buckets serving browser-originated uploads/downloads.
func (c *Client) ConfigureCORS(ctx context.Context, bucketName string, allowedOrigins, allowedMethods []string) error {
	r2 := c.r2()
	rule := corsRule{}
	rule.Allowed.Methods = allowedMethods
	rule.Allowed.Origins = allowedOrigins

	body := map[string]interface{}{"rules": []corsRule{rule}}
	if err := r2.http.Put(ctx, "/accounts/"+r2.accountID+"/r2/buckets/"+bucketName+"/cors", body, nil); err != nil {
		return errors.Wrapf(err, "cloudflare: configure cors on bucket %s", bucketName)
	}
	return nil
}
