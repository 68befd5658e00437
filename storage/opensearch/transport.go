package opensearch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/klauspost/compress/gzip"
	"github.com/poiesic/vecbatch/storage"
)

const maxResponseBytes = 64 << 20

type transport struct {
	endpoint string
	client   *http.Client
	username string
	password string
	compress bool

	credentials aws.CredentialsProvider
	signer      *v4.Signer
	service     string
	region      string
}

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do sends one request. Transport failures are transient; HTTP status
// handling is left to the caller.
func (t *transport) do(ctx context.Context, method, path string, body []byte, contentType string) (response, error) {
	payload := body
	if t.compress && len(body) > 0 {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return response{}, fmt.Errorf("compressing request: %w", err)
		}
		if err := zw.Close(); err != nil {
			return response{}, fmt.Errorf("compressing request: %w", err)
		}
		payload = buf.Bytes()
	}

	req, err := http.NewRequestWithContext(ctx, method, t.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return response{}, fmt.Errorf("creating request: %w", err)
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", contentType)
	}
	if t.compress && len(body) > 0 {
		req.Header.Set("Content-Encoding", "gzip")
	}
	req.Header.Set("Accept-Encoding", "gzip")

	switch {
	case t.signer != nil:
		if err := t.sign(ctx, req, payload); err != nil {
			return response{}, err
		}
	case t.username != "":
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return response{}, ctxErr
		}
		return response{}, fmt.Errorf("%w: %s %s: %w", storage.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return response{}, fmt.Errorf("%w: decompressing response: %w", storage.ErrTransient, err)
		}
		defer zr.Close()
		reader = zr
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxResponseBytes))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return response{}, err
		}
		return response{}, fmt.Errorf("%w: reading response: %w", storage.ErrTransient, err)
	}
	return response{status: resp.StatusCode, body: data}, nil
}

func (t *transport) sign(ctx context.Context, req *http.Request, payload []byte) error {
	creds, err := t.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieving aws credentials: %w", err)
	}
	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])
	// Serverless collections reject requests without the payload hash header.
	req.Header.Set("X-Amz-Content-Sha256", hash)
	return t.signer.SignHTTP(ctx, creds, req, hash, t.service, t.region, time.Now())
}
