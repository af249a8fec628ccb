package netwatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HTTPProber treats any HTTP response below 500 as reachable.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: %s", p.URL, resp.Status)
	}
	return nil
}

// GRPCHealthProber asks a grpc.health.v1 endpoint whether Service is
// SERVING. The connection is created lazily and reused.
type GRPCHealthProber struct {
	Target  string
	Service string
	Options []grpc.DialOption

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func (p *GRPCHealthProber) client() (healthpb.HealthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		opts := p.Options
		if len(opts) == 0 {
			opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
		}
		conn, err := grpc.NewClient(p.Target, opts...)
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	return healthpb.NewHealthClient(p.conn), nil
}

func (p *GRPCHealthProber) Probe(ctx context.Context) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: p.Service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health %s: %s", p.Target, resp.GetStatus())
	}
	return nil
}

func (p *GRPCHealthProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
