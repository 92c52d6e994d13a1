package httpapi

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const grpcServiceName = "gatehouse.v1.Gatehouse"

// GRPCHealth exposes the standard gRPC health service, mirroring the
// HTTP readiness probe so load balancers can watch either surface.
type GRPCHealth struct {
	server *grpc.Server
	hs     *health.Server
	probe  ReadyProbe
	stop   chan struct{}
}

// NewGRPCHealth creates the health service wrapper.
func NewGRPCHealth(probe ReadyProbe) *GRPCHealth {
	g := &GRPCHealth{
		server: grpc.NewServer(),
		hs:     health.NewServer(),
		probe:  probe,
		stop:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(g.server, g.hs)
	return g
}

// Serve listens on addr and re-evaluates readiness every ten seconds
// until Shutdown is called.
func (g *GRPCHealth) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go g.watch()
	return g.server.Serve(lis)
}

func (g *GRPCHealth) watch() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	g.update()
	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		}
	}
}

func (g *GRPCHealth) update() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status := healthpb.HealthCheckResponse_SERVING
	if err := g.probe.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.hs.SetServingStatus("", status)
	g.hs.SetServingStatus(grpcServiceName, status)
}

// Shutdown stops the watcher and drains the server.
func (g *GRPCHealth) Shutdown() {
	close(g.stop)
	g.server.GracefulStop()
}
