package e2e

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gookit/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BaseSuite talks to a running relay: websocket clients, the internal write side and gRPC health.
type BaseSuite struct {
	suite.Suite
	Config   Config
	verifier *auth.Verifier
	// namespace keeps ids unique across runs against the same database
	namespace string
}

func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayURL == "" {
		s.T().Skip("RELAY_URL not set")
	}
	s.verifier = auth.NewVerifier(s.Config.JWTSecret, s.Config.JWTIssuer)
	s.namespace = uuid.NewString()[:8]
}

func (s *BaseSuite) ID(name string) string {
	return fmt.Sprintf("%s-%s", s.namespace, name)
}

// Step prints a header for a scenario step.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseSuite) CheckHealth() {
	conn, err := grpc.NewClient(s.Config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	s.Require().NoError(err)
	s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func (s *BaseSuite) post(path string, body any, want int) map[string]any {
	data, err := json.Marshal(body)
	s.Require().NoError(err)
	r, err := http.NewRequest(http.MethodPost, s.Config.InternalURL+path, bytes.NewReader(data))
	s.Require().NoError(err)
	r.Header.Set("X-Internal-Key", s.Config.InternalKey)
	resp, err := http.DefaultClient.Do(r)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(want, resp.StatusCode)

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out
}

func (s *BaseSuite) Grant(userID domain.UserID, workspaceID, channelID string) {
	s.post("/internal/memberships", map[string]string{
		"userId": string(userID), "workspaceId": workspaceID, "channelId": channelID,
	}, http.StatusNoContent)
}

func (s *BaseSuite) Notify(name event.Name, data any) {
	s.post("/internal/events", map[string]any{"event": name, "data": data}, http.StatusAccepted)
}

// Connect opens a client for userID and keeps it reading until the test ends.
func (s *BaseSuite) Connect(userID domain.UserID) (*client.Store, *client.Conn) {
	token, err := s.verifier.GenerateToken(userID, time.Minute)
	s.Require().NoError(err)
	store := client.NewStore(slog.Default(), client.DefaultTypingTimeout)
	conn := client.NewConn(slog.Default(), client.DefaultConfig(s.Config.RelayURL, token), store)

	ctx, cancel := context.WithCancel(context.Background())
	s.Require().NoError(conn.Connect(ctx))
	go func() { _ = conn.Run(ctx) }()
	s.T().Cleanup(func() {
		cancel()
		_ = conn.Close()
		store.Close()
	})
	return store, conn
}
