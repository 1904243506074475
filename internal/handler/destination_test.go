package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/service"
	"github.com/meetscribe/api/internal/store"
)

type memDestinations struct {
	mu    sync.Mutex
	dests map[string]*model.Destination
}

func newMemDestinations() *memDestinations {
	return &memDestinations{dests: make(map[string]*model.Destination)}
}

func (m *memDestinations) Create(ctx context.Context, d *model.Destination) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.dests[d.ID] = &cp
	return nil
}

func (m *memDestinations) Get(ctx context.Context, id string) (*model.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDestinations) Update(ctx context.Context, d *model.Destination) error {
	return m.Create(ctx, d)
}

func (m *memDestinations) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dests, id)
	return nil
}

func (m *memDestinations) ListByOrganization(ctx context.Context, orgID string) ([]*model.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Destination
	for _, d := range m.dests {
		if d.OrganizationID == orgID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memDeliveries struct{}

func (memDeliveries) Append(ctx context.Context, a *model.DeliveryAttempt) error { return nil }
func (memDeliveries) List(ctx context.Context, destinationID string) ([]*model.DeliveryAttempt, error) {
	return []*model.DeliveryAttempt{}, nil
}

func destinationApp(orgID string) *fiber.App {
	svc := service.NewDestinationService(newMemDestinations(), memDeliveries{})
	h := NewDestinationHandler(svc, validator.New())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("orgId", orgID)
		return c.Next()
	})
	app.Post("/api/destinations", h.Create)
	app.Get("/api/destinations", h.List)
	app.Get("/api/destinations/:destinationId", h.Get)
	app.Patch("/api/destinations/:destinationId", h.Update)
	app.Delete("/api/destinations/:destinationId", h.Delete)
	app.Get("/api/destinations/:destinationId/deliveries", h.Deliveries)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func TestDestinationLifecycle(t *testing.T) {
	app := destinationApp("org-1")

	status, body := doJSON(t, app, "POST", "/api/destinations", model.CreateDestinationRequest{
		Transport: model.TransportCallback,
		URL:       "https://hooks.example.com/events",
		Secret:    "s3cret",
		Events:    []model.EventType{model.EventArtifactReady},
	})
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var created model.Destination
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || !created.Active {
		t.Fatalf("unexpected created destination: %+v", created)
	}

	status, body = doJSON(t, app, "GET", "/api/destinations", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var listed []model.Destination
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one destination, got %d", len(listed))
	}

	active := false
	status, body = doJSON(t, app, "PATCH", "/api/destinations/"+created.ID, model.UpdateDestinationRequest{Active: &active})
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var updated model.Destination
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Active {
		t.Fatal("expected destination to be deactivated")
	}

	status, _ = doJSON(t, app, "GET", "/api/destinations/"+created.ID+"/deliveries", nil)
	if status != 200 {
		t.Fatalf("expected 200 for deliveries, got %d", status)
	}

	status, _ = doJSON(t, app, "DELETE", "/api/destinations/"+created.ID, nil)
	if status != 204 {
		t.Fatalf("expected 204, got %d", status)
	}
	status, _ = doJSON(t, app, "GET", "/api/destinations/"+created.ID, nil)
	if status != 404 {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestDestinationCreateValidation(t *testing.T) {
	app := destinationApp("org-1")

	// Missing URL
	status, _ := doJSON(t, app, "POST", "/api/destinations", model.CreateDestinationRequest{
		Transport: model.TransportCallback,
	})
	if status != 400 {
		t.Fatalf("expected 400 for missing url, got %d", status)
	}

	// Unknown transport
	status, _ = doJSON(t, app, "POST", "/api/destinations", model.CreateDestinationRequest{
		Transport: "carrier-pigeon",
		URL:       "https://hooks.example.com/events",
	})
	if status != 400 {
		t.Fatalf("expected 400 for bad transport, got %d", status)
	}

	// Stream destination without a secret
	status, _ = doJSON(t, app, "POST", "/api/destinations", model.CreateDestinationRequest{
		Transport: model.TransportStreamSocket,
		URL:       "wss://stream.example.com/in",
	})
	if status != 400 {
		t.Fatalf("expected 400 for stream destination without secret, got %d", status)
	}
}

func TestDestinationCrossOrganizationIsolation(t *testing.T) {
	dests := newMemDestinations()
	svc := service.NewDestinationService(dests, memDeliveries{})

	created, err := svc.CreateDestination(context.Background(), "org-1", &model.CreateDestinationRequest{
		Transport: model.TransportCallback,
		URL:       "https://hooks.example.com/events",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GetDestination(context.Background(), "org-2", created.ID); err != store.ErrNotFound {
		t.Fatalf("expected another org's lookup to miss, got %v", err)
	}
}
