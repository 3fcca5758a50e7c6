package helpdesk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"hde_orchestrator/internal/config"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string][]string
	body   string
	user   string
}

type fakeDesk struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request)
}

func newFakeDesk(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*fakeDesk, *Client) {
	t.Helper()

	desk := &fakeDesk{handle: handle}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, _, _ := r.BasicAuth()

		desk.mu.Lock()
		desk.requests = append(desk.requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			body:   string(body),
			user:   user,
		})
		desk.mu.Unlock()

		desk.handle(w, r)
	}))
	t.Cleanup(srv.Close)

	logger, _ := logtest.NewNullLogger()
	client, err := NewClient(testConfig(srv.URL), logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	return desk, client
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		HDEURL:              baseURL + "/api/v2",
		HDEEmail:            "agent@example.com",
		HDEAPIKey:           "key",
		HDETypeFieldID:      33,
		HDEInitiatedFieldID: 43,
		HTTPTimeout:         time.Second,
	}
}

func (d *fakeDesk) all() []recordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedRequest(nil), d.requests...)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cfg := testConfig("https://desk.example.com")
	cfg.HDEAPIKey = ""

	if _, err := NewClient(cfg, nil); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestIDUnmarshalAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 15, "b": " 16 ", "c": null}`), &payload); err != nil {
		t.Fatalf("unmarshal returned error: %v", err)
	}
	if payload.A != "15" || payload.B != "16" || payload.C != "" {
		t.Fatalf("unexpected ids: %+v", payload)
	}

	if err := json.Unmarshal([]byte(`{"a": true}`), &payload); err == nil {
		t.Fatalf("expected error for boolean id")
	}
}

func TestResolveCandidatesQueriesThreeVariantsAndDedups(t *testing.T) {
	desk, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("search") {
		case "79991234567":
			_, _ = io.WriteString(w, `{"data":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`)
		case "89991234567":
			_, _ = io.WriteString(w, `{"data":[{"id":2,"name":"B"}]}`)
		case "+79991234567":
			_, _ = io.WriteString(w, `{"data":{"3":{"id":3,"name":"C"},"1":{"id":1,"name":"A"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	candidates := client.ResolveCandidates(context.Background(), "8 (999) 123-45-67")

	requests := desk.all()
	if len(requests) != 3 {
		t.Fatalf("expected 3 directory queries, got %d", len(requests))
	}
	wantSearches := []string{"79991234567", "89991234567", "+79991234567"}
	for i, req := range requests {
		if req.method != http.MethodGet || req.path != "/api/v2/users/" {
			t.Fatalf("unexpected request %s %s", req.method, req.path)
		}
		if got := req.query["search"]; len(got) != 1 || got[0] != wantSearches[i] {
			t.Fatalf("query %d: expected search %s, got %v", i, wantSearches[i], got)
		}
		if req.user != "agent@example.com" {
			t.Fatalf("expected basic auth user, got %q", req.user)
		}
	}

	var ids []ID
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	if !reflect.DeepEqual(ids, []ID{"1", "2", "3"}) {
		t.Fatalf("expected deduplicated ids [1 2 3], got %v", ids)
	}
}

func TestResolveCandidatesFallsBackToRawForForeignNumbers(t *testing.T) {
	desk, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	})

	raw := "+44 20 7946 0958"
	candidates := client.ResolveCandidates(context.Background(), raw)

	requests := desk.all()
	if len(requests) != 1 {
		t.Fatalf("expected a single directory query, got %d", len(requests))
	}
	if got := requests[0].query["search"]; len(got) != 1 || got[0] != raw {
		t.Fatalf("expected raw search term %q, got %v", raw, got)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", candidates)
	}
}

func TestResolveCandidatesSkipsFailedVariants(t *testing.T) {
	desk, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("search") {
		case "79991234567":
			w.WriteHeader(http.StatusTooManyRequests)
		case "89991234567":
			_, _ = io.WriteString(w, `not json`)
		default:
			_, _ = io.WriteString(w, `{"data":[{"id":"7"}]}`)
		}
	})

	candidates := client.ResolveCandidates(context.Background(), "9991234567")

	if len(desk.all()) != 3 {
		t.Fatalf("expected every variant to be queried, got %d", len(desk.all()))
	}
	if len(candidates) != 1 || candidates[0].ID != "7" {
		t.Fatalf("expected candidate 7 from last variant, got %v", candidates)
	}
}

func TestListTicketsRequestsOrderedByUpdate(t *testing.T) {
	desk, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":9,"source":"email"}]}`)
	})

	tickets, err := client.ListTickets(context.Background(), "15")
	if err != nil {
		t.Fatalf("ListTickets returned error: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "9" {
		t.Fatalf("unexpected tickets %v", tickets)
	}

	req := desk.all()[0]
	if req.path != "/api/v2/tickets/" {
		t.Fatalf("unexpected path %s", req.path)
	}
	want := map[string]string{"user_list": "15", "order_by": "date_updated", "order_asc": "desc"}
	for key, val := range want {
		if got := req.query[key]; len(got) != 1 || got[0] != val {
			t.Fatalf("expected %s=%s, got %v", key, val, got)
		}
	}
}

func TestFindTelegramTicket(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		wantID ID
		wantOK bool
	}{
		{
			name:   "sequence picks first telegram in api order",
			status: http.StatusOK,
			body:   `{"data":[{"id":1,"source":"email"},{"id":500,"source":"TLGRM"},{"id":501,"source":"telegram"}]}`,
			wantID: "500",
			wantOK: true,
		},
		{
			name:   "mapping keeps document order",
			status: http.StatusOK,
			body:   `{"data":{"9":{"id":9,"source":"Telegram bot"},"2":{"id":2,"source":"tlgrm"}}}`,
			wantID: "9",
			wantOK: true,
		},
		{
			name:   "empty list",
			status: http.StatusOK,
			body:   `{"data":[]}`,
		},
		{
			name:   "no telegram source",
			status: http.StatusOK,
			body:   `{"data":[{"id":1,"source":"email"},{"id":2,"source":"whatsapp"},{"id":3}]}`,
		},
		{
			name:   "bad status",
			status: http.StatusInternalServerError,
			body:   `{"data":[{"id":1,"source":"telegram"}]}`,
		},
		{
			name:   "bad shape",
			status: http.StatusOK,
			body:   `{"data":"oops"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			id, ok := client.FindTelegramTicket(context.Background(), "15")
			if ok != tt.wantOK || id != tt.wantID {
				t.Fatalf("FindTelegramTicket() = (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestFindTelegramTicketTransportErrorIsNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client, err := NewClient(testConfig(baseURL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if id, ok := client.FindTelegramTicket(context.Background(), "15"); ok || id != "" {
		t.Fatalf("expected no ticket on transport error, got (%q, %v)", id, ok)
	}
}

func TestIsTelegramSource(t *testing.T) {
	for _, src := range []string{"tlgrm", "TELEGRAM", "channel_telegram_bot", "Tlgrm-2"} {
		if !IsTelegramSource(src) {
			t.Fatalf("expected %q to be a telegram source", src)
		}
	}
	for _, src := range []string{"", "email", "whatsapp", "tg"} {
		if IsTelegramSource(src) {
			t.Fatalf("expected %q not to be a telegram source", src)
		}
	}
}

func TestReply(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantSent   bool
		wantDetail string
	}{
		{name: "created", status: http.StatusCreated, body: `{"data":{"id":1}}`, wantSent: true, wantDetail: `{"data":{"id":1}}`},
		{name: "ok", status: http.StatusOK, body: `{}`, wantSent: true, wantDetail: `{}`},
		{name: "rejected", status: http.StatusUnprocessableEntity, body: `{"errors":["closed"]}`, wantDetail: `{"errors":["closed"]}`},
		{name: "rejected keeps raw body", status: http.StatusBadRequest, body: " {\"errors\":[\"closed\"]}\n", wantDetail: " {\"errors\":[\"closed\"]}\n"},
		{name: "rejected without body", status: http.StatusForbidden, wantDetail: "unexpected status 403"},
		{name: "rejected with blank body", status: http.StatusBadGateway, body: " \n", wantDetail: "unexpected status 502"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			desk, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			got := client.Reply(context.Background(), "500", "Заказ ждёт")
			if got.Sent != tt.wantSent || got.Detail != tt.wantDetail {
				t.Fatalf("Reply() = %+v, want sent=%v detail=%q", got, tt.wantSent, tt.wantDetail)
			}

			req := desk.all()[0]
			if req.method != http.MethodPost || req.path != "/api/v2/tickets/500/posts/" {
				t.Fatalf("unexpected request %s %s", req.method, req.path)
			}
			var payload map[string]string
			if err := json.Unmarshal([]byte(req.body), &payload); err != nil || payload["text"] != "Заказ ждёт" {
				t.Fatalf("unexpected payload %s (%v)", req.body, err)
			}
		})
	}
}

func TestReplyTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client, err := NewClient(testConfig(baseURL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	got := client.Reply(context.Background(), "500", "hi")
	if got.Sent || !strings.Contains(got.Detail, "POST") {
		t.Fatalf("expected transport failure detail, got %+v", got)
	}
}

func TestUpdateTicketMetadataSendsTagsAndCustomFields(t *testing.T) {
	desk, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{}}`)
	})

	client.UpdateTicketMetadata(context.Background(), "500", []string{"рассылка", "promo"}, "Рассылка: Забытые вещи")

	requests := desk.all()
	if len(requests) != 1 {
		t.Fatalf("expected one update request, got %d", len(requests))
	}
	req := requests[0]
	if req.method != http.MethodPut || req.path != "/api/v2/tickets/500/" {
		t.Fatalf("unexpected request %s %s", req.method, req.path)
	}

	var payload struct {
		Tags         []string               `json:"tags"`
		CustomFields map[string]interface{} `json:"custom_fields"`
	}
	if err := json.Unmarshal([]byte(req.body), &payload); err != nil {
		t.Fatalf("invalid payload %s: %v", req.body, err)
	}
	if !reflect.DeepEqual(payload.Tags, []string{"рассылка", "promo"}) {
		t.Fatalf("unexpected tags %v", payload.Tags)
	}
	if payload.CustomFields["33"] != "Рассылка: Забытые вещи" {
		t.Fatalf("expected type field 33 to carry label, got %v", payload.CustomFields)
	}
	if payload.CustomFields["43"] != float64(1) {
		t.Fatalf("expected initiated field 43 to be 1, got %v", payload.CustomFields["43"])
	}
}

func TestUpdateTicketMetadataSwallowsFailures(t *testing.T) {
	desk, client := newFakeDesk(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client.UpdateTicketMetadata(context.Background(), "500", nil, "label")

	req := desk.all()[0]
	if !strings.Contains(req.body, `"tags":[]`) {
		t.Fatalf("expected empty tag list rather than null, got %s", req.body)
	}
}
