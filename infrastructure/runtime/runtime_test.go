package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/application/ports/mocks"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

// recordingHandler answers every request with resp and err
type recordingHandler struct {
	resp     ports.RuntimeResponse
	err      error
	requests []ports.RuntimeRequest
}

func (h *recordingHandler) Handle(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
	h.requests = append(h.requests, req)
	return h.resp, h.err
}

func okHandler() *recordingHandler {
	return &recordingHandler{resp: ports.RuntimeResponse{Success: true, Data: json.RawMessage(`{"ok":true}`)}}
}

func TestDecodeMessage(t *testing.T) {
	t.Run("typed body is the payload", func(t *testing.T) {
		req, err := decodeMessage("m-1", "sqs", "attachment.created", []byte(`{"id":1,"path":"/a.pdf"}`))
		require.NoError(t, err)
		assert.Equal(t, "m-1", req.ID)
		assert.Equal(t, "sqs", req.Source)
		assert.Equal(t, "attachment.created", req.Type)
		assert.JSONEq(t, `{"id":1,"path":"/a.pdf"}`, string(req.Payload))
		assert.False(t, req.Timestamp.IsZero())
	})

	t.Run("envelope body", func(t *testing.T) {
		req, err := decodeMessage("", "rabbitmq", "", []byte(`{"id":"env-1","type":"url.rewrite","payload":{"url":"x"}}`))
		require.NoError(t, err)
		assert.Equal(t, "env-1", req.ID)
		assert.Equal(t, "url.rewrite", req.Type)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := decodeMessage("m", "sqs", "url.rewrite", []byte(`not json`))
		assert.Error(t, err)

		_, err = decodeMessage("m", "sqs", "", []byte(`{"payload":{}}`))
		assert.ErrorIs(t, err, errMissingType)
	})
}

func newHTTP(t *testing.T, h ports.Handler, maxSize int64) *httpRuntime {
	t.Helper()
	rt, err := NewHTTPRuntime(&config.HTTPConfig{Addr: ":0", Timeout: time.Second, MaxRequestSize: maxSize}, h, mocks.NewNopObservability())
	require.NoError(t, err)
	return rt.(*httpRuntime)
}

func TestHTTPRuntime(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		handler    *recordingHandler
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			method:     http.MethodPost,
			path:       "/",
			body:       `{"type":"url.rewrite","payload":{"url":"u"}}`,
			handler:    okHandler(),
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"data":{"ok":true}}`,
		},
		{
			name:       "rejected request",
			method:     http.MethodPost,
			path:       "/",
			body:       `{"type":"attachment.created","payload":{}}`,
			handler:    &recordingHandler{resp: ports.RuntimeResponse{Error: "attachment path is required"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"success":false,"error":"attachment path is required"}`,
		},
		{
			name:       "handler error",
			method:     http.MethodPost,
			path:       "/",
			body:       `{"type":"url.rewrite","payload":{}}`,
			handler:    &recordingHandler{err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"success":false,"error":"boom"}`,
		},
		{
			name:       "invalid json",
			method:     http.MethodPost,
			path:       "/",
			body:       `{`,
			handler:    okHandler(),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing type",
			method:     http.MethodPost,
			path:       "/",
			body:       `{"payload":{}}`,
			handler:    okHandler(),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"success":false,"error":"request type is required"}`,
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			path:       "/",
			handler:    okHandler(),
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "unknown path",
			method:     http.MethodPost,
			path:       "/nope",
			handler:    okHandler(),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "health",
			method:     http.MethodGet,
			path:       "/healthz",
			handler:    okHandler(),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newHTTP(t, tt.handler, 0)

			rec := httptest.NewRecorder()
			rt.routes().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHTTPRuntime_EnrichesRequest(t *testing.T) {
	h := okHandler()
	rt := newHTTP(t, h, 0)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"url.rewrite","payload":{}}`))
	req.Header.Set("X-Request-ID", "abc-123")
	req.Header.Set("User-Agent", "wp-cron")
	rec := httptest.NewRecorder()
	rt.routes().ServeHTTP(rec, req)

	require.Len(t, h.requests, 1)
	got := h.requests[0]
	assert.Equal(t, "abc-123", got.ID)
	assert.Equal(t, "http", got.Source)
	assert.Equal(t, "wp-cron", got.Metadata["http_user_agent"])
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestHTTPRuntime_BodyLimit(t *testing.T) {
	rt := newHTTP(t, okHandler(), 16)

	rec := httptest.NewRecorder()
	body := `{"type":"url.rewrite","payload":{"url":"https://example.com/very/long"}}`
	rt.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHTTPRuntime_Metrics(t *testing.T) {
	rt := newHTTP(t, okHandler(), 0)

	rec := httptest.NewRecorder()
	rt.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHTTPRuntime_ShutdownBeforeStart(t *testing.T) {
	rt := newHTTP(t, okHandler(), 0)
	require.NoError(t, rt.Shutdown(context.Background()))
	assert.NoError(t, rt.Start())
}

func newLambda(t *testing.T, h ports.Handler, partial bool) *lambdaRuntime {
	t.Helper()
	rt, err := NewLambdaRuntime(&config.LambdaConfig{Timeout: time.Second, EnablePartialBatchFailure: partial}, h, mocks.NewNopObservability())
	require.NoError(t, err)
	return rt.(*lambdaRuntime)
}

func sqsEvent(t *testing.T, records ...events.SQSMessage) json.RawMessage {
	t.Helper()
	for i := range records {
		records[i].EventSource = sqsEventSource
	}
	raw, err := json.Marshal(events.SQSEvent{Records: records})
	require.NoError(t, err)
	return raw
}

func typeAttr(v string) map[string]events.SQSMessageAttribute {
	return map[string]events.SQSMessageAttribute{"type": {StringValue: &v, DataType: "String"}}
}

func TestLambdaRuntime_Direct(t *testing.T) {
	h := okHandler()
	rt := newLambda(t, h, true)

	out, err := rt.handleEvent(context.Background(), json.RawMessage(`{"type":"url.rewrite","payload":{"url":"u"}}`))
	require.NoError(t, err)

	resp, ok := out.(ports.RuntimeResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	require.Len(t, h.requests, 1)
	assert.Equal(t, "lambda", h.requests[0].Source)
	assert.NotEmpty(t, h.requests[0].ID)
}

func TestLambdaRuntime_Unsupported(t *testing.T) {
	rt := newLambda(t, okHandler(), true)

	_, err := rt.handleEvent(context.Background(), json.RawMessage(`{"detail-type":"Scheduled Event"}`))
	assert.EqualError(t, err, "unsupported event type")
}

func TestLambdaRuntime_SQSPartialBatch(t *testing.T) {
	h := &recordingHandler{resp: ports.RuntimeResponse{Success: true}}
	rt := newLambda(t, h, true)

	event := sqsEvent(t,
		events.SQSMessage{MessageId: "m-1", Body: `{"id":1,"path":"/a.pdf"}`, MessageAttributes: typeAttr("attachment.created")},
		events.SQSMessage{MessageId: "m-2", Body: `not json`, MessageAttributes: typeAttr("attachment.created")},
		events.SQSMessage{MessageId: "m-3", Body: `{"type":"attachment.deleted","payload":{"id":1,"path":"/a.pdf"}}`},
	)

	out, err := rt.handleEvent(context.Background(), event)
	require.NoError(t, err)

	resp := out.(events.SQSEventResponse)
	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "m-2"}}, resp.BatchItemFailures)

	require.Len(t, h.requests, 2)
	assert.Equal(t, "m-1", h.requests[0].ID)
	assert.Equal(t, "attachment.created", h.requests[0].Type)
	assert.Equal(t, "attachment.deleted", h.requests[1].Type)
	assert.Equal(t, "m-3", h.requests[1].Metadata["sqs_message_id"])
}

func TestLambdaRuntime_SQSWithoutPartialBatch(t *testing.T) {
	h := &recordingHandler{resp: ports.RuntimeResponse{Success: false, Error: "invalid"}}
	rt := newLambda(t, h, false)

	event := sqsEvent(t, events.SQSMessage{MessageId: "m-1", Body: `{}`, MessageAttributes: typeAttr("attachment.created")})

	_, err := rt.handleEvent(context.Background(), event)
	assert.EqualError(t, err, "batch processing failed: 1/1 messages failed")
}

// fakeAcknowledger records how a delivery was settled
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestRabbitMQRuntime_ProcessDelivery(t *testing.T) {
	tests := []struct {
		name        string
		handler     *recordingHandler
		delivery    amqp.Delivery
		wantAck     bool
		wantRequeue bool
		wantCalls   int
	}{
		{
			name:      "success acks",
			handler:   okHandler(),
			delivery:  amqp.Delivery{Type: "attachment.created", Body: []byte(`{"id":1,"path":"/a.pdf"}`)},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "type header wins",
			handler:   okHandler(),
			delivery:  amqp.Delivery{Type: "other", Headers: amqp.Table{"type": "url.rewrite"}, Body: []byte(`{"url":"u"}`)},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "rejected request is dropped",
			handler:   &recordingHandler{resp: ports.RuntimeResponse{Error: "invalid"}},
			delivery:  amqp.Delivery{Type: "attachment.created", Body: []byte(`{}`)},
			wantCalls: 1,
		},
		{
			name:        "handler error requeues first delivery",
			handler:     &recordingHandler{err: errors.New("boom")},
			delivery:    amqp.Delivery{Type: "attachment.created", Body: []byte(`{}`)},
			wantRequeue: true,
			wantCalls:   1,
		},
		{
			name:      "handler error on redelivery is dropped",
			handler:   &recordingHandler{err: errors.New("boom")},
			delivery:  amqp.Delivery{Type: "attachment.created", Body: []byte(`{}`), Redelivered: true},
			wantCalls: 1,
		},
		{
			name:     "undecodable message is dropped",
			handler:  okHandler(),
			delivery: amqp.Delivery{Body: []byte(`{"payload":{}}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := NewRabbitMQRuntime(&config.RabbitMQConfig{Queue: "media-offload", PrefetchCount: 1, Timeout: time.Second}, tt.handler, mocks.NewNopObservability())
			require.NoError(t, err)

			ack := &fakeAcknowledger{}
			tt.delivery.Acknowledger = ack
			rt.(*rabbitmqRuntime).processDelivery(tt.delivery)

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
			assert.Len(t, tt.handler.requests, tt.wantCalls)
		})
	}
}

func TestCreate(t *testing.T) {
	obs := mocks.NewNopObservability()

	for _, name := range []string{"http", "lambda", "rabbitmq"} {
		cfg := &config.Config{Adapters: config.AdapterConfig{Runtime: name}}
		rt, err := Create(cfg, okHandler(), obs)
		require.NoError(t, err, name)
		assert.NotNil(t, rt)
	}

	_, err := Create(&config.Config{Adapters: config.AdapterConfig{Runtime: "grpc"}}, okHandler(), obs)
	assert.EqualError(t, err, "unsupported runtime adapter: grpc")

	_, err = NewHTTPRuntime(&config.HTTPConfig{}, nil, obs)
	assert.Error(t, err)
}
