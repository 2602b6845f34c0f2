package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/service"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	pushes  []entity.PushEvent
	records []entity.CDR
}

func (r *fakeReconciler) ApplyPush(ctx context.Context, ev entity.PushEvent) (*service.Outcome, error) {
	r.pushes = append(r.pushes, ev)
	if ev.ReqId == "gone" {
		return nil, errcode.ErrCallNotFound
	}
	return &service.Outcome{CallId: "c-" + ev.ReqId, Status: constant.CallStatusOutCalled, Changed: true}, nil
}

func (r *fakeReconciler) ApplyRecord(ctx context.Context, cdr entity.CDR) (*service.Outcome, error) {
	r.records = append(r.records, cdr)
	if cdr.ReqId == "gone" {
		return nil, errcode.ErrCallNotFound
	}
	return &service.Outcome{CallId: "c-" + cdr.ReqId, Status: constant.CallStatusEndOk, Changed: true}, nil
}

func newWebhookEngine(r Reconciler) *route.Engine {
	engine := route.NewEngine(config.NewOptions(nil))
	engine.POST("/callback/ytx", NewWebhookHandler(r).Callback)
	return engine
}

func post(engine *route.Engine, url, body string) (int, response.Response) {
	w := ut.PerformRequest(engine, http.MethodPost, url,
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()

	var out response.Response
	_ = json.Unmarshal(resp.Body(), &out)
	return resp.StatusCode(), out
}

func TestWebhook_StatusPush(t *testing.T) {
	rec := &fakeReconciler{}
	engine := newWebhookEngine(rec)

	status, resp := post(engine, "/callback/ytx?CallState",
		`{"requestid":"r1","dsc":"13800000002","state":"alerting","timestamp":"2026-03-02 10:00:05","stateDesc":"振铃"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, resp.Code)
	require.Len(t, rec.pushes, 1)
	assert.Equal(t, "r1", rec.pushes[0].ReqId)
	assert.Equal(t, entity.LegAlerting, rec.pushes[0].State)

	t.Run("unknown call is acknowledged", func(t *testing.T) {
		status, resp := post(engine, "/callback/ytx?CallState",
			`{"requestid":"gone","dsc":"13800000002","state":"answer","timestamp":"2026-03-02 10:00:05"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 0, resp.Code)
	})

	t.Run("bad state is rejected", func(t *testing.T) {
		status, resp := post(engine, "/callback/ytx?CallState",
			`{"requestid":"r1","state":"ringing","timestamp":"2026-03-02 10:00:05"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, errcode.ErrInvalidParam.Code, resp.Code)
	})
}

func TestWebhook_DetailRecords(t *testing.T) {
	rec := &fakeReconciler{}
	engine := newWebhookEngine(rec)

	status, resp := post(engine, "/callback/ytx?Call",
		`{"cdr":[{"requestid":"r1","callerstime":"2026-03-02 10:00:01","calleretime":"2026-03-02 10:01:06","calledstime":"2026-03-02 10:00:05","calledetime":"2026-03-02 10:01:05","duration":60},{"requestid":"gone"}]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, resp.Code)
	require.Len(t, rec.records, 2)
	assert.Equal(t, int32(60), rec.records[0].Duration)
	assert.Equal(t, int64(60), rec.records[0].Legs.CalledSeconds())

	outcomes, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, outcomes, 1)
}

func TestWebhook_UnknownKind(t *testing.T) {
	rec := &fakeReconciler{}
	status, resp := post(newWebhookEngine(rec), "/callback/ytx?Other", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errcode.ErrInvalidParam.Code, resp.Code)
	assert.Empty(t, rec.pushes)
	assert.Empty(t, rec.records)
}
