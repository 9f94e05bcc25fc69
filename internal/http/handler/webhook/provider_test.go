package webhook_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"artforge.app/orchestrator/internal/http/handler/webhook"
	"artforge.app/orchestrator/internal/mapper"
	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/service"
)

type mockCompletionService struct {
	handleCallbackFn func(ctx context.Context, cb mapper.Callback) error

	callbacks []mapper.Callback
}

func (m *mockCompletionService) HandleCallback(ctx context.Context, cb mapper.Callback) error {
	m.callbacks = append(m.callbacks, cb)
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, cb)
	}
	return nil
}

func (m *mockCompletionService) Cancel(ctx context.Context, jobID int64) (*model.Job, error) {
	return nil, service.ErrJobNotFound
}

var _ = Describe("ProviderWebhookHandler", func() {
	var (
		router     *gin.Engine
		completion *mockCompletionService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		completion = &mockCompletionService{}
		h := webhook.NewProviderWebhookHandler(mapper.Default(), completion)
		router.POST("/webhooks/providers", h.HandleCallback)
	})

	post := func(body string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/providers", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("accepts a runa success callback and delegates it", func() {
		w := post(`{"task_id": "task-1", "state": "succeeded", "output": {"video_url": "https://cdn.runa.dev/task-1.mp4"}}`,
			map[string]string{"X-Runa-Event": "task.update"})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(completion.callbacks).To(HaveLen(1))
		cb := completion.callbacks[0]
		Expect(cb.Provider).To(Equal("runa"))
		Expect(cb.TaskID).To(Equal("task-1"))
		Expect(cb.Outcome).To(Equal(model.OutcomeSuccess))
		Expect(*cb.ArtifactRef).To(Equal("https://cdn.runa.dev/task-1.mp4"))
	})

	It("accepts a lumen failure callback identified by payload shape", func() {
		w := post(`{"id": "lum-7", "status": "error", "failure_reason": "model overloaded"}`, nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(completion.callbacks).To(HaveLen(1))
		cb := completion.callbacks[0]
		Expect(cb.Provider).To(Equal("lumen"))
		Expect(cb.Outcome).To(Equal(model.OutcomeFailure))
		Expect(*cb.ErrorDetail).To(Equal("model overloaded"))
	})

	It("rejects an unidentifiable payload with 400", func() {
		w := post(`{"something": "else"}`, nil)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(completion.callbacks).To(BeEmpty())
	})

	It("rejects a body that is not JSON with 400", func() {
		w := post(`not json at all`, nil)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(completion.callbacks).To(BeEmpty())
	})

	It("acks an identified but malformed payload with 200", func() {
		w := post(`{"state": "succeeded"}`, map[string]string{"X-Runa-Event": "task.update"})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("payload not processable"))
		Expect(completion.callbacks).To(BeEmpty())
	})

	It("acks a callback for a task it never submitted with 200", func() {
		completion.handleCallbackFn = func(_ context.Context, _ mapper.Callback) error {
			return service.ErrJobNotFound
		}

		w := post(`{"task_id": "ghost", "state": "succeeded"}`,
			map[string]string{"X-Runa-Event": "task.update"})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("unknown task"))
	})

	It("returns 500 when settlement fails so the provider retries", func() {
		completion.handleCallbackFn = func(_ context.Context, _ mapper.Callback) error {
			return errors.New("database unavailable")
		}

		w := post(`{"task_id": "task-1", "state": "succeeded"}`,
			map[string]string{"X-Runa-Event": "task.update"})

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
