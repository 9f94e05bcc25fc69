package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"artforge.app/orchestrator/internal/http/handler"
	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/service"
)

var _ = Describe("GenerationHandler", func() {
	var (
		router *gin.Engine
		svc    *mockSubmissionService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockSubmissionService{}
		h := handler.NewGenerationHandler(svc)
		router.POST("/generations", h.Submit)
		router.GET("/jobs/:id", h.Get)
		router.GET("/users/:id/balance", h.GetBalance)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/generations", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	validBody := `{"user_id": 42, "kind": "video", "prompt": "a fox in the snow"}`

	Describe("Submit", func() {
		It("returns 202 with the submitted job", func() {
			svc.submitFn = func(_ context.Context, params service.SubmitParams) (*model.Job, error) {
				active := "runa"
				return &model.Job{
					ID:              1001,
					UserID:          params.UserID,
					Kind:            model.GenerationKind(params.Kind),
					Status:          model.StatusSubmitted,
					ReservedCredits: 10,
					PrimaryProvider: "runa",
					ActiveProvider:  &active,
				}, nil
			}

			w := post(validBody)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("submitted"))
			Expect(resp["active_provider"]).To(Equal("runa"))
		})

		It("returns 400 on a malformed body", func() {
			w := post(`{"user_id": `)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 on a validation error", func() {
			svc.submitFn = func(_ context.Context, _ service.SubmitParams) (*model.Job, error) {
				return nil, &service.ValidationError{Field: "kind", Reason: "unknown generation kind"}
			}

			w := post(validBody)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 402 when the balance is insufficient", func() {
			svc.submitFn = func(_ context.Context, _ service.SubmitParams) (*model.Job, error) {
				return nil, service.ErrInsufficientBalance
			}

			w := post(validBody)

			Expect(w.Code).To(Equal(http.StatusPaymentRequired))
		})

		It("returns 503 when every provider is unavailable", func() {
			svc.submitFn = func(_ context.Context, _ service.SubmitParams) (*model.Job, error) {
				return nil, &service.ProvidersExhaustedError{Kind: "video", Reasons: []string{"runa: circuit open"}}
			}

			w := post(validBody)

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(w.Body.String()).To(ContainSubstring("refunded"))
		})

		It("returns 500 on unexpected errors", func() {
			svc.submitFn = func(_ context.Context, _ service.SubmitParams) (*model.Job, error) {
				return nil, errors.New("boom")
			}

			w := post(validBody)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("Get", func() {
		It("returns the job", func() {
			svc.getJobFn = func(_ context.Context, jobID int64) (*model.Job, error) {
				return &model.Job{ID: jobID, Status: model.StatusCompleted}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/jobs/1001", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 404 for an unknown job", func() {
			req := httptest.NewRequest(http.MethodGet, "/jobs/9999", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/jobs/abc", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GetBalance", func() {
		It("returns the balance", func() {
			svc.getBalanceFn = func(_ context.Context, userID int64) (*model.Balance, error) {
				return &model.Balance{UserID: userID, Credits: 55}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/users/42/balance", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["credits"]).To(BeNumerically("==", 55))
		})

		It("returns 404 for an unknown user", func() {
			req := httptest.NewRequest(http.MethodGet, "/users/9/balance", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
