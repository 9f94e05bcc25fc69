package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"artforge.app/orchestrator/common/id"
	"artforge.app/orchestrator/internal/breaker"
	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/provider"
	"artforge.app/orchestrator/internal/service"
)

var _ = Describe("SubmissionService", func() {
	var (
		svc        service.SubmissionService
		mockJobs   *mockJobStore
		mockLedger *mockLedgerStore
		runa       *mockProviderCaller
		lumen      *mockProviderCaller
		ctx        context.Context
	)

	unreachable := func(name string) error {
		return &provider.UnreachableError{Provider: name, Cause: errors.New("connection refused")}
	}

	newService := func() service.SubmissionService {
		txRunner := &mockTxRunner{
			withTxFn: func(ctx context.Context, fn func(stores service.StoreProvider) error) error {
				return fn(&mockStoreProvider{jobs: mockJobs, ledger: mockLedger})
			},
		}
		chains := map[model.GenerationKind][]service.ProviderCaller{
			model.KindVideo:  {runa, lumen},
			model.KindSpeech: {},
		}
		costs := map[model.GenerationKind]int64{
			model.KindVideo: 10,
		}
		return service.NewSubmissionService(mockJobs, mockLedger, txRunner, chains, costs,
			"https://orchestrator.example/api/v1/webhooks/providers", nil)
	}

	BeforeEach(func() {
		ctx = context.Background()
		mockJobs = &mockJobStore{}
		mockLedger = &mockLedgerStore{}
		runa = &mockProviderCaller{name: "runa"}
		lumen = &mockProviderCaller{name: "lumen"}

		Expect(id.Init(1)).To(Succeed())

		svc = newService()
	})

	validParams := func() service.SubmitParams {
		return service.SubmitParams{
			UserID: 42,
			Kind:   "video",
			Prompt: "a fox in the snow",
		}
	}

	Describe("Submit", func() {
		Context("when the primary provider accepts", func() {
			It("reserves credits and submits to the first provider only", func() {
				var submittedProvider, submittedTask string
				mockJobs.markSubmittedFn = func(ctx context.Context, jobID int64, prov, taskID string) error {
					submittedProvider = prov
					submittedTask = taskID
					return nil
				}

				job, err := svc.Submit(ctx, validParams())

				Expect(err).NotTo(HaveOccurred())
				Expect(job.Status).To(Equal(model.StatusSubmitted))
				Expect(*job.ActiveProvider).To(Equal("runa"))
				Expect(*job.ProviderTaskID).To(Equal("runa-task"))
				Expect(job.PrimaryProvider).To(Equal("runa"))
				Expect(job.ReservedCredits).To(Equal(int64(10)))

				Expect(submittedProvider).To(Equal("runa"))
				Expect(submittedTask).To(Equal("runa-task"))
				Expect(mockLedger.reserveCalls).To(Equal(1))
				Expect(runa.calls).To(Equal(1))
				Expect(lumen.calls).To(BeZero())
			})

			It("stamps the creation time on the returned job", func() {
				job, err := svc.Submit(ctx, validParams())

				Expect(err).NotTo(HaveOccurred())
				Expect(job.CreatedAt).NotTo(BeZero())
			})

			It("passes the callback URL to the provider", func() {
				var gotCallback string
				runa.submitFn = func(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
					gotCallback = req.CallbackURL
					return provider.SubmitResult{TaskID: "t-1"}, nil
				}

				_, err := svc.Submit(ctx, validParams())

				Expect(err).NotTo(HaveOccurred())
				Expect(gotCallback).To(Equal("https://orchestrator.example/api/v1/webhooks/providers"))
			})
		})

		Context("when the primary provider is down", func() {
			It("falls back to the next provider in the chain", func() {
				runa.submitFn = func(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
					return provider.SubmitResult{}, unreachable("runa")
				}

				job, err := svc.Submit(ctx, validParams())

				Expect(err).NotTo(HaveOccurred())
				Expect(job.Status).To(Equal(model.StatusSubmitted))
				Expect(*job.ActiveProvider).To(Equal("lumen"))
				Expect(job.PrimaryProvider).To(Equal("runa"))
				Expect(runa.calls).To(Equal(1))
				Expect(lumen.calls).To(Equal(1))
			})

			It("falls back when the primary breaker is open", func() {
				runa.submitFn = func(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
					return provider.SubmitResult{}, breaker.ErrOpen
				}

				job, err := svc.Submit(ctx, validParams())

				Expect(err).NotTo(HaveOccurred())
				Expect(*job.ActiveProvider).To(Equal("lumen"))
			})

			It("falls back when the primary rejects the request", func() {
				runa.submitFn = func(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
					return provider.SubmitResult{}, &provider.RejectedError{Provider: "runa", Status: 422, Detail: "bad prompt"}
				}

				job, err := svc.Submit(ctx, validParams())

				Expect(err).NotTo(HaveOccurred())
				Expect(*job.ActiveProvider).To(Equal("lumen"))
			})
		})

		Context("when recording provider acceptance fails", func() {
			It("fails the job and refunds the hold so it cannot strand", func() {
				mockJobs.markSubmittedFn = func(ctx context.Context, jobID int64, prov, taskID string) error {
					return errors.New("connection reset")
				}
				var failedStatus model.JobStatus
				mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
					failedStatus = status
					return true, nil
				}

				_, err := svc.Submit(ctx, validParams())

				Expect(err).To(HaveOccurred())
				Expect(failedStatus).To(Equal(model.StatusFailed))
				Expect(mockLedger.refundCalls).To(Equal(1))
				Expect(mockLedger.finalizeCalls).To(BeZero())
				Expect(lumen.calls).To(BeZero())
			})
		})

		Context("when every provider declines", func() {
			BeforeEach(func() {
				runa.submitFn = func(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
					return provider.SubmitResult{}, unreachable("runa")
				}
				lumen.submitFn = func(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
					return provider.SubmitResult{}, unreachable("lumen")
				}
			})

			It("fails the job and refunds the reservation", func() {
				var failedStatus model.JobStatus
				var failureReason string
				mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason0 *string) (bool, error) {
					failedStatus = status
					if failureReason0 != nil {
						failureReason = *failureReason0
					}
					return true, nil
				}

				_, err := svc.Submit(ctx, validParams())

				Expect(service.IsProvidersExhausted(err)).To(BeTrue())
				Expect(failedStatus).To(Equal(model.StatusFailed))
				Expect(failureReason).To(ContainSubstring("runa"))
				Expect(failureReason).To(ContainSubstring("lumen"))
				Expect(mockLedger.refundCalls).To(Equal(1))
				Expect(mockLedger.finalizeCalls).To(BeZero())
			})

			It("reports every chain hop's reason", func() {
				_, err := svc.Submit(ctx, validParams())

				var exhausted *service.ProvidersExhaustedError
				Expect(errors.As(err, &exhausted)).To(BeTrue())
				Expect(exhausted.Reasons).To(HaveLen(2))
			})
		})

		Context("when balance is insufficient", func() {
			It("returns ErrInsufficientBalance without calling any provider", func() {
				mockLedger.reserveFn = func(ctx context.Context, jobID, userID, amount int64) (bool, error) {
					return false, nil
				}

				_, err := svc.Submit(ctx, validParams())

				Expect(err).To(MatchError(service.ErrInsufficientBalance))
				Expect(runa.calls).To(BeZero())
				Expect(lumen.calls).To(BeZero())
				Expect(mockLedger.refundCalls).To(BeZero())
			})
		})

		Context("with invalid parameters", func() {
			It("rejects an unknown kind", func() {
				params := validParams()
				params.Kind = "hologram"

				_, err := svc.Submit(ctx, params)

				Expect(service.IsValidation(err)).To(BeTrue())
				Expect(mockLedger.reserveCalls).To(BeZero())
			})

			It("rejects an empty prompt", func() {
				params := validParams()
				params.Prompt = ""

				_, err := svc.Submit(ctx, params)

				Expect(service.IsValidation(err)).To(BeTrue())
			})

			It("rejects a non-positive user id", func() {
				params := validParams()
				params.UserID = 0

				_, err := svc.Submit(ctx, params)

				Expect(service.IsValidation(err)).To(BeTrue())
			})

			It("rejects a kind with no configured chain", func() {
				params := validParams()
				params.Kind = "speech"

				_, err := svc.Submit(ctx, params)

				Expect(service.IsValidation(err)).To(BeTrue())
			})
		})
	})

	Describe("GetBalance", func() {
		It("maps a missing balance row to ErrUserNotFound", func() {
			_, err := svc.GetBalance(ctx, 99)

			Expect(err).To(MatchError(service.ErrUserNotFound))
		})

		It("returns the balance", func() {
			mockLedger.getBalanceFn = func(ctx context.Context, userID int64) (*model.Balance, error) {
				return &model.Balance{UserID: userID, Credits: 55}, nil
			}

			balance, err := svc.GetBalance(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(balance.Credits).To(Equal(int64(55)))
		})
	})
})
