package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"artforge.app/orchestrator/internal/mapper"
	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/queue"
	"artforge.app/orchestrator/internal/service"
	"artforge.app/orchestrator/internal/store"
)

var _ = Describe("CompletionService", func() {
	var (
		svc       service.CompletionService
		mockJobs  *mockJobStore
		mockLedge *mockLedgerStore
		producer  *mockProducer
		ctx       context.Context
	)

	liveJob := func() *model.Job {
		active := "runa"
		taskID := "task-1"
		return &model.Job{
			ID:              1001,
			UserID:          42,
			Kind:            model.KindVideo,
			ReservedCredits: 10,
			PrimaryProvider: "runa",
			ActiveProvider:  &active,
			ProviderTaskID:  &taskID,
			Status:          model.StatusSubmitted,
		}
	}

	successCallback := func() mapper.Callback {
		ref := "https://cdn.runa.dev/task-1.mp4"
		return mapper.Callback{
			Provider:    "runa",
			TaskID:      "task-1",
			Outcome:     model.OutcomeSuccess,
			ArtifactRef: &ref,
		}
	}

	failureCallback := func() mapper.Callback {
		detail := "model overloaded"
		return mapper.Callback{
			Provider:    "runa",
			TaskID:      "task-1",
			Outcome:     model.OutcomeFailure,
			ErrorDetail: &detail,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		mockJobs = &mockJobStore{}
		mockLedge = &mockLedgerStore{}
		producer = &mockProducer{}

		mockJobs.getByProviderTaskFn = func(ctx context.Context, prov, taskID string) (*model.Job, error) {
			if prov == "runa" && taskID == "task-1" {
				return liveJob(), nil
			}
			return nil, store.ErrNotFound
		}

		txRunner := &mockTxRunner{
			withTxFn: func(ctx context.Context, fn func(stores service.StoreProvider) error) error {
				return fn(&mockStoreProvider{jobs: mockJobs, ledger: mockLedge})
			},
		}

		svc = service.NewCompletionService(mockJobs, txRunner, producer, nil)
	})

	Describe("HandleCallback", func() {
		Context("with a success outcome", func() {
			It("completes the job, charges the hold, and enqueues a notification", func() {
				var claimedStatus model.JobStatus
				var claimedRef string
				mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
					claimedStatus = status
					if resultRef != nil {
						claimedRef = *resultRef
					}
					return true, nil
				}

				Expect(svc.HandleCallback(ctx, successCallback())).To(Succeed())

				Expect(claimedStatus).To(Equal(model.StatusCompleted))
				Expect(claimedRef).To(Equal("https://cdn.runa.dev/task-1.mp4"))
				Expect(mockLedge.finalizeCalls).To(Equal(1))
				Expect(mockLedge.refundCalls).To(BeZero())

				Expect(producer.enqueued).To(HaveLen(1))
				Expect(producer.enqueued[0].Kind).To(Equal(queue.NotificationSuccess))
				Expect(producer.enqueued[0].JobID).To(Equal(int64(1001)))
				Expect(producer.enqueued[0].UserID).To(Equal(int64(42)))
				Expect(producer.enqueued[0].ArtifactRef).To(Equal("https://cdn.runa.dev/task-1.mp4"))
			})
		})

		Context("with a failure outcome", func() {
			It("fails the job, refunds the hold, and enqueues a failure notification", func() {
				var claimedStatus model.JobStatus
				mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
					claimedStatus = status
					return true, nil
				}

				Expect(svc.HandleCallback(ctx, failureCallback())).To(Succeed())

				Expect(claimedStatus).To(Equal(model.StatusFailed))
				Expect(mockLedge.refundCalls).To(Equal(1))
				Expect(mockLedge.finalizeCalls).To(BeZero())

				Expect(producer.enqueued).To(HaveLen(1))
				Expect(producer.enqueued[0].Kind).To(Equal(queue.NotificationFailure))
				Expect(producer.enqueued[0].Reason).To(Equal("model overloaded"))
			})
		})

		Context("with a duplicate delivery", func() {
			It("no-ops: no ledger mutation, no notification", func() {
				mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
					return false, nil
				}

				Expect(svc.HandleCallback(ctx, successCallback())).To(Succeed())

				Expect(mockLedge.finalizeCalls).To(BeZero())
				Expect(mockLedge.refundCalls).To(BeZero())
				Expect(producer.enqueued).To(BeEmpty())
			})

			It("never settles money twice across conflicting deliveries", func() {
				claimed := false
				mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
					if claimed {
						return false, nil
					}
					claimed = true
					return true, nil
				}

				Expect(svc.HandleCallback(ctx, successCallback())).To(Succeed())
				Expect(svc.HandleCallback(ctx, failureCallback())).To(Succeed())

				Expect(mockLedge.finalizeCalls).To(Equal(1))
				Expect(mockLedge.refundCalls).To(BeZero())
				Expect(producer.enqueued).To(HaveLen(1))
			})
		})

		Context("with a processing outcome", func() {
			It("applies the progress update without settling anything", func() {
				cb := mapper.Callback{
					Provider: "runa",
					TaskID:   "task-1",
					Outcome:  model.OutcomeProcessing,
				}

				Expect(svc.HandleCallback(ctx, cb)).To(Succeed())

				Expect(mockJobs.markProcessingCalls).To(Equal(1))
				Expect(mockJobs.claimCalls).To(BeZero())
				Expect(mockLedge.finalizeCalls).To(BeZero())
				Expect(mockLedge.refundCalls).To(BeZero())
			})
		})

		Context("with an unknown task", func() {
			It("returns ErrJobNotFound", func() {
				cb := successCallback()
				cb.TaskID = "never-submitted"

				err := svc.HandleCallback(ctx, cb)

				Expect(err).To(MatchError(service.ErrJobNotFound))
				Expect(mockLedge.finalizeCalls).To(BeZero())
			})
		})
	})

	Describe("Cancel", func() {
		BeforeEach(func() {
			mockJobs.getByIDFn = func(ctx context.Context, jobID int64) (*model.Job, error) {
				if jobID == 1001 {
					return liveJob(), nil
				}
				return nil, store.ErrNotFound
			}
		})

		It("refunds the hold and marks the job refunded", func() {
			var claimedStatus model.JobStatus
			mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
				claimedStatus = status
				return true, nil
			}

			_, err := svc.Cancel(ctx, 1001)

			Expect(err).NotTo(HaveOccurred())
			Expect(claimedStatus).To(Equal(model.StatusRefunded))
			Expect(mockLedge.refundCalls).To(Equal(1))
			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].Kind).To(Equal(queue.NotificationFailure))
		})

		It("returns ErrAlreadyTerminal for settled jobs", func() {
			mockJobs.claimTerminalFn = func(ctx context.Context, jobID int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
				return false, nil
			}

			_, err := svc.Cancel(ctx, 1001)

			Expect(err).To(MatchError(service.ErrAlreadyTerminal))
			Expect(mockLedge.refundCalls).To(BeZero())
		})

		It("returns ErrJobNotFound for unknown jobs", func() {
			_, err := svc.Cancel(ctx, 9999)

			Expect(err).To(MatchError(service.ErrJobNotFound))
		})
	})
})
