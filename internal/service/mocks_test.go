package service_test

import (
	"context"

	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/provider"
	"artforge.app/orchestrator/internal/queue"
	"artforge.app/orchestrator/internal/service"
	"artforge.app/orchestrator/internal/store"
)

type mockJobStore struct {
	createFn            func(ctx context.Context, job *model.Job) error
	getByIDFn           func(ctx context.Context, id int64) (*model.Job, error)
	getByProviderTaskFn func(ctx context.Context, provider, taskID string) (*model.Job, error)
	markSubmittedFn     func(ctx context.Context, id int64, provider, taskID string) error
	markProcessingFn    func(ctx context.Context, provider, taskID string) error
	claimTerminalFn     func(ctx context.Context, id int64, status model.JobStatus, resultRef, failureReason *string) (bool, error)

	createdJob          *model.Job
	claimCalls          int
	markProcessingCalls int
}

func (m *mockJobStore) Create(ctx context.Context, job *model.Job) error {
	m.createdJob = job
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockJobStore) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockJobStore) GetByProviderTask(ctx context.Context, prov, taskID string) (*model.Job, error) {
	if m.getByProviderTaskFn != nil {
		return m.getByProviderTaskFn(ctx, prov, taskID)
	}
	return nil, store.ErrNotFound
}

func (m *mockJobStore) MarkSubmitted(ctx context.Context, id int64, prov, taskID string) error {
	if m.markSubmittedFn != nil {
		return m.markSubmittedFn(ctx, id, prov, taskID)
	}
	return nil
}

func (m *mockJobStore) MarkProcessing(ctx context.Context, prov, taskID string) error {
	m.markProcessingCalls++
	if m.markProcessingFn != nil {
		return m.markProcessingFn(ctx, prov, taskID)
	}
	return nil
}

func (m *mockJobStore) ClaimTerminal(ctx context.Context, id int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
	m.claimCalls++
	if m.claimTerminalFn != nil {
		return m.claimTerminalFn(ctx, id, status, resultRef, failureReason)
	}
	return true, nil
}

type mockLedgerStore struct {
	reserveFn        func(ctx context.Context, jobID, userID, amount int64) (bool, error)
	finalizeChargeFn func(ctx context.Context, jobID int64) error
	refundFn         func(ctx context.Context, jobID int64) error
	getBalanceFn     func(ctx context.Context, userID int64) (*model.Balance, error)

	reserveCalls  int
	finalizeCalls int
	refundCalls   int
}

func (m *mockLedgerStore) Reserve(ctx context.Context, jobID, userID, amount int64) (bool, error) {
	m.reserveCalls++
	if m.reserveFn != nil {
		return m.reserveFn(ctx, jobID, userID, amount)
	}
	return true, nil
}

func (m *mockLedgerStore) FinalizeCharge(ctx context.Context, jobID int64) error {
	m.finalizeCalls++
	if m.finalizeChargeFn != nil {
		return m.finalizeChargeFn(ctx, jobID)
	}
	return nil
}

func (m *mockLedgerStore) Refund(ctx context.Context, jobID int64) error {
	m.refundCalls++
	if m.refundFn != nil {
		return m.refundFn(ctx, jobID)
	}
	return nil
}

func (m *mockLedgerStore) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	if m.getBalanceFn != nil {
		return m.getBalanceFn(ctx, userID)
	}
	return nil, store.ErrNotFound
}

func (m *mockLedgerStore) GetHold(ctx context.Context, jobID int64) (*model.CreditHold, error) {
	return nil, store.ErrNotFound
}

type mockStoreProvider struct {
	jobs   store.JobStore
	ledger store.LedgerStore
}

func (m *mockStoreProvider) Jobs() store.JobStore {
	return m.jobs
}

func (m *mockStoreProvider) Ledger() store.LedgerStore {
	return m.ledger
}

type mockTxRunner struct {
	withTxFn func(ctx context.Context, fn func(stores service.StoreProvider) error) error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(&mockStoreProvider{})
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, n queue.Notification) error
	enqueued  []queue.Notification
}

func (m *mockProducer) Enqueue(ctx context.Context, n queue.Notification) error {
	m.enqueued = append(m.enqueued, n)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, n)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockProviderCaller struct {
	name     string
	submitFn func(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error)
	calls    int
}

func (m *mockProviderCaller) Name() string {
	return m.name
}

func (m *mockProviderCaller) Submit(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
	m.calls++
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return provider.SubmitResult{TaskID: m.name + "-task"}, nil
}
