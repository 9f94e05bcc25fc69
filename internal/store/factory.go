package store

import "artforge.app/orchestrator/core/db"

// Stores bundles every store over one DBTX, which may be the pool or an
// open transaction.
type Stores struct {
	jobs   JobStore
	ledger LedgerStore
}

func NewStores(dbtx db.DBTX) *Stores {
	return &Stores{
		jobs:   newJobStore(dbtx),
		ledger: newLedgerStore(dbtx),
	}
}

func (s *Stores) Jobs() JobStore {
	return s.jobs
}

func (s *Stores) Ledger() LedgerStore {
	return s.ledger
}
