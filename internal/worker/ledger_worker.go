package worker

import (
	"github.com/spec-kit/nightpass/internal/service"
)

// StartLedgerWorker registers ledger handlers on the dispatcher.
func StartLedgerWorker(ledgerService *service.LedgerService) {
	if ledgerService == nil {
		return
	}
	ledgerService.RegisterHandlers()
}
