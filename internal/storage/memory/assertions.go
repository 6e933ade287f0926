package memory

import (
	"github.com/mintarch/ledger/internal/service/settlement"
	"github.com/mintarch/ledger/internal/service/transaction"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ transaction.Repo   = (*Store)(nil)
	_ transaction.Writer = (*Store)(nil)
	_ settlement.Repo    = (*Store)(nil)
	_ settlement.Writer  = (*Store)(nil)
)
