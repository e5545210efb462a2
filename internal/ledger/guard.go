package ledger

import "pair-trade-tracker-go/internal/models"

// Messages shown when a guarded mutation asks for confirmation.
const (
	HistoricEditMessage   = "Updating an historic trade will change the Outcome and Performance metrics. Continue?"
	HistoricDeleteMessage = "Deleting an historic trade will change every later holdings snapshot and the Performance metrics. Continue?"
	InitialQtyEditMessage = "Changing the initial quantity will change every holdings snapshot and the Performance metrics. Continue?"
)

// IsHistoricEdit classifies an edit of the given leg. An edit is non-historic,
// and needs no confirmation, only when it touches the chronologically last
// trade of the pair and either targets its close leg or targets the open leg
// of a trade that has no close leg yet. Every other edit can retroactively
// change later holdings snapshots and must be confirmed before mutating.
//
// trades must be in ledger order (open date ascending, insertion order on
// ties), as returned by Store.TradesForPair.
func IsHistoricEdit(trades []models.Trade, tradeID uint, legType LegType) bool {
	if len(trades) == 0 {
		return true
	}
	latest := trades[len(trades)-1]
	if latest.ID != tradeID || latest.IsLegacy() {
		return true
	}
	if legType == LegClose {
		return false
	}
	return latest.IsClosed()
}

// IsHistoricDelete classifies a whole-trade deletion: removing any trade other
// than the chronologically last one shifts the holdings every later trade was
// validated against.
func IsHistoricDelete(trades []models.Trade, tradeID uint) bool {
	if len(trades) == 0 {
		return true
	}
	return trades[len(trades)-1].ID != tradeID
}
