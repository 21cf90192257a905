package models

import "github.com/shopspring/decimal"

// TransferRequest is the input to the transfer engine. It becomes a LedgerEntry on success.
type TransferRequest struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	Kind          TransactionKind
	Note          string
	Reference     string
	Metadata      map[string]any
	Actor         Actor
}

// AuditMetadata merges the request's metadata with note, reference and actor fields
func (r TransferRequest) AuditMetadata() map[string]any {
	meta := make(map[string]any, len(r.Metadata)+4)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	if r.Note != "" {
		meta[MetadataNote] = r.Note
	}
	if r.Reference != "" {
		meta[MetadataReference] = r.Reference
	}
	meta[MetadataActorID] = r.Actor.ID
	if r.Actor.Name != "" {
		meta[MetadataActorName] = r.Actor.Name
	}
	return meta
}
