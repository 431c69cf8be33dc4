package core

import "github.com/google/uuid"

// ComputeShares divides an expense equally between the payer and the given
// participants. Each participant gets exactly amount/(n+1) rounded half-up
// to whole cents; the payer's own implicit share absorbs the rounding
// remainder, so the emitted shares plus PayerShare always reconcile with the
// amount. Participants must not include the payer.
func ComputeShares(amount Money, participants []uuid.UUID) ([]Share, error) {
	if len(participants) == 0 {
		return nil, ErrEmptySplit
	}
	per := amount.DivRound(int64(len(participants) + 1))
	shares := make([]Share, len(participants))
	for i, user := range participants {
		shares[i] = Share{
			User:   user,
			Amount: per,
			Status: SharePending,
		}
	}
	return shares, nil
}

// PayerShare is the payer's implicit portion: the amount left over after
// all participant shares. It carries the rounding remainder, positive or
// negative by at most a cent per participant.
func PayerShare(amount Money, shares []Share) Money {
	rest := amount
	for _, s := range shares {
		rest = rest.Sub(s.Amount)
	}
	return rest
}
