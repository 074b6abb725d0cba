package types

import "time"

const (
	// MinVotingDuration is the shortest voting period a proposal can have.
	MinVotingDuration = 24 * time.Hour
	// DefaultSignatureDurationDays is the validity of a decryption signature.
	DefaultSignatureDurationDays = 365
	// BallotYes and BallotNo are the only plaintexts counted by the tally.
	BallotYes = 1
	BallotNo  = 0
)
