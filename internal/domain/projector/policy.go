package projector

import "time"

// VerifyMode selects how a command's effect is confirmed. The push-state
// channel lags real backend state by a few seconds, so the state read right
// after a command cannot be trusted.
type VerifyMode string

const (
	// VerifyDelay waits a fixed compensating delay, then refreshes.
	VerifyDelay VerifyMode = "delay"
	// VerifyPoll polls the state feed until it reflects the expected value,
	// bounded by a timeout.
	VerifyPoll VerifyMode = "poll"
)

// Policy holds the compensating-delay tuning for command issuance.
type Policy struct {
	Mode         VerifyMode
	PowerDelay   time.Duration
	ChannelDelay time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Mode:         VerifyDelay,
		PowerDelay:   3 * time.Second,
		ChannelDelay: 2500 * time.Millisecond,
		PollInterval: 500 * time.Millisecond,
		PollTimeout:  5 * time.Second,
	}
}
