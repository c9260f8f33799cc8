package entity

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// SignalStatus is the lifecycle state of a signal.
type SignalStatus string

const (
	SignalStatusPending SignalStatus = "pending"
	SignalStatusBought  SignalStatus = "bought"
	SignalStatusWin     SignalStatus = "win"
	SignalStatusLose    SignalStatus = "lose"
	SignalStatusClosed  SignalStatus = "closed"
	SignalStatusExpired SignalStatus = "expired"
)

var signalTransitions = map[SignalStatus][]SignalStatus{
	SignalStatusPending: {SignalStatusBought, SignalStatusExpired},
	SignalStatusBought:  {SignalStatusWin, SignalStatusLose, SignalStatusClosed},
}

// ErrInvalidTransition is matched by every *InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid signal status transition")

// InvalidTransitionError reports a state change the lifecycle does not allow.
type InvalidTransitionError struct {
	SignalID int64
	From     SignalStatus
	To       SignalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("signal %d: cannot move from %s to %s", e.SignalID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ParseSignalStatus rejects anything outside the closed set.
func ParseSignalStatus(s string) (SignalStatus, error) {
	status := SignalStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown signal status %q", s)
	}
	return status, nil
}

func (s SignalStatus) IsValid() bool {
	switch s {
	case SignalStatusPending, SignalStatusBought, SignalStatusWin,
		SignalStatusLose, SignalStatusClosed, SignalStatusExpired:
		return true
	}
	return false
}

// IsTerminal is true for win, lose, closed and expired.
func (s SignalStatus) IsTerminal() bool {
	return s.IsValid() && len(signalTransitions[s]) == 0
}

// IsOpen is true while the signal still occupies a slot for its market.
func (s SignalStatus) IsOpen() bool {
	return s == SignalStatusPending || s == SignalStatusBought
}

func (s SignalStatus) CanTransitionTo(next SignalStatus) bool {
	for _, allowed := range signalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Scan implements sql.Scanner.
func (s *SignalStatus) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into SignalStatus", value)
	}
	parsed, err := ParseSignalStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s SignalStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("unknown signal status %q", string(s))
	}
	return string(s), nil
}

// CloseReason records why a signal left the open states.
type CloseReason string

const (
	CloseReasonNone          CloseReason = "none"
	CloseReasonTargetReached CloseReason = "target_reached"
	CloseReasonStopLoss      CloseReason = "stop_loss"
	CloseReasonManual        CloseReason = "manual_close"
	CloseReasonHoldingPeriod CloseReason = "holding_period"
	CloseReasonExpired       CloseReason = "expired"
)

// UserAction records what the user (or automation) did with a signal.
type UserAction string

const (
	UserActionNone   UserAction = "none"
	UserActionBought UserAction = "bought"
)

// Timing classifies how soon after the pattern trigger the signal was raised.
type Timing string

const (
	TimingEarly Timing = "early"
	TimingGood  Timing = "good"
	TimingLate  Timing = "late"
)
