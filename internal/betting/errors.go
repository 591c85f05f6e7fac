package betting

import "errors"

var (
	ErrTableNotFound       = errors.New("table_not_found")
	ErrRoundNotOpen        = errors.New("round_not_open")
	ErrRoundClosingRace    = errors.New("round_closing")
	ErrBelowMinimum        = errors.New("stake_below_minimum")
	ErrAboveMaximum        = errors.New("stake_above_maximum")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrDuplicateBet        = errors.New("duplicate_bet")
	ErrLayNotAllowed       = errors.New("lay_not_allowed")
	ErrInvalidSelection    = errors.New("invalid_selection")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrBetNotFound         = errors.New("bet_not_found")
	ErrCashoutUnavailable  = errors.New("cashout_unavailable")
)
