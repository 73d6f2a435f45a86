package rate

import "errors"

// ErrRateLimited is returned once a window's budget is spent.
var ErrRateLimited = errors.New("rate limited")
