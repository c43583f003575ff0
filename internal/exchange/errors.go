package exchange

import (
	"errors"
	"fmt"

	"github.com/roach88/pointex/internal/model"
)

// ErrorCode categorizes exchange rejections.
type ErrorCode string

const (
	// CodeInvalidEra rejects applications during the genesis era.
	CodeInvalidEra ErrorCode = "INVALID_ERA"

	// CodePreviousEraUnsettled rejects applications while the previous era
	// still holds an open round.
	CodePreviousEraUnsettled ErrorCode = "PREVIOUS_ERA_UNSETTLED"

	// CodeInsufficientPoints rejects applicants with zero points or with too
	// few points to outrank the lowest entry.
	CodeInsufficientPoints ErrorCode = "INSUFFICIENT_POINTS"

	// CodeDuplicateApplication rejects a second application by the same account.
	CodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"

	// CodeEraNotEnded rejects settlement of the current or a future era.
	CodeEraNotEnded ErrorCode = "ERA_NOT_ENDED"

	// CodeEmptyRound rejects settlement of an era nobody applied to.
	CodeEmptyRound ErrorCode = "EMPTY_ROUND"

	// CodeAlreadySettled rejects settlement of an era at or below the last
	// settled era, or of a round that already carries settlement data.
	CodeAlreadySettled ErrorCode = "ALREADY_SETTLED"

	// CodeEraChallenged rejects settlement while the era is under dispute.
	CodeEraChallenged ErrorCode = "ERA_CHALLENGED"

	// CodePointOverflow signals that the point total of a round does not fit
	// in a PointAmount. This is a modeling fault upstream, not a caller error.
	CodePointOverflow ErrorCode = "POINT_OVERFLOW"
)

// ExchangeError is a rejection raised before any state was modified.
type ExchangeError struct {
	Code    ErrorCode
	Message string

	// Era is the era the rejected call targeted.
	Era model.Era

	// Account is set for application rejections.
	Account *model.AccountID
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.Account != nil {
		return fmt.Sprintf("%s: %s (era=%d, account=%s)", e.Code, e.Message, e.Era, e.Account.Hex())
	}
	return fmt.Sprintf("%s: %s (era=%d)", e.Code, e.Message, e.Era)
}

// Is matches any ExchangeError carrying the same code, so callers can write
// errors.Is(err, exchange.ErrDuplicateApplication).
func (e *ExchangeError) Is(target error) bool {
	var t *ExchangeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidEra           = &ExchangeError{Code: CodeInvalidEra, Message: "no rewards in the genesis era"}
	ErrPreviousEraUnsettled = &ExchangeError{Code: CodePreviousEraUnsettled, Message: "previous era has not been settled"}
	ErrInsufficientPoints   = &ExchangeError{Code: CodeInsufficientPoints, Message: "not enough points"}
	ErrDuplicateApplication = &ExchangeError{Code: CodeDuplicateApplication, Message: "account already applied"}
	ErrEraNotEnded          = &ExchangeError{Code: CodeEraNotEnded, Message: "era has not ended"}
	ErrEmptyRound           = &ExchangeError{Code: CodeEmptyRound, Message: "no applications for era"}
	ErrAlreadySettled       = &ExchangeError{Code: CodeAlreadySettled, Message: "era already settled"}
	ErrEraChallenged        = &ExchangeError{Code: CodeEraChallenged, Message: "era is challenged"}
	ErrPointOverflow        = &ExchangeError{Code: CodePointOverflow, Message: "point total overflows"}
)

func newEraError(code ErrorCode, era model.Era, format string, args ...any) *ExchangeError {
	return &ExchangeError{Code: code, Message: fmt.Sprintf(format, args...), Era: era}
}

func newAccountError(code ErrorCode, era model.Era, account model.AccountID, format string, args ...any) *ExchangeError {
	return &ExchangeError{Code: code, Message: fmt.Sprintf(format, args...), Era: era, Account: &account}
}

// CodeOf returns the code of an ExchangeError anywhere in err's chain, or ""
// for any other error.
func CodeOf(err error) ErrorCode {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsRejection reports whether err is a validation rejection the caller can
// act on, as opposed to a storage or sink failure.
func IsRejection(err error) bool {
	code := CodeOf(err)
	return code != "" && code != CodePointOverflow
}

// DeliveryError reports payouts a reward sink did not accept. The settlement
// itself is committed; DeliverPending retries the listed payouts.
type DeliveryError struct {
	Failed []model.Payout
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%d payout(s) not delivered: %v", len(e.Failed), e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
