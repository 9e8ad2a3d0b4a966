package errno

import "fmt"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Err 携带底层原因的业务错误
// errors.Is(err, errno.ErrNoAccount) 与 errors.Is(err, cause) 都成立
type Err struct {
	Errno
	Cause error
}

// Wrap attaches cause to a coded error.
func Wrap(code Errno, cause error) *Err {
	return &Err{Errno: code, Cause: cause}
}

// Wrapf is Wrap with a formatted cause.
func Wrapf(code Errno, format string, args ...interface{}) *Err {
	return &Err{Errno: code, Cause: fmt.Errorf(format, args...)}
}

func (e *Err) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Err) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Errno}
	}
	return []error{e.Errno, e.Cause}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Err:
		return typed.Code, typed.Error()
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Ledger / transaction errors (30000+)
var (
	ErrGatewayUnavailable     = Errno{Code: 30001, Message: "Ledger gateway unavailable"}
	ErrNoAccount              = Errno{Code: 30002, Message: "Account not found"}
	ErrWrongNetwork           = Errno{Code: 30003, Message: "Connected to the wrong network"}
	ErrEstimation             = Errno{Code: 30004, Message: "Gas estimation failed"}
	ErrSubmission             = Errno{Code: 30005, Message: "Transaction submission failed"}
	ErrReverted               = Errno{Code: 30006, Message: "Transaction failed"}
	ErrUnsupportedNetwork     = Errno{Code: 30007, Message: "Contract not deployed on this network"}
	ErrConfirmationTimeout    = Errno{Code: 30008, Message: "Timed out waiting for transaction confirmation"}
	ErrReadConsistencyTimeout = Errno{Code: 30009, Message: "Key not readable after confirmation"}
)

// Registration errors (40000+)
var (
	ErrAlreadyRegistered = Errno{Code: 40001, Message: "This url already registered"}
	ErrBusy              = Errno{Code: 40002, Message: "A registration is already in progress"}
	ErrInvalidURL        = Errno{Code: 40003, Message: "Invalid url"}
	ErrKeyNotFound       = Errno{Code: 40004, Message: "Short key not found"}
)
