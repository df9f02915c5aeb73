package admin

// UserError is shown to the operator as is. It marks bad input or usage, not
// a failure of the service.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}
