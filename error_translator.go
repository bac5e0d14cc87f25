package sqlbook

// ErrorTranslator is an option that can be passed to FromString or Load
//
// and is called with any *DriverError raised by a query call so that it can be translated (or wrapped)
//
// Is particularly useful for translating constraint violations (see DriverError.Code) to your own errors
type ErrorTranslator interface {
	// Translate translates the passed error
	Translate(error) error
}

func translateError(err error, translator ErrorTranslator) error {
	if err == nil {
		return nil
	}
	if translator == nil {
		return err
	}
	return translator.Translate(err)
}

// ErrorTranslatorFunc is a func that implements ErrorTranslator
type ErrorTranslatorFunc func(error) error

func (f ErrorTranslatorFunc) Translate(err error) error {
	return f(err)
}

var defaultErrorTranslator ErrorTranslator = &defErrorTranslator{}

type defErrorTranslator struct{}

func (e *defErrorTranslator) Translate(err error) error {
	return err
}
