package eventstream

import "errors"

// ErrNilEvent indicates a nil stream event payload was provided to a publisher.
var ErrNilEvent = errors.New("nil stream event")
