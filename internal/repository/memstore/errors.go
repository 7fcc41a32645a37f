package memstore

import "errors"

var errUnknownTest = errors.New("test does not exist")
